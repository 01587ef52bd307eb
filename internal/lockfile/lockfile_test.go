package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestLockAcquisition(t *testing.T) {
	tempDir := t.TempDir()

	lock, err := AcquireLock(tempDir)
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	defer lock.Release()

	lockPath := filepath.Join(tempDir, LockFileName)
	if _, err := os.Stat(lockPath); os.IsNotExist(err) {
		t.Errorf("Lock file was not created: %s", lockPath)
	}

	content, err := os.ReadFile(lockPath)
	if err != nil {
		t.Fatalf("Failed to read lock file: %v", err)
	}
	expected := fmt.Sprintf("pid=%d\n", os.Getpid())
	if string(content) != expected {
		t.Errorf("Lock file content = %q, want %q", string(content), expected)
	}
}

func TestLockReleaseRemovesFile(t *testing.T) {
	tempDir := t.TempDir()

	lock, err := AcquireLock(tempDir)
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Failed to release lock: %v", err)
	}

	lockPath := filepath.Join(tempDir, LockFileName)
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Errorf("Lock file still exists after release: %s", lockPath)
	}

	// Releasing again is a no-op.
	if err := lock.Release(); err != nil {
		t.Errorf("Second release failed: %v", err)
	}

	// The directory can be locked again.
	lock2, err := AcquireLock(tempDir)
	if err != nil {
		t.Fatalf("Failed to re-acquire released lock: %v", err)
	}
	lock2.Release()
}

func TestLockCreatesStateDir(t *testing.T) {
	stateDir := filepath.Join(t.TempDir(), "nested", "state")

	lock, err := AcquireLock(stateDir)
	if err != nil {
		t.Fatalf("Failed to acquire lock in new directory: %v", err)
	}
	defer lock.Release()

	if _, err := os.Stat(stateDir); err != nil {
		t.Errorf("State directory not created: %v", err)
	}
}

func TestExtractPID(t *testing.T) {
	cases := []struct {
		content string
		want    int
	}{
		{"pid=1234\n", 1234},
		{"pid=1", 1},
		{"", 0},
		{"pid=", 0},
		{"nonsense", 0},
	}
	for _, c := range cases {
		if got := extractPID(c.content); got != c.want {
			t.Errorf("extractPID(%q) = %d, want %d", c.content, got, c.want)
		}
	}
}

func TestLockErrorUnwrap(t *testing.T) {
	cause := errors.New("resource temporarily unavailable")
	err := &LockError{LockPath: "/tmp/doughpilot.lock", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("LockError must unwrap to its cause")
	}
}

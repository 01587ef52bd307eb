package recovery

import (
	"sync"
	"testing"
	"time"

	"github.com/doughlab/DoughPilot/internal/recipe"
	"github.com/doughlab/DoughPilot/internal/session"
	"github.com/doughlab/DoughPilot/internal/store"
)

type fakeAlarms struct {
	mu        sync.Mutex
	scheduled map[int]time.Time
}

func newFakeAlarms() *fakeAlarms {
	return &fakeAlarms{scheduled: make(map[int]time.Time)}
}

func (f *fakeAlarms) Schedule(triggerAt time.Time, stepIndex int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled[stepIndex] = triggerAt
}

func (f *fakeAlarms) Cancel(stepIndex int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.scheduled, stepIndex)
}

func (f *fakeAlarms) Pending(stepIndex int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.scheduled[stepIndex]
	return ok
}

type fireRecorder struct {
	mu    sync.Mutex
	fired []int
}

func (r *fireRecorder) fire(stepIndex int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired = append(r.fired, stepIndex)
}

func (r *fireRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fired)
}

func testRecipe() recipe.Recipe {
	return recipe.Recipe{
		ID:   "Sourdough",
		Name: "Sourdough",
		Steps: []recipe.Step{
			{Title: "Mix", DurationMillis: 0},
			{StartTime: "+1h", Title: "Fold", DurationMillis: 3_600_000},
		},
	}
}

func seedSession(t *testing.T, st store.Store, alarmAtMillis int64) {
	t.Helper()
	s := &session.Session{Recipe: testRecipe(), NextAlarmAtMillis: alarmAtMillis}
	if err := st.SaveSession(s.Record()); err != nil {
		t.Fatal(err)
	}
}

func TestRecoverOnStartupNoSession(t *testing.T) {
	st := store.NewInMemoryStore()
	alarms := newFakeAlarms()
	manager := session.NewManager(st, alarms)
	c := New(manager, alarms, nil)

	s, err := c.RecoverOnStartup()
	if err != nil || s != nil {
		t.Errorf("expected (nil, nil), got (%+v, %v)", s, err)
	}
}

func TestRecoverOnStartupRearmsFutureAlarm(t *testing.T) {
	st := store.NewInMemoryStore()
	alarms := newFakeAlarms()
	manager := session.NewManager(st, alarms)
	triggerAt := time.Now().Add(time.Hour).UnixMilli()
	seedSession(t, st, triggerAt)

	c := New(manager, alarms, nil)
	s, err := c.RecoverOnStartup()
	if err != nil {
		t.Fatalf("RecoverOnStartup failed: %v", err)
	}
	if s.State() != session.StateWaiting {
		t.Fatalf("state = %v, want waiting", s.State())
	}
	got, ok := alarms.scheduled[1]
	if !ok {
		t.Fatal("alarm not re-armed for step 1")
	}
	if got.UnixMilli() != triggerAt {
		t.Errorf("re-armed trigger = %d, want %d", got.UnixMilli(), triggerAt)
	}
}

func TestRecoverOnStartupAppliesMissedAlarm(t *testing.T) {
	st := store.NewInMemoryStore()
	alarms := newFakeAlarms()
	manager := session.NewManager(st, alarms)
	seedSession(t, st, time.Now().Add(-time.Hour).UnixMilli())

	c := New(manager, alarms, nil)
	s, err := c.RecoverOnStartup()
	if err != nil {
		t.Fatalf("RecoverOnStartup failed: %v", err)
	}
	// The elapsed wait is applied, so nothing is armed.
	if s.CurrentStepIndex != 1 || s.NextAlarmAtMillis != 0 {
		t.Errorf("missed alarm not applied: %+v", s)
	}
	if alarms.Pending(1) {
		t.Error("no alarm should be armed for an already-elapsed wait")
	}
}

func TestSweepRefiresOverdueAlarm(t *testing.T) {
	st := store.NewInMemoryStore()
	alarms := newFakeAlarms()
	manager := session.NewManager(st, alarms)
	seedSession(t, st, time.Now().Add(-5*time.Minute).UnixMilli())

	rec := &fireRecorder{}
	c := New(manager, alarms, rec.fire)
	c.sweep()

	if rec.count() != 1 {
		t.Fatalf("expected one re-fire, got %d", rec.count())
	}
	rec.mu.Lock()
	step := rec.fired[0]
	rec.mu.Unlock()
	if step != 1 {
		t.Errorf("re-fired step = %d, want 1", step)
	}
}

func TestSweepSkipsWithinGrace(t *testing.T) {
	st := store.NewInMemoryStore()
	alarms := newFakeAlarms()
	manager := session.NewManager(st, alarms)
	seedSession(t, st, time.Now().Add(-10*time.Second).UnixMilli())

	rec := &fireRecorder{}
	c := New(manager, alarms, rec.fire)
	c.sweep()

	if rec.count() != 0 {
		t.Errorf("sweep fired inside the grace period: %d", rec.count())
	}
}

func TestSweepSkipsArmedAlarm(t *testing.T) {
	st := store.NewInMemoryStore()
	alarms := newFakeAlarms()
	manager := session.NewManager(st, alarms)
	seedSession(t, st, time.Now().Add(-5*time.Minute).UnixMilli())
	alarms.Schedule(time.Now().Add(time.Minute), 1)

	rec := &fireRecorder{}
	c := New(manager, alarms, rec.fire)
	c.sweep()

	if rec.count() != 0 {
		t.Errorf("sweep raced an armed alarm: %d", rec.count())
	}
}

func TestSweepSkipsActiveStepSession(t *testing.T) {
	st := store.NewInMemoryStore()
	alarms := newFakeAlarms()
	manager := session.NewManager(st, alarms)
	seedSession(t, st, 0)

	rec := &fireRecorder{}
	c := New(manager, alarms, rec.fire)
	c.sweep()

	if rec.count() != 0 {
		t.Errorf("sweep fired for an active-step session: %d", rec.count())
	}
}

package recipe

import (
	"testing"

	"github.com/doughlab/DoughPilot/internal/timeparse"
)

func TestCompileThreadsCumulativeTime(t *testing.T) {
	rows := [][]string{
		{"Start Time", "Title", "Description"},
		{"", "Mix", "Combine flour and water"},
		{"+1h", "Fold", "First set of folds"},
		{"+30m", "Rest", "Leave covered"},
	}
	r := Compile(rows, "Sourdough")

	if r.ID != "Sourdough" || r.Name != "Sourdough" {
		t.Errorf("unexpected recipe identity: %q/%q", r.ID, r.Name)
	}
	if len(r.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(r.Steps))
	}
	if r.Steps[0].DurationMillis != 0 {
		t.Errorf("first step duration = %d, want 0", r.Steps[0].DurationMillis)
	}
	if r.Steps[1].DurationMillis != timeparse.MillisPerHour {
		t.Errorf("second step duration = %d, want %d", r.Steps[1].DurationMillis, timeparse.MillisPerHour)
	}
	if r.Steps[2].DurationMillis != 30*timeparse.MillisPerMinute {
		t.Errorf("third step duration = %d, want %d", r.Steps[2].DurationMillis, 30*timeparse.MillisPerMinute)
	}
}

func TestCompileAbsoluteTimingUsesRecipeTime(t *testing.T) {
	// Elapsed recipe time after "+10h" is 10h; "16:00" then waits 6 more.
	rows := [][]string{
		{"+10h", "Bulk ferment", "Overnight"},
		{"16:00", "Shape", "Shape the loaf"},
	}
	r := Compile(rows, "Overnight loaf")

	if len(r.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(r.Steps))
	}
	if want := 6 * timeparse.MillisPerHour; r.Steps[1].DurationMillis != want {
		t.Errorf("absolute step duration = %d, want %d", r.Steps[1].DurationMillis, want)
	}
}

func TestCompileDropsHeaderRow(t *testing.T) {
	rows := [][]string{
		{"start time", "title", "description"},
		{"+1h", "Fold", ""},
	}
	r := Compile(rows, "r")
	if len(r.Steps) != 1 || r.Steps[0].Title != "Fold" {
		t.Fatalf("header row not dropped: %+v", r.Steps)
	}
}

func TestCompileKeepsHeaderLikeOnlyRow(t *testing.T) {
	// A single row is never treated as a header; a one-row sheet is a
	// one-step recipe.
	rows := [][]string{
		{"start", "Feed the starter", ""},
	}
	r := Compile(rows, "r")
	if len(r.Steps) != 1 {
		t.Fatalf("single row misread as header: %+v", r.Steps)
	}
}

func TestCompileSkipsSeparatorRows(t *testing.T) {
	rows := [][]string{
		{"", "Mix", "desc"},
		{"", "", ""},
		{"+1h", "", ""},
		{"", "Bake", ""},
	}
	r := Compile(rows, "r")
	if len(r.Steps) != 2 {
		t.Fatalf("expected separator rows skipped, got %d steps", len(r.Steps))
	}
	if r.Steps[0].Title != "Mix" || r.Steps[1].Title != "Bake" {
		t.Errorf("unexpected steps: %+v", r.Steps)
	}
}

func TestCompileTitleFallback(t *testing.T) {
	// A row with no title cell at all falls back to the timing cell; a row
	// with a present-but-blank title does not.
	rows := [][]string{
		{"+1h"},
		{"+2h", "", "has description"},
	}
	r := Compile(rows, "r")
	if len(r.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(r.Steps))
	}
	if r.Steps[0].Title != "+1h" {
		t.Errorf("missing title cell should fall back to timing cell, got %q", r.Steps[0].Title)
	}
	if r.Steps[1].Title != "" {
		t.Errorf("blank title cell should stay blank, got %q", r.Steps[1].Title)
	}
}

func TestCompileEmpty(t *testing.T) {
	r := Compile(nil, "empty")
	if !r.IsEmpty() {
		t.Error("expected empty recipe")
	}
	if r.ID != "empty" {
		t.Errorf("recipe ID = %q, want %q", r.ID, "empty")
	}
}

func TestParseStepPreservesRawTiming(t *testing.T) {
	step, cumulative := ParseStep("+30m", "Rest", "Leave it", timeparse.MillisPerHour)
	if step.StartTime != "+30m" {
		t.Errorf("StartTime = %q, want raw cell preserved", step.StartTime)
	}
	if step.DurationMillis != 30*timeparse.MillisPerMinute {
		t.Errorf("DurationMillis = %d", step.DurationMillis)
	}
	if want := timeparse.MillisPerHour + 30*timeparse.MillisPerMinute; cumulative != want {
		t.Errorf("cumulative = %d, want %d", cumulative, want)
	}
}

package models

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/doughlab/DoughPilot/internal/recipe"
)

func validRecord() SessionRecord {
	return SessionRecord{
		Version:    SessionRecordVersion,
		RecipeID:   "Sourdough",
		RecipeName: "Sourdough",
		Steps: []recipe.Step{
			{StartTime: "", Title: "Mix", DurationMillis: 0},
			{StartTime: "+1h", Title: "Fold", DurationMillis: 3_600_000},
		},
		CurrentStepIndex:  0,
		NextAlarmAtMillis: 0,
	}
}

func TestSessionRecordValidate(t *testing.T) {
	rec := validRecord()
	if err := rec.Validate(); err != nil {
		t.Fatalf("valid record rejected: %v", err)
	}

	rec = validRecord()
	rec.RecipeID = ""
	if err := rec.Validate(); !errors.Is(err, ErrEmptyRecipeID) {
		t.Errorf("empty recipe id: got %v", err)
	}

	rec = validRecord()
	rec.CurrentStepIndex = -1
	if err := rec.Validate(); !errors.Is(err, ErrStepIndexRange) {
		t.Errorf("negative index: got %v", err)
	}

	rec = validRecord()
	rec.CurrentStepIndex = 3
	if err := rec.Validate(); !errors.Is(err, ErrStepIndexRange) {
		t.Errorf("out-of-range index: got %v", err)
	}

	rec = validRecord()
	rec.Steps[1].DurationMillis = -5
	if err := rec.Validate(); !errors.Is(err, ErrNegativeDuration) {
		t.Errorf("negative duration: got %v", err)
	}

	rec = validRecord()
	rec.NextAlarmAtMillis = -1
	if err := rec.Validate(); !errors.Is(err, ErrNegativeAlarm) {
		t.Errorf("negative alarm: got %v", err)
	}
}

func TestSessionRecordValidateMissingVersion(t *testing.T) {
	// Records written before versioning have no version field; they must
	// still load.
	rec := validRecord()
	rec.Version = 0
	if err := rec.Validate(); err != nil {
		t.Fatalf("unversioned record rejected: %v", err)
	}
}

func TestSessionRecordJSONShape(t *testing.T) {
	raw := `{
		"recipeId": "Sourdough",
		"recipeName": "Sourdough",
		"steps": [
			{"startTime": "", "title": "Mix", "description": "Combine", "durationMillis": 0},
			{"startTime": "+1h", "title": "Fold", "description": "", "durationMillis": 3600000}
		],
		"currentStepIndex": 1,
		"nextAlarmAtMillis": 1700000000000
	}`
	var rec SessionRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if err := rec.Validate(); err != nil {
		t.Fatalf("record invalid: %v", err)
	}
	if rec.CurrentStepIndex != 1 || rec.NextAlarmAtMillis != 1_700_000_000_000 {
		t.Errorf("fields not decoded: %+v", rec)
	}
	if rec.Steps[1].StartTime != "+1h" {
		t.Errorf("step startTime = %q", rec.Steps[1].StartTime)
	}

	// Round-trip must preserve the wire field names.
	out, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	for _, key := range []string{`"recipeId"`, `"recipeName"`, `"steps"`, `"currentStepIndex"`, `"nextAlarmAtMillis"`, `"startTime"`, `"durationMillis"`} {
		if !strings.Contains(string(out), key) {
			t.Errorf("marshaled record missing %s: %s", key, out)
		}
	}
}

func TestSessionRecordRecipe(t *testing.T) {
	rec := validRecord()
	r := rec.Recipe()
	if r.ID != rec.RecipeID || r.Name != rec.RecipeName || len(r.Steps) != len(rec.Steps) {
		t.Errorf("rebuilt recipe mismatch: %+v", r)
	}
}

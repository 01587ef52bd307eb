// Package models defines the core data structures for DoughPilot.
//
// It includes the durable session record (the wire contract between app
// runs), the saved-recipe entity, and the standard API response envelope
// shared across modules.
package models

import (
	"errors"

	"github.com/doughlab/DoughPilot/internal/recipe"
)

// SessionRecordVersion is the current schema version of the persisted
// session record. Loading is tolerant of a missing version field (records
// written before versioning), strict about everything else.
const SessionRecordVersion = 1

// Error variables for session record validation.
var (
	ErrEmptyRecipeID    = errors.New("session record has empty recipe id")
	ErrStepIndexRange   = errors.New("session record step index out of range")
	ErrNegativeDuration = errors.New("session record contains a negative step duration")
	ErrNegativeAlarm    = errors.New("session record has a negative alarm time")
)

// SessionRecord is the persisted form of the active recipe session.
//
// Exactly one record may exist at a time, stored under a single well-known
// slot. NextAlarmAtMillis of zero means the session is showing the current
// step; non-zero means it is counting down to the next step. The JSON shape
// must round-trip losslessly across app runs; Version and SavedRecipeID are
// additive fields with documented defaults.
type SessionRecord struct {
	Version           int           `json:"version,omitempty"`
	RecipeID          string        `json:"recipeId"`
	RecipeName        string        `json:"recipeName"`
	Steps             []recipe.Step `json:"steps"`
	CurrentStepIndex  int           `json:"currentStepIndex"`
	NextAlarmAtMillis int64         `json:"nextAlarmAtMillis"`
	SavedRecipeID     int64         `json:"savedRecipeId,omitempty"`
}

// Validate checks the record's invariants. A record failing validation is
// treated as "no session" by callers, never as a fatal error.
func (r *SessionRecord) Validate() error {
	if r.RecipeID == "" {
		return ErrEmptyRecipeID
	}
	if r.CurrentStepIndex < 0 || r.CurrentStepIndex > len(r.Steps) {
		return ErrStepIndexRange
	}
	for _, s := range r.Steps {
		if s.DurationMillis < 0 {
			return ErrNegativeDuration
		}
	}
	if r.NextAlarmAtMillis < 0 {
		return ErrNegativeAlarm
	}
	return nil
}

// Recipe rebuilds the immutable recipe the record was created from.
func (r *SessionRecord) Recipe() recipe.Recipe {
	return recipe.Recipe{ID: r.RecipeID, Name: r.RecipeName, Steps: r.Steps}
}

// SavedRecipe is a persisted recipe record: source metadata plus the
// compiled recipe content. Multiple saved recipes may exist (one per
// spreadsheet tab), keyed by an auto-incrementing id.
type SavedRecipe struct {
	ID                 int64         `json:"id"`
	DocumentURL        string        `json:"documentUrl"`
	FileName           string        `json:"fileName"`
	TabName            string        `json:"tabName"`
	DownloadedAtMillis int64         `json:"downloadedAtMillis"`
	LastUpdatedMillis  int64         `json:"lastUpdatedMillis"`
	TimesMade          int           `json:"timesMade"`
	Recipe             recipe.Recipe `json:"recipe"`
}

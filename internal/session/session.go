// Package session implements the recipe session state machine.
//
// A session is the durable record of a user's position within a started
// recipe. It is either showing a step and awaiting a user decision
// (active-step) or counting down to the next step (waiting). All mutations
// go through the Manager, which persists before producing any externally
// observable effect.
package session

import (
	"github.com/doughlab/DoughPilot/internal/models"
	"github.com/doughlab/DoughPilot/internal/recipe"
)

// State identifies which of the two mutually exclusive session states the
// session is in. The persisted record encodes this as the
// nextAlarmAtMillis zero sentinel; code branches on State() instead.
type State string

const (
	// StateActiveStep means the session is showing the current step and
	// awaiting a user decision.
	StateActiveStep State = "active-step"
	// StateWaiting means the session is counting down to the next step.
	StateWaiting State = "waiting"
)

// Session is the in-memory view of the active recipe session.
type Session struct {
	Recipe            recipe.Recipe
	CurrentStepIndex  int
	NextAlarmAtMillis int64
	SavedRecipeID     int64
}

// State returns the explicit session state.
func (s *Session) State() State {
	if s.NextAlarmAtMillis == 0 {
		return StateActiveStep
	}
	return StateWaiting
}

// CurrentStep returns the step the session cursor points at.
func (s *Session) CurrentStep() (recipe.Step, bool) {
	if s.CurrentStepIndex < 0 || s.CurrentStepIndex >= len(s.Recipe.Steps) {
		return recipe.Step{}, false
	}
	return s.Recipe.Steps[s.CurrentStepIndex], true
}

// NextStep returns the step after the cursor, if any.
func (s *Session) NextStep() (recipe.Step, bool) {
	i := s.CurrentStepIndex + 1
	if i < 0 || i >= len(s.Recipe.Steps) {
		return recipe.Step{}, false
	}
	return s.Recipe.Steps[i], true
}

// HasNextStep reports whether a step exists after the cursor.
func (s *Session) HasNextStep() bool {
	return s.CurrentStepIndex < len(s.Recipe.Steps)-1
}

// IsLastStep reports whether the cursor is on the final step.
func (s *Session) IsLastStep() bool {
	return s.CurrentStepIndex >= len(s.Recipe.Steps)-1
}

// RemainingMillis returns the time left until the pending alarm relative to
// nowMillis. Negative once the alarm time has passed but the user has not
// yet confirmed the next step; meaningless when not waiting.
func (s *Session) RemainingMillis(nowMillis int64) int64 {
	return s.NextAlarmAtMillis - nowMillis
}

// Record converts the session to its persisted form.
func (s *Session) Record() models.SessionRecord {
	return models.SessionRecord{
		Version:           models.SessionRecordVersion,
		RecipeID:          s.Recipe.ID,
		RecipeName:        s.Recipe.Name,
		Steps:             s.Recipe.Steps,
		CurrentStepIndex:  s.CurrentStepIndex,
		NextAlarmAtMillis: s.NextAlarmAtMillis,
		SavedRecipeID:     s.SavedRecipeID,
	}
}

// FromRecord builds a session from a validated persisted record.
func FromRecord(rec *models.SessionRecord) *Session {
	return &Session{
		Recipe:            rec.Recipe(),
		CurrentStepIndex:  rec.CurrentStepIndex,
		NextAlarmAtMillis: rec.NextAlarmAtMillis,
		SavedRecipeID:     rec.SavedRecipeID,
	}
}

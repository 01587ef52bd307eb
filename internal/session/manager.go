package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/doughlab/DoughPilot/internal/recipe"
	"github.com/doughlab/DoughPilot/internal/scheduler"
	"github.com/doughlab/DoughPilot/internal/store"
)

// Error variables for invalid session transitions.
var (
	ErrNoActiveSession = errors.New("no active session")
	ErrEmptyRecipe     = errors.New("recipe has no steps")
	ErrNotWaiting      = errors.New("session is not waiting for an alarm")
	ErrAlreadyWaiting  = errors.New("session is already waiting for an alarm")
	ErrNoNextStep      = errors.New("session has no next step")
	ErrNotLastStep     = errors.New("session is not on the last step")
	ErrAtFirstStep     = errors.New("session is on the first step")
)

// Silencer stops any currently sounding alarm. User actions that dismiss a
// wait (start early, go back, snooze, cancel) silence first, matching the
// original behavior of stopping the ringtone when the alarm is dismissed.
type Silencer interface {
	Stop()
}

// Manager owns all transitions of the session state machine.
//
// Every mutating transition persists the session before arming or after
// cancelling platform alarms, so a crash between the two leaves the store
// authoritative: a persisted alarm time that never fired is repaired by
// Restore, and an armed alarm without a matching record is dropped as stale
// by the delivery handler.
type Manager struct {
	store    store.Store
	alarms   scheduler.Alarms
	silencer Silencer
	now      func() time.Time

	mu             sync.Mutex
	pendingStep    int
	hasPendingStep bool
}

// Option configures the Manager.
type Option func(*Manager)

// WithSilencer wires the alarm sound so user actions can stop it.
func WithSilencer(s Silencer) Option {
	return func(m *Manager) {
		m.silencer = s
	}
}

// NewManager creates a session manager backed by the given store and alarm
// scheduler.
func NewManager(st store.Store, alarms scheduler.Alarms, opts ...Option) *Manager {
	m := &Manager{
		store:  st,
		alarms: alarms,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins a new session at the first step of the recipe, replacing any
// previous session. savedRecipeID links the session back to the saved
// recipe it was started from (zero when started ad hoc).
func (m *Manager) Start(r recipe.Recipe, savedRecipeID int64) (*Session, error) {
	if r.IsEmpty() {
		return nil, ErrEmptyRecipe
	}

	// A replaced session may have an alarm pending; disarm it.
	if prev, err := m.rawLoad(); err == nil && prev != nil && prev.State() == StateWaiting {
		m.alarms.Cancel(prev.CurrentStepIndex + 1)
	}

	s := &Session{Recipe: r, SavedRecipeID: savedRecipeID}
	if err := m.save(s); err != nil {
		return nil, err
	}
	slog.Info("Session started", "recipe", r.ID, "steps", len(r.Steps))
	return s, nil
}

// Advance records that the user completed the current step.
//
// A zero-duration next step becomes the current step immediately with no
// alarm. Otherwise the session enters the waiting state: the alarm time is
// persisted first, then the scheduler is armed for the next step. The
// cursor stays on the completed step until the user confirms the next one.
func (m *Manager) Advance() (*Session, error) {
	s, err := m.require(StateActiveStep)
	if err != nil {
		return nil, err
	}
	next, ok := s.NextStep()
	if !ok {
		return nil, ErrNoNextStep
	}

	if next.DurationMillis == 0 {
		s.CurrentStepIndex++
		if err := m.save(s); err != nil {
			return nil, err
		}
		slog.Info("Session advanced immediately", "step", s.CurrentStepIndex)
		return s, nil
	}

	triggerAt := m.now().Add(time.Duration(next.DurationMillis) * time.Millisecond)
	s.NextAlarmAtMillis = triggerAt.UnixMilli()
	if err := m.save(s); err != nil {
		return nil, err
	}
	m.alarms.Schedule(triggerAt, s.CurrentStepIndex+1)
	slog.Info("Session waiting", "forStep", s.CurrentStepIndex+1, "triggerAt", triggerAt)
	return s, nil
}

// Finish completes the recipe from its last step and clears the session.
func (m *Manager) Finish() error {
	s, err := m.require(StateActiveStep)
	if err != nil {
		return err
	}
	if !s.IsLastStep() {
		return ErrNotLastStep
	}
	if err := m.store.DeleteSession(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	if s.SavedRecipeID != 0 {
		if err := m.store.IncrementTimesMade(s.SavedRecipeID); err != nil {
			// The session is already finished; the counter is best-effort.
			slog.Warn("failed to increment times made", "savedRecipeId", s.SavedRecipeID, "error", err)
		}
	}
	slog.Info("Session finished", "recipe", s.Recipe.ID)
	return nil
}

// StartEarly confirms the next step before (or after) its alarm fires.
func (m *Manager) StartEarly() (*Session, error) {
	s, err := m.require(StateWaiting)
	if err != nil {
		return nil, err
	}
	m.silence()
	m.alarms.Cancel(s.CurrentStepIndex + 1)
	s.CurrentStepIndex++
	s.NextAlarmAtMillis = 0
	if err := m.save(s); err != nil {
		return nil, err
	}
	slog.Info("Session started next step early", "step", s.CurrentStepIndex)
	return s, nil
}

// GoBack moves the cursor one step back and clears any pending wait.
func (m *Manager) GoBack() (*Session, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}

	switch s.State() {
	case StateActiveStep:
		if s.CurrentStepIndex == 0 {
			return nil, ErrAtFirstStep
		}
		s.CurrentStepIndex--
	case StateWaiting:
		m.silence()
		m.alarms.Cancel(s.CurrentStepIndex + 1)
		if s.CurrentStepIndex > 0 {
			s.CurrentStepIndex--
		}
		s.NextAlarmAtMillis = 0
	}

	if err := m.save(s); err != nil {
		return nil, err
	}
	slog.Info("Session went back", "step", s.CurrentStepIndex)
	return s, nil
}

// Snooze pushes the pending alarm out by extra. When the alarm has already
// rung, the new trigger is measured from now instead of the stale trigger,
// so snoozing an overdue alarm always yields a future wake-up.
func (m *Manager) Snooze(extra time.Duration) (*Session, error) {
	s, err := m.require(StateWaiting)
	if err != nil {
		return nil, err
	}
	m.silence()

	base := s.NextAlarmAtMillis
	if nowMillis := m.now().UnixMilli(); base < nowMillis {
		base = nowMillis
	}
	triggerAt := time.UnixMilli(base + extra.Milliseconds())
	s.NextAlarmAtMillis = triggerAt.UnixMilli()
	if err := m.save(s); err != nil {
		return nil, err
	}
	// Scheduling the same step index replaces the pending alarm.
	m.alarms.Schedule(triggerAt, s.CurrentStepIndex+1)
	slog.Info("Session snoozed", "forStep", s.CurrentStepIndex+1, "triggerAt", triggerAt)
	return s, nil
}

// Cancel abandons the session entirely. Cancelling when no session exists
// is a no-op.
func (m *Manager) Cancel() error {
	s, err := m.rawLoad()
	if err != nil {
		return err
	}
	m.silence()
	if s != nil && s.State() == StateWaiting {
		m.alarms.Cancel(s.CurrentStepIndex + 1)
	}
	if err := m.store.DeleteSession(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	slog.Info("Session cancelled")
	return nil
}

// Restore loads the persisted session and reconciles it against wall-clock
// time: a stored alarm that should already have fired is applied as if the
// delivery handler had run (advance to the next step when one exists,
// always clear the alarm), and the repaired session is re-saved before
// being returned. Callers therefore never observe a session that is stale
// relative to wall-clock time. Returns (nil, nil) when no valid session
// exists.
func (m *Manager) Restore() (*Session, error) {
	s, err := m.rawLoad()
	if err != nil || s == nil {
		return nil, err
	}

	if s.NextAlarmAtMillis > 0 && s.NextAlarmAtMillis <= m.now().UnixMilli() {
		if s.HasNextStep() {
			s.CurrentStepIndex++
		}
		s.NextAlarmAtMillis = 0
		if err := m.save(s); err != nil {
			return nil, err
		}
		slog.Info("Session reconciled missed alarm", "step", s.CurrentStepIndex)
	}
	return s, nil
}

// RawRestore loads the persisted session without reconciliation. The alarm
// delivery handler uses this, since delivery is the event reconciliation
// would otherwise simulate.
func (m *Manager) RawRestore() (*Session, error) {
	return m.rawLoad()
}

// SetPendingStep records a step the UI should navigate to, set when an
// alarm is delivered. It replaces any unconsumed value.
func (m *Manager) SetPendingStep(stepIndex int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingStep = stepIndex
	m.hasPendingStep = true
}

// TakePendingStep consumes the pending navigation target, if any. Each
// recorded step is observed by exactly one caller.
func (m *Manager) TakePendingStep() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasPendingStep {
		return 0, false
	}
	m.hasPendingStep = false
	return m.pendingStep, true
}

// rawLoad reads and validates the persisted record. Corrupt or invalid
// records read as "no session".
func (m *Manager) rawLoad() (*Session, error) {
	rec, err := m.store.GetSession()
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if rec == nil {
		return nil, nil
	}
	if err := rec.Validate(); err != nil {
		slog.Warn("persisted session invalid, treating as no session", "error", err)
		return nil, nil
	}
	return FromRecord(rec), nil
}

// current returns the loaded session or ErrNoActiveSession.
func (m *Manager) current() (*Session, error) {
	s, err := m.rawLoad()
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNoActiveSession
	}
	return s, nil
}

// require returns the current session if it is in the wanted state.
func (m *Manager) require(want State) (*Session, error) {
	s, err := m.current()
	if err != nil {
		return nil, err
	}
	if s.State() != want {
		if want == StateWaiting {
			return nil, ErrNotWaiting
		}
		return nil, ErrAlreadyWaiting
	}
	return s, nil
}

func (m *Manager) save(s *Session) error {
	if err := m.store.SaveSession(s.Record()); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	return nil
}

func (m *Manager) silence() {
	if m.silencer != nil {
		m.silencer.Stop()
	}
}

// Package alarm handles delivery of fired step alarms.
//
// The handler sits between the scheduler and the user-facing channels. When
// an alarm fires it re-reads the persisted session, drops stale deliveries,
// and alerts the user through sound and messaging. It never advances the
// session: the cursor moves only when the user confirms the step, so an
// unacknowledged alarm leaves the session waiting and visible as overdue.
package alarm

import (
	"context"
	"log/slog"
	"sync"

	"github.com/doughlab/DoughPilot/internal/alert"
	"github.com/doughlab/DoughPilot/internal/genai"
	"github.com/doughlab/DoughPilot/internal/session"
)

// Sounder plays the audible alarm. Implementations block until playback
// finishes or is stopped.
type Sounder interface {
	PlayAlarm() error
}

// Opts holds configuration options for the delivery handler.
type Opts struct {
	Notifier alert.Notifier
	Sound    Sounder
	Composer *genai.Composer
}

// Option defines a configuration option for the delivery handler.
type Option func(*Opts)

// WithNotifier sets the outbound message channel.
func WithNotifier(n alert.Notifier) Option {
	return func(o *Opts) { o.Notifier = n }
}

// WithSound sets the audible alarm.
func WithSound(s Sounder) Option {
	return func(o *Opts) { o.Sound = s }
}

// WithComposer sets the message composer.
func WithComposer(c *genai.Composer) Option {
	return func(o *Opts) { o.Composer = c }
}

// Handler delivers fired alarms to the user.
type Handler struct {
	manager  *session.Manager
	notifier alert.Notifier
	sound    Sounder
	composer *genai.Composer

	mu            sync.Mutex
	lastDelivered int64 // trigger time of the last alert sent, 0 when none
}

// NewHandler creates a delivery handler bound to the session manager.
func NewHandler(manager *session.Manager, opts ...Option) *Handler {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Notifier == nil {
		cfg.Notifier = alert.NewLogNotifier()
	}
	if cfg.Composer == nil {
		cfg.Composer = genai.NewComposer()
	}
	return &Handler{
		manager:  manager,
		notifier: cfg.Notifier,
		sound:    cfg.Sound,
		composer: cfg.Composer,
	}
}

// HandleFire processes a fired alarm for the given step index. Matches the
// scheduler's FireFunc signature.
//
// The persisted session is the source of truth: a delivery whose step no
// longer matches what the session is waiting for (cancelled, restarted, or
// already confirmed) is dropped silently. A delivery for a trigger that was
// already alerted is dropped too, so a watchdog re-fire does not nag twice.
func (h *Handler) HandleFire(stepIndex int) {
	s, err := h.manager.RawRestore()
	if err != nil {
		slog.Error("Failed to load session for alarm delivery", "step", stepIndex, "error", err)
		return
	}
	if s == nil {
		slog.Debug("Dropping stale alarm, no active session", "step", stepIndex)
		return
	}
	if s.State() != session.StateWaiting || s.CurrentStepIndex+1 != stepIndex {
		slog.Debug("Dropping stale alarm, session moved on",
			"step", stepIndex, "currentStep", s.CurrentStepIndex, "state", s.State())
		return
	}
	step, ok := s.NextStep()
	if !ok {
		slog.Warn("Dropping alarm for out-of-range step", "step", stepIndex, "steps", len(s.Recipe.Steps))
		return
	}

	h.mu.Lock()
	if h.lastDelivered == s.NextAlarmAtMillis {
		h.mu.Unlock()
		slog.Debug("Dropping duplicate alarm delivery", "step", stepIndex, "triggerAt", s.NextAlarmAtMillis)
		return
	}
	h.lastDelivered = s.NextAlarmAtMillis
	h.mu.Unlock()

	slog.Info("Delivering step alarm", "step", stepIndex, "title", step.Title)
	h.manager.SetPendingStep(stepIndex)

	if h.sound != nil {
		go func() {
			if err := h.sound.PlayAlarm(); err != nil {
				slog.Warn("Failed to play alarm sound", "error", err)
			}
		}()
	}

	ctx := context.Background()
	title := genai.ComposeAlarmTitle(step)
	body := h.composer.ComposeAlarmBody(ctx, s.Recipe.Name, step)
	if err := h.notifier.Notify(ctx, title, body); err != nil {
		slog.Error("Failed to send alarm notification", "step", stepIndex, "error", err)
	}
}

// Package recovery restores session state after a restart and watches for
// alarms that should have fired but did not.
//
// Two mechanisms cooperate. RecoverOnStartup runs once when the process
// starts: it reconciles the persisted session against wall-clock time and
// re-arms the in-process scheduler for any still-future alarm. The watchdog
// runs every minute for the lifetime of the process and re-fires a pending
// alarm whose trigger passed a grace period ago without the scheduler
// holding it, covering a timer lost to a failed arming or a suspended host.
package recovery

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/doughlab/DoughPilot/internal/scheduler"
	"github.com/doughlab/DoughPilot/internal/session"
)

// DefaultWatchdogGrace is how far past its trigger time an alarm must be
// before the watchdog re-fires it. The grace keeps the watchdog from racing
// a delivery that is already in flight.
const DefaultWatchdogGrace = 90 * time.Second

// watchdogSchedule sweeps once a minute.
const watchdogSchedule = "* * * * *"

// Opts holds configuration options for the coordinator.
type Opts struct {
	Grace time.Duration
}

// Option defines a configuration option for the coordinator.
type Option func(*Opts)

// WithWatchdogGrace overrides the watchdog grace period.
func WithWatchdogGrace(d time.Duration) Option {
	return func(o *Opts) { o.Grace = d }
}

// Coordinator performs startup recovery and runs the alarm watchdog.
type Coordinator struct {
	manager *session.Manager
	alarms  scheduler.Alarms
	fire    scheduler.FireFunc
	grace   time.Duration
	now     func() time.Time
	cron    *cron.Cron
}

// New creates a recovery coordinator. fire is invoked by the watchdog when
// it detects a missed alarm; it should be the same delivery handler the
// scheduler uses.
func New(manager *session.Manager, alarms scheduler.Alarms, fire scheduler.FireFunc, opts ...Option) *Coordinator {
	cfg := Opts{Grace: DefaultWatchdogGrace}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Coordinator{
		manager: manager,
		alarms:  alarms,
		fire:    fire,
		grace:   cfg.Grace,
		now:     time.Now,
	}
}

// RecoverOnStartup reconciles the persisted session and re-arms the
// scheduler for a still-pending alarm. Alarms that elapsed while the
// process was down are already applied by the reconciliation, so the
// returned session is current. Returns (nil, nil) when no session exists.
func (c *Coordinator) RecoverOnStartup() (*session.Session, error) {
	s, err := c.manager.Restore()
	if err != nil {
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}
	if s == nil {
		slog.Info("Recovery: no persisted session")
		return nil, nil
	}

	if s.State() == session.StateWaiting {
		triggerAt := time.UnixMilli(s.NextAlarmAtMillis)
		c.alarms.Schedule(triggerAt, s.CurrentStepIndex+1)
		slog.Info("Recovery: re-armed pending alarm",
			"recipe", s.Recipe.ID, "forStep", s.CurrentStepIndex+1, "triggerAt", triggerAt)
	} else {
		slog.Info("Recovery: session restored on active step",
			"recipe", s.Recipe.ID, "step", s.CurrentStepIndex)
	}
	return s, nil
}

// StartWatchdog begins the periodic missed-alarm sweep.
func (c *Coordinator) StartWatchdog() error {
	c.cron = cron.New()
	if _, err := c.cron.AddFunc(watchdogSchedule, c.sweep); err != nil {
		return fmt.Errorf("failed to schedule alarm watchdog: %w", err)
	}
	c.cron.Start()
	slog.Info("Alarm watchdog started", "schedule", watchdogSchedule, "grace", c.grace)
	return nil
}

// StopWatchdog stops the sweep. Safe to call when never started.
func (c *Coordinator) StopWatchdog() {
	if c.cron != nil {
		c.cron.Stop()
		slog.Debug("Alarm watchdog stopped")
	}
}

// sweep re-fires an overdue alarm the scheduler is not holding. The
// delivery handler's own staleness and duplicate checks make a spurious
// re-fire harmless.
func (c *Coordinator) sweep() {
	s, err := c.manager.RawRestore()
	if err != nil {
		slog.Error("Watchdog failed to load session", "error", err)
		return
	}
	if s == nil || s.State() != session.StateWaiting {
		return
	}

	overdueBy := c.now().UnixMilli() - s.NextAlarmAtMillis
	if overdueBy < c.grace.Milliseconds() {
		return
	}
	stepIndex := s.CurrentStepIndex + 1
	if c.alarms.Pending(stepIndex) {
		return
	}

	slog.Warn("Watchdog detected missed alarm, re-firing",
		"forStep", stepIndex, "overdue", time.Duration(overdueBy)*time.Millisecond)
	c.fire(stepIndex)
}

// Package scheduler provides one-shot wall-clock alarm scheduling for
// DoughPilot.
//
// Each alarm is tied to a recipe step index. Scheduling for an index that
// already has a pending alarm replaces it, so a step can never fire twice.
// This is the in-process stand-in for a platform wake-up facility; the
// recovery watchdog covers the cases a process-local timer cannot (restart,
// failed arming).
package scheduler

import (
	"log/slog"
	"sync"
	"time"
)

// FireFunc is invoked when an alarm fires, with the step index whose wait
// has elapsed.
type FireFunc func(stepIndex int)

// Alarms is the scheduling interface consumed by the session manager and
// the recovery coordinator.
type Alarms interface {
	Schedule(triggerAt time.Time, stepIndex int)
	Cancel(stepIndex int)
	Pending(stepIndex int) bool
}

type alarmEntry struct {
	timer     *time.Timer
	triggerAt time.Time
}

// Scheduler implements Alarms using time.AfterFunc.
type Scheduler struct {
	mu     sync.Mutex
	alarms map[int]*alarmEntry
	fire   FireFunc
}

// New creates a Scheduler that invokes fire on every alarm delivery.
func New(fire FireFunc) *Scheduler {
	slog.Debug("Creating alarm scheduler")
	return &Scheduler{
		alarms: make(map[int]*alarmEntry),
		fire:   fire,
	}
}

// Schedule arms a one-shot alarm for the given step index at triggerAt,
// replacing any pending alarm for the same index. A trigger time in the
// past fires immediately on a separate goroutine.
func (s *Scheduler) Schedule(triggerAt time.Time, stepIndex int) {
	s.mu.Lock()
	if prev, ok := s.alarms[stepIndex]; ok {
		prev.timer.Stop()
		delete(s.alarms, stepIndex)
		slog.Debug("Scheduler replaced pending alarm", "stepIndex", stepIndex)
	}

	delay := time.Until(triggerAt)
	if delay < 0 {
		s.mu.Unlock()
		slog.Warn("Scheduler: trigger time in the past, firing immediately", "stepIndex", stepIndex, "triggerAt", triggerAt)
		go s.deliver(stepIndex)
		return
	}

	timer := time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.alarms, stepIndex)
		s.mu.Unlock()
		s.deliver(stepIndex)
	})
	s.alarms[stepIndex] = &alarmEntry{timer: timer, triggerAt: triggerAt}
	s.mu.Unlock()

	slog.Debug("Scheduler armed alarm", "stepIndex", stepIndex, "triggerAt", triggerAt, "delay", delay)
}

// Cancel stops the pending alarm for the given step index. Cancelling an
// index with no pending alarm is a no-op.
func (s *Scheduler) Cancel(stepIndex int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.alarms[stepIndex]; ok {
		entry.timer.Stop()
		delete(s.alarms, stepIndex)
		slog.Debug("Scheduler cancelled alarm", "stepIndex", stepIndex)
		return
	}
	slog.Debug("Scheduler cancel: no alarm pending", "stepIndex", stepIndex)
}

// Pending reports whether an alarm is currently armed for the step index.
func (s *Scheduler) Pending(stepIndex int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.alarms[stepIndex]
	return ok
}

// Stop cancels all pending alarms.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	slog.Debug("Scheduler stopping all alarms", "count", len(s.alarms))
	for idx, entry := range s.alarms {
		entry.timer.Stop()
		delete(s.alarms, idx)
	}
}

func (s *Scheduler) deliver(stepIndex int) {
	if s.fire == nil {
		slog.Warn("Scheduler fired with no delivery handler registered", "stepIndex", stepIndex)
		return
	}
	slog.Info("Scheduler delivering alarm", "stepIndex", stepIndex)
	s.fire(stepIndex)
}

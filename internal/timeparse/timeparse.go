// Package timeparse converts the timing cells of a recipe sheet into step
// durations.
//
// Two notations are supported:
//   - Relative: "+16h", "+30m", "+ 2 hours" — a wait after the previous step.
//   - Absolute: "16:00" — a time of day, resolved against the cumulative
//     elapsed time of the recipe so far, not against wall-clock now.
package timeparse

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	// MillisPerMinute is the number of milliseconds in one minute.
	MillisPerMinute int64 = 60 * 1000
	// MillisPerHour is the number of milliseconds in one hour.
	MillisPerHour int64 = 60 * MillisPerMinute
)

var (
	relativePattern = regexp.MustCompile(`(?i)^\+\s*(\d+)\s*(h|m|min|hr|hour|hours|minutes?)$`)
	absolutePattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
)

// ParseDuration parses a single timing cell into a duration in milliseconds.
//
// previousCumulativeMillis is the recipe's elapsed time up to (and including)
// the previous step. It only matters for the absolute form: "16:00" means
// "wait until 16:00 recipe time", so the duration is the absolute target
// minus the cumulative time, clamped at zero. When the cumulative time is
// zero the step is the first one and starts immediately.
//
// The clamp means an absolute time that has already "passed" collapses to a
// zero-wait step; a recipe crossing midnight more than once will mis-schedule
// those steps. This matches the source sheet format as documented, so it is
// kept rather than fixed.
//
// Blank or unrecognized input yields 0 — malformed timing is never an error.
func ParseDuration(raw string, previousCumulativeMillis int64) int64 {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0
	}

	if m := relativePattern.FindStringSubmatch(trimmed); m != nil {
		value, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0
		}
		unit := strings.ToLower(m[2])
		switch {
		case strings.HasPrefix(unit, "h"):
			return value * MillisPerHour
		case strings.HasPrefix(unit, "m"):
			return value * MillisPerMinute
		default:
			// Unit matched the pattern but starts with neither h nor m;
			// treated as hours.
			return value * MillisPerHour
		}
	}

	if m := absolutePattern.FindStringSubmatch(trimmed); m != nil {
		if previousCumulativeMillis == 0 {
			// First step: an absolute time means "do now".
			return 0
		}
		hours, _ := strconv.ParseInt(m[1], 10, 64)
		minutes, _ := strconv.ParseInt(m[2], 10, 64)
		target := (hours*60 + minutes) * MillisPerMinute
		d := target - previousCumulativeMillis
		if d < 0 {
			return 0
		}
		return d
	}

	return 0
}

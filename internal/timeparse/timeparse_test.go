package timeparse

import "testing"

func TestParseDurationRelative(t *testing.T) {
	cases := []struct {
		raw  string
		want int64
	}{
		{"+16h", 16 * MillisPerHour},
		{"+1h", MillisPerHour},
		{"+2 hours", 2 * MillisPerHour},
		{"+1 hour", MillisPerHour},
		{"+3hr", 3 * MillisPerHour},
		{"+30m", 30 * MillisPerMinute},
		{"+45 min", 45 * MillisPerMinute},
		{"+10 minutes", 10 * MillisPerMinute},
		{"+1 minute", MillisPerMinute},
		{"+ 5 m", 5 * MillisPerMinute},
		{"+0m", 0},
		{"  +16h  ", 16 * MillisPerHour},
		{"+16H", 16 * MillisPerHour},
		{"+30 MIN", 30 * MillisPerMinute},
	}
	for _, c := range cases {
		if got := ParseDuration(c.raw, 0); got != c.want {
			t.Errorf("ParseDuration(%q, 0) = %d, want %d", c.raw, got, c.want)
		}
	}
}

func TestParseDurationRelativeIgnoresCumulative(t *testing.T) {
	// Relative timing never depends on elapsed recipe time.
	if got := ParseDuration("+30m", 5*MillisPerHour); got != 30*MillisPerMinute {
		t.Errorf("ParseDuration(+30m, 5h) = %d, want %d", got, 30*MillisPerMinute)
	}
}

func TestParseDurationAbsolute(t *testing.T) {
	cases := []struct {
		raw        string
		cumulative int64
		want       int64
	}{
		// First step: absolute time means start immediately.
		{"16:00", 0, 0},
		// 16:00 recipe time with 10h elapsed leaves a 6h wait.
		{"16:00", 10 * MillisPerHour, 6 * MillisPerHour},
		{"09:30", 9 * MillisPerHour, 30 * MillisPerMinute},
		// Target already passed: clamp to zero rather than go negative.
		{"08:00", 10 * MillisPerHour, 0},
		{"0:30", 10 * MillisPerMinute, 20 * MillisPerMinute},
	}
	for _, c := range cases {
		if got := ParseDuration(c.raw, c.cumulative); got != c.want {
			t.Errorf("ParseDuration(%q, %d) = %d, want %d", c.raw, c.cumulative, got, c.want)
		}
	}
}

func TestParseDurationUnrecognized(t *testing.T) {
	cases := []string{
		"",
		"   ",
		"tomorrow",
		"16h",     // relative without the plus sign
		"+h",      // no value
		"+30s",    // unsupported unit
		"16:0",    // minutes must be two digits
		"160:00",  // hours limited to two digits
		"+-30m",   // sign confusion
		"+30m extra",
	}
	for _, raw := range cases {
		if got := ParseDuration(raw, 3*MillisPerHour); got != 0 {
			t.Errorf("ParseDuration(%q) = %d, want 0", raw, got)
		}
	}
}

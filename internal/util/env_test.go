package util

import "testing"

func TestParseBoolEnv(t *testing.T) {
	cases := []struct {
		value string
		def   bool
		want  bool
	}{
		{"true", false, true},
		{"1", false, true},
		{"yes", false, true},
		{"on", false, true},
		{"TRUE", false, true},
		{"false", true, false},
		{"0", true, false},
		{"no", true, false},
		{"off", true, false},
		{"", true, true},
		{"", false, false},
		{"garbage", true, true},
		{"garbage", false, false},
		{" true ", false, true},
	}
	for _, c := range cases {
		t.Setenv("DOUGHPILOT_TEST_BOOL", c.value)
		if got := ParseBoolEnv("DOUGHPILOT_TEST_BOOL", c.def); got != c.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", c.value, c.def, got, c.want)
		}
	}
}

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("DOUGHPILOT_TEST_STR", "")
	if got := EnvOrDefault("DOUGHPILOT_TEST_STR", "fallback"); got != "fallback" {
		t.Errorf("EnvOrDefault empty = %q", got)
	}
	t.Setenv("DOUGHPILOT_TEST_STR", "set")
	if got := EnvOrDefault("DOUGHPILOT_TEST_STR", "fallback"); got != "set" {
		t.Errorf("EnvOrDefault set = %q", got)
	}
}

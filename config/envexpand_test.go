package config

import "testing"

func TestExpandEnv(t *testing.T) {
	t.Setenv("ASSAY_TEST_SET", "value")
	t.Setenv("ASSAY_TEST_EMPTY", "")

	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"set variable", "${ASSAY_TEST_SET}", "value"},
		{"unset variable", "${ASSAY_TEST_UNSET}", ""},
		{"unset with default", "${ASSAY_TEST_UNSET:-fallback}", "fallback"},
		{"empty uses default", "${ASSAY_TEST_EMPTY:-fallback}", "fallback"},
		{"set ignores default", "${ASSAY_TEST_SET:-fallback}", "value"},
		{"embedded", "redis://${ASSAY_TEST_SET}:6379", "redis://value:6379"},
		{"no pattern", "plain text", "plain text"},
		{"dollar without braces", "$ASSAY_TEST_SET", "$ASSAY_TEST_SET"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExpandEnv(tc.input); got != tc.want {
				t.Errorf("ExpandEnv(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

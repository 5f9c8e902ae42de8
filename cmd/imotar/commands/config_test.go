package commands

import "testing"

func TestCoerceValue(t *testing.T) {
	tests := []struct {
		raw  string
		want interface{}
	}{
		{"true", true},
		{"false", false},
		// Only the literal spellings become booleans; "1" stays numeric.
		{"1", int64(1)},
		{"TRUE", "TRUE"},
		{"42", int64(42)},
		{"-3", int64(-3)},
		{"2.5", float64(2.5)},
		{"1e3", float64(1000)},
		{"steps", "steps"},
		{"", ""},
	}

	for _, tc := range tests {
		if got := coerceValue(tc.raw); got != tc.want {
			t.Errorf("coerceValue(%q) = %v (%T), want %v (%T)", tc.raw, got, got, tc.want, tc.want)
		}
	}
}

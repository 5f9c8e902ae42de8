package util

import "time"

// AbsFloat64 returns the absolute value of x.
func AbsFloat64(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// AbsDuration returns the absolute value of d.
// Used for timestamp skew comparisons where the sign of the
// difference does not matter.
func AbsDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// ClampFloat64 returns x clamped to the inclusive range [lo, hi].
func ClampFloat64(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

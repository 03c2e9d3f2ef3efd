package supervisor

import "time"

// BackoffPolicy computes the wait before a restart from the
// consecutive-failure count: bounded exponential growth, doubling per
// failure from Base up to Max. Intervals are monotonically
// non-decreasing in the failure count.
type BackoffPolicy struct {
	Base time.Duration
	Max  time.Duration
}

// Interval returns the wait for the given consecutive-failure count.
// Counts below one are treated as one.
func (p BackoffPolicy) Interval(failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}
	d := p.Base
	for i := 1; i < failures; i++ {
		d *= 2
		if d >= p.Max {
			return p.Max
		}
	}
	if d > p.Max {
		return p.Max
	}
	return d
}

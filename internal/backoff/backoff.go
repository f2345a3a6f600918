// Package backoff computes retry delays for failed jobs.
package backoff

import "time"

// Strategy computes the delay before the retry that follows failure n
// (1-indexed).
type Strategy interface {
	Delay(failures int) time.Duration
}

// maxDelay bounds delays so large attempt counts never overflow.
const maxDelay = time.Duration(1<<62 - 1)

// Exponential doubles the delay on every failure:
// Delay = Base * 2^(failures-1), optionally capped at Max.
type Exponential struct {
	Base time.Duration
	Max  time.Duration
}

func NewExponential(base, limit time.Duration) *Exponential {
	return &Exponential{Base: base, Max: limit}
}

func (e *Exponential) Delay(failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}

	d := e.Base
	for i := 1; i < failures; i++ {
		if d > maxDelay/2 {
			d = maxDelay
			break
		}
		d *= 2
	}

	if e.Max > 0 && d > e.Max {
		return e.Max
	}
	return d
}

// NextEligible returns when a job that has failed `failures` times may run again.
func NextEligible(s Strategy, now time.Time, failures int) time.Time {
	return now.Add(s.Delay(failures))
}

package queue

import "time"

// RetryPolicy is the explicit retry contract consumed by the worker loop:
// how many total attempts a job gets and how long to wait between them.
// It is independent of the queue substrate.
type RetryPolicy struct {
	MaxAttempts int           // total attempts, first included
	Backoff     time.Duration // delay before the second attempt
	MaxDelay    time.Duration // cap on the computed delay
}

// DefaultRetryPolicy matches the queue defaults: 3 attempts, 1s exponential base.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: time.Second, MaxDelay: 60 * time.Second}
}

// Delay returns the wait before the given attempt number (2-based: the
// first retry is attempt 2). The schedule is Backoff * 2^(attempt-2),
// capped at MaxDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 2 {
		return p.Backoff
	}
	shift := attempt - 2
	if shift > 30 {
		return p.MaxDelay
	}
	d := p.Backoff * time.Duration(1<<shift)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Exhausted reports whether a job that just failed its attempt-th try is
// out of attempts.
func (p RetryPolicy) Exhausted(attempt int) bool {
	return attempt >= p.MaxAttempts
}

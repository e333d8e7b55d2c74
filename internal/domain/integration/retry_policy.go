package integration

import "time"

// Default backoff settings
const (
	DefaultRetryBase = time.Second
	DefaultRetryCap  = 5 * time.Minute
)

// RetryPolicy computes exponential backoff: min(Base * 2^attempts, Cap)
type RetryPolicy struct {
	Base time.Duration
	Cap  time.Duration
}

// DefaultRetryPolicy returns the 1s base, 5min cap policy
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Base: DefaultRetryBase, Cap: DefaultRetryCap}
}

// Delay returns the wait before the next attempt after attempts failures
func (p RetryPolicy) Delay(attempts int) time.Duration {
	base, limit := p.Base, p.Cap
	if base <= 0 {
		base = DefaultRetryBase
	}
	if limit <= 0 {
		limit = DefaultRetryCap
	}
	if attempts < 0 {
		attempts = 0
	}

	delay := base
	for n := 0; n < attempts; n++ {
		delay *= 2
		if delay >= limit {
			return limit
		}
	}
	return min(delay, limit)
}

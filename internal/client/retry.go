package client

import (
	"errors"
	"time"
)

// Decision says whether to retry after a failed attempt, and how long to
// wait first.
type Decision struct {
	Retry bool
	Delay time.Duration
}

// Policy is a pure retry policy, decoupled from the transport. Attempts are
// 1-based: Decide(1, err) judges the first failure.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultPolicy allows 3 total attempts with 600ms base backoff.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: 600 * time.Millisecond}
}

// Decide returns the retry decision for the given completed attempt. Only
// rate limiting, server errors and transport failures retry; a Retry-After
// hint overrides the exponential backoff but never drops below the base
// delay.
func (p Policy) Decide(attempt int, lastErr error) Decision {
	if attempt >= p.MaxAttempts {
		return Decision{}
	}

	var statusErr *StatusError
	if !errors.As(lastErr, &statusErr) || !statusErr.Retryable() {
		return Decision{}
	}

	if statusErr.RetryAfter > 0 {
		delay := time.Duration(statusErr.RetryAfter) * time.Second
		if delay < p.BaseDelay {
			delay = p.BaseDelay
		}
		return Decision{Retry: true, Delay: delay}
	}

	delay := p.BaseDelay << (attempt - 1)
	return Decision{Retry: true, Delay: delay}
}

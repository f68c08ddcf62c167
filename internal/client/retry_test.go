package client

import (
	"errors"
	"testing"
	"time"
)

func TestPolicy_RetryAfterHeader(t *testing.T) {
	policy := DefaultPolicy()
	err := &StatusError{Status: 429, RetryAfter: 2}

	decision := policy.Decide(1, err)
	if !decision.Retry {
		t.Fatal("429 must retry")
	}
	if decision.Delay < 2*time.Second {
		t.Errorf("Retry-After 2 must delay at least 2s, got %v", decision.Delay)
	}
}

func TestPolicy_RetryAfterBelowFloor(t *testing.T) {
	policy := Policy{MaxAttempts: 3, BaseDelay: 600 * time.Millisecond}
	err := &StatusError{Status: 429}

	// No hint: exponential backoff from the base delay.
	if d := policy.Decide(1, err).Delay; d != 600*time.Millisecond {
		t.Errorf("first retry delay = %v, want 600ms", d)
	}
	if d := policy.Decide(2, err).Delay; d != 1200*time.Millisecond {
		t.Errorf("second retry delay = %v, want 1200ms", d)
	}
}

func TestPolicy_ServerErrorBackoff(t *testing.T) {
	policy := DefaultPolicy()
	err := &StatusError{Status: 500}

	first := policy.Decide(1, err)
	second := policy.Decide(2, err)
	third := policy.Decide(3, err)

	if !first.Retry || first.Delay != 600*time.Millisecond {
		t.Errorf("attempt 1: %+v, want retry after 600ms", first)
	}
	if !second.Retry || second.Delay != 1200*time.Millisecond {
		t.Errorf("attempt 2: %+v, want retry after 1200ms", second)
	}
	if third.Retry {
		t.Error("three total attempts means the third failure is terminal")
	}
}

func TestPolicy_ClientErrorTerminal(t *testing.T) {
	policy := DefaultPolicy()

	if policy.Decide(1, &StatusError{Status: 404}).Retry {
		t.Error("404 must never retry")
	}
	if policy.Decide(1, &StatusError{Status: 400}).Retry {
		t.Error("400 must never retry")
	}
	if policy.Decide(1, errors.New("not a status error")).Retry {
		t.Error("unclassified errors must not retry")
	}
}

func TestPolicy_NetworkFailureRetryable(t *testing.T) {
	policy := DefaultPolicy()
	if !policy.Decide(1, &StatusError{Status: 0, Message: "connection refused"}).Retry {
		t.Error("transport failure (status 0) must retry")
	}
}

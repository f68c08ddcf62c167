package ratelimit

import (
	"testing"
	"time"
)

type mockClock struct {
	now time.Time
}

func (m *mockClock) Now() time.Time { return m.now }

func (m *mockClock) Advance(d time.Duration) { m.now = m.now.Add(d) }

func newTestLimiter(perMinute int) (*Limiter, *mockClock) {
	clock := &mockClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	return New(Config{RequestsPerMinute: perMinute, Clock: clock}), clock
}

func TestLimiterAllowsUnderLimit(t *testing.T) {
	l, _ := newTestLimiter(3)
	for i := 0; i < 3; i++ {
		if got := l.Check("10.0.0.1"); !got.Allowed {
			t.Fatalf("request %d denied, want allowed", i+1)
		}
	}
}

func TestLimiterDeniesOverLimit(t *testing.T) {
	l, _ := newTestLimiter(2)
	l.Check("10.0.0.1")
	l.Check("10.0.0.1")

	got := l.Check("10.0.0.1")
	if got.Allowed {
		t.Fatal("third request allowed, want denied")
	}
	if got.RetryAfter <= 0 || got.RetryAfter > time.Minute {
		t.Errorf("RetryAfter = %v, want within (0, 1m]", got.RetryAfter)
	}
}

func TestLimiterWindowResets(t *testing.T) {
	l, clock := newTestLimiter(1)
	l.Check("10.0.0.1")
	if got := l.Check("10.0.0.1"); got.Allowed {
		t.Fatal("second request in window allowed, want denied")
	}

	clock.Advance(61 * time.Second)
	if got := l.Check("10.0.0.1"); !got.Allowed {
		t.Fatal("request after window denied, want allowed")
	}
}

func TestLimiterKeysIndependent(t *testing.T) {
	l, _ := newTestLimiter(1)
	l.Check("10.0.0.1")
	if got := l.Check("10.0.0.2"); !got.Allowed {
		t.Fatal("different caller denied, want allowed")
	}
}

func TestLimiterDisabled(t *testing.T) {
	l, _ := newTestLimiter(0)
	for i := 0; i < 100; i++ {
		if got := l.Check("10.0.0.1"); !got.Allowed {
			t.Fatal("disabled limiter denied a request")
		}
	}
}

// Package ratelimit provides per-caller rate limiting for the availability
// endpoint, answering over-limit requests with 429 and a Retry-After hint
// the client-side retry policy understands.
package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Clock interface for testing time-dependent behavior.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Config holds rate limit configuration.
type Config struct {
	RequestsPerMinute int // per caller; <=0 disables limiting
	Clock             Clock
}

type entry struct {
	count   int
	firstAt time.Time
}

// Limiter tracks request counts per caller over a one-minute window.
type Limiter struct {
	config Config
	clock  Clock

	mu      sync.Mutex
	entries map[string]*entry
}

// LimitResult contains the result of a rate limit check.
type LimitResult struct {
	Allowed    bool
	RetryAfter time.Duration
}

func New(cfg Config) *Limiter {
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}
	return &Limiter{
		config:  cfg,
		clock:   clock,
		entries: make(map[string]*entry),
	}
}

// Check records one request for the caller and says whether it may proceed.
func (l *Limiter) Check(key string) LimitResult {
	if l.config.RequestsPerMinute <= 0 {
		return LimitResult{Allowed: true}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	e, ok := l.entries[key]
	if !ok || now.Sub(e.firstAt) >= time.Minute {
		l.entries[key] = &entry{count: 1, firstAt: now}
		return LimitResult{Allowed: true}
	}

	if e.count >= l.config.RequestsPerMinute {
		return LimitResult{
			Allowed:    false,
			RetryAfter: time.Minute - now.Sub(e.firstAt),
		}
	}
	e.count++
	return LimitResult{Allowed: true}
}

// Wrap applies the limiter to an HTTP handler, keyed by remote address.
func (l *Limiter) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result := l.Check(callerKey(r))
		if !result.Allowed {
			seconds := int(result.RetryAfter.Seconds())
			if seconds < 1 {
				seconds = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"message":"Too many availability requests","retry_after":` + strconv.Itoa(seconds) + `}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func callerKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

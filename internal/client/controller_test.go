package client

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeFetcher struct {
	mu      sync.Mutex
	calls   []Query
	handler func(q Query) (*AvailabilityResponse, error)
}

func (f *fakeFetcher) Availability(ctx context.Context, q Query) (*AvailabilityResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, q)
	handler := f.handler
	f.mu.Unlock()
	return handler(q)
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeFetcher) lastCall() Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return Query{}
	}
	return f.calls[len(f.calls)-1]
}

func okResponse(n int) *AvailabilityResponse {
	slots := make([]Slot, n)
	for i := range slots {
		slots[i] = Slot{Start: "19:00", Status: "available"}
	}
	return &AvailabilityResponse{Slots: slots}
}

func waitForState(t *testing.T, updates <-chan Summary, want Availability) Summary {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-updates:
			if s.State == want {
				return s
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q update", want)
		}
	}
}

func waitForCalls(t *testing.T, f *fakeFetcher, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for f.callCount() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d calls, have %d", n, f.callCount())
		}
		time.Sleep(time.Millisecond)
	}
}

func newTestController(f *fakeFetcher, updates chan Summary, mutate func(*ControllerConfig)) *Controller {
	cfg := ControllerConfig{
		Debounce: 40 * time.Millisecond,
		OnUpdate: func(s Summary) { updates <- s },
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewController(f, cfg)
}

func TestController_DebounceCollapse(t *testing.T) {
	fetcher := &fakeFetcher{handler: func(Query) (*AvailabilityResponse, error) {
		return okResponse(3), nil
	}}
	updates := make(chan Summary, 32)
	controller := newTestController(fetcher, updates, nil)
	defer controller.Close()

	for party := 1; party <= 5; party++ {
		controller.Schedule(Query{Date: "2025-06-06", Party: party}, false)
	}

	waitForState(t, updates, AvailabilityAvailable)
	if fetcher.callCount() != 1 {
		t.Errorf("5 schedules within the window fired %d requests, want 1", fetcher.callCount())
	}
	if fetcher.lastCall().Party != 5 {
		t.Errorf("fired with party %d, want last input 5", fetcher.lastCall().Party)
	}
}

func TestController_ImmediateCancelsPendingDebounce(t *testing.T) {
	fetcher := &fakeFetcher{handler: func(Query) (*AvailabilityResponse, error) {
		return okResponse(1), nil
	}}
	updates := make(chan Summary, 32)
	controller := newTestController(fetcher, updates, nil)
	defer controller.Close()

	controller.Schedule(Query{Date: "2025-06-06", Party: 2}, false)
	controller.Schedule(Query{Date: "2025-06-07", Party: 4}, true)

	waitForState(t, updates, AvailabilityAvailable)
	time.Sleep(80 * time.Millisecond) // past the debounce window
	if fetcher.callCount() != 1 {
		t.Errorf("expected the debounced call to be cancelled, got %d calls", fetcher.callCount())
	}
	if fetcher.lastCall().Date != "2025-06-07" {
		t.Errorf("immediate call used %q", fetcher.lastCall().Date)
	}
}

func TestController_CacheHitSkipsNetworkAndLoading(t *testing.T) {
	fetcher := &fakeFetcher{handler: func(Query) (*AvailabilityResponse, error) {
		return okResponse(4), nil
	}}
	updates := make(chan Summary, 32)
	controller := newTestController(fetcher, updates, nil)
	defer controller.Close()

	query := Query{Date: "2025-06-06", Party: 2}
	controller.Schedule(query, true)
	waitForState(t, updates, AvailabilityAvailable)

	// Drain, then re-schedule the identical query.
	for len(updates) > 0 {
		<-updates
	}
	controller.Schedule(query, true)

	first := waitForState(t, updates, AvailabilityAvailable)
	if fetcher.callCount() != 1 {
		t.Errorf("identical query within TTL fired %d requests, want 1", fetcher.callCount())
	}
	if first.SlotCount != 4 {
		t.Errorf("cache served %d slots, want 4", first.SlotCount)
	}
	select {
	case s := <-updates:
		t.Errorf("unexpected extra update %q after cache hit", s.State)
	default:
	}
}

func TestController_StaleResponseDiscarded(t *testing.T) {
	gates := map[int]chan *AvailabilityResponse{
		2: make(chan *AvailabilityResponse, 1),
		4: make(chan *AvailabilityResponse, 1),
	}
	fetcher := &fakeFetcher{handler: func(q Query) (*AvailabilityResponse, error) {
		return <-gates[q.Party], nil
	}}
	updates := make(chan Summary, 32)
	controller := newTestController(fetcher, updates, nil)
	defer controller.Close()

	controller.Schedule(Query{Date: "2025-06-06", Party: 2}, true)
	waitForCalls(t, fetcher, 1)
	controller.Schedule(Query{Date: "2025-06-06", Party: 4}, true)
	waitForCalls(t, fetcher, 2)

	// B resolves first, then A arrives late and must be discarded.
	gates[4] <- okResponse(4)
	applied := waitForState(t, updates, AvailabilityAvailable)
	if applied.SlotCount != 4 {
		t.Fatalf("latest response not applied, got %d slots", applied.SlotCount)
	}

	gates[2] <- okResponse(2)
	select {
	case s := <-updates:
		t.Errorf("stale response surfaced as %q (%d slots)", s.State, s.SlotCount)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestController_IncompleteParamsAreUnknown(t *testing.T) {
	fetcher := &fakeFetcher{handler: func(Query) (*AvailabilityResponse, error) {
		return okResponse(1), nil
	}}
	updates := make(chan Summary, 32)
	controller := newTestController(fetcher, updates, func(cfg *ControllerConfig) {
		cfg.MealRequired = true
	})
	defer controller.Close()

	controller.Schedule(Query{Date: "2025-06-06", Party: 2}, true) // meal missing
	summary := waitForState(t, updates, AvailabilityUnknown)
	if summary.SlotCount != 0 {
		t.Errorf("unknown state carries %d slots", summary.SlotCount)
	}
	if fetcher.callCount() != 0 {
		t.Errorf("incomplete query still fired %d requests", fetcher.callCount())
	}
}

func TestController_RetriesThenSucceeds(t *testing.T) {
	var mu sync.Mutex
	failures := 2
	fetcher := &fakeFetcher{handler: func(Query) (*AvailabilityResponse, error) {
		mu.Lock()
		defer mu.Unlock()
		if failures > 0 {
			failures--
			return nil, &StatusError{Status: 500}
		}
		return okResponse(2), nil
	}}
	updates := make(chan Summary, 32)
	controller := newTestController(fetcher, updates, nil)
	defer controller.Close()

	var delays []time.Duration
	var delayMu sync.Mutex
	controller.sleep = func(d time.Duration) {
		delayMu.Lock()
		delays = append(delays, d)
		delayMu.Unlock()
	}

	controller.Schedule(Query{Date: "2025-06-06", Party: 2}, true)
	waitForState(t, updates, AvailabilityAvailable)

	if fetcher.callCount() != 3 {
		t.Errorf("expected 3 attempts, got %d", fetcher.callCount())
	}
	delayMu.Lock()
	defer delayMu.Unlock()
	if len(delays) != 2 || delays[0] != 600*time.Millisecond || delays[1] != 1200*time.Millisecond {
		t.Errorf("backoff delays = %v, want [600ms 1200ms]", delays)
	}
}

func TestController_ClientErrorIsTerminal(t *testing.T) {
	fetcher := &fakeFetcher{handler: func(Query) (*AvailabilityResponse, error) {
		return nil, &StatusError{Status: 404, Message: "unknown restaurant"}
	}}
	updates := make(chan Summary, 32)
	controller := newTestController(fetcher, updates, nil)
	defer controller.Close()

	controller.Schedule(Query{Date: "2025-06-06", Party: 2}, true)
	summary := waitForState(t, updates, AvailabilityError)

	if fetcher.callCount() != 1 {
		t.Errorf("404 retried: %d calls", fetcher.callCount())
	}
	if summary.Message != "unknown restaurant" {
		t.Errorf("server message not surfaced, got %q", summary.Message)
	}
	if controller.State() != StateFailed {
		t.Errorf("session state = %v, want failed", controller.State())
	}
}

func TestController_ExhaustedRetriesSurfaceError(t *testing.T) {
	fetcher := &fakeFetcher{handler: func(Query) (*AvailabilityResponse, error) {
		return nil, &StatusError{Status: 503}
	}}
	updates := make(chan Summary, 32)
	controller := newTestController(fetcher, updates, nil)
	defer controller.Close()
	controller.sleep = func(time.Duration) {}

	controller.Schedule(Query{Date: "2025-06-06", Party: 2}, true)
	summary := waitForState(t, updates, AvailabilityError)

	if fetcher.callCount() != 3 {
		t.Errorf("expected 3 total attempts, got %d", fetcher.callCount())
	}
	if summary.Message != genericErrorMessage {
		t.Errorf("expected generic message, got %q", summary.Message)
	}
}

func TestController_RevalidateBypassesCache(t *testing.T) {
	fetcher := &fakeFetcher{handler: func(Query) (*AvailabilityResponse, error) {
		return okResponse(2), nil
	}}
	updates := make(chan Summary, 32)
	controller := newTestController(fetcher, updates, nil)
	defer controller.Close()

	controller.Schedule(Query{Date: "2025-06-06", Party: 2}, true)
	waitForState(t, updates, AvailabilityAvailable)

	controller.Revalidate()
	waitForCalls(t, fetcher, 2)
	waitForState(t, updates, AvailabilityAvailable)
}

func TestController_SelectionIndependentOfFetch(t *testing.T) {
	fetcher := &fakeFetcher{handler: func(Query) (*AvailabilityResponse, error) {
		return okResponse(1), nil
	}}
	controller := NewController(fetcher, ControllerConfig{})
	defer controller.Close()

	controller.SelectSlot("19:30")
	if controller.Selected() != "19:30" {
		t.Errorf("selected = %q", controller.Selected())
	}
	if fetcher.callCount() != 0 {
		t.Error("selecting a slot fired a request")
	}
	controller.ClearSelection()
	if controller.Selected() != "" {
		t.Error("selection not cleared")
	}
}

func TestClassify_States(t *testing.T) {
	controller := NewController(&fakeFetcher{}, ControllerConfig{LimitedRatio: 0.2})
	defer controller.Close()

	boolPtr := func(b bool) *bool { return &b }

	tests := []struct {
		name string
		resp *AvailabilityResponse
		want Availability
	}{
		{"slots present", okResponse(10), AvailabilityAvailable},
		{"few slots remaining", &AvailabilityResponse{
			Slots: []Slot{{Start: "21:30"}},
			Meta:  &AvailabilityMeta{SlotTotal: 10},
		}, AvailabilityLimited},
		{"explicit signal without slots", &AvailabilityResponse{
			HasAvailability: boolPtr(true),
		}, AvailabilityAvailable},
		{"scheduled but fully booked", &AvailabilityResponse{
			Meta: &AvailabilityMeta{HasAvailability: boolPtr(true), SlotTotal: 8},
		}, AvailabilityFull},
		{"no structural availability", &AvailabilityResponse{}, AvailabilityUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := controller.classify(tc.resp).State; got != tc.want {
				t.Errorf("classify = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestController_MaintenanceSweepAndRollover(t *testing.T) {
	fetcher := &fakeFetcher{handler: func(Query) (*AvailabilityResponse, error) {
		return okResponse(2), nil
	}}
	updates := make(chan Summary, 32)
	clock := newMockClock()
	controller := newTestController(fetcher, updates, func(cfg *ControllerConfig) {
		cfg.Clock = clock
		cfg.SweepInterval = time.Hour // ticks are driven manually below
	})
	defer controller.Close()

	query := Query{Date: "2025-06-06", Party: 2}
	controller.Schedule(query, true)
	waitForState(t, updates, AvailabilityAvailable)
	waitForCalls(t, fetcher, 1)

	day := clock.Now().Format("2006-01-02")

	// Same day, entry still fresh: a pass leaves the cache alone.
	day = controller.maintain(day)
	if controller.Cache().Len() != 1 {
		t.Fatalf("fresh entry swept, cache len = %d", controller.Cache().Len())
	}

	// Past the TTL the pass evicts the entry.
	clock.Advance(61 * time.Second)
	day = controller.maintain(day)
	if controller.Cache().Len() != 0 {
		t.Fatalf("expired entry survived sweep, cache len = %d", controller.Cache().Len())
	}
	if fetcher.callCount() != 1 {
		t.Fatalf("sweep alone triggered a fetch, calls = %d", fetcher.callCount())
	}

	// Crossing midnight revalidates the last query.
	clock.Advance(24 * time.Hour)
	if got := controller.maintain(day); got != "2025-06-02" {
		t.Errorf("maintain returned day %q, want %q", got, "2025-06-02")
	}
	waitForCalls(t, fetcher, 2)
	if fetcher.lastCall() != query {
		t.Errorf("rollover refired %+v, want %+v", fetcher.lastCall(), query)
	}
}

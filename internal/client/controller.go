package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/maitredhq/maitred/internal/models"
)

// SessionState is the controller's fetch-cycle state.
type SessionState int

const (
	StateIdle SessionState = iota
	StateScheduled
	StateInFlight
	StateSettled
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScheduled:
		return "scheduled"
	case StateInFlight:
		return "in_flight"
	case StateSettled:
		return "settled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Availability classifies what the user should be told about a day.
type Availability string

const (
	AvailabilityLoading     Availability = "loading"
	AvailabilityAvailable   Availability = "available"
	AvailabilityLimited     Availability = "limited"
	AvailabilityFull        Availability = "full"
	AvailabilityUnavailable Availability = "unavailable"
	AvailabilityUnknown     Availability = "unknown"
	AvailabilityError       Availability = "error"
)

const genericErrorMessage = "Could not check availability. Please try again."

// Summary is the classified availability result pushed to the UI surface.
type Summary struct {
	State     Availability
	SlotCount int
	Slots     []Slot
	Message   string
}

// Fetcher is the availability transport. *Client implements it.
type Fetcher interface {
	Availability(ctx context.Context, q Query) (*AvailabilityResponse, error)
}

// ControllerConfig tunes one availability session.
type ControllerConfig struct {
	Debounce      time.Duration // zero: 400ms
	CacheTTL      time.Duration // zero: 60s
	LimitedRatio  float64       // zero: 0.2
	MealRequired  bool          // whether the meal parameter is mandatory
	Policy        Policy        // zero: DefaultPolicy
	Clock         Clock         // nil: real time
	SweepInterval time.Duration // maintenance pass cadence; zero: 1m
	OnUpdate      func(Summary) // called outside the controller lock
	Logger        *zerolog.Logger
}

// Controller orchestrates debounced, deduplicated, retried availability
// lookups for one UI surface. Overlapping responses are resolved by a
// monotonically increasing request token: only the response matching the
// most recently issued token is applied, so the last input always wins even
// when responses arrive out of order. There is no transport-level abort;
// cancellation is the token check.
type Controller struct {
	fetcher      Fetcher
	cache        *Cache
	policy       Policy
	clock        Clock
	debounce     time.Duration
	limitedRatio float64
	mealRequired bool
	onUpdate     func(Summary)
	logger       zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	sleep  func(time.Duration)

	mu        sync.Mutex
	state     SessionState
	token     uint64
	timer     *time.Timer
	lastQuery Query
	hasQuery  bool
	selected  string
}

// NewController creates a controller for one date/party/meal selector
// surface. Create it when the surface mounts and Close it on unmount.
func NewController(fetcher Fetcher, cfg ControllerConfig) *Controller {
	if cfg.Debounce == 0 {
		cfg.Debounce = 400 * time.Millisecond
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 60 * time.Second
	}
	if cfg.LimitedRatio == 0 {
		cfg.LimitedRatio = 0.2
	}
	if cfg.Policy == (Policy{}) {
		cfg.Policy = DefaultPolicy()
	}
	if cfg.Clock == nil {
		cfg.Clock = realClock{}
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = time.Minute
	}
	logger := log.With().Str("component", "availability_controller").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		fetcher:      fetcher,
		cache:        NewCache(cfg.CacheTTL, cfg.Clock),
		policy:       cfg.Policy,
		clock:        cfg.Clock,
		debounce:     cfg.Debounce,
		limitedRatio: cfg.LimitedRatio,
		mealRequired: cfg.MealRequired,
		onUpdate:     cfg.OnUpdate,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
		state:        StateIdle,
	}
	c.sleep = func(d time.Duration) {
		select {
		case <-c.ctx.Done():
		case <-time.After(d):
		}
	}
	go c.maintenanceLoop(cfg.SweepInterval)
	return c
}

// maintenanceLoop runs periodic upkeep until Close: expired cache entries
// are swept, and when the local date rolls over the last query is
// revalidated so yesterday's "today" results don't survive midnight.
func (c *Controller) maintenanceLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	day := c.clock.Now().Format(models.DateLayout)
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			day = c.maintain(day)
		}
	}
}

// maintain performs one upkeep pass and returns the current date.
func (c *Controller) maintain(lastDay string) string {
	if removed := c.cache.Sweep(); removed > 0 {
		c.logger.Debug().Int("removed", removed).Msg("Swept expired availability cache entries")
	}

	today := c.clock.Now().Format(models.DateLayout)
	if today != lastDay {
		c.logger.Debug().Str("day", today).Msg("Day rollover, revalidating availability")
		c.Revalidate()
	}
	return today
}

// Close stops pending work. In-flight responses are discarded by the token
// check as usual.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.token++ // orphan anything still in flight
	c.mu.Unlock()
	c.cancel()
}

// Schedule registers new input. With immediate=false the debounce window
// restarts and only the last call within it fires; with immediate=true any
// pending debounce is cancelled and the query fires right away.
func (c *Controller) Schedule(q Query, immediate bool) {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.lastQuery = q
	c.hasQuery = true

	if !q.Complete(c.mealRequired) {
		c.token++ // supersede any in-flight fetch for the old input
		c.state = StateSettled
		c.mu.Unlock()
		c.emit(Summary{State: AvailabilityUnknown})
		return
	}

	c.state = StateScheduled
	if immediate {
		c.mu.Unlock()
		go c.fire(q)
		return
	}
	c.timer = time.AfterFunc(c.debounce, func() { c.fire(q) })
	c.mu.Unlock()
}

// Revalidate drops the cache entry for the last query and re-fires
// immediately. Used when a surface regains focus after being backgrounded.
func (c *Controller) Revalidate() {
	c.mu.Lock()
	q, ok := c.lastQuery, c.hasQuery
	c.mu.Unlock()
	if !ok || !q.Complete(c.mealRequired) {
		return
	}
	c.cache.Invalidate(q)
	go c.fire(q)
}

// Retry re-fires the last query without touching the cache. The retry
// affordance on an error state calls this.
func (c *Controller) Retry() {
	c.mu.Lock()
	q, ok := c.lastQuery, c.hasQuery
	c.mu.Unlock()
	if !ok || !q.Complete(c.mealRequired) {
		return
	}
	go c.fire(q)
}

// SelectSlot records the user's chosen start time. Selection is independent
// of the fetch cycle and never triggers a request.
func (c *Controller) SelectSlot(start string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = start
}

// Selected returns the currently selected slot start, if any.
func (c *Controller) Selected() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// ClearSelection drops the selected slot.
func (c *Controller) ClearSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = ""
}

// State returns the session state.
func (c *Controller) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Cache exposes the controller-owned cache.
func (c *Controller) Cache() *Cache {
	return c.cache
}

func (c *Controller) fire(q Query) {
	c.mu.Lock()
	c.token++
	token := c.token

	if cached, ok := c.cache.Get(q); ok {
		c.state = StateSettled
		summary := c.classify(cached)
		c.mu.Unlock()
		// Cache hits settle without a loading indicator.
		c.emit(summary)
		return
	}
	c.state = StateInFlight
	c.mu.Unlock()

	c.emit(Summary{State: AvailabilityLoading})

	attempt := 0
	for {
		attempt++
		resp, err := c.fetcher.Availability(c.ctx, q)
		if c.stale(token) {
			c.logger.Debug().Str("query", q.Key()).Uint64("token", token).Msg("Discarding stale availability response")
			return
		}
		if err == nil {
			c.cache.Put(q, resp)
			c.mu.Lock()
			c.state = StateSettled
			summary := c.classify(resp)
			c.mu.Unlock()
			c.emit(summary)
			return
		}

		decision := c.policy.Decide(attempt, err)
		if !decision.Retry {
			c.logger.Warn().Err(err).Str("query", q.Key()).Int("attempts", attempt).Msg("Availability request failed")
			c.mu.Lock()
			c.state = StateFailed
			c.mu.Unlock()
			c.emit(Summary{State: AvailabilityError, Message: userMessage(err)})
			return
		}

		c.logger.Debug().Err(err).Int("attempt", attempt).Dur("delay", decision.Delay).Msg("Retrying availability request")
		c.sleep(decision.Delay)
		if c.stale(token) {
			return
		}
	}
}

func (c *Controller) stale(token uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return token != c.token
}

func (c *Controller) emit(summary Summary) {
	if c.onUpdate != nil {
		c.onUpdate(summary)
	}
}

// classify maps a service response to a user-facing availability state.
// Precedence: an explicit availability signal or at least one slot means
// available (limited below the configured ratio of the day's slot total);
// a structurally scheduled day with nothing bookable is full; anything else
// is unavailable.
func (c *Controller) classify(resp *AvailabilityResponse) Summary {
	open := len(resp.Slots)
	signalled := resp.HasAvailability != nil && *resp.HasAvailability

	if open > 0 || signalled {
		state := AvailabilityAvailable
		if total := resp.SlotTotal(); total > 0 && float64(open) < c.limitedRatio*float64(total) {
			state = AvailabilityLimited
		}
		return Summary{State: state, SlotCount: open, Slots: resp.Slots}
	}
	if resp.Meta != nil && resp.Meta.HasAvailability != nil && *resp.Meta.HasAvailability {
		return Summary{State: AvailabilityFull}
	}
	return Summary{State: AvailabilityUnavailable}
}

func userMessage(err error) string {
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Message != "" {
		return statusErr.Message
	}
	return genericErrorMessage
}

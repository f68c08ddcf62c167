package client

import (
	"sync"
	"time"
)

// Clock interface for testing time-dependent behavior.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type cacheEntry struct {
	payload   *AvailabilityResponse
	fetchedAt time.Time
}

// Cache is a process-local TTL cache for availability responses. It is read
// and written only by the controller that owns it.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	clock   Clock
	entries map[string]cacheEntry
}

// NewCache creates a cache with the given TTL. A nil clock uses real time.
func NewCache(ttl time.Duration, clock Clock) *Cache {
	if clock == nil {
		clock = realClock{}
	}
	return &Cache{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the cached response for the query if it has not expired.
func (c *Cache) Get(q Query) (*AvailabilityResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[q.Key()]
	if !ok {
		return nil, false
	}
	if c.clock.Now().Sub(entry.fetchedAt) > c.ttl {
		delete(c.entries, q.Key())
		return nil, false
	}
	return entry.payload, true
}

// Put stores a response for the query.
func (c *Cache) Put(q Query, payload *AvailabilityResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[q.Key()] = cacheEntry{payload: payload, fetchedAt: c.clock.Now()}
}

// Invalidate drops the entry for the query, if any.
func (c *Cache) Invalidate(q Query) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, q.Key())
}

// Sweep evicts every expired entry and returns how many were dropped.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	dropped := 0
	for key, entry := range c.entries {
		if now.Sub(entry.fetchedAt) > c.ttl {
			delete(c.entries, key)
			dropped++
		}
	}
	return dropped
}

// Len reports the number of live entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

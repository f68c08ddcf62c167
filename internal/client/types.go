// Package client consumes the availability service and reservation store
// over HTTP: an authenticated transport, a retry policy, a TTL cache, and a
// debounced availability request controller with last-input-wins semantics.
package client

import (
	"fmt"
	"strconv"
)

// Query identifies one availability lookup. Its serialized form is the cache
// and deduplication key.
type Query struct {
	Date  string `json:"date"`
	Party int    `json:"party"`
	Meal  string `json:"meal,omitempty"`
}

// Key serializes the query deterministically.
func (q Query) Key() string {
	return q.Date + "|" + strconv.Itoa(q.Party) + "|" + q.Meal
}

// Complete reports whether the query carries every required parameter. The
// meal is required only when the restaurant defines meals at all.
func (q Query) Complete(mealRequired bool) bool {
	if q.Date == "" || q.Party <= 0 {
		return false
	}
	if mealRequired && q.Meal == "" {
		return false
	}
	return true
}

// Slot is one bookable start time as returned by the availability service.
type Slot struct {
	Start  string `json:"start"`
	Label  string `json:"label"`
	Status string `json:"status"`
}

// AvailabilityMeta carries service-side context about the day.
type AvailabilityMeta struct {
	HasAvailability *bool `json:"has_availability,omitempty"`
	SlotTotal       int   `json:"slot_total,omitempty"`
}

// AvailabilityResponse is the availability service's payload.
type AvailabilityResponse struct {
	Slots           []Slot            `json:"slots"`
	HasAvailability *bool             `json:"has_availability,omitempty"`
	Meta            *AvailabilityMeta `json:"meta,omitempty"`
}

// Structural reports whether the service signalled that the day has any
// scheduled service at all, independent of remaining slots.
func (r *AvailabilityResponse) Structural() bool {
	if r.HasAvailability != nil {
		return *r.HasAvailability
	}
	if r.Meta != nil && r.Meta.HasAvailability != nil {
		return *r.Meta.HasAvailability
	}
	return len(r.Slots) > 0
}

// SlotTotal is the number of slots the schedule generates for the day,
// before capacity filtering. Falls back to the returned slot count.
func (r *AvailabilityResponse) SlotTotal() int {
	if r.Meta != nil && r.Meta.SlotTotal > 0 {
		return r.Meta.SlotTotal
	}
	return len(r.Slots)
}

// StatusError is a non-2xx or transport-level failure. Status 0 means the
// request never produced an HTTP response.
type StatusError struct {
	Status     int
	Message    string
	RetryAfter int // seconds, from Retry-After header or body
}

func (e *StatusError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("network failure: %s", e.Message)
	}
	if e.Message != "" {
		return fmt.Sprintf("request failed (status=%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("request failed (status=%d)", e.Status)
}

// Retryable reports whether the failure is worth retrying: rate limiting,
// server errors and transport failures are; any other 4xx is terminal.
func (e *StatusError) Retryable() bool {
	return e.Status == 0 || e.Status == 429 || e.Status >= 500
}

// Package slots derives bookable start times and their remaining capacity
// from a meal's schedule and turn model.
package slots

import (
	"fmt"

	"github.com/maitredhq/maitred/internal/schedule"
)

// Meal describes one named service (lunch, dinner, ...) and its booking rules.
type Meal struct {
	Key           string `yaml:"key" json:"key"`
	Label         string `yaml:"label" json:"label"`
	Schedule      string `yaml:"schedule" json:"schedule"`
	SlotInterval  int    `yaml:"slot_interval_minutes" json:"slot_interval_minutes"`
	TurnMinutes   int    `yaml:"turn_minutes" json:"turn_minutes"`
	BufferMinutes int    `yaml:"buffer_minutes" json:"buffer_minutes"`
	MaxParallel   int    `yaml:"max_parallel" json:"max_parallel"`
	Capacity      int    `yaml:"capacity" json:"capacity"`
}

// BlockMinutes is how long a booking occupies its physical table: the turn
// plus the buffer before the table can be reused. The buffer never affects
// whether a slot fits inside a window.
func (m Meal) BlockMinutes() int {
	return m.TurnMinutes + m.BufferMinutes
}

// Validate reports whether the meal definition can produce slots at all.
func (m Meal) Validate() error {
	if m.Key == "" {
		return fmt.Errorf("meal key is required")
	}
	if m.SlotInterval <= 0 {
		return ErrMisconfigured{Meal: m.Key, Reason: "slot_interval_minutes must be greater than 0"}
	}
	if m.TurnMinutes < 0 {
		return ErrMisconfigured{Meal: m.Key, Reason: "turn_minutes must be 0 or greater"}
	}
	if m.BufferMinutes < 0 {
		return ErrMisconfigured{Meal: m.Key, Reason: "buffer_minutes must be 0 or greater"}
	}
	if m.MaxParallel < 1 {
		return ErrMisconfigured{Meal: m.Key, Reason: "max_parallel must be at least 1"}
	}
	if m.Capacity < 1 {
		return ErrMisconfigured{Meal: m.Key, Reason: "capacity must be at least 1"}
	}
	return nil
}

// ErrMisconfigured marks a meal whose definition cannot yield slots. Callers
// treat it as "zero slots plus a diagnostic", not as a crash.
type ErrMisconfigured struct {
	Meal   string
	Reason string
}

func (e ErrMisconfigured) Error() string {
	return fmt.Sprintf("meal %q misconfigured: %s", e.Meal, e.Reason)
}

// Booking is an existing reservation counted against a meal's capacity.
type Booking struct {
	Start schedule.MinuteOfDay
	Party int
}

// Slot is one offerable start time with its remaining headroom. Slots are
// derived per request and never persisted.
type Slot struct {
	Start             schedule.MinuteOfDay
	Meal              string
	RemainingCapacity int
	RemainingParallel int
}

// Full reports whether either capacity constraint is saturated at this start.
func (s Slot) Full() bool {
	return s.RemainingCapacity <= 0 || s.RemainingParallel <= 0
}

// Fits reports whether a party of the given size could start in this slot.
func (s Slot) Fits(party int) bool {
	return s.RemainingParallel > 0 && s.RemainingCapacity >= party
}

// Generate produces the slot list for one meal on one day, given the day's
// resolved windows and the bookings already taken for that meal.
//
// A start time is offered only when start+turn fits fully inside a window.
// Two independent constraints bound each slot: at most MaxParallel bookings
// may start in the same slot, and the bookings for the whole service may not
// exceed the meal's cumulative cover capacity.
//
// Zero windows yields an empty list with no error. A misconfigured meal
// yields an empty list plus ErrMisconfigured.
func Generate(meal Meal, windows []schedule.Window, bookings []Booking) ([]Slot, error) {
	if err := meal.Validate(); err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return nil, nil
	}

	startsPerSlot := make(map[schedule.MinuteOfDay]int, len(bookings))
	coversBooked := 0
	for _, b := range bookings {
		startsPerSlot[b.Start]++
		coversBooked += b.Party
	}
	remainingCovers := meal.Capacity - coversBooked
	if remainingCovers < 0 {
		remainingCovers = 0
	}

	var result []Slot
	interval := schedule.MinuteOfDay(meal.SlotInterval)
	turn := schedule.MinuteOfDay(meal.TurnMinutes)
	for _, w := range windows {
		for start := w.Start; start+turn <= w.End; start += interval {
			remainingParallel := meal.MaxParallel - startsPerSlot[start]
			if remainingParallel < 0 {
				remainingParallel = 0
			}
			result = append(result, Slot{
				Start:             start,
				Meal:              meal.Key,
				RemainingCapacity: remainingCovers,
				RemainingParallel: remainingParallel,
			})
		}
	}
	return result, nil
}

// Open counts the slots that could still accept a party of the given size.
func Open(all []Slot, party int) int {
	n := 0
	for _, s := range all {
		if s.Fits(party) {
			n++
		}
	}
	return n
}

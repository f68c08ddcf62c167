// internal/models/models.go
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/maitredhq/maitred/internal/schedule"
)

const DateLayout = "2006-01-02"

// Reservation statuses understood by the agenda. The store may carry more;
// only these participate in capacity accounting.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusSeated    = "seated"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no_show"
)

// CountsTowardCapacity reports whether a reservation in this status still
// occupies its slot and covers.
func CountsTowardCapacity(status string) bool {
	switch status {
	case StatusCancelled, StatusNoShow:
		return false
	default:
		return true
	}
}

type Room struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

type Table struct {
	ID     int64  `json:"id"`
	RoomID int64  `json:"room_id"`
	Label  string `json:"label"`
	Seats  int    `json:"seats"`
	Active bool   `json:"active"`
}

type Customer struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

func (c Customer) Name() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Reservation is the read-only projection the agenda works with. The
// authoritative copy lives in the reservation store; agenda surfaces replace
// it wholesale on every reload.
type Reservation struct {
	ID        int64    `json:"id"`
	Ref       string   `json:"ref"`
	Status    string   `json:"status"`
	Date      string   `json:"date"`
	Time      string   `json:"time"`
	Party     int      `json:"party"`
	Meal      string   `json:"meal,omitempty"`
	TableID   *int64   `json:"table_id"`
	RoomID    *int64   `json:"room_id"`
	Customer  Customer `json:"customer"`
	Notes     string   `json:"notes,omitempty"`
	Allergies string   `json:"allergies,omitempty"`
}

// Minute returns the reservation time as minutes since midnight.
func (r Reservation) Minute() (schedule.MinuteOfDay, error) {
	return schedule.ParseClock(r.Time)
}

// Weekday resolves the reservation date's day of week.
func (r Reservation) Weekday() (time.Weekday, error) {
	parsed, err := time.Parse(DateLayout, r.Date)
	if err != nil {
		return 0, fmt.Errorf("reservation %d has invalid date %q: %w", r.ID, r.Date, err)
	}
	return parsed.Weekday(), nil
}

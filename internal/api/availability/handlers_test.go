package availability

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/maitredhq/maitred/internal/config"
	"github.com/maitredhq/maitred/internal/slots"
	"github.com/maitredhq/maitred/internal/store"
)

var setupOnce sync.Once

// setup initializes the handler package once for the whole test binary;
// InitHandlers is write-once by design.
func setup(t *testing.T) {
	t.Helper()
	setupOnce.Do(func() {
		dir, err := os.MkdirTemp("", "availability-test")
		if err != nil {
			t.Fatalf("temp dir: %v", err)
		}
		st, err := store.Open(filepath.Join(dir, "test.db"))
		if err != nil {
			t.Fatalf("open store: %v", err)
		}

		cfg := &config.Config{
			Meals: []slots.Meal{
				{
					Key:          "dinner",
					Label:        "Dinner",
					Schedule:     "mon=18:00-22:00\ntue=18:00-22:00\nwed=18:00-22:00\nthu=18:00-22:00\nfri=18:00-22:00\nsat=18:00-22:00\nsun=closed",
					SlotInterval: 30,
					TurnMinutes:  90,
					MaxParallel:  10,
					Capacity:     100,
				},
				{
					Key:          "brunch",
					Label:        "Brunch",
					Schedule:     "sat=10:00-12:00",
					SlotInterval: 30,
					TurnMinutes:  60,
					MaxParallel:  2,
					Capacity:     4,
				},
				{
					Key:      "lunch",
					Label:    "Lunch",
					Schedule: "mon=12:00-14:00",
					// slot_interval deliberately unset
					TurnMinutes: 60,
					MaxParallel: 4,
					Capacity:    20,
				},
			},
		}

		InitHandlers(cfg, st)
	})
}

func get(t *testing.T, query string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/availability?"+query, nil)
	w := httptest.NewRecorder()
	HandleAvailability(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) wireResponse {
	t.Helper()
	var resp wireResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestAvailabilitySlotsWithinWindow(t *testing.T) {
	setup(t)

	// Saturday dinner 18:00-22:00 with a 90 minute turn: the last start that
	// still fits is 20:30.
	w := get(t, "date=2025-06-07&party=2&meal=dinner")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)

	wantStarts := []string{"18:00", "18:30", "19:00", "19:30", "20:00", "20:30"}
	if len(resp.Slots) != len(wantStarts) {
		t.Fatalf("got %d slots, want %d: %+v", len(resp.Slots), len(wantStarts), resp.Slots)
	}
	for i, want := range wantStarts {
		if resp.Slots[i].Start != want {
			t.Errorf("slot %d start = %q, want %q", i, resp.Slots[i].Start, want)
		}
	}
	if resp.Slots[0].Label != "6:00 PM" {
		t.Errorf("first label = %q, want %q", resp.Slots[0].Label, "6:00 PM")
	}
	if !resp.HasAvailability {
		t.Error("has_availability = false, want true")
	}
	if !resp.Meta.HasAvailability || resp.Meta.SlotTotal != 6 {
		t.Errorf("meta = %+v, want structural availability with 6 slots", resp.Meta)
	}
}

func TestAvailabilityClosedDay(t *testing.T) {
	setup(t)

	// 2025-06-01 is a Sunday; dinner is marked closed.
	w := get(t, "date=2025-06-01&party=2&meal=dinner")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	resp := decode(t, w)
	if len(resp.Slots) != 0 {
		t.Errorf("got %d slots, want 0", len(resp.Slots))
	}
	if resp.HasAvailability || resp.Meta.HasAvailability {
		t.Errorf("closed day reported available: %+v", resp)
	}
}

func TestAvailabilityUnknownMeal(t *testing.T) {
	setup(t)

	w := get(t, "date=2025-06-07&party=2&meal=tea")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestAvailabilityBadParams(t *testing.T) {
	setup(t)

	cases := []struct {
		name  string
		query string
	}{
		{"missing date", "party=2&meal=dinner"},
		{"bad date", "date=tomorrow&party=2&meal=dinner"},
		{"missing party", "date=2025-06-07&meal=dinner"},
		{"zero party", "date=2025-06-07&party=0&meal=dinner"},
		{"missing meal", "date=2025-06-07&party=2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if w := get(t, tc.query); w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestAvailabilityMisconfiguredMeal(t *testing.T) {
	setup(t)

	w := get(t, "date=2025-06-02&party=2&meal=lunch")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: misconfiguration is not a request error", w.Code)
	}
	resp := decode(t, w)
	if len(resp.Slots) != 0 || resp.HasAvailability {
		t.Errorf("misconfigured meal yielded slots: %+v", resp)
	}
}

func TestAvailabilityCapacityFiltering(t *testing.T) {
	setup(t)
	ctx := t.Context()

	// Brunch seats 4 covers total. A party of 3 leaves room for 1 more.
	_, err := db.CreateReservation(ctx, store.CreateParams{
		Date: "2025-06-14", Time: "10:00", Party: 3, Meal: "brunch",
		FirstName: "Ada",
	})
	if err != nil {
		t.Fatalf("seed reservation: %v", err)
	}

	w := get(t, "date=2025-06-14&party=2&meal=brunch")
	resp := decode(t, w)
	if len(resp.Slots) != 0 {
		t.Fatalf("party of 2 got %d slots with 1 cover left", len(resp.Slots))
	}
	if resp.HasAvailability {
		t.Error("has_availability = true, want false")
	}
	if !resp.Meta.HasAvailability || resp.Meta.SlotTotal != 3 {
		t.Errorf("meta = %+v, want structural availability with 3 generated slots", resp.Meta)
	}

	// A party of 1 still fits, and the 10:00 slot is down to its last
	// parallel seating.
	w = get(t, "date=2025-06-14&party=1&meal=brunch")
	resp = decode(t, w)
	if len(resp.Slots) != 3 {
		t.Fatalf("party of 1 got %d slots, want 3", len(resp.Slots))
	}
	if resp.Slots[0].Status != "limited" {
		t.Errorf("10:00 status = %q, want limited", resp.Slots[0].Status)
	}
	if resp.Slots[1].Status != "available" {
		t.Errorf("10:30 status = %q, want available", resp.Slots[1].Status)
	}
}

func TestAvailabilityIgnoresCancelled(t *testing.T) {
	setup(t)
	ctx := t.Context()

	_, err := db.CreateReservation(ctx, store.CreateParams{
		Date: "2025-06-21", Time: "10:00", Party: 4, Meal: "brunch",
		Status: "cancelled", FirstName: "Bea",
	})
	if err != nil {
		t.Fatalf("seed reservation: %v", err)
	}

	w := get(t, "date=2025-06-21&party=2&meal=brunch")
	resp := decode(t, w)
	if len(resp.Slots) != 3 {
		t.Errorf("got %d slots, want 3: cancelled bookings must not count", len(resp.Slots))
	}
}

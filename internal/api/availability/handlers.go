// Package availability serves the slot availability endpoint: schedule
// windows and the turn model turned into bookable start times for one date,
// party size and meal.
package availability

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/maitredhq/maitred/internal/api/apiutil"
	"github.com/maitredhq/maitred/internal/config"
	"github.com/maitredhq/maitred/internal/models"
	"github.com/maitredhq/maitred/internal/schedule"
	"github.com/maitredhq/maitred/internal/slots"
	"github.com/maitredhq/maitred/internal/store"
)

var (
	initOnce sync.Once
	cfg      *config.Config
	db       *store.Store
)

func InitHandlers(c *config.Config, s *store.Store) {
	initOnce.Do(func() {
		cfg = c
		db = s
	})
}

// RegisterRoutes attaches the availability endpoint to the mux.
func RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/availability", HandleAvailability)
}

type wireSlot struct {
	Start  string `json:"start"`
	Label  string `json:"label"`
	Status string `json:"status"`
}

type wireMeta struct {
	HasAvailability bool `json:"has_availability"`
	SlotTotal       int  `json:"slot_total"`
}

type wireResponse struct {
	Slots           []wireSlot `json:"slots"`
	HasAvailability bool       `json:"has_availability"`
	Meta            wireMeta   `json:"meta"`
}

// HandleAvailability answers GET /api/v1/availability?date=&party=&meal=.
//
// The top-level has_availability flag means "a party this size can book";
// meta.has_availability means "the schedule offers service that day at all",
// and meta.slot_total counts the generated slots before capacity filtering.
// Clients combine the three to distinguish full from closed from limited.
func HandleAvailability(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	date, weekday, err := apiutil.ParseDateField(r.URL.Query().Get("date"), "date")
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	party, err := apiutil.ParsePositiveIntField(r.URL.Query().Get("party"), "party")
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	mealKey := r.URL.Query().Get("meal")
	if mealKey == "" && len(cfg.Meals) > 0 {
		apiutil.WriteError(w, http.StatusBadRequest, "meal is required")
		return
	}

	resp := wireResponse{Slots: []wireSlot{}}
	if len(cfg.Meals) == 0 {
		apiutil.WriteJSON(w, http.StatusOK, resp)
		return
	}

	meal, ok := cfg.Meal(mealKey)
	if !ok {
		apiutil.WriteError(w, http.StatusNotFound, "unknown meal")
		return
	}

	def := schedule.Parse(meal.Schedule)
	for _, skipped := range def.Skipped {
		logger.Warn().
			Str("meal", meal.Key).
			Int("line", skipped.Line).
			Str("segment", skipped.Segment).
			Str("reason", skipped.Reason).
			Msg("Skipping malformed schedule segment")
	}

	bookings, err := loadBookings(r, date, meal.Key)
	if err != nil {
		logger.Error().Err(err).Str("date", date).Msg("Failed to load bookings")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load availability")
		return
	}

	all, err := slots.Generate(meal, def.WindowsFor(weekday), bookings)
	if err != nil {
		var misconfigured slots.ErrMisconfigured
		if errors.As(err, &misconfigured) {
			logger.Error().Err(err).Str("meal", meal.Key).Msg("Meal misconfigured, offering no slots")
			apiutil.WriteJSON(w, http.StatusOK, resp)
			return
		}
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to compute availability")
		return
	}

	resp.Meta.SlotTotal = len(all)
	resp.Meta.HasAvailability = len(all) > 0
	for _, s := range all {
		if !s.Fits(party) {
			continue
		}
		resp.Slots = append(resp.Slots, wireSlot{
			Start:  s.Start.Clock(),
			Label:  displayLabel(s.Start),
			Status: slotStatus(s),
		})
	}
	resp.HasAvailability = len(resp.Slots) > 0

	apiutil.WriteJSON(w, http.StatusOK, resp)
}

// loadBookings collects the day's capacity-counting reservations for a meal.
func loadBookings(r *http.Request, date, mealKey string) ([]slots.Booking, error) {
	reservations, err := db.ReservationsByDate(r.Context(), date)
	if err != nil {
		return nil, err
	}

	var bookings []slots.Booking
	for _, res := range reservations {
		if res.Meal != mealKey || !models.CountsTowardCapacity(res.Status) {
			continue
		}
		start, err := res.Minute()
		if err != nil {
			log.Ctx(r.Context()).Warn().
				Int64("reservation_id", res.ID).
				Str("time", res.Time).
				Msg("Skipping reservation with unparseable time")
			continue
		}
		bookings = append(bookings, slots.Booking{Start: start, Party: res.Party})
	}
	return bookings, nil
}

// slotStatus marks a slot limited when only one parallel seating remains.
func slotStatus(s slots.Slot) string {
	if s.RemainingParallel == 1 {
		return "limited"
	}
	return "available"
}

func displayLabel(m schedule.MinuteOfDay) string {
	t := time.Date(2000, 1, 1, int(m)/60, int(m)%60, 0, 0, time.UTC)
	return t.Format("3:04 PM")
}

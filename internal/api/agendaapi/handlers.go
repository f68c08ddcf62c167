// Package agendaapi serves the agenda read model and the reservation write
// endpoints behind it: move (drag reassignment) and quick create.
package agendaapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nyaruka/phonenumbers"
	"github.com/rs/zerolog/log"

	"github.com/maitredhq/maitred/internal/api/apiutil"
	"github.com/maitredhq/maitred/internal/config"
	"github.com/maitredhq/maitred/internal/models"
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

// RegisterRoutes attaches the agenda endpoints to the mux.
func RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/agenda", HandleAgenda)
	mux.HandleFunc("POST /api/v1/agenda/reservations", HandleCreateReservation)
	mux.HandleFunc("POST /api/v1/agenda/reservations/{id}/move", HandleMoveReservation)
	mux.HandleFunc("GET /api/v1/tables/suggest", HandleSuggestTables)
}

type agendaDay struct {
	Date         string               `json:"date"`
	Reservations []models.Reservation `json:"reservations"`
}

type agendaResponse struct {
	Rooms  []models.Room  `json:"rooms"`
	Tables []models.Table `json:"tables"`
	Days   []agendaDay    `json:"days"`
}

// HandleAgenda answers GET /api/v1/agenda?date=&range=day|week.
//
// A week always starts on the Monday containing the anchor date and carries
// all seven days, empty ones included, so clients render a stable grid.
func HandleAgenda(w http.ResponseWriter, r *http.Request) {
	date, _, err := apiutil.ParseDateField(r.URL.Query().Get("date"), "date")
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	rng := r.URL.Query().Get("range")
	if rng == "" {
		rng = "day"
	}
	if rng != "day" && rng != "week" {
		apiutil.WriteError(w, http.StatusBadRequest, "range must be day or week")
		return
	}

	rooms, err := db.Rooms(r.Context())
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to list rooms")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load agenda")
		return
	}
	tables, err := db.Tables(r.Context(), nil)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to list tables")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load agenda")
		return
	}

	resp := agendaResponse{Rooms: rooms, Tables: tables}
	if rng == "day" {
		reservations, err := db.ReservationsByDate(r.Context(), date)
		if err != nil {
			log.Ctx(r.Context()).Error().Err(err).Str("date", date).Msg("Failed to list reservations")
			apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load agenda")
			return
		}
		resp.Days = []agendaDay{{Date: date, Reservations: emptyIfNil(reservations)}}
		apiutil.WriteJSON(w, http.StatusOK, resp)
		return
	}

	anchor, _ := time.Parse(models.DateLayout, date)
	monday := anchor.AddDate(0, 0, -int((anchor.Weekday()+6)%7))
	from := monday.Format(models.DateLayout)
	to := monday.AddDate(0, 0, 6).Format(models.DateLayout)

	reservations, err := db.ReservationsBetween(r.Context(), from, to)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str("from", from).Str("to", to).Msg("Failed to list reservations")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load agenda")
		return
	}

	byDate := make(map[string][]models.Reservation, 7)
	for _, res := range reservations {
		byDate[res.Date] = append(byDate[res.Date], res)
	}
	for i := 0; i < 7; i++ {
		day := monday.AddDate(0, 0, i).Format(models.DateLayout)
		resp.Days = append(resp.Days, agendaDay{Date: day, Reservations: emptyIfNil(byDate[day])})
	}
	apiutil.WriteJSON(w, http.StatusOK, resp)
}

type moveRequest struct {
	Date    string `json:"date"`
	Time    string `json:"time"`
	TableID *int64 `json:"table_id"`
	RoomID  *int64 `json:"room_id"`
}

// HandleMoveReservation answers POST /api/v1/agenda/reservations/{id}/move.
// The store arbitrates table conflicts using the meal's turn+buffer block;
// a 409 tells the client the drop lost the race.
func HandleMoveReservation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		apiutil.WriteError(w, http.StatusBadRequest, "invalid reservation id")
		return
	}

	var req moveRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	date, _, err := apiutil.ParseDateField(req.Date, "date")
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	timeOfDay, err := apiutil.ParseClockField(req.Time, "time")
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	existing, err := db.Reservation(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		apiutil.WriteError(w, http.StatusNotFound, "reservation not found")
		return
	}
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Int64("id", id).Msg("Failed to load reservation")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to move reservation")
		return
	}

	err = db.MoveReservation(r.Context(), id, store.MoveParams{
		Date:         date,
		Time:         timeOfDay,
		TableID:      req.TableID,
		RoomID:       req.RoomID,
		BlockMinutes: blockMinutesFor(existing.Meal),
	})
	var conflict store.ConflictError
	switch {
	case errors.As(err, &conflict):
		apiutil.WriteError(w, http.StatusConflict, "That table is already booked at this time")
	case errors.Is(err, store.ErrNotFound):
		apiutil.WriteError(w, http.StatusNotFound, "reservation not found")
	case err != nil:
		log.Ctx(r.Context()).Error().Err(err).Int64("id", id).Msg("Failed to move reservation")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to move reservation")
	default:
		moved, err := db.Reservation(r.Context(), id)
		if err != nil {
			apiutil.WriteError(w, http.StatusInternalServerError, "Failed to move reservation")
			return
		}
		apiutil.WriteJSON(w, http.StatusOK, moved)
	}
}

type createRequest struct {
	Date      string `json:"date"`
	Time      string `json:"time"`
	Party     int    `json:"party"`
	Meal      string `json:"meal"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Status    string `json:"status"`
	TableID   *int64 `json:"table_id"`
	RoomID    *int64 `json:"room_id"`
}

// HandleCreateReservation answers POST /api/v1/agenda/reservations.
func HandleCreateReservation(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	date, _, err := apiutil.ParseDateField(req.Date, "date")
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	timeOfDay, err := apiutil.ParseClockField(req.Time, "time")
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.FirstName) == "" {
		apiutil.WriteError(w, http.StatusBadRequest, "first_name is required")
		return
	}
	if req.Party < 1 {
		apiutil.WriteError(w, http.StatusBadRequest, "party must be at least 1")
		return
	}
	if req.Meal != "" {
		if _, ok := cfg.Meal(req.Meal); !ok {
			apiutil.WriteError(w, http.StatusBadRequest, "unknown meal")
			return
		}
	}

	phone := ""
	if strings.TrimSpace(req.Phone) != "" {
		parsed, err := phonenumbers.Parse(req.Phone, cfg.Availability.DefaultRegion)
		if err != nil || !phonenumbers.IsValidNumber(parsed) {
			apiutil.WriteError(w, http.StatusBadRequest, "phone number is not valid")
			return
		}
		phone = phonenumbers.Format(parsed, phonenumbers.E164)
	}

	created, err := db.CreateReservation(r.Context(), store.CreateParams{
		Date:         date,
		Time:         timeOfDay,
		Party:        req.Party,
		Meal:         req.Meal,
		Status:       req.Status,
		TableID:      req.TableID,
		RoomID:       req.RoomID,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Phone:        phone,
		BlockMinutes: blockMinutesFor(req.Meal),
	})
	var conflict store.ConflictError
	if errors.As(err, &conflict) {
		apiutil.WriteError(w, http.StatusConflict, "That table is already booked at this time")
		return
	}
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to create reservation")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to create reservation")
		return
	}
	apiutil.WriteJSON(w, http.StatusCreated, created)
}

type suggestCapacity struct {
	Std int `json:"std"`
}

type suggestion struct {
	TableIDs []int64         `json:"table_ids"`
	Capacity suggestCapacity `json:"capacity"`
}

type suggestResponse struct {
	Best *suggestion `json:"best"`
}

// HandleSuggestTables answers GET /api/v1/tables/suggest?party=&room_id=.
// It prefers the smallest single table that seats the party; failing that,
// the smallest same-room pair. Best is null when nothing fits.
func HandleSuggestTables(w http.ResponseWriter, r *http.Request) {
	party, err := apiutil.ParsePositiveIntField(r.URL.Query().Get("party"), "party")
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	roomID, err := apiutil.ParseOptionalInt64Field(r.URL.Query().Get("room_id"), "room_id")
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	tables, err := db.Tables(r.Context(), roomID)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to list tables")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to suggest tables")
		return
	}

	apiutil.WriteJSON(w, http.StatusOK, suggestResponse{Best: bestCombination(tables, party)})
}

// bestCombination picks the tightest fit: the single table with the fewest
// seats that still seats the party, then the same-room pair with the
// smallest combined seat count.
func bestCombination(tables []models.Table, party int) *suggestion {
	var single *models.Table
	for i := range tables {
		t := &tables[i]
		if !t.Active || t.Seats < party {
			continue
		}
		if single == nil || t.Seats < single.Seats {
			single = t
		}
	}
	if single != nil {
		return &suggestion{
			TableIDs: []int64{single.ID},
			Capacity: suggestCapacity{Std: single.Seats},
		}
	}

	var best *suggestion
	for i := range tables {
		if !tables[i].Active {
			continue
		}
		for j := i + 1; j < len(tables); j++ {
			if !tables[j].Active || tables[i].RoomID != tables[j].RoomID {
				continue
			}
			seats := tables[i].Seats + tables[j].Seats
			if seats < party {
				continue
			}
			if best == nil || seats < best.Capacity.Std {
				best = &suggestion{
					TableIDs: []int64{tables[i].ID, tables[j].ID},
					Capacity: suggestCapacity{Std: seats},
				}
			}
		}
	}
	return best
}

// blockMinutesFor resolves a meal's table occupancy block; unknown or empty
// meals get no table-level spacing.
func blockMinutesFor(mealKey string) int {
	if mealKey == "" {
		return 0
	}
	meal, ok := cfg.Meal(mealKey)
	if !ok {
		return 0
	}
	return meal.BlockMinutes()
}

func emptyIfNil(reservations []models.Reservation) []models.Reservation {
	if reservations == nil {
		return []models.Reservation{}
	}
	return reservations
}

package agendaapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/maitredhq/maitred/internal/config"
	"github.com/maitredhq/maitred/internal/models"
	"github.com/maitredhq/maitred/internal/slots"
	"github.com/maitredhq/maitred/internal/store"
)

var (
	setupOnce sync.Once
	mux       *http.ServeMux
)

func setup(t *testing.T) {
	t.Helper()
	setupOnce.Do(func() {
		dir, err := os.MkdirTemp("", "agendaapi-test")
		if err != nil {
			t.Fatalf("temp dir: %v", err)
		}
		st, err := store.Open(filepath.Join(dir, "test.db"))
		if err != nil {
			t.Fatalf("open store: %v", err)
		}

		seed := `
			INSERT INTO rooms (id, name, active) VALUES
				(1, 'Main', 1), (2, 'Patio', 1);
			INSERT INTO tables (id, room_id, label, seats, active) VALUES
				(1, 1, 'T1', 2, 1),
				(2, 1, 'T2', 4, 1),
				(3, 1, 'T3', 6, 1),
				(4, 2, 'P1', 6, 1),
				(5, 1, 'T9', 10, 0);`
		if _, err := st.Exec(seed); err != nil {
			t.Fatalf("seed: %v", err)
		}

		cfg := &config.Config{
			Meals: []slots.Meal{{
				Key: "dinner", Label: "Dinner",
				Schedule:     "mon=18:00-22:00",
				SlotInterval: 30, TurnMinutes: 90, BufferMinutes: 15,
				MaxParallel: 10, Capacity: 100,
			}},
		}
		cfg.Availability.DefaultRegion = "US"

		InitHandlers(cfg, st)
		mux = http.NewServeMux()
		RegisterRoutes(mux)
	})
}

func doJSON(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func createReservation(t *testing.T, date, timeOfDay string, tableID int64, opts map[string]any) models.Reservation {
	t.Helper()
	body := map[string]any{
		"date": date, "time": timeOfDay, "party": 2,
		"meal": "dinner", "first_name": "Ada", "last_name": "Lovelace",
		"table_id": tableID, "room_id": 1,
	}
	for k, v := range opts {
		body[k] = v
	}
	w := doJSON(t, http.MethodPost, "/api/v1/agenda/reservations", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", w.Code, w.Body.String())
	}
	var created models.Reservation
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	return created
}

func TestAgendaDay(t *testing.T) {
	setup(t)
	createReservation(t, "2025-07-01", "19:00", 1, nil)

	w := doJSON(t, http.MethodGet, "/api/v1/agenda?date=2025-07-01&range=day", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp agendaResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(resp.Rooms) != 2 {
		t.Errorf("got %d rooms, want 2", len(resp.Rooms))
	}
	if len(resp.Tables) != 5 {
		t.Errorf("got %d tables, want 5", len(resp.Tables))
	}
	if len(resp.Days) != 1 || resp.Days[0].Date != "2025-07-01" {
		t.Fatalf("days = %+v, want single 2025-07-01", resp.Days)
	}
	if len(resp.Days[0].Reservations) == 0 {
		t.Error("day has no reservations, want at least 1")
	}
}

func TestAgendaWeekStartsMonday(t *testing.T) {
	setup(t)
	createReservation(t, "2025-07-09", "18:30", 2, nil)

	// 2025-07-10 is a Thursday; its week runs 2025-07-07 through 2025-07-13.
	w := doJSON(t, http.MethodGet, "/api/v1/agenda?date=2025-07-10&range=week", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp agendaResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(resp.Days) != 7 {
		t.Fatalf("got %d days, want 7", len(resp.Days))
	}
	if resp.Days[0].Date != "2025-07-07" || resp.Days[6].Date != "2025-07-13" {
		t.Errorf("week spans %s..%s, want 2025-07-07..2025-07-13",
			resp.Days[0].Date, resp.Days[6].Date)
	}
	if len(resp.Days[2].Reservations) != 1 {
		t.Errorf("Wednesday has %d reservations, want 1", len(resp.Days[2].Reservations))
	}
	// Empty days are explicit, not omitted.
	if resp.Days[5].Reservations == nil {
		t.Error("empty day serialized as null, want empty list")
	}
}

func TestAgendaBadRange(t *testing.T) {
	setup(t)
	if w := doJSON(t, http.MethodGet, "/api/v1/agenda?date=2025-07-01&range=month", nil); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestMoveReservation(t *testing.T) {
	setup(t)
	createReservation(t, "2025-08-04", "19:00", 1, nil)
	moving := createReservation(t, "2025-08-04", "19:30", 2, nil)

	// Dinner blocks a table for 105 minutes; 19:30 on table 1 collides with
	// the 19:00 booking already there.
	conflictBody := map[string]any{"date": "2025-08-04", "time": "19:30", "table_id": 1, "room_id": 1}
	w := doJSON(t, http.MethodPost, "/api/v1/agenda/reservations/"+itoa(moving.ID)+"/move", conflictBody)
	if w.Code != http.StatusConflict {
		t.Fatalf("conflicting move status = %d, want 409: %s", w.Code, w.Body.String())
	}

	// 21:00 is 120 minutes clear of the 19:00 booking.
	okBody := map[string]any{"date": "2025-08-04", "time": "21:00", "table_id": 1, "room_id": 1}
	w = doJSON(t, http.MethodPost, "/api/v1/agenda/reservations/"+itoa(moving.ID)+"/move", okBody)
	if w.Code != http.StatusOK {
		t.Fatalf("move status = %d: %s", w.Code, w.Body.String())
	}
	var moved models.Reservation
	if err := json.Unmarshal(w.Body.Bytes(), &moved); err != nil {
		t.Fatalf("decode moved: %v", err)
	}
	if moved.Time != "21:00" || moved.TableID == nil || *moved.TableID != 1 {
		t.Errorf("moved = %+v, want 21:00 on table 1", moved)
	}
}

func TestMoveReservationNotFound(t *testing.T) {
	setup(t)
	body := map[string]any{"date": "2025-08-04", "time": "18:00", "table_id": 3, "room_id": 1}
	if w := doJSON(t, http.MethodPost, "/api/v1/agenda/reservations/999999/move", body); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestMoveReservationBadBody(t *testing.T) {
	setup(t)
	res := createReservation(t, "2025-08-11", "18:00", 3, nil)

	req := httptest.NewRequest(http.MethodPost,
		"/api/v1/agenda/reservations/"+itoa(res.ID)+"/move",
		bytes.NewReader([]byte(`{"date": "2025-08-11", "bogus": true}`)))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCreateReservationValidation(t *testing.T) {
	setup(t)

	cases := []struct {
		name string
		body map[string]any
	}{
		{"missing first name", map[string]any{
			"date": "2025-09-01", "time": "19:00", "party": 2, "meal": "dinner"}},
		{"zero party", map[string]any{
			"date": "2025-09-01", "time": "19:00", "party": 0, "meal": "dinner", "first_name": "Ada"}},
		{"unknown meal", map[string]any{
			"date": "2025-09-01", "time": "19:00", "party": 2, "meal": "tea", "first_name": "Ada"}},
		{"bad time", map[string]any{
			"date": "2025-09-01", "time": "7pm", "party": 2, "meal": "dinner", "first_name": "Ada"}},
		{"bad phone", map[string]any{
			"date": "2025-09-01", "time": "19:00", "party": 2, "meal": "dinner",
			"first_name": "Ada", "phone": "12"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if w := doJSON(t, http.MethodPost, "/api/v1/agenda/reservations", tc.body); w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestCreateReservationNormalizesPhone(t *testing.T) {
	setup(t)
	created := createReservation(t, "2025-09-08", "19:00", 3, map[string]any{
		"phone": "(212) 867-5309",
	})
	if created.Customer.Phone != "+12128675309" {
		t.Errorf("phone = %q, want E.164 +12128675309", created.Customer.Phone)
	}
	if created.Status != models.StatusConfirmed {
		t.Errorf("status = %q, want confirmed default", created.Status)
	}
	if created.Ref == "" {
		t.Error("ref is empty, want generated reference")
	}
}

func TestSuggestTables(t *testing.T) {
	setup(t)

	cases := []struct {
		name      string
		query     string
		wantIDs   []int64
		wantSeats int
		wantNull  bool
	}{
		{"smallest single", "party=3", []int64{2}, 4, false},
		{"exact single", "party=2", []int64{1}, 2, false},
		{"pair same room", "party=9", []int64{2, 3}, 10, false},
		{"room scoped", "party=2&room_id=2", []int64{4}, 6, false},
		{"nothing fits", "party=20", nil, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, http.MethodGet, "/api/v1/tables/suggest?"+tc.query, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d: %s", w.Code, w.Body.String())
			}
			var resp suggestResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if tc.wantNull {
				if resp.Best != nil {
					t.Fatalf("best = %+v, want null", resp.Best)
				}
				return
			}
			if resp.Best == nil {
				t.Fatal("best = null, want a suggestion")
			}
			if len(resp.Best.TableIDs) != len(tc.wantIDs) {
				t.Fatalf("table_ids = %v, want %v", resp.Best.TableIDs, tc.wantIDs)
			}
			for i, id := range tc.wantIDs {
				if resp.Best.TableIDs[i] != id {
					t.Errorf("table_ids = %v, want %v", resp.Best.TableIDs, tc.wantIDs)
					break
				}
			}
			if resp.Best.Capacity.Std != tc.wantSeats {
				t.Errorf("capacity = %d, want %d", resp.Best.Capacity.Std, tc.wantSeats)
			}
		})
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/maitredhq/maitred/internal/models"
)

// AgendaRange selects the agenda read shape.
type AgendaRange string

const (
	RangeDay  AgendaRange = "day"
	RangeWeek AgendaRange = "week"
)

// AgendaDay is one calendar day's reservations in an agenda response.
type AgendaDay struct {
	Date         string               `json:"date"`
	Reservations []models.Reservation `json:"reservations"`
}

// AgendaResponse is the agenda read payload. Days may be absent, in which
// case callers group the flat reservation list by date themselves.
type AgendaResponse struct {
	Rooms        []models.Room        `json:"rooms"`
	Tables       []models.Table       `json:"tables"`
	Days         []AgendaDay          `json:"days,omitempty"`
	Reservations []models.Reservation `json:"reservations,omitempty"`
}

// MoveRequest reassigns a reservation to a new date, time, table and room.
type MoveRequest struct {
	Date    string `json:"date"`
	Time    string `json:"time"`
	TableID *int64 `json:"table_id"`
	RoomID  *int64 `json:"room_id"`
}

// CreateRequest posts a new reservation from the quick-create flow.
type CreateRequest struct {
	Date      string `json:"date"`
	Time      string `json:"time"`
	Party     int    `json:"party"`
	Meal      string `json:"meal,omitempty"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone,omitempty"`
	Status    string `json:"status"`
	TableID   *int64 `json:"table_id,omitempty"`
	RoomID    *int64 `json:"room_id,omitempty"`
}

// Client talks to the availability service and reservation store. Every
// request carries the caller-supplied auth token; token refresh and 401/403
// recovery are handled by the surrounding application.
type Client struct {
	hc        *http.Client
	baseURL   string
	authToken string
}

type Option func(*Client)

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// New builds a client for the given server. The default HTTP client carries
// no timeout: failures are bounded by the caller's retry policy, and a
// request that never resolves is left hanging rather than aborted. Callers
// that want a hard deadline pass WithHTTPClient or a request context.
func New(baseURL, authToken string, opts ...Option) *Client {
	c := &Client{
		hc:        &http.Client{},
		baseURL:   strings.TrimRight(baseURL, "/"),
		authToken: authToken,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Availability fetches bookable slots for a date, party size and meal.
func (c *Client) Availability(ctx context.Context, q Query) (*AvailabilityResponse, error) {
	params := url.Values{}
	params.Set("date", q.Date)
	params.Set("party", strconv.Itoa(q.Party))
	if q.Meal != "" {
		params.Set("meal", q.Meal)
	}

	var resp AvailabilityResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/availability", params, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Agenda fetches the agenda read model for a date.
func (c *Client) Agenda(ctx context.Context, date string, rng AgendaRange) (*AgendaResponse, error) {
	params := url.Values{}
	params.Set("date", date)
	params.Set("range", string(rng))

	var resp AgendaResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/agenda", params, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MoveReservation commits a reassignment. The store arbitrates conflicts.
func (c *Client) MoveReservation(ctx context.Context, id int64, req MoveRequest) error {
	path := fmt.Sprintf("/api/v1/agenda/reservations/%d/move", id)
	return c.do(ctx, http.MethodPost, path, nil, req, nil)
}

// CreateReservation posts a new reservation.
func (c *Client) CreateReservation(ctx context.Context, req CreateRequest) (*models.Reservation, error) {
	var created models.Reservation
	if err := c.do(ctx, http.MethodPost, "/api/v1/agenda/reservations", nil, req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, dst any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return &StatusError{Status: 0, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &StatusError{Status: 0, Message: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusErrorFrom(resp, raw)
	}

	if dst != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// statusErrorFrom extracts the user-facing message and retry hint. The
// Retry-After hint may arrive as an HTTP header or in the JSON body.
func statusErrorFrom(resp *http.Response, raw []byte) *StatusError {
	statusErr := &StatusError{Status: resp.StatusCode}

	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(strings.TrimSpace(header)); err == nil && seconds > 0 {
			statusErr.RetryAfter = seconds
		}
	}

	var body struct {
		Message    string `json:"message"`
		RetryAfter int    `json:"retry_after"`
	}
	if json.Unmarshal(raw, &body) == nil {
		statusErr.Message = body.Message
		if statusErr.RetryAfter == 0 && body.RetryAfter > 0 {
			statusErr.RetryAfter = body.RetryAfter
		}
	}
	return statusErr
}

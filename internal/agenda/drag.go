package agenda

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/maitredhq/maitred/internal/client"
	"github.com/maitredhq/maitred/internal/models"
)

var (
	ErrDragInProgress = errors.New("another drag gesture is already active")
	ErrNoActiveDrag   = errors.New("no drag gesture in progress")
	ErrNameRequired   = errors.New("guest name is required")
	ErrInvalidParty   = errors.New("party must be a positive number")
)

// Target identifies the cell a reservation is dropped on, or the cell a
// quick-create starts from.
type Target struct {
	Date    string
	Time    string
	TableID *int64
	RoomID  *int64
}

// Gesture captures a drag's origin. It exists only for the duration of one
// pointer gesture and is never persisted.
type Gesture struct {
	ReservationID int64
	OriginDate    string
	OriginTime    string
	OriginTableID *int64
}

// Mover commits reservation reassignments; *client.Client implements it.
type Mover interface {
	MoveReservation(ctx context.Context, id int64, req client.MoveRequest) error
}

// Creator posts new reservations; *client.Client implements it.
type Creator interface {
	CreateReservation(ctx context.Context, req client.CreateRequest) (*models.Reservation, error)
}

// DropResult says what a drop did.
type DropResult int

const (
	DropNoop DropResult = iota
	DropMoved
)

// Engine runs the drag-reassignment state machine for one agenda surface.
// Only one gesture can be active at a time; the pointer-capture model on the
// surface enforces the same upstream. The engine never patches the grid
// optimistically: a successful move triggers a full reload, and a failed one
// leaves the prior rendering untouched so the drag visually reverts.
type Engine struct {
	mover  Mover
	reload func(context.Context) error
	logger zerolog.Logger

	mu     sync.Mutex
	active *Gesture
}

// NewEngine creates a drag engine. reload is invoked after every committed
// move and must replace the agenda state wholesale.
func NewEngine(mover Mover, reload func(context.Context) error) *Engine {
	return &Engine{
		mover:  mover,
		reload: reload,
		logger: log.With().Str("component", "drag_engine").Logger(),
	}
}

// Begin starts a gesture for the given reservation, capturing its origin.
func (e *Engine) Begin(r models.Reservation) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active != nil {
		return ErrDragInProgress
	}
	e.active = &Gesture{
		ReservationID: r.ID,
		OriginDate:    r.Date,
		OriginTime:    r.Time,
		OriginTableID: r.TableID,
	}
	return nil
}

// Active returns a copy of the current gesture, if any.
func (e *Engine) Active() (Gesture, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return Gesture{}, false
	}
	return *e.active, true
}

// Cancel abandons the gesture without any request.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = nil
}

// Drop commits the gesture onto the target cell. Dropping a reservation on
// its own (date, time, table) is a no-op cancel with zero network requests.
func (e *Engine) Drop(ctx context.Context, target Target) (DropResult, error) {
	e.mu.Lock()
	gesture := e.active
	if gesture == nil {
		e.mu.Unlock()
		return DropNoop, ErrNoActiveDrag
	}
	if target.Date == gesture.OriginDate &&
		target.Time == gesture.OriginTime &&
		sameTable(target.TableID, gesture.OriginTableID) {
		e.active = nil
		e.mu.Unlock()
		return DropNoop, nil
	}
	e.mu.Unlock()

	err := e.mover.MoveReservation(ctx, gesture.ReservationID, client.MoveRequest{
		Date:    target.Date,
		Time:    target.Time,
		TableID: target.TableID,
		RoomID:  target.RoomID,
	})

	e.mu.Lock()
	e.active = nil
	e.mu.Unlock()

	if err != nil {
		e.logger.Warn().Err(err).Int64("reservation_id", gesture.ReservationID).Msg("Reservation move rejected")
		return DropNoop, err
	}

	if err := e.reload(ctx); err != nil {
		return DropMoved, fmt.Errorf("reload after move: %w", err)
	}
	return DropMoved, nil
}

func sameTable(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// QuickCreate collects the minimal guest details gathered from a
// double-click or keyboard activation on a cell.
type QuickCreate struct {
	Cell      Target
	FirstName string
	LastName  string
	Party     int
	Phone     string
	Meal      string
}

// Validate aborts the create client-side before any request is sent.
func (qc QuickCreate) Validate() error {
	if strings.TrimSpace(qc.FirstName) == "" {
		return ErrNameRequired
	}
	if qc.Party <= 0 {
		return ErrInvalidParty
	}
	return nil
}

// Create validates and posts a new reservation with the cell's date, time,
// table and room, then reloads the agenda.
func (e *Engine) Create(ctx context.Context, creator Creator, qc QuickCreate) (*models.Reservation, error) {
	if err := qc.Validate(); err != nil {
		return nil, err
	}

	created, err := creator.CreateReservation(ctx, client.CreateRequest{
		Date:      qc.Cell.Date,
		Time:      qc.Cell.Time,
		Party:     qc.Party,
		Meal:      qc.Meal,
		FirstName: strings.TrimSpace(qc.FirstName),
		LastName:  strings.TrimSpace(qc.LastName),
		Phone:     strings.TrimSpace(qc.Phone),
		Status:    models.StatusConfirmed,
		TableID:   qc.Cell.TableID,
		RoomID:    qc.Cell.RoomID,
	})
	if err != nil {
		return nil, err
	}

	if err := e.reload(ctx); err != nil {
		return created, fmt.Errorf("reload after create: %w", err)
	}
	return created, nil
}

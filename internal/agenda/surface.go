package agenda

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/maitredhq/maitred/internal/client"
)

// AvailabilitySession is the slice of the availability controller a surface
// drives; *client.Controller implements it.
type AvailabilitySession interface {
	Schedule(q client.Query, immediate bool)
	SelectSlot(start string)
	ClearSelection()
}

// Surface owns one UI surface's mutable state and routes bus events to the
// availability session and the drag engine. It is created when the surface
// mounts and discarded when it unmounts; nothing here is shared or global.
type Surface struct {
	session AvailabilitySession
	engine  *Engine
	onError func(string)
	logger  zerolog.Logger

	mu    sync.Mutex
	query client.Query
	room  RoomFilter
}

// NewSurface wires a surface onto the bus. onError receives blocking
// user-facing messages (rejected moves, failed reloads) and may be nil.
func NewSurface(bus *Bus, session AvailabilitySession, engine *Engine, onError func(string)) *Surface {
	s := &Surface{
		session: session,
		engine:  engine,
		onError: onError,
		logger:  log.With().Str("component", "agenda_surface").Logger(),
		room:    RoomAll,
	}
	bus.Subscribe(s.Handle)
	return s
}

// Query returns the current selector input.
func (s *Surface) Query() client.Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// Room returns the active room filter.
func (s *Surface) Room() RoomFilter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

// Handle routes one event. Selector edits restart the debounce window;
// selecting a slot never refetches.
func (s *Surface) Handle(event Event) {
	switch ev := event.(type) {
	case DateChanged:
		s.mu.Lock()
		s.query.Date = ev.Date
		query := s.query
		s.mu.Unlock()
		s.session.Schedule(query, false)
	case PartyChanged:
		s.mu.Lock()
		s.query.Party = ev.Party
		query := s.query
		s.mu.Unlock()
		s.session.Schedule(query, false)
	case MealChanged:
		s.mu.Lock()
		s.query.Meal = ev.Meal
		query := s.query
		s.mu.Unlock()
		s.session.Schedule(query, false)
	case RoomChanged:
		s.mu.Lock()
		s.room = ev.Room
		s.mu.Unlock()
	case SlotSelected:
		s.session.SelectSlot(ev.Start)
	case SelectionCleared:
		s.session.ClearSelection()
	case DragStarted:
		if err := s.engine.Begin(ev.Reservation); err != nil {
			s.logger.Debug().Err(err).Int64("reservation_id", ev.Reservation.ID).Msg("Drag rejected")
		}
	case DragDropped:
		if _, err := s.engine.Drop(context.Background(), ev.Target); err != nil && !errors.Is(err, ErrNoActiveDrag) {
			s.fail(err.Error())
		}
	case DragCancelled:
		s.engine.Cancel()
	}
}

func (s *Surface) fail(message string) {
	if s.onError != nil {
		s.onError(message)
	}
}

package agenda

import (
	"sync"

	"github.com/maitredhq/maitred/internal/models"
)

// Event is the closed set of surface events. Every interaction reaches the
// controllers through one of these typed payloads rather than loose maps.
type Event interface{ isEvent() }

type DateChanged struct{ Date string }

type PartyChanged struct{ Party int }

type MealChanged struct{ Meal string }

type RoomChanged struct{ Room RoomFilter }

type SlotSelected struct{ Start string }

type SelectionCleared struct{}

type DragStarted struct{ Reservation models.Reservation }

type DragDropped struct{ Target Target }

type DragCancelled struct{}

func (DateChanged) isEvent()      {}
func (PartyChanged) isEvent()     {}
func (MealChanged) isEvent()      {}
func (RoomChanged) isEvent()      {}
func (SlotSelected) isEvent()     {}
func (SelectionCleared) isEvent() {}
func (DragStarted) isEvent()      {}
func (DragDropped) isEvent()      {}
func (DragCancelled) isEvent()    {}

// Bus dispatches events synchronously to subscribers in subscription order.
type Bus struct {
	mu       sync.Mutex
	handlers []func(Event)
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) Subscribe(handler func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

func (b *Bus) Publish(event Event) {
	b.mu.Lock()
	handlers := make([]func(Event), len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.Unlock()

	for _, handler := range handlers {
		handler(event)
	}
}

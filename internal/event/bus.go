package event

import (
	"context"
	"log"
	"sync"
	"time"

	"libraryhub.com/internal/domain"
)

// All subscribes a handler to every event type.
const All = "*"

// Event is a committed state change announced by a service.
type Event struct {
	Type      string
	Payload   any
	Timestamp time.Time
}

// Handler reacts to one event. Errors are logged, never returned to the publisher.
type Handler func(ctx context.Context, e Event) error

// Bus fans events out to its subscribers synchronously, in subscription order.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	now      func() time.Time
}

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
		now:      time.Now,
	}
}

// Subscribe registers h for eventType, or for everything when eventType is All.
func (b *Bus) Subscribe(eventType string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], h)
	log.Printf("EventBus: Subscribed to event type: %s", eventType)
}

// Publish implements domain.EventPublisher.
func (b *Bus) Publish(ctx context.Context, eventType string, payload any) {
	e := Event{Type: eventType, Payload: payload, Timestamp: b.now().UTC()}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[eventType])+len(b.handlers[All]))
	handlers = append(handlers, b.handlers[eventType]...)
	handlers = append(handlers, b.handlers[All]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, e); err != nil {
			log.Printf("EventBus: Handler error for event %s: %v", e.Type, err)
		}
	}
}

// SubscriberCount reports how many handlers receive eventType, wildcard included.
func (b *Bus) SubscriberCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType]) + len(b.handlers[All])
}

// LogHandler writes every event to the standard logger.
func LogHandler(_ context.Context, e Event) error {
	log.Printf("Event: %s %+v", e.Type, e.Payload)
	return nil
}

var _ domain.EventPublisher = (*Bus)(nil)

// Package bus is a small synchronous event bus connecting the query
// store, the navigation session and the UI-facing consumers. Publishing
// an event invokes every subscriber in subscription order before
// Publish returns, so state read immediately after a publish reflects
// all subscriber updates.
package bus

import (
	"log/slog"
	"sync"
)

// Event is a published notification. Implementations are plain value
// types in events.go.
type Event interface {
	// Name identifies the event kind; Publish logs it at debug level.
	Name() string
}

// Handler receives published events. Handlers that only care about one
// kind type-switch on the event.
type Handler func(Event)

// Bus delivers events to subscribers synchronously.
type Bus struct {
	mu       sync.Mutex
	handlers []Handler
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers a handler. Handlers are never removed; the bus
// lives as long as the process.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish delivers the event to every subscriber, in the order they
// subscribed, on the caller's goroutine.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.Unlock()

	slog.Debug("publishing event", "event", e.Name())
	for _, h := range handlers {
		h(e)
	}
}

// ABOUTME: Typed event bus fanning one session's events out to passive observers
// ABOUTME: Delivery is synchronous in subscription order; a panicking handler is isolated and logged

package eventbus

import (
	"runtime/debug"
	"sync"

	"github.com/bigduu/copilot-client-app-sub002/internal/log"
)

// Handler is a callback function for events.
type Handler[T any] func(T)

type subscriber[T any] struct {
	id int
	h  Handler[T]
}

// Bus is a typed event bus that delivers events to registered handlers.
type Bus[T any] struct {
	mu     sync.RWMutex
	subs   []subscriber[T]
	nextID int
}

// New creates a new event bus.
func New[T any]() *Bus[T] {
	return &Bus[T]{}
}

// Subscribe registers a handler and returns an unsubscribe function.
func (b *Bus[T]) Subscribe(handler Handler[T]) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs = append(b.subs, subscriber[T]{id: id, h: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish sends an event to all registered handlers, in the order they
// subscribed. A handler that panics does not stop delivery to the rest.
func (b *Bus[T]) Publish(event T) {
	b.mu.RLock()
	snapshot := make([]Handler[T], len(b.subs))
	for i, s := range b.subs {
		snapshot[i] = s.h
	}
	b.mu.RUnlock()

	for _, h := range snapshot {
		deliver(h, event)
	}
}

func deliver[T any](h Handler[T], event T) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("eventbus: handler panicked: %v\n%s", r, debug.Stack())
		}
	}()
	h(event)
}

// Count returns the number of registered handlers.
func (b *Bus[T]) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

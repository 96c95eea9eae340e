// Package authbus fans auth-state changes out to subscribers. Subscriptions
// are process-local and reset on restart.
package authbus

import (
	"log"
	"sync"
)

// Handler receives the new token/model pair after an auth change. Both are
// zero values after a logout.
type Handler func(token string, model map[string]any)

type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]Handler
}

func New() *Bus {
	return &Bus{subs: map[int]Handler{}}
}

// Subscribe registers a handler and returns its unsubscribe function.
// Unsubscribing twice is harmless.
func (b *Bus) Subscribe(fn Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Publish invokes every subscriber with the new auth state. A panicking
// subscriber is logged and skipped so it cannot break the others.
func (b *Bus) Publish(token string, model map[string]any) {
	b.mu.Lock()
	handlers := make([]Handler, 0, len(b.subs))
	for _, fn := range b.subs {
		handlers = append(handlers, fn)
	}
	b.mu.Unlock()

	for _, fn := range handlers {
		invoke(fn, token, model)
	}
}

func invoke(fn Handler, token string, model map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("authbus: subscriber panic: %v", r)
		}
	}()
	fn(token, model)
}

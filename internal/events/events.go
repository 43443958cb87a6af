// Package events provides a small in-process event bus used to notify
// listeners about completed background caching work. It replaces UI-framework
// signal wiring with plain subscriptions so any number of independent
// listeners can attach.
package events

import (
	"sync"
)

// CacheComplete is published when a background caching job resolves an asset
// to a durable on-disk path.
type CacheComplete struct {
	EntityID    string
	ContentType string
	Quality     string
	Path        string
}

// Bus fans CacheComplete events out to all current subscribers. Publishing
// never blocks: a subscriber that is not keeping up misses events rather than
// stalling the publisher.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan CacheComplete
	nextID int
	closed bool
}

// subscriberBuffer is the per-subscriber channel depth.
const subscriberBuffer = 64

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan CacheComplete)}
}

// Subscribe registers a new listener and returns its channel together with an
// unsubscribe function. The channel is closed on unsubscribe or bus shutdown.
func (b *Bus) Subscribe() (<-chan CacheComplete, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan CacheComplete)
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	ch := make(chan CacheComplete, subscriberBuffer)
	b.subs[id] = ch

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, unsubscribe
}

// Publish delivers an event to every subscriber without blocking.
func (b *Bus) Publish(ev CacheComplete) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// subscriber buffer full, drop for this listener
		}
	}
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

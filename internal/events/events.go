// Package events broadcasts gateway events to any number of listeners.
package events

import (
	"sync"
	"sync/atomic"
)

// Event names.
const (
	PreloadProgress = "preload-progress"
	UpdateAvailable = "sw-update-available"
	CacheCleaned    = "cache-cleaned"
)

const subscriberBufSize = 16

// Progress is the payload of PreloadProgress.
type Progress struct {
	Progress int `json:"progress"`
}

// Update is the payload of UpdateAvailable.
type Update struct {
	Version  string   `json:"version"`
	Previous []string `json:"previous,omitempty"`
}

// Publisher is the sending side of a Bus.
type Publisher interface {
	Publish(name string, data any)
}

// Event is a named broadcast with a JSON-serializable payload.
type Event struct {
	Name string `json:"name"`
	Data any    `json:"data"`
}

// Bus fans events out to subscribers. Slow subscribers miss events rather than block publishers.
type Bus struct {
	mu      sync.RWMutex
	subs    map[uint64]chan Event
	nextID  uint64
	closed  bool
	dropped atomic.Int64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]chan Event)}
}

// Subscribe returns a channel of events and a function that closes it.
// On a closed bus the channel is already closed.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBufSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
}

// Close ends every subscription. Later publishes are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish delivers the event to every subscriber without blocking.
func (b *Bus) Publish(name string, data any) {
	ev := Event{Name: name, Data: data}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber was full.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

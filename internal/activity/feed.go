// Package activity is an in-process publish/subscribe feed of pipeline events
// with a bounded history for late subscribers.
package activity

import (
	"sync"
	"time"
)

// Type classifies an event.
type Type string

const (
	Info    Type = "info"
	Success Type = "success"
	Error   Type = "error"
)

// Event is one entry in the feed.
type Event struct {
	ID        uint64         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Type      Type           `json:"type"`
	Route     string         `json:"route"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
}

// Publisher is the write side of the feed. Orchestrators depend on this
// rather than on *Feed.
type Publisher interface {
	Publish(typ Type, route, message string, ctx map[string]any) Event
}

// Nop discards events.
type Nop struct{}

// Publish returns the event it would have sent, stamped with the current
// time and no ID.
func (Nop) Publish(typ Type, route, message string, ctx map[string]any) Event {
	return Event{Timestamp: time.Now().UTC(), Type: typ, Route: route, Message: message, Context: ctx}
}

const (
	// DefaultHistorySize bounds the replay buffer.
	DefaultHistorySize = 200
	subscriberBuffer   = 64
)

// Feed fans published events out to subscribers and keeps the most recent
// ones in a ring buffer. A subscriber that falls behind misses events; it
// never blocks Publish.
type Feed struct {
	mu      sync.Mutex
	ring    []Event
	head    int
	size    int
	nextID  uint64
	subs    map[uint64]chan Event
	nextSub uint64
	closed  bool
	now     func() time.Time
}

// NewFeed creates a feed that retains historySize events. Non-positive sizes
// use DefaultHistorySize.
func NewFeed(historySize int) *Feed {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &Feed{
		ring:   make([]Event, historySize),
		nextID: 1,
		subs:   make(map[uint64]chan Event),
		now:    time.Now,
	}
}

// Publish records an event and delivers it to current subscribers.
func (f *Feed) Publish(typ Type, route, message string, ctx map[string]any) Event {
	f.mu.Lock()
	defer f.mu.Unlock()

	ev := Event{
		ID:        f.nextID,
		Timestamp: f.now().UTC(),
		Type:      typ,
		Route:     route,
		Message:   message,
		Context:   ctx,
	}
	if f.closed {
		return ev
	}
	f.nextID++

	f.ring[(f.head+f.size)%len(f.ring)] = ev
	if f.size < len(f.ring) {
		f.size++
	} else {
		f.head = (f.head + 1) % len(f.ring)
	}

	for _, ch := range f.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	return ev
}

// History returns retained events, oldest first.
func (f *Feed) History() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Event, f.size)
	for i := range f.size {
		out[i] = f.ring[(f.head+i)%len(f.ring)]
	}
	return out
}

// Recent returns up to n of the newest events, newest first.
func (f *Feed) Recent(n int) []Event {
	hist := f.History()
	if n > len(hist) {
		n = len(hist)
	}
	out := make([]Event, 0, n)
	for i := len(hist) - 1; i >= len(hist)-n; i-- {
		out = append(out, hist[i])
	}
	return out
}

// Subscribe registers a listener. The returned cancel func unsubscribes and
// closes the channel; it is safe to call more than once. Subscribing to a
// closed feed yields an already-closed channel.
func (f *Feed) Subscribe() (<-chan Event, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if f.closed {
		close(ch)
		return ch, func() {}
	}

	id := f.nextSub
	f.nextSub++
	f.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if c, ok := f.subs[id]; ok {
				delete(f.subs, id)
				close(c)
			}
		})
	}
}

// Close closes every subscriber channel. Later publishes are dropped.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
}

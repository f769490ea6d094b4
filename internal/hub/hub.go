// Package hub is the in-process broadcaster for log create/delete events.
// Each subscriber owns a bounded channel; the hub holds only channel
// handles, never callbacks into subscriber logic. Publication is
// non-blocking: a subscriber that falls behind loses its oldest buffered
// events and is handed a gap marker, so a slow websocket can never stall
// the write path or other subscribers.
package hub

import (
	"sync"

	"github.com/mesh-intelligence/schemalog/pkg/types"
)

// Hub fans events out to live subscribers.
type Hub struct {
	mu     sync.Mutex
	subs   map[uint64]*Subscriber
	nextID uint64
	buffer int
	closed bool
}

// Subscriber is one live event stream. Events arrive on Events() in
// publication order until Close is called or the hub shuts down.
type Subscriber struct {
	hub      *Hub
	id       uint64
	schemaID string // empty subscribes to all schemas

	mu      sync.Mutex
	ch      chan types.LogEvent
	dropped int
	closed  bool
}

// New returns a Hub whose subscribers buffer up to buffer events each.
func New(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 1
	}
	return &Hub{subs: make(map[uint64]*Subscriber), buffer: buffer}
}

// Subscribe registers a new subscriber. A non-empty schemaID limits the
// stream to events for that schema.
func (h *Hub) Subscribe(schemaID string) (*Subscriber, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, types.ErrHubClosed
	}
	h.nextID++
	s := &Subscriber{
		hub:      h,
		id:       h.nextID,
		schemaID: schemaID,
		ch:       make(chan types.LogEvent, h.buffer),
	}
	h.subs[s.id] = s
	return s, nil
}

// Publish delivers ev to every matching subscriber and returns immediately.
// Callers publish only after the corresponding store mutation committed.
func (h *Hub) Publish(ev types.LogEvent) {
	h.mu.Lock()
	targets := make([]*Subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		if s.schemaID == "" || s.schemaID == ev.SchemaID {
			targets = append(targets, s)
		}
	}
	h.mu.Unlock()

	for _, s := range targets {
		s.offer(ev)
	}
}

// Close shuts the hub down and closes every subscriber stream.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := make([]*Subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.subs = map[uint64]*Subscriber{}
	h.mu.Unlock()

	for _, s := range subs {
		s.shut()
	}
}

// Subscribers reports the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Events is the subscriber's inbound stream. It is closed when the
// subscription ends.
func (s *Subscriber) Events() <-chan types.LogEvent {
	return s.ch
}

// TakeDropped returns how many events were lost to buffer overflow since
// the last call, resetting the counter. Transports surface a non-zero
// result as a gap event before the next delivery.
func (s *Subscriber) TakeDropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.dropped
	s.dropped = 0
	return n
}

// Close ends the subscription and releases its buffer promptly. Safe to
// call more than once and concurrently with Publish.
func (s *Subscriber) Close() {
	s.hub.mu.Lock()
	delete(s.hub.subs, s.id)
	s.hub.mu.Unlock()
	s.shut()
}

// offer enqueues without blocking, evicting the oldest buffered event when
// full. The per-subscriber lock keeps eviction and the closed check atomic
// against Close.
func (s *Subscriber) offer(ev types.LogEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.ch <- ev:
			return
		default:
		}
		select {
		case <-s.ch:
			s.dropped++
		default:
		}
	}
}

func (s *Subscriber) shut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

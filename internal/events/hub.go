package events

import (
	"sync"
	"sync/atomic"
)

const subscriberBuffer = 32

// Subscription is one listener. C yields encoded Event envelopes of the
// types it subscribed to, or of every type when none were given.
type Subscription struct {
	C <-chan string

	ch      chan string
	types   map[string]bool
	dropped atomic.Int64
}

func (s *Subscription) wants(typ string) bool {
	return typ == Ping || len(s.types) == 0 || s.types[typ]
}

// Dropped counts events skipped because the subscriber was too slow.
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

// Hub fans pipeline events out to subscribers. A full subscriber misses
// events rather than block the pipeline.
type Hub struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

var _ Publisher = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a listener for types. Unknown types are accepted and
// simply never match.
func (h *Hub) Subscribe(types ...string) *Subscription {
	ch := make(chan string, subscriberBuffer)
	s := &Subscription{C: ch, ch: ch}
	for _, t := range types {
		if t != "" {
			if s.types == nil {
				s.types = make(map[string]bool, len(types))
			}
			s.types[t] = true
		}
	}

	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Unsubscribe closes s.C. Calling it twice is a no-op.
func (h *Hub) Unsubscribe(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; !ok {
		return
	}
	delete(h.subs, s)
	close(s.ch)
}

// Emit encodes and delivers one event.
func (h *Hub) Emit(runID, typ string, data any) {
	evt := MakeEvent(runID, typ, data)

	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		if !s.wants(typ) {
			continue
		}
		select {
		case s.ch <- evt:
		default:
			s.dropped.Add(1)
		}
	}
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

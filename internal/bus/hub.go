// Package bus is the in-process reference implementation of core.Bus.
// Delivery is exactly-once per subscriber and serialized: each subscriber has
// one pump goroutine draining a buffered channel in dispatch order.
package bus

import (
	"context"
	"sync"

	"github.com/sandevgo/engage/internal/core"
	"github.com/sandevgo/engage/pkg/log"
)

const subscriberBuffer = 128

type subscription struct {
	eventType string
	source    string
	ch        chan core.Event
}

func (s *subscription) matches(ev core.Event) bool {
	return (s.eventType == "*" || s.eventType == ev.Type) &&
		(s.source == "*" || s.source == ev.Source)
}

type Hub struct {
	ctx    context.Context
	mu     sync.RWMutex
	subs   []*subscription
	wg     sync.WaitGroup
	closed bool
}

func NewHub(ctx context.Context) *Hub {
	return &Hub{ctx: ctx}
}

// Subscribe registers a handler for events matching (eventType, source).
// "*" matches any value. The handler runs on a dedicated goroutine, one event
// at a time, in dispatch order.
func (h *Hub) Subscribe(eventType, source string, handler func(core.Event)) {
	sub := &subscription{
		eventType: eventType,
		source:    source,
		ch:        make(chan core.Event, subscriberBuffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.subs = append(h.subs, sub)
	h.wg.Add(1)
	h.mu.Unlock()

	go func() {
		defer h.wg.Done()
		for ev := range sub.ch {
			handler(ev)
		}
	}()
}

// Dispatch delivers the event to every matching subscriber. A subscriber that
// cannot keep up drops the event rather than stalling the dispatcher.
func (h *Hub) Dispatch(ev core.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}

	for _, sub := range h.subs {
		if !sub.matches(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			log.FromCtx(h.ctx).Warn().
				Str("type", ev.Type).
				Str("source", ev.Source).
				Msg("subscriber queue full, dropping event")
		}
	}
}

// Close stops delivery and waits for in-flight handlers to drain.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for _, sub := range h.subs {
		close(sub.ch)
	}
	h.mu.Unlock()

	h.wg.Wait()
}

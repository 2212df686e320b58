package server

import (
	"sync"

	"github.com/existflow/irontodo/internal/logger"
	"github.com/existflow/irontodo/internal/model"
)

// subscriberBuffer is how many changes a subscriber may fall behind before it is dropped
const subscriberBuffer = 256

// Subscriber receives the changes of one owner
type Subscriber struct {
	ownerID string
	ch      chan model.Change
}

// Changes is closed when the subscriber is removed from the hub
func (s *Subscriber) Changes() <-chan model.Change {
	return s.ch
}

// Hub fans out task changes to the subscribers of each owner
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[*Subscriber]struct{}
	closed bool
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*Subscriber]struct{})}
}

// Subscribe registers a subscriber for ownerID. After Close it returns an
// already closed subscriber.
func (h *Hub) Subscribe(ownerID string) *Subscriber {
	sub := &Subscriber{ownerID: ownerID, ch: make(chan model.Change, subscriberBuffer)}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(sub.ch)
		return sub
	}
	set, ok := h.subs[ownerID]
	if !ok {
		set = make(map[*Subscriber]struct{})
		h.subs[ownerID] = set
	}
	set[sub] = struct{}{}
	return sub
}

// Unsubscribe removes sub and closes its channel. Safe to call more than once.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(sub)
}

// remove is Unsubscribe with h.mu held
func (h *Hub) remove(sub *Subscriber) {
	set, ok := h.subs[sub.ownerID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.ownerID)
	}
	close(sub.ch)
}

// Publish sends change to every subscriber of ownerID without blocking.
// A subscriber whose buffer is full is dropped.
func (h *Hub) Publish(ownerID string, change model.Change) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs[ownerID] {
		select {
		case sub.ch <- change:
		default:
			logger.Warn("Dropping slow subscriber", logger.F("owner", ownerID))
			h.remove(sub)
		}
	}
}

// Count returns the number of subscribers of ownerID
func (h *Hub) Count(ownerID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[ownerID])
}

// Close removes every subscriber
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for _, set := range h.subs {
		for sub := range set {
			close(sub.ch)
		}
	}
	h.subs = make(map[string]map[*Subscriber]struct{})
}

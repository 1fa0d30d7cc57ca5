// Package changefeed notifies subscribers when engine entities change.
//
// Subscribers register for a set of entity kinds and are called with the kind and ID
// of each changed entity, so a cache can invalidate exactly what changed instead of
// reloading everything.
package changefeed

import (
	"log/slog"
	"slices"
	"sync"
)

// EntityKind is the kind of entity that changed.
type EntityKind string

const (
	KindClaim        EntityKind = "claim"
	KindSplitRequest EntityKind = "split_request"
	KindItem         EntityKind = "item"
	KindList         EntityKind = "list"
)

// Op is what happened to the entity.
type Op string

const (
	OpCreated Op = "created"
	OpUpdated Op = "updated"
	OpDeleted Op = "deleted"
)

// Change describes one committed mutation.
type Change struct {
	Kind EntityKind
	ID   string
	Op   Op

	// ListID and ItemID locate the entity. ItemID is empty for list changes.
	ListID string
	ItemID string
}

// Publisher accepts committed changes.
type Publisher interface {
	Publish(c Change)
}

type subscription struct {
	kinds map[EntityKind]bool
	fn    func(Change)
}

// Hub fans changes out to subscribers synchronously, in subscription order.
type Hub struct {
	logger *slog.Logger

	mu   sync.RWMutex
	subs map[uint64]*subscription
	next uint64
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger: logger,
		subs:   make(map[uint64]*subscription),
	}
}

// Subscribe registers fn for changes of the given kinds. No kinds means every kind.
// The returned function removes the subscription and is safe to call more than once.
func (h *Hub) Subscribe(kinds []EntityKind, fn func(Change)) (unsubscribe func()) {
	sub := &subscription{fn: fn}
	if len(kinds) > 0 {
		sub.kinds = make(map[EntityKind]bool, len(kinds))
		for _, k := range kinds {
			sub.kinds[k] = true
		}
	}

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = sub
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// Publish delivers c to every matching subscriber. A panicking subscriber is logged
// and does not affect the others. A nil Hub drops the change.
func (h *Hub) Publish(c Change) {
	if h == nil {
		return
	}

	h.mu.RLock()
	ids := make([]uint64, 0, len(h.subs))
	for id, sub := range h.subs {
		if sub.kinds == nil || sub.kinds[c.Kind] {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	targets := make([]*subscription, len(ids))
	for i, id := range ids {
		targets[i] = h.subs[id]
	}
	h.mu.RUnlock()

	for _, sub := range targets {
		h.deliver(sub, c)
	}
}

func (h *Hub) deliver(sub *subscription, c Change) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("change subscriber panicked",
				"kind", string(c.Kind),
				"id", c.ID,
				"panic", r)
		}
	}()
	sub.fn(c)
}

// Len returns the number of active subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

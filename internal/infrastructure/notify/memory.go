package notify

import (
	"sync"

	"github.com/google/uuid"
)

// subscriberBuffer bounds each subscriber channel. A slow consumer
// drops signals instead of blocking the publisher; a dropped hint is
// harmless because the next signal triggers the same refetch.
const subscriberBuffer = 8

// Hub is the in-process broker implementation. External sources (Redis,
// webhook) publish into a Hub; usecases subscribe from it.
type Hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[uuid.UUID]map[int]chan Signal
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		subs: make(map[uuid.UUID]map[int]chan Signal),
	}
}

// Subscribe registers a subscriber for one encounter's signals.
func (h *Hub) Subscribe(encounterID uuid.UUID) (<-chan Signal, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	ch := make(chan Signal, subscriberBuffer)

	if h.subs[encounterID] == nil {
		h.subs[encounterID] = make(map[int]chan Signal)
	}
	h.subs[encounterID][id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if set, ok := h.subs[encounterID]; ok {
			if c, ok := set[id]; ok {
				delete(set, id)
				close(c)
			}
			if len(set) == 0 {
				delete(h.subs, encounterID)
			}
		}
	}
	return ch, cancel
}

// Publish delivers the signal to every subscriber of its encounter.
func (h *Hub) Publish(sig Signal) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs[sig.EncounterID] {
		select {
		case ch <- sig:
		default:
		}
	}
}

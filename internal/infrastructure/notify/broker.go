package notify

import (
	"github.com/google/uuid"
)

// Signal is a refresh trigger for one encounter. It is a
// cache-invalidation hint: the receiver discards its local view and
// refetches from the backend, it never merges (refetch-wins).
type Signal struct {
	EncounterID uuid.UUID
	Source      string
}

// Signal sources. Poll ticks and push notifications flow through the
// same type so consumers reconcile identically for either.
const (
	SourcePush    = "push"
	SourceWebhook = "webhook"
	SourcePoll    = "poll"
	SourceManual  = "manual"
)

// Broker fans signals out to per-encounter subscribers. Subscriptions
// are explicit and cancellable; there is no shared global event bus.
type Broker interface {
	// Subscribe returns a channel of signals for one encounter and a
	// cancel function releasing the subscription.
	Subscribe(encounterID uuid.UUID) (<-chan Signal, func())
	// Publish delivers a signal to the encounter's subscribers.
	Publish(sig Signal)
}

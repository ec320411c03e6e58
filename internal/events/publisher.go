// Package events defines how domain components announce state changes.
package events

import (
	"github.com/rxtech-lab/argo-paper-trading/internal/types"
)

// Publisher delivers domain events to observers. Delivery is best-effort: Publish never blocks
// on a slow observer and never reports a delivery failure to the caller.
type Publisher interface {
	Publish(event types.Event)
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(event types.Event)

// Publish calls f(event).
func (f PublisherFunc) Publish(event types.Event) {
	f(event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(types.Event) {}

// NewNopPublisher returns a Publisher that discards every event.
func NewNopPublisher() Publisher {
	return nopPublisher{}
}

// Package telemetry fans out observability events from a vehicle instance
// to any number of subscribers. It is adapted from the teacher's
// internal/eventBus.EventBus: the same subscribe/publish shape (subscriptions
// are never removed), generalized from mesh-node/route-table events to the VANET events this
// protocol produces (neighbor join/evict, route install/remove, trust
// change, attack detection, message delivery). A nil *Bus is always a
// valid, silent sink so the protocol core never depends on telemetry being
// wired up.
package telemetry

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind enumerates the events a vehicle instance can publish.
type Kind string

const (
	NeighborJoined  Kind = "NEIGHBOR_JOINED"
	NeighborEvicted Kind = "NEIGHBOR_EVICTED"
	RouteInstalled  Kind = "ROUTE_INSTALLED"
	RouteRemoved    Kind = "ROUTE_REMOVED"
	TrustChanged    Kind = "TRUST_CHANGED"
	AttackDetected  Kind = "ATTACK_DETECTED"
	MessageDelivered Kind = "MESSAGE_DELIVERED"
	MessageRejected  Kind = "MESSAGE_REJECTED"
)

// Event is a single telemetry record.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Kind      Kind      `json:"kind"`
	VehicleID string    `json:"vehicle_id"`
	PeerID    string    `json:"peer_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Trust     float64   `json:"trust,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Bus is a fan-out publish/subscribe channel set.
type Bus struct {
	mu          sync.RWMutex
	subscribers []chan Event
}

// NewBus constructs an empty telemetry bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a new observer channel. Callers must keep draining
// it; Publish never blocks on a full subscriber and drops that event for
// that subscriber instead.
func (b *Bus) Subscribe() <-chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subscribers = append(b.subscribers, ch)
	b.mu.Unlock()
	return ch
}

// Publish is a no-op on a nil bus, and otherwise fans e out to every
// subscriber without blocking.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subscribers {
		select {
		case sub <- e:
		default:
		}
	}
}

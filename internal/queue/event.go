// Package queue carries websocket pool lifecycle events over RabbitMQ.
package queue

import "time"

// PoolEventsQueue is the durable queue pool lifecycle events are routed to.
const PoolEventsQueue = "pool.events"

// PoolEventType names a pool lifecycle transition.
type PoolEventType string

const (
    PoolOpened PoolEventType = "pool.opened" // first connection joined
    PoolClosed PoolEventType = "pool.closed" // last connection left
)

// PoolEvent is published whenever a websocket pool appears or disappears.
// It carries enough to audit pool activity without querying the registry.
type PoolEvent struct {
    Type       PoolEventType `json:"type"`
    Registry   string        `json:"registry"` // protocol serving the pool, e.g. "chat"
    PoolID     string        `json:"pool_id"`
    OccurredAt string        `json:"occurred_at"` // RFC 3339, UTC
}

func newPoolEvent(t PoolEventType, registry, poolID string, at time.Time) PoolEvent {
    return PoolEvent{Type: t, Registry: registry, PoolID: poolID, OccurredAt: at.UTC().Format(time.RFC3339)}
}

package stock

import (
	"context"
	"time"

	"stockledger/internal/core/id"
)

// EventType identifies a ledger domain event.
type EventType string

const (
	EventAdjustmentRecorded EventType = "stock.adjustment.recorded"
	EventAllocationCreated  EventType = "stock.allocation.created"
	EventAllocationReleased EventType = "stock.allocation.released"
)

// Event is a domain event queued during a transactional unit and published
// only after the unit visibly commits.
type Event struct {
	ID         id.ID     `json:"id"`
	Type       EventType `json:"type"`
	TenantKey  string    `json:"tenantKey"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

// Publisher accepts a batch of domain events for asynchronous downstream
// delivery. Best-effort: a publish failure never rolls back the commit that
// produced the events.
type Publisher interface {
	PublishBatch(ctx context.Context, events []Event) error
}

// eventBuffer accumulates unpublished events during a unit. The engine
// drains it only after a successful commit signal.
type eventBuffer struct {
	pending []Event
}

func (b *eventBuffer) record(tenantKey string, eventType EventType, payload any) {
	b.pending = append(b.pending, Event{
		ID:         id.New(),
		Type:       eventType,
		TenantKey:  tenantKey,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	})
}

func (b *eventBuffer) drain() []Event {
	events := b.pending
	b.pending = nil
	return events
}

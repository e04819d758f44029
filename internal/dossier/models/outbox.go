package models

import "time"

// OutboxEntry is one domain event staged for delivery. Entries are written
// in the same transaction as the aggregate, then drained out-of-band by the
// dispatcher; delivery is at-least-once and never blocks a request.
type OutboxEntry struct {
	ID           int64       `json:"id"`
	Event        DomainEvent `json:"event"`
	CreatedAt    time.Time   `json:"created_at"`
	DispatchedAt *time.Time  `json:"dispatched_at,omitempty"`
}

package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is a durable outbound domain event. Rows are inserted inside the
// business transaction that produced them and published asynchronously by
// the dispatcher; published_at is set exactly once.
type Event struct {
	ID             uuid.UUID
	AggregateType  string
	AggregateID    string
	EventType      string
	Payload        []byte
	SequenceNumber int64
	CreatedAt      time.Time
	PublishedAt    *time.Time
	RetryCount     int
	LastError      *string
}

// IsPublished reports whether the event has been delivered to the log.
func (e *Event) IsPublished() bool {
	return e.PublishedAt != nil
}

// IsDeadLettered reports whether the event has exhausted its retries.
// Dead-lettered rows stay unpublished until an operator resets the
// retry counter.
func (e *Event) IsDeadLettered(maxRetries int) bool {
	return e.PublishedAt == nil && e.RetryCount >= maxRetries
}

// Envelope is the wire shape of every outbox payload. Consumers rely on
// these field names to route and deduplicate.
type Envelope struct {
	EventID       uuid.UUID       `json:"event_id"`
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Data          json.RawMessage `json:"data"`
}

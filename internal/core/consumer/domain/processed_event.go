package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Result records how a consumer group disposed of an event.
type Result string

const (
	ResultSuccess Result = "SUCCESS"
	ResultSkipped Result = "SKIPPED"
	ResultFailed  Result = "FAILED"
)

// ProcessedEvent is one row of the consumer dedup ledger. The primary key
// (event_id, consumer_group) makes redelivered events no-ops per group.
type ProcessedEvent struct {
	EventID       uuid.UUID
	EventType     string
	AggregateType string
	AggregateID   string
	ConsumerGroup string
	Result        Result
	ErrorMessage  *string
	ProcessedAt   time.Time
}

// NewProcessedEvent builds a dedup row recording the outcome of env for
// one consumer group.
func NewProcessedEvent(env Envelope, group string, result Result, processErr error) *ProcessedEvent {
	pe := &ProcessedEvent{
		EventID:       env.EventID,
		EventType:     env.EventType,
		AggregateType: env.AggregateType,
		AggregateID:   env.AggregateID,
		ConsumerGroup: group,
		Result:        result,
		ProcessedAt:   time.Now().UTC(),
	}
	if processErr != nil {
		msg := processErr.Error()
		pe.ErrorMessage = &msg
	}
	return pe
}

var (
	// ErrMissingEventID marks a message whose envelope carries no usable
	// event identity; such messages cannot be deduplicated.
	ErrMissingEventID = errors.New("event envelope has no event id")
	// ErrMissingEventType marks a message with no routable type.
	ErrMissingEventType = errors.New("event envelope has no event type")
)

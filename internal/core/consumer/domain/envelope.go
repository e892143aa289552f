package domain

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Envelope is the consumed view of an event. Data is left raw for the
// handler bound to EventType to decode.
type Envelope struct {
	EventID       uuid.UUID
	EventType     string
	AggregateType string
	AggregateID   string
	Data          json.RawMessage
}

// ParseEnvelope extracts the envelope from a message payload. It reads
// the canonical field names first and falls back to the short forms
// (id, type) some producers use.
func ParseEnvelope(payload []byte) (Envelope, error) {
	var raw struct {
		EventID       uuid.UUID       `json:"event_id"`
		ID            uuid.UUID       `json:"id"`
		EventType     string          `json:"event_type"`
		Type          string          `json:"type"`
		AggregateType string          `json:"aggregate_type"`
		AggregateID   string          `json:"aggregate_id"`
		Data          json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Envelope{}, fmt.Errorf("failed to parse event envelope: %w", err)
	}

	env := Envelope{
		EventID:       raw.EventID,
		EventType:     raw.EventType,
		AggregateType: raw.AggregateType,
		AggregateID:   raw.AggregateID,
		Data:          raw.Data,
	}
	if env.EventID == uuid.Nil {
		env.EventID = raw.ID
	}
	if env.EventType == "" {
		env.EventType = raw.Type
	}

	if env.EventID == uuid.Nil {
		return Envelope{}, ErrMissingEventID
	}
	if env.EventType == "" {
		return Envelope{}, ErrMissingEventType
	}
	return env, nil
}

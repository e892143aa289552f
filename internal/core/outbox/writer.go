package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mkravets/clearway/internal/core/outbox/domain"
	"github.com/mkravets/clearway/internal/core/outbox/repository"
)

// Writer appends domain events to the transactional outbox. It takes the
// caller's pgx.Tx explicitly: if the surrounding business transaction
// rolls back, the event row disappears with it.
type Writer struct {
	repo repository.OutboxRepository
}

// NewWriter creates a new outbox writer
func NewWriter(repo repository.OutboxRepository) *Writer {
	return &Writer{repo: repo}
}

// Append wraps data in the standard envelope and inserts the event row.
// The envelope's event_id is the outbox row id, so consumer-side dedup
// keys off the same identity the dispatcher delivers.
func (w *Writer) Append(ctx context.Context, tx pgx.Tx, aggregateType, aggregateID, eventType string, data any) (uuid.UUID, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal event data: %w", err)
	}

	now := time.Now().UTC()
	id := uuid.New()

	payload, err := json.Marshal(domain.Envelope{
		EventID:       id,
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		OccurredAt:    now,
		Data:          raw,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	event := &domain.Event{
		ID:            id,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     now,
	}

	if err := w.repo.Append(ctx, tx, event); err != nil {
		return uuid.Nil, err
	}

	return id, nil
}

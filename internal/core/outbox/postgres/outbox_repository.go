package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkravets/clearway/internal/core/outbox/domain"
)

// OutboxRepository implements the repository interface using PostgreSQL
type OutboxRepository struct {
	pool *pgxpool.Pool
}

// NewOutboxRepository creates a new PostgreSQL outbox repository
func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

// Append inserts an event row inside the caller's transaction.
// sequence_number is assigned by the store.
func (r *OutboxRepository) Append(ctx context.Context, tx pgx.Tx, event *domain.Event) error {
	query := `
		INSERT INTO outbox_events (id, aggregate_type, aggregate_id, event_type, payload, created_at, retry_count)
		VALUES ($1, $2, $3, $4, $5, $6, 0)
		RETURNING sequence_number
	`

	err := tx.QueryRow(ctx, query,
		event.ID,
		event.AggregateType,
		event.AggregateID,
		event.EventType,
		event.Payload,
		event.CreatedAt,
	).Scan(&event.SequenceNumber)
	if err != nil {
		return fmt.Errorf("failed to append outbox event: %w", err)
	}

	return nil
}

// ClaimUnpublished locks up to limit unpublished rows in sequence order,
// skipping rows held by concurrent dispatchers. sequence_number is
// store-assigned and strictly increasing, so unlike created_at it never
// ties across rows written in the same instant.
func (r *OutboxRepository) ClaimUnpublished(ctx context.Context, tx pgx.Tx, limit int) ([]*domain.Event, error) {
	query := `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, sequence_number, created_at, published_at, retry_count, last_error
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY sequence_number ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`

	rows, err := tx.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim outbox events: %w", err)
	}
	defer rows.Close()

	var events []*domain.Event
	for rows.Next() {
		var e domain.Event
		err := rows.Scan(
			&e.ID,
			&e.AggregateType,
			&e.AggregateID,
			&e.EventType,
			&e.Payload,
			&e.SequenceNumber,
			&e.CreatedAt,
			&e.PublishedAt,
			&e.RetryCount,
			&e.LastError,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox events: %w", err)
	}

	return events, nil
}

// MarkPublished sets published_at exactly once and clears last_error.
func (r *OutboxRepository) MarkPublished(ctx context.Context, tx pgx.Tx, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE outbox_events
		SET published_at = $2, last_error = NULL
		WHERE id = $1 AND published_at IS NULL
	`

	if _, err := tx.Exec(ctx, query, id, at); err != nil {
		return fmt.Errorf("failed to mark outbox event published: %w", err)
	}
	return nil
}

// MarkFailed increments retry_count and records the delivery error.
func (r *OutboxRepository) MarkFailed(ctx context.Context, tx pgx.Tx, id uuid.UUID, deliveryErr string) error {
	query := `
		UPDATE outbox_events
		SET retry_count = retry_count + 1, last_error = $2
		WHERE id = $1 AND published_at IS NULL
	`

	if _, err := tx.Exec(ctx, query, id, deliveryErr); err != nil {
		return fmt.Errorf("failed to mark outbox event failed: %w", err)
	}
	return nil
}

// CountUnpublished returns the pending backlog size.
func (r *OutboxRepository) CountUnpublished(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_events WHERE published_at IS NULL`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unpublished events: %w", err)
	}
	return count, nil
}

// DeletePublishedBefore reaps published rows past the retention horizon.
func (r *OutboxRepository) DeletePublishedBefore(ctx context.Context, horizon time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM outbox_events WHERE published_at IS NOT NULL AND published_at < $1`, horizon)
	if err != nil {
		return 0, fmt.Errorf("failed to reap outbox events: %w", err)
	}
	return tag.RowsAffected(), nil
}

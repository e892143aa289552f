package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mkravets/clearway/internal/core/outbox/domain"
)

// OutboxRepository defines persistence for outbox events. Append joins
// the caller's business transaction; the claim/mark methods run inside
// the dispatcher's own short transaction.
type OutboxRepository interface {
	// Append inserts an event row. It takes a pgx.Tx so the row commits
	// or rolls back together with the business write that produced it.
	Append(ctx context.Context, tx pgx.Tx, event *domain.Event) error

	// ClaimUnpublished selects up to limit unpublished events in
	// sequence order, locking the rows and skipping rows locked by peer
	// dispatchers. The lock holds until tx commits.
	ClaimUnpublished(ctx context.Context, tx pgx.Tx, limit int) ([]*domain.Event, error)

	// MarkPublished sets published_at and clears last_error.
	MarkPublished(ctx context.Context, tx pgx.Tx, id uuid.UUID, at time.Time) error

	// MarkFailed increments retry_count and records the delivery error,
	// leaving the row unpublished for the next poll.
	MarkFailed(ctx context.Context, tx pgx.Tx, id uuid.UUID, deliveryErr string) error

	// CountUnpublished returns the size of the pending backlog.
	CountUnpublished(ctx context.Context) (int, error)

	// DeletePublishedBefore reaps published rows older than the horizon.
	DeletePublishedBefore(ctx context.Context, horizon time.Time) (int64, error)
}

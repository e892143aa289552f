package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkravets/clearway/internal/core/consumer/domain"
	"github.com/mkravets/clearway/internal/core/consumer/repository"
)

// ProcessedEventRepository implements repository.ProcessedEventRepository
// backed by PostgreSQL.
type ProcessedEventRepository struct {
	pool *pgxpool.Pool
}

// NewProcessedEventRepository creates a new processed-event repository
func NewProcessedEventRepository(pool *pgxpool.Pool) repository.ProcessedEventRepository {
	return &ProcessedEventRepository{pool: pool}
}

func (r *ProcessedEventRepository) Exists(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, group string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM processed_events
			WHERE event_id = $1 AND consumer_group = $2
		)`

	var exists bool
	if err := tx.QueryRow(ctx, query, eventID, group).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check processed event: %w", err)
	}
	return exists, nil
}

func (r *ProcessedEventRepository) Insert(ctx context.Context, tx pgx.Tx, pe *domain.ProcessedEvent) error {
	if _, err := tx.Exec(ctx, insertQuery, insertArgs(pe)...); err != nil {
		return fmt.Errorf("failed to insert processed event: %w", err)
	}
	return nil
}

// Record writes the row on its own connection, outside any caller
// transaction. ON CONFLICT DO NOTHING keeps a race between replicas of
// the same group harmless.
func (r *ProcessedEventRepository) Record(ctx context.Context, pe *domain.ProcessedEvent) error {
	if _, err := r.pool.Exec(ctx, insertQuery+" ON CONFLICT (event_id, consumer_group) DO NOTHING", insertArgs(pe)...); err != nil {
		return fmt.Errorf("failed to record processed event: %w", err)
	}
	return nil
}

const insertQuery = `
	INSERT INTO processed_events (event_id, event_type, aggregate_type, aggregate_id, consumer_group, processed_at, result, error_message)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

func insertArgs(pe *domain.ProcessedEvent) []any {
	return []any{
		pe.EventID,
		pe.EventType,
		pe.AggregateType,
		pe.AggregateID,
		pe.ConsumerGroup,
		pe.ProcessedAt,
		string(pe.Result),
		pe.ErrorMessage,
	}
}

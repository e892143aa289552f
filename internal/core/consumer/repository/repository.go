package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mkravets/clearway/internal/core/consumer/domain"
)

// ProcessedEventRepository persists the consumer dedup ledger. Exists and
// Insert run inside the processing transaction; Record writes on its own
// connection so a FAILED row survives the handler's rollback.
type ProcessedEventRepository interface {
	Exists(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, group string) (bool, error)
	Insert(ctx context.Context, tx pgx.Tx, pe *domain.ProcessedEvent) error
	Record(ctx context.Context, pe *domain.ProcessedEvent) error
}

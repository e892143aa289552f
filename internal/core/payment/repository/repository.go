package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mkravets/clearway/internal/core/payment/domain"
)

// PaymentRepository defines the interface for payment persistence.
// Mutations take an explicit pgx.Tx so they join the caller's atomic
// scope (state transition + ledger posting + outbox append commit
// together or not at all).
type PaymentRepository interface {
	// CreatePayment inserts a new payment row. Returns
	// domain.ErrDuplicateIdempotencyKey when the unique constraint on
	// idempotency_key fires.
	CreatePayment(ctx context.Context, tx pgx.Tx, p domain.Payment) error

	GetPayment(ctx context.Context, id uuid.UUID) (domain.Payment, error)

	// GetPaymentForUpdate loads the payment inside tx with a row lock,
	// serializing concurrent transitions on the same payment.
	GetPaymentForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (domain.Payment, error)

	GetPaymentByIdempotencyKey(ctx context.Context, key string) (domain.Payment, error)

	// UpdatePayment persists a transitioned snapshot (status,
	// failure_reason, ledger_transaction_id, updated_at).
	UpdatePayment(ctx context.Context, tx pgx.Tx, p domain.Payment) error
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mkravets/clearway/internal/core/payment/domain"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations
const uniqueViolation = "23505"

const paymentColumns = `id, amount, currency, from_account_id, to_account_id, status, failure_reason, idempotency_key, ledger_transaction_id, created_at, updated_at`

// PaymentRepository implements the repository interface using PostgreSQL
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository creates a new PostgreSQL payment repository
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// CreatePayment inserts a new payment row inside the caller's transaction.
func (r *PaymentRepository) CreatePayment(ctx context.Context, tx pgx.Tx, p domain.Payment) error {
	query := `
		INSERT INTO payments (id, amount, currency, from_account_id, to_account_id, status, failure_reason, idempotency_key, ledger_transaction_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := tx.Exec(ctx, query,
		p.ID,
		p.Amount.String(),
		string(p.Currency),
		p.FromAccountID,
		p.ToAccountID,
		string(p.Status),
		p.FailureReason,
		p.IdempotencyKey,
		p.LedgerTransactionID,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}

	return nil
}

// GetPayment retrieves a payment by ID
func (r *PaymentRepository) GetPayment(ctx context.Context, id uuid.UUID) (domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return scanPayment(r.pool.QueryRow(ctx, query, id))
}

// GetPaymentForUpdate loads the payment with a row lock inside tx.
func (r *PaymentRepository) GetPaymentForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 FOR UPDATE`
	return scanPayment(tx.QueryRow(ctx, query, id))
}

// GetPaymentByIdempotencyKey retrieves a payment by its dedup key
func (r *PaymentRepository) GetPaymentByIdempotencyKey(ctx context.Context, key string) (domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE idempotency_key = $1`
	return scanPayment(r.pool.QueryRow(ctx, query, key))
}

// UpdatePayment persists a transitioned snapshot inside the caller's
// transaction. The check constraint on (status, ledger_transaction_id)
// and the unique index on ledger_transaction_id reject partial or
// double-bound states at the store level.
func (r *PaymentRepository) UpdatePayment(ctx context.Context, tx pgx.Tx, p domain.Payment) error {
	query := `
		UPDATE payments
		SET status = $2, failure_reason = $3, ledger_transaction_id = $4, updated_at = $5
		WHERE id = $1
	`

	tag, err := tx.Exec(ctx, query,
		p.ID,
		string(p.Status),
		p.FailureReason,
		p.LedgerTransactionID,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPaymentNotFound
	}

	return nil
}

func scanPayment(row pgx.Row) (domain.Payment, error) {
	var p domain.Payment
	var amountStr string

	err := row.Scan(
		&p.ID,
		&amountStr,
		&p.Currency,
		&p.FromAccountID,
		&p.ToAccountID,
		&p.Status,
		&p.FailureReason,
		&p.IdempotencyKey,
		&p.LedgerTransactionID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Payment{}, domain.ErrPaymentNotFound
		}
		return domain.Payment{}, fmt.Errorf("failed to scan payment: %w", err)
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return domain.Payment{}, fmt.Errorf("failed to parse amount %q: %w", amountStr, err)
	}
	p.Amount = amount

	return p, nil
}

package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mkravets/clearway/internal/core/ledger/domain"
)

// LedgerRepository defines the interface for ledger persistence operations.
// Methods that must be atomic with other business writes take an explicit
// pgx.Tx; read paths run on the pool.
type LedgerRepository interface {
	// Account operations
	CreateAccount(ctx context.Context, account *domain.Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetAccountByNumber(ctx context.Context, number string) (*domain.Account, error)
	// MissingAccounts returns the subset of ids that do not exist,
	// checked inside the given transaction.
	MissingAccounts(ctx context.Context, tx pgx.Tx, ids []uuid.UUID) ([]uuid.UUID, error)

	// Transaction operations (entries are immutable; writes are insert-only)
	CreateTransaction(ctx context.Context, tx pgx.Tx, transaction *domain.Transaction) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	GetEntriesByTransaction(ctx context.Context, transactionID uuid.UUID) ([]*domain.Entry, error)
	GetEntriesByAccount(ctx context.Context, accountID uuid.UUID) ([]*domain.Entry, error)

	// BalanceOf derives the signed balance of an account from its entries.
	BalanceOf(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)
}

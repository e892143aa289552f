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

	"github.com/mkravets/clearway/internal/core/ledger/domain"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations
const uniqueViolation = "23505"

// LedgerRepository implements the repository interface using PostgreSQL
type LedgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository creates a new PostgreSQL ledger repository
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

// Account operations

// CreateAccount creates a new account in the database
func (r *LedgerRepository) CreateAccount(ctx context.Context, account *domain.Account) error {
	if err := account.Validate(); err != nil {
		return fmt.Errorf("invalid account: %w", err)
	}

	query := `
		INSERT INTO accounts (id, account_number, type, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.pool.Exec(ctx, query,
		account.ID,
		account.AccountNumber,
		string(account.Type),
		account.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrDuplicateAccount
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// GetAccount retrieves an account by ID
func (r *LedgerRepository) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `
		SELECT id, account_number, type, created_at
		FROM accounts
		WHERE id = $1
	`

	var account domain.Account
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&account.ID,
		&account.AccountNumber,
		&account.Type,
		&account.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &account, nil
}

// GetAccountByNumber retrieves an account by its unique account number
func (r *LedgerRepository) GetAccountByNumber(ctx context.Context, number string) (*domain.Account, error) {
	query := `
		SELECT id, account_number, type, created_at
		FROM accounts
		WHERE account_number = $1
	`

	var account domain.Account
	err := r.pool.QueryRow(ctx, query, number).Scan(
		&account.ID,
		&account.AccountNumber,
		&account.Type,
		&account.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &account, nil
}

// MissingAccounts returns the subset of ids that do not exist in the
// accounts table, checked inside the caller's transaction.
func (r *LedgerRepository) MissingAccounts(ctx context.Context, tx pgx.Tx, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT id FROM accounts WHERE id = ANY($1)`

	rows, err := tx.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	found := make(map[uuid.UUID]bool, len(ids))
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan account id: %w", err)
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	var missing []uuid.UUID
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// Transaction operations

// CreateTransaction inserts a transaction row and all of its entries
// inside the caller's transaction. The deferred balance trigger re-checks
// debit/credit equality when that transaction commits.
func (r *LedgerRepository) CreateTransaction(ctx context.Context, tx pgx.Tx, transaction *domain.Transaction) error {
	txQuery := `
		INSERT INTO transactions (id, description, created_at)
		VALUES ($1, $2, $3)
	`

	_, err := tx.Exec(ctx, txQuery,
		transaction.ID,
		transaction.Description,
		transaction.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	entryQuery := `
		INSERT INTO ledger_entries (id, transaction_id, account_id, amount, entry_type, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	for _, entry := range transaction.Entries {
		if err := entry.Validate(); err != nil {
			return fmt.Errorf("invalid entry: %w", err)
		}

		_, err := tx.Exec(ctx, entryQuery,
			entry.ID,
			entry.TransactionID,
			entry.AccountID,
			entry.Amount.String(),
			string(entry.EntryType),
			entry.Description,
			entry.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert entry: %w", err)
		}
	}

	return nil
}

// GetTransaction retrieves a transaction by ID with its entries
func (r *LedgerRepository) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `
		SELECT id, description, created_at
		FROM transactions
		WHERE id = $1
	`

	var transaction domain.Transaction
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&transaction.ID,
		&transaction.Description,
		&transaction.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	entries, err := r.GetEntriesByTransaction(ctx, transaction.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get entries: %w", err)
	}
	transaction.Entries = entries

	return &transaction, nil
}

// GetEntriesByTransaction retrieves all entries for a transaction
func (r *LedgerRepository) GetEntriesByTransaction(ctx context.Context, transactionID uuid.UUID) ([]*domain.Entry, error) {
	query := `
		SELECT id, transaction_id, account_id, amount, entry_type, description, sequence_number, created_at
		FROM ledger_entries
		WHERE transaction_id = $1
		ORDER BY sequence_number ASC
	`

	return r.queryEntries(ctx, query, transactionID)
}

// GetEntriesByAccount retrieves all entries for an account
func (r *LedgerRepository) GetEntriesByAccount(ctx context.Context, accountID uuid.UUID) ([]*domain.Entry, error) {
	query := `
		SELECT id, transaction_id, account_id, amount, entry_type, description, sequence_number, created_at
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY sequence_number ASC
	`

	return r.queryEntries(ctx, query, accountID)
}

func (r *LedgerRepository) queryEntries(ctx context.Context, query string, arg any) ([]*domain.Entry, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}

	return entries, nil
}

func scanEntry(row pgx.Row) (*domain.Entry, error) {
	var entry domain.Entry
	var amountStr string

	err := row.Scan(
		&entry.ID,
		&entry.TransactionID,
		&entry.AccountID,
		&amountStr,
		&entry.EntryType,
		&entry.Description,
		&entry.SequenceNumber,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan entry: %w", err)
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount %q: %w", amountStr, err)
	}
	entry.Amount = amount

	return &entry, nil
}

// BalanceOf derives the account balance from its entries. The sign
// convention follows the account type: assets grow on debit, liabilities
// and equity grow on credit. Balances are never stored.
func (r *LedgerRepository) BalanceOf(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	query := `
		SELECT a.type,
			COALESCE(SUM(
				CASE WHEN e.entry_type = 'DEBIT' THEN e.amount ELSE -e.amount END
			), 0)::text
		FROM accounts a
		LEFT JOIN ledger_entries e ON e.account_id = a.id
		WHERE a.id = $1
		GROUP BY a.type
	`

	var accountType domain.AccountType
	var debitNetStr string
	err := r.pool.QueryRow(ctx, query, accountID).Scan(&accountType, &debitNetStr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, domain.ErrAccountNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to calculate balance: %w", err)
	}

	debitNet, err := decimal.NewFromString(debitNetStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse balance %q: %w", debitNetStr, err)
	}

	if accountType.DebitSign() < 0 {
		return debitNet.Neg(), nil
	}
	return debitNet, nil
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mkravets/clearway/internal/core/ledger/domain"
	"github.com/mkravets/clearway/internal/core/ledger/repository"
	"github.com/mkravets/clearway/pkg/logger"
)

// Posting describes a balanced ledger posting: a description plus the
// debit and credit sides.
type Posting struct {
	Description string
	Debits      []domain.EntryInput
	Credits     []domain.EntryInput
}

// Service is the ledger engine. It validates postings before touching the
// store; the store's deferred constraint re-checks balance at commit as a
// final guard.
type Service struct {
	repo repository.LedgerRepository
	log  *logger.Logger
}

// NewService creates a new ledger service
func NewService(repo repository.LedgerRepository, log *logger.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.WithField("component", "ledger"),
	}
}

// CreateAccount validates and persists a new account.
func (s *Service) CreateAccount(ctx context.Context, number string, accountType domain.AccountType) (*domain.Account, error) {
	account := &domain.Account{
		ID:            uuid.New(),
		AccountNumber: number,
		Type:          accountType,
		CreatedAt:     time.Now().UTC(),
	}

	if err := account.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	s.log.Info("account created", "account_id", account.ID, "account_number", number, "type", accountType)
	return account, nil
}

// GetAccount retrieves an account by id.
func (s *Service) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return s.repo.GetAccount(ctx, id)
}

// GetTransaction retrieves a ledger transaction with its entries.
func (s *Service) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

// BalanceOf derives the current balance of an account from its entries.
func (s *Service) BalanceOf(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	return s.repo.BalanceOf(ctx, accountID)
}

// PostTransaction validates and posts a balanced debit/credit batch inside
// the caller's store transaction. Returns the new ledger transaction id.
//
// Validation order: both sides non-empty, every amount strictly positive,
// exact decimal balance, then referenced accounts checked against the
// store within tx. Entries are append-only; there is no update or delete.
func (s *Service) PostTransaction(ctx context.Context, tx pgx.Tx, posting Posting) (uuid.UUID, error) {
	if err := validatePosting(posting); err != nil {
		return uuid.Nil, err
	}

	ids := accountIDs(posting)
	missing, err := s.repo.MissingAccounts(ctx, tx, ids)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to verify accounts: %w", err)
	}
	if len(missing) > 0 {
		return uuid.Nil, fmt.Errorf("%w: %v", domain.ErrUnknownAccount, missing)
	}

	now := time.Now().UTC()
	transaction := &domain.Transaction{
		ID:          uuid.New(),
		Description: posting.Description,
		CreatedAt:   now,
	}

	for _, d := range posting.Debits {
		transaction.Entries = append(transaction.Entries, newEntry(transaction.ID, d, domain.Debit, now))
	}
	for _, c := range posting.Credits {
		transaction.Entries = append(transaction.Entries, newEntry(transaction.ID, c, domain.Credit, now))
	}

	if err := s.repo.CreateTransaction(ctx, tx, transaction); err != nil {
		return uuid.Nil, err
	}

	return transaction.ID, nil
}

func newEntry(transactionID uuid.UUID, in domain.EntryInput, entryType domain.EntryType, now time.Time) *domain.Entry {
	return &domain.Entry{
		ID:            uuid.New(),
		TransactionID: transactionID,
		AccountID:     in.AccountID,
		Amount:        in.Amount,
		EntryType:     entryType,
		Description:   in.Description,
		CreatedAt:     now,
	}
}

func validatePosting(posting Posting) error {
	if len(posting.Debits) == 0 || len(posting.Credits) == 0 {
		return domain.ErrEmptyEntrySide
	}

	debitTotal := decimal.Zero
	for _, d := range posting.Debits {
		if !d.Amount.IsPositive() {
			return domain.ErrNonPositiveAmount
		}
		debitTotal = debitTotal.Add(d.Amount)
	}

	creditTotal := decimal.Zero
	for _, c := range posting.Credits {
		if !c.Amount.IsPositive() {
			return domain.ErrNonPositiveAmount
		}
		creditTotal = creditTotal.Add(c.Amount)
	}

	if !debitTotal.Equal(creditTotal) {
		return fmt.Errorf("%w: debits %s credits %s", domain.ErrUnbalanced, debitTotal, creditTotal)
	}

	return nil
}

func accountIDs(posting Posting) []uuid.UUID {
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, e := range posting.Debits {
		if !seen[e.AccountID] {
			seen[e.AccountID] = true
			ids = append(ids, e.AccountID)
		}
	}
	for _, e := range posting.Credits {
		if !seen[e.AccountID] {
			seen[e.AccountID] = true
			ids = append(ids, e.AccountID)
		}
	}
	return ids
}

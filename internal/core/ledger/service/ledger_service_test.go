package service_test

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mkravets/clearway/internal/core/ledger/domain"
	"github.com/mkravets/clearway/internal/core/ledger/service"
	"github.com/mkravets/clearway/pkg/logger"
)

// MockLedgerRepository is a mock implementation of LedgerRepository
type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) CreateAccount(ctx context.Context, account *domain.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockLedgerRepository) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockLedgerRepository) GetAccountByNumber(ctx context.Context, number string) (*domain.Account, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockLedgerRepository) MissingAccounts(ctx context.Context, tx pgx.Tx, ids []uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, tx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockLedgerRepository) CreateTransaction(ctx context.Context, tx pgx.Tx, transaction *domain.Transaction) error {
	args := m.Called(ctx, tx, transaction)
	return args.Error(0)
}

func (m *MockLedgerRepository) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockLedgerRepository) GetEntriesByTransaction(ctx context.Context, transactionID uuid.UUID) ([]*domain.Entry, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Entry), args.Error(1)
}

func (m *MockLedgerRepository) GetEntriesByAccount(ctx context.Context, accountID uuid.UUID) ([]*domain.Entry, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Entry), args.Error(1)
}

func (m *MockLedgerRepository) BalanceOf(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func testLogger() *logger.Logger {
	return logger.New("test", io.Discard)
}

func entry(accountID uuid.UUID, amount string) domain.EntryInput {
	return domain.EntryInput{
		AccountID: accountID,
		Amount:    decimal.RequireFromString(amount),
	}
}

func TestPostTransaction_Validation(t *testing.T) {
	ctx := context.Background()
	debitAccount := uuid.New()
	creditAccount := uuid.New()

	tests := []struct {
		name    string
		posting service.Posting
		wantErr error
	}{
		{
			name: "empty debit side",
			posting: service.Posting{
				Description: "test",
				Credits:     []domain.EntryInput{entry(creditAccount, "10")},
			},
			wantErr: domain.ErrEmptyEntrySide,
		},
		{
			name: "empty credit side",
			posting: service.Posting{
				Description: "test",
				Debits:      []domain.EntryInput{entry(debitAccount, "10")},
			},
			wantErr: domain.ErrEmptyEntrySide,
		},
		{
			name: "non-positive amount",
			posting: service.Posting{
				Description: "test",
				Debits:      []domain.EntryInput{entry(debitAccount, "0")},
				Credits:     []domain.EntryInput{entry(creditAccount, "0")},
			},
			wantErr: domain.ErrNonPositiveAmount,
		},
		{
			name: "unbalanced posting",
			posting: service.Posting{
				Description: "test",
				Debits:      []domain.EntryInput{entry(debitAccount, "10.00")},
				Credits:     []domain.EntryInput{entry(creditAccount, "9.99")},
			},
			wantErr: domain.ErrUnbalanced,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockLedgerRepository)
			svc := service.NewService(repo, testLogger())

			_, err := svc.PostTransaction(ctx, nil, tt.posting)
			assert.ErrorIs(t, err, tt.wantErr)

			// Validation failures never touch the store.
			repo.AssertNotCalled(t, "CreateTransaction", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestPostTransaction_UnknownAccount(t *testing.T) {
	ctx := context.Background()
	debitAccount := uuid.New()
	creditAccount := uuid.New()

	repo := new(MockLedgerRepository)
	repo.On("MissingAccounts", ctx, mock.Anything, mock.Anything).Return([]uuid.UUID{creditAccount}, nil)

	svc := service.NewService(repo, testLogger())

	_, err := svc.PostTransaction(ctx, nil, service.Posting{
		Description: "test",
		Debits:      []domain.EntryInput{entry(debitAccount, "10")},
		Credits:     []domain.EntryInput{entry(creditAccount, "10")},
	})
	assert.ErrorIs(t, err, domain.ErrUnknownAccount)
	repo.AssertNotCalled(t, "CreateTransaction", mock.Anything, mock.Anything, mock.Anything)
}

func TestPostTransaction_Success(t *testing.T) {
	ctx := context.Background()
	debitAccount := uuid.New()
	creditA := uuid.New()
	creditB := uuid.New()

	repo := new(MockLedgerRepository)
	repo.On("MissingAccounts", ctx, mock.Anything, mock.Anything).Return([]uuid.UUID{}, nil)

	var captured *domain.Transaction
	repo.On("CreateTransaction", ctx, mock.Anything, mock.AnythingOfType("*domain.Transaction")).
		Run(func(args mock.Arguments) {
			captured = args.Get(2).(*domain.Transaction)
		}).
		Return(nil)

	svc := service.NewService(repo, testLogger())

	txID, err := svc.PostTransaction(ctx, nil, service.Posting{
		Description: "split posting",
		Debits:      []domain.EntryInput{entry(debitAccount, "10.00")},
		Credits:     []domain.EntryInput{entry(creditA, "7.50"), entry(creditB, "2.50")},
	})
	require.NoError(t, err)
	require.NotNil(t, captured)
	assert.Equal(t, txID, captured.ID)
	assert.Len(t, captured.Entries, 3)
	assert.True(t, captured.IsBalanced())

	debits := 0
	credits := 0
	for _, e := range captured.Entries {
		switch e.EntryType {
		case domain.Debit:
			debits++
		case domain.Credit:
			credits++
		}
		assert.Equal(t, txID, e.TransactionID)
	}
	assert.Equal(t, 1, debits)
	assert.Equal(t, 2, credits)
}

func TestCreateAccount_Validation(t *testing.T) {
	ctx := context.Background()
	repo := new(MockLedgerRepository)
	svc := service.NewService(repo, testLogger())

	_, err := svc.CreateAccount(ctx, "", domain.AccountTypeAsset)
	assert.ErrorIs(t, err, domain.ErrAccountNumberRequired)

	_, err = svc.CreateAccount(ctx, "ACC-1", domain.AccountType("BOGUS"))
	assert.ErrorIs(t, err, domain.ErrInvalidAccountType)

	repo.AssertNotCalled(t, "CreateAccount", mock.Anything, mock.Anything)
}

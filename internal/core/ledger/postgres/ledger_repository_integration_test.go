//go:build integration

package postgres_test

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkravets/clearway/internal/core/ledger/domain"
	ledgerpg "github.com/mkravets/clearway/internal/core/ledger/postgres"
	"github.com/mkravets/clearway/internal/core/ledger/service"
	infrapg "github.com/mkravets/clearway/internal/infra/postgres"
	"github.com/mkravets/clearway/pkg/logger"
	"github.com/mkravets/clearway/testutil/testdb"
)

var testDB *testdb.TestDB

func TestMain(m *testing.M) {
	ctx := context.Background()

	var err error
	testDB, err = testdb.NewTestDB(ctx)
	if err != nil {
		panic("failed to create test database: " + err.Error())
	}

	code := m.Run()

	testDB.Close(ctx)
	if code != 0 {
		panic("tests failed")
	}
}

func setupTest(t *testing.T) (*service.Service, *ledgerpg.LedgerRepository, context.Context) {
	ctx := context.Background()
	require.NoError(t, testDB.Reset(ctx))

	repo := ledgerpg.NewLedgerRepository(testDB.Pool)
	svc := service.NewService(repo, logger.New("test", io.Discard))
	return svc, repo, ctx
}

func createAccount(t *testing.T, svc *service.Service, ctx context.Context, number string, accountType domain.AccountType) *domain.Account {
	t.Helper()
	account, err := svc.CreateAccount(ctx, number, accountType)
	require.NoError(t, err)
	return account
}

func TestCreateAccount_DuplicateNumber(t *testing.T) {
	svc, _, ctx := setupTest(t)

	createAccount(t, svc, ctx, "CASH-1", domain.AccountTypeAsset)

	_, err := svc.CreateAccount(ctx, "CASH-1", domain.AccountTypeLiability)
	assert.ErrorIs(t, err, domain.ErrDuplicateAccount)
}

func TestGetAccountByNumber(t *testing.T) {
	_, repo, ctx := setupTest(t)
	svc := service.NewService(repo, logger.New("test", io.Discard))

	created := createAccount(t, svc, ctx, "CASH-1", domain.AccountTypeAsset)

	got, err := repo.GetAccountByNumber(ctx, "CASH-1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = repo.GetAccountByNumber(ctx, "MISSING")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestPostTransaction_RoundTrip(t *testing.T) {
	svc, repo, ctx := setupTest(t)

	cash := createAccount(t, svc, ctx, "CASH-1", domain.AccountTypeAsset)
	payable := createAccount(t, svc, ctx, "PAY-1", domain.AccountTypeLiability)

	var txID uuid.UUID
	err := infrapg.WithTx(ctx, testDB.Pool, func(tx pgx.Tx) error {
		var err error
		txID, err = svc.PostTransaction(ctx, tx, service.Posting{
			Description: "invoice settlement",
			Debits:      []domain.EntryInput{{AccountID: cash.ID, Amount: decimal.RequireFromString("125.7500")}},
			Credits:     []domain.EntryInput{{AccountID: payable.ID, Amount: decimal.RequireFromString("125.7500")}},
		})
		return err
	})
	require.NoError(t, err)

	got, err := repo.GetTransaction(ctx, txID)
	require.NoError(t, err)
	assert.Equal(t, "invoice settlement", got.Description)
	require.Len(t, got.Entries, 2)
	assert.True(t, got.IsBalanced())

	// Sequence numbers are assigned in insert order.
	assert.Less(t, got.Entries[0].SequenceNumber, got.Entries[1].SequenceNumber)
}

func TestPostTransaction_UnknownAccountRollsBack(t *testing.T) {
	svc, repo, ctx := setupTest(t)

	cash := createAccount(t, svc, ctx, "CASH-1", domain.AccountTypeAsset)
	ghost := uuid.New()

	err := infrapg.WithTx(ctx, testDB.Pool, func(tx pgx.Tx) error {
		_, err := svc.PostTransaction(ctx, tx, service.Posting{
			Description: "bad posting",
			Debits:      []domain.EntryInput{{AccountID: cash.ID, Amount: decimal.RequireFromString("10")}},
			Credits:     []domain.EntryInput{{AccountID: ghost, Amount: decimal.RequireFromString("10")}},
		})
		return err
	})
	assert.ErrorIs(t, err, domain.ErrUnknownAccount)

	entries, err := repo.GetEntriesByAccount(ctx, cash.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUnbalancedInsertRejectedAtCommit(t *testing.T) {
	svc, _, ctx := setupTest(t)

	cash := createAccount(t, svc, ctx, "CASH-1", domain.AccountTypeAsset)
	payable := createAccount(t, svc, ctx, "PAY-1", domain.AccountTypeLiability)

	// Bypass service validation and insert an unbalanced pair directly.
	// The deferred constraint trigger must reject the commit.
	err := infrapg.WithTx(ctx, testDB.Pool, func(tx pgx.Tx) error {
		txID := uuid.New()
		if _, err := tx.Exec(ctx,
			`INSERT INTO transactions (id, description) VALUES ($1, 'unbalanced')`, txID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO ledger_entries (id, transaction_id, account_id, amount, entry_type)
			 VALUES ($1, $2, $3, 10.00, 'DEBIT')`, uuid.New(), txID, cash.ID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO ledger_entries (id, transaction_id, account_id, amount, entry_type)
			 VALUES ($1, $2, $3, 9.00, 'CREDIT')`, uuid.New(), txID, payable.ID)
		return err
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unbalanced")
}

func TestLedgerEntriesAreImmutable(t *testing.T) {
	svc, repo, ctx := setupTest(t)

	cash := createAccount(t, svc, ctx, "CASH-1", domain.AccountTypeAsset)
	payable := createAccount(t, svc, ctx, "PAY-1", domain.AccountTypeLiability)

	var txID uuid.UUID
	err := infrapg.WithTx(ctx, testDB.Pool, func(tx pgx.Tx) error {
		var err error
		txID, err = svc.PostTransaction(ctx, tx, service.Posting{
			Description: "posting",
			Debits:      []domain.EntryInput{{AccountID: cash.ID, Amount: decimal.RequireFromString("10")}},
			Credits:     []domain.EntryInput{{AccountID: payable.ID, Amount: decimal.RequireFromString("10")}},
		})
		return err
	})
	require.NoError(t, err)

	entries, err := repo.GetEntriesByTransaction(ctx, txID)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	_, err = testDB.Pool.Exec(ctx, `UPDATE ledger_entries SET amount = 99 WHERE id = $1`, entries[0].ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "immutable")

	_, err = testDB.Pool.Exec(ctx, `DELETE FROM ledger_entries WHERE id = $1`, entries[0].ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "immutable")
}

func TestBalanceOf_SignConventions(t *testing.T) {
	svc, repo, ctx := setupTest(t)

	cash := createAccount(t, svc, ctx, "CASH-1", domain.AccountTypeAsset)
	payable := createAccount(t, svc, ctx, "PAY-1", domain.AccountTypeLiability)

	post := func(amount string) {
		err := infrapg.WithTx(ctx, testDB.Pool, func(tx pgx.Tx) error {
			_, err := svc.PostTransaction(ctx, tx, service.Posting{
				Description: "posting",
				Debits:      []domain.EntryInput{{AccountID: cash.ID, Amount: decimal.RequireFromString(amount)}},
				Credits:     []domain.EntryInput{{AccountID: payable.ID, Amount: decimal.RequireFromString(amount)}},
			})
			return err
		})
		require.NoError(t, err)
	}

	post("100.00")
	post("25.50")

	// Asset grows on debit, liability grows on credit.
	cashBalance, err := repo.BalanceOf(ctx, cash.ID)
	require.NoError(t, err)
	assert.True(t, cashBalance.Equal(decimal.RequireFromString("125.50")), "got %s", cashBalance)

	payableBalance, err := repo.BalanceOf(ctx, payable.ID)
	require.NoError(t, err)
	assert.True(t, payableBalance.Equal(decimal.RequireFromString("125.50")), "got %s", payableBalance)

	// An account with no entries has a zero balance.
	empty := createAccount(t, svc, ctx, "EMPTY-1", domain.AccountTypeEquity)
	balance, err := repo.BalanceOf(ctx, empty.ID)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())

	_, err = repo.BalanceOf(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

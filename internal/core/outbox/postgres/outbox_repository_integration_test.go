//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkravets/clearway/internal/core/outbox/domain"
	outboxpg "github.com/mkravets/clearway/internal/core/outbox/postgres"
	infrapg "github.com/mkravets/clearway/internal/infra/postgres"
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

func setupTest(t *testing.T) (*outboxpg.OutboxRepository, context.Context) {
	ctx := context.Background()
	require.NoError(t, testDB.Reset(ctx))
	return outboxpg.NewOutboxRepository(testDB.Pool), ctx
}

func appendEvent(t *testing.T, repo *outboxpg.OutboxRepository, ctx context.Context, createdAt time.Time) *domain.Event {
	t.Helper()
	event := &domain.Event{
		ID:            uuid.New(),
		AggregateType: "payment",
		AggregateID:   uuid.NewString(),
		EventType:     "payment.created",
		Payload:       []byte(`{"event_type": "payment.created"}`),
		CreatedAt:     createdAt,
	}
	err := infrapg.WithTx(ctx, testDB.Pool, func(tx pgx.Tx) error {
		return repo.Append(ctx, tx, event)
	})
	require.NoError(t, err)
	return event
}

func TestAppend_AssignsSequenceNumbers(t *testing.T) {
	repo, ctx := setupTest(t)

	now := time.Now().UTC()
	first := appendEvent(t, repo, ctx, now)
	second := appendEvent(t, repo, ctx, now.Add(time.Millisecond))

	assert.Less(t, first.SequenceNumber, second.SequenceNumber)
}

func TestClaimUnpublished_SequenceOrderWithLimit(t *testing.T) {
	repo, ctx := setupTest(t)

	// created_at can tie across rows written in the same instant, so the
	// claim follows the store-assigned sequence, not the clock.
	now := time.Now().UTC()
	first := appendEvent(t, repo, ctx, now)
	second := appendEvent(t, repo, ctx, now)
	appendEvent(t, repo, ctx, now)

	err := infrapg.WithTx(ctx, testDB.Pool, func(tx pgx.Tx) error {
		claimed, err := repo.ClaimUnpublished(ctx, tx, 2)
		if err != nil {
			return err
		}
		require.Len(t, claimed, 2)
		assert.Equal(t, first.ID, claimed[0].ID)
		assert.Equal(t, second.ID, claimed[1].ID)
		return nil
	})
	require.NoError(t, err)
}

func TestClaimUnpublished_SkipsRowsHeldByConcurrentClaim(t *testing.T) {
	repo, ctx := setupTest(t)

	base := time.Now().UTC()
	first := appendEvent(t, repo, ctx, base)
	second := appendEvent(t, repo, ctx, base.Add(time.Millisecond))

	holder, err := testDB.Pool.Begin(ctx)
	require.NoError(t, err)
	defer holder.Rollback(ctx)

	held, err := repo.ClaimUnpublished(ctx, holder, 1)
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, first.ID, held[0].ID)

	// A second dispatcher claims around the locked row instead of blocking.
	err = infrapg.WithTx(ctx, testDB.Pool, func(tx pgx.Tx) error {
		claimed, err := repo.ClaimUnpublished(ctx, tx, 10)
		if err != nil {
			return err
		}
		require.Len(t, claimed, 1)
		assert.Equal(t, second.ID, claimed[0].ID)
		return nil
	})
	require.NoError(t, err)
}

func TestMarkPublished_ExcludesFromFutureClaims(t *testing.T) {
	repo, ctx := setupTest(t)

	event := appendEvent(t, repo, ctx, time.Now().UTC())

	err := infrapg.WithTx(ctx, testDB.Pool, func(tx pgx.Tx) error {
		return repo.MarkPublished(ctx, tx, event.ID, time.Now().UTC())
	})
	require.NoError(t, err)

	count, err := repo.CountUnpublished(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	err = infrapg.WithTx(ctx, testDB.Pool, func(tx pgx.Tx) error {
		claimed, err := repo.ClaimUnpublished(ctx, tx, 10)
		if err != nil {
			return err
		}
		assert.Empty(t, claimed)
		return nil
	})
	require.NoError(t, err)
}

func TestMarkFailed_IncrementsRetryCount(t *testing.T) {
	repo, ctx := setupTest(t)

	event := appendEvent(t, repo, ctx, time.Now().UTC())

	for range 2 {
		err := infrapg.WithTx(ctx, testDB.Pool, func(tx pgx.Tx) error {
			return repo.MarkFailed(ctx, tx, event.ID, "broker unreachable")
		})
		require.NoError(t, err)
	}

	err := infrapg.WithTx(ctx, testDB.Pool, func(tx pgx.Tx) error {
		claimed, err := repo.ClaimUnpublished(ctx, tx, 10)
		if err != nil {
			return err
		}
		require.Len(t, claimed, 1)
		assert.Equal(t, 2, claimed[0].RetryCount)
		require.NotNil(t, claimed[0].LastError)
		assert.Equal(t, "broker unreachable", *claimed[0].LastError)
		return nil
	})
	require.NoError(t, err)
}

func TestDeletePublishedBefore(t *testing.T) {
	repo, ctx := setupTest(t)

	old := appendEvent(t, repo, ctx, time.Now().UTC().Add(-48*time.Hour))
	fresh := appendEvent(t, repo, ctx, time.Now().UTC())
	appendEvent(t, repo, ctx, time.Now().UTC().Add(-48*time.Hour))

	err := infrapg.WithTx(ctx, testDB.Pool, func(tx pgx.Tx) error {
		if err := repo.MarkPublished(ctx, tx, old.ID, time.Now().UTC().Add(-48*time.Hour)); err != nil {
			return err
		}
		return repo.MarkPublished(ctx, tx, fresh.ID, time.Now().UTC())
	})
	require.NoError(t, err)

	deleted, err := repo.DeletePublishedBefore(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	// Unpublished rows are never reaped, regardless of age.
	count, err := repo.CountUnpublished(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

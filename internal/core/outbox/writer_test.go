package outbox_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkravets/clearway/internal/core/outbox"
	"github.com/mkravets/clearway/internal/core/outbox/domain"
)

type captureRepo struct {
	appended *domain.Event
}

func (r *captureRepo) Append(ctx context.Context, tx pgx.Tx, event *domain.Event) error {
	r.appended = event
	return nil
}

func (r *captureRepo) ClaimUnpublished(ctx context.Context, tx pgx.Tx, limit int) ([]*domain.Event, error) {
	return nil, nil
}

func (r *captureRepo) MarkPublished(ctx context.Context, tx pgx.Tx, id uuid.UUID, at time.Time) error {
	return nil
}

func (r *captureRepo) MarkFailed(ctx context.Context, tx pgx.Tx, id uuid.UUID, deliveryErr string) error {
	return nil
}

func (r *captureRepo) CountUnpublished(ctx context.Context) (int, error) { return 0, nil }

func (r *captureRepo) DeletePublishedBefore(ctx context.Context, horizon time.Time) (int64, error) {
	return 0, nil
}

func TestWriterAppend_EnvelopeIdentityMatchesRow(t *testing.T) {
	ctx := context.Background()
	repo := &captureRepo{}
	w := outbox.NewWriter(repo)

	data := map[string]string{"payment_id": uuid.NewString(), "status": "CREATED"}
	id, err := w.Append(ctx, nil, "payment", "agg-1", "payment.created", data)
	require.NoError(t, err)

	require.NotNil(t, repo.appended)
	assert.Equal(t, id, repo.appended.ID)
	assert.Equal(t, "payment", repo.appended.AggregateType)
	assert.Equal(t, "agg-1", repo.appended.AggregateID)
	assert.Equal(t, "payment.created", repo.appended.EventType)

	// The payload envelope carries the row's own id so consumer dedup
	// keys off the identity the dispatcher delivers.
	var env domain.Envelope
	require.NoError(t, json.Unmarshal(repo.appended.Payload, &env))
	assert.Equal(t, id, env.EventID)
	assert.Equal(t, "payment.created", env.EventType)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &decoded))
	assert.Equal(t, data, decoded)
}

func TestWriterAppend_UnmarshalableData(t *testing.T) {
	ctx := context.Background()
	w := outbox.NewWriter(&captureRepo{})

	_, err := w.Append(ctx, nil, "payment", "agg-1", "payment.created", make(chan int))
	assert.Error(t, err)
}

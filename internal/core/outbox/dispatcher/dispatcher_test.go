package dispatcher_test

import (
	"context"
	"errors"
	"io"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkravets/clearway/internal/core/outbox/dispatcher"
	"github.com/mkravets/clearway/internal/core/outbox/domain"
	"github.com/mkravets/clearway/pkg/logger"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

// fakeOutboxRepo is an in-memory outbox ordered by sequence number.
type fakeOutboxRepo struct {
	events map[uuid.UUID]*domain.Event
	seq    int64
}

func newFakeOutboxRepo() *fakeOutboxRepo {
	return &fakeOutboxRepo{events: make(map[uuid.UUID]*domain.Event)}
}

func (r *fakeOutboxRepo) add(aggregateID string) *domain.Event {
	r.seq++
	e := &domain.Event{
		ID:             uuid.New(),
		AggregateType:  "payment",
		AggregateID:    aggregateID,
		EventType:      "payment.created",
		Payload:        []byte(`{}`),
		SequenceNumber: r.seq,
		CreatedAt:      time.Now().UTC(),
	}
	r.events[e.ID] = e
	return e
}

func (r *fakeOutboxRepo) Append(ctx context.Context, tx pgx.Tx, event *domain.Event) error {
	r.events[event.ID] = event
	return nil
}

func (r *fakeOutboxRepo) ClaimUnpublished(ctx context.Context, tx pgx.Tx, limit int) ([]*domain.Event, error) {
	var pending []*domain.Event
	for _, e := range r.events {
		if e.PublishedAt == nil {
			pending = append(pending, e)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].SequenceNumber < pending[j].SequenceNumber
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (r *fakeOutboxRepo) MarkPublished(ctx context.Context, tx pgx.Tx, id uuid.UUID, at time.Time) error {
	e, ok := r.events[id]
	if !ok {
		return errors.New("event not found")
	}
	e.PublishedAt = &at
	e.LastError = nil
	return nil
}

func (r *fakeOutboxRepo) MarkFailed(ctx context.Context, tx pgx.Tx, id uuid.UUID, deliveryErr string) error {
	e, ok := r.events[id]
	if !ok {
		return errors.New("event not found")
	}
	e.RetryCount++
	e.LastError = &deliveryErr
	return nil
}

func (r *fakeOutboxRepo) CountUnpublished(ctx context.Context) (int, error) {
	n := 0
	for _, e := range r.events {
		if e.PublishedAt == nil {
			n++
		}
	}
	return n, nil
}

func (r *fakeOutboxRepo) DeletePublishedBefore(ctx context.Context, horizon time.Time) (int64, error) {
	var deleted int64
	for id, e := range r.events {
		if e.PublishedAt != nil && e.PublishedAt.Before(horizon) {
			delete(r.events, id)
			deleted++
		}
	}
	return deleted, nil
}

// fakePublisher records deliveries and fails on configured keys.
type fakePublisher struct {
	published []string
	failKeys  map[string]bool
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{failKeys: make(map[string]bool)}
}

func (p *fakePublisher) Publish(ctx context.Context, key string, payload []byte) error {
	if p.failKeys[key] {
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, key)
	return nil
}

func newTestDispatcher(repo *fakeOutboxRepo, pub *fakePublisher, cfg dispatcher.Config) *dispatcher.Dispatcher {
	log := logger.New("test", io.Discard)
	return dispatcher.New(fakeTxRunner{}, repo, pub, cfg, log)
}

func TestTick_PublishesInSequenceOrder(t *testing.T) {
	ctx := context.Background()
	repo := newFakeOutboxRepo()
	pub := newFakePublisher()

	repo.add("agg-1")
	repo.add("agg-2")
	repo.add("agg-3")

	d := newTestDispatcher(repo, pub, dispatcher.Config{})

	published, err := d.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, published)
	assert.Equal(t, []string{"agg-1", "agg-2", "agg-3"}, pub.published)

	pending, err := repo.CountUnpublished(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, pending)
}

func TestTick_FailureIncrementsRetryAndLeavesUnpublished(t *testing.T) {
	ctx := context.Background()
	repo := newFakeOutboxRepo()
	pub := newFakePublisher()
	pub.failKeys["agg-bad"] = true

	bad := repo.add("agg-bad")
	repo.add("agg-ok")

	d := newTestDispatcher(repo, pub, dispatcher.Config{})

	published, err := d.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, published)
	assert.Equal(t, []string{"agg-ok"}, pub.published)

	assert.Nil(t, bad.PublishedAt)
	assert.Equal(t, 1, bad.RetryCount)
	require.NotNil(t, bad.LastError)
	assert.Contains(t, *bad.LastError, "broker unavailable")

	// Recovery: the next poll retries the failed row.
	delete(pub.failKeys, "agg-bad")
	published, err = d.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, published)
	assert.NotNil(t, bad.PublishedAt)
}

func TestTick_FailureBlocksLaterEventsOfSameAggregate(t *testing.T) {
	ctx := context.Background()
	repo := newFakeOutboxRepo()
	pub := newFakePublisher()
	pub.failKeys["agg-bad"] = true

	first := repo.add("agg-bad")
	second := repo.add("agg-bad")
	repo.add("agg-ok")

	d := newTestDispatcher(repo, pub, dispatcher.Config{})

	published, err := d.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, published)
	assert.Equal(t, []string{"agg-ok"}, pub.published)

	// Only the head of the aggregate's queue counts a retry; the event
	// behind it is held back, not failed.
	assert.Equal(t, 1, first.RetryCount)
	assert.Equal(t, 0, second.RetryCount)
	assert.Nil(t, second.PublishedAt)

	// After recovery both drain, in sequence order.
	delete(pub.failKeys, "agg-bad")
	published, err = d.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, published)
	assert.Equal(t, []string{"agg-ok", "agg-bad", "agg-bad"}, pub.published)
}

func TestTick_DeadLetterSkipsDelivery(t *testing.T) {
	ctx := context.Background()
	repo := newFakeOutboxRepo()
	pub := newFakePublisher()

	dead := repo.add("agg-dead")
	dead.RetryCount = 3

	d := newTestDispatcher(repo, pub, dispatcher.Config{MaxRetries: 3})

	published, err := d.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, published)
	assert.Empty(t, pub.published)

	// Parked, not retried: the retry count stays put.
	assert.Equal(t, 3, dead.RetryCount)
	assert.Nil(t, dead.PublishedAt)
}

func TestTick_RespectsBatchSize(t *testing.T) {
	ctx := context.Background()
	repo := newFakeOutboxRepo()
	pub := newFakePublisher()

	for i := 0; i < 5; i++ {
		repo.add("agg")
	}

	d := newTestDispatcher(repo, pub, dispatcher.Config{BatchSize: 2})

	published, err := d.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, published)

	pending, err := repo.CountUnpublished(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, pending)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	repo := newFakeOutboxRepo()
	pub := newFakePublisher()
	d := newTestDispatcher(repo, pub, dispatcher.Config{PollInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after context cancellation")
	}
}

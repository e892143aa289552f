package dispatcher

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mkravets/clearway/internal/core/outbox/domain"
	"github.com/mkravets/clearway/internal/core/outbox/repository"
	"github.com/mkravets/clearway/internal/pkg/metrics"
	"github.com/mkravets/clearway/pkg/logger"
)

// Publisher delivers one event payload to the message log and waits for
// broker acknowledgment. key is the aggregate id, which pins all events
// of one aggregate to one partition.
type Publisher interface {
	Publish(ctx context.Context, key string, payload []byte) error
}

// TxRunner runs a function inside a store transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// Config holds dispatcher tuning
type Config struct {
	PollInterval time.Duration
	BatchSize    int
	MaxRetries   int
	SendTimeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 10 * time.Second
	}
	return c
}

// Dispatcher is the background outbox publisher. Multiple instances may
// run concurrently: each batch claim uses FOR UPDATE SKIP LOCKED, so
// peers never double-deliver a row they can see, and a failed delivery
// leaves its row in place so later rows of the same aggregate cannot
// jump ahead (head-of-line is deliberate).
type Dispatcher struct {
	db        TxRunner
	repo      repository.OutboxRepository
	publisher Publisher
	cfg       Config
	log       *logger.Logger
}

// New creates a new outbox dispatcher
func New(db TxRunner, repo repository.OutboxRepository, publisher Publisher, cfg Config, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		db:        db,
		repo:      repo,
		publisher: publisher,
		cfg:       cfg.withDefaults(),
		log:       log.WithField("component", "outbox_dispatcher"),
	}
}

// Run polls until the context is cancelled. Broker outages degrade event
// freshness, never correctness: rows stay durable and retried.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	d.log.Info("outbox dispatcher started",
		"poll_interval", d.cfg.PollInterval,
		"batch_size", d.cfg.BatchSize,
		"max_retries", d.cfg.MaxRetries,
	)

	for {
		select {
		case <-ctx.Done():
			d.log.Info("outbox dispatcher stopped")
			return
		case <-ticker.C:
			published, err := d.Tick(ctx)
			if err != nil {
				d.log.Error("outbox poll failed", "error", err)
				continue
			}
			if published > 0 {
				d.log.Debug("outbox poll delivered events", "published", published)
			}
		}
	}
}

// Tick runs one poll: claim a batch under row locks, deliver each event
// synchronously, and record the outcome in the same claim transaction so
// the lock holds until the batch commits. Returns the number of events
// delivered.
func (d *Dispatcher) Tick(ctx context.Context) (int, error) {
	published := 0

	err := d.db.WithTx(ctx, func(tx pgx.Tx) error {
		events, err := d.repo.ClaimUnpublished(ctx, tx, d.cfg.BatchSize)
		if err != nil {
			return err
		}

		// Aggregates with an undelivered event ahead in the batch. Later
		// events of the same aggregate are held back so partition order
		// matches sequence order.
		blocked := make(map[string]bool)

		for _, event := range events {
			if blocked[event.AggregateID] {
				continue
			}

			if event.IsDeadLettered(d.cfg.MaxRetries) {
				blocked[event.AggregateID] = true
				metrics.RecordOutboxDeadLettered()
				d.log.Warn("outbox event dead-lettered",
					"event_id", event.ID,
					"event_type", event.EventType,
					"retry_count", event.RetryCount,
					"last_error", event.LastError,
				)
				continue
			}

			if err := d.deliver(ctx, event); err != nil {
				blocked[event.AggregateID] = true
				metrics.RecordOutboxFailed()
				d.log.Warn("outbox delivery failed",
					"event_id", event.ID,
					"event_type", event.EventType,
					"retry_count", event.RetryCount+1,
					"error", err,
				)
				if markErr := d.repo.MarkFailed(ctx, tx, event.ID, err.Error()); markErr != nil {
					return markErr
				}
				continue
			}

			if err := d.repo.MarkPublished(ctx, tx, event.ID, time.Now().UTC()); err != nil {
				return err
			}
			metrics.RecordOutboxPublished()
			published++
		}

		return nil
	})
	if err != nil {
		return published, err
	}

	if backlog, err := d.repo.CountUnpublished(ctx); err == nil {
		metrics.SetOutboxBacklog(backlog)
	}

	return published, nil
}

func (d *Dispatcher) deliver(ctx context.Context, event *domain.Event) error {
	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()
	return d.publisher.Publish(sendCtx, event.AggregateID, event.Payload)
}

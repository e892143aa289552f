package consumer

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/mkravets/clearway/internal/core/consumer/domain"
	"github.com/mkravets/clearway/internal/core/consumer/repository"
	"github.com/mkravets/clearway/pkg/logger"
)

// HandlerFunc applies an event's effects inside the processing
// transaction. Effects and the dedup row commit together.
type HandlerFunc func(ctx context.Context, tx pgx.Tx, env domain.Envelope) error

// TxRunner runs a function inside a store transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// Processor is the idempotent processing core shared by all consumer
// groups. The (event_id, consumer_group) primary key is the single source
// of truth: a redelivered event is detected there and never reaches the
// handler twice.
type Processor struct {
	db   TxRunner
	repo repository.ProcessedEventRepository
	log  *logger.Logger
}

// NewProcessor creates a new processor
func NewProcessor(db TxRunner, repo repository.ProcessedEventRepository, log *logger.Logger) *Processor {
	return &Processor{
		db:   db,
		repo: repo,
		log:  log.WithField("component", "consumer_processor"),
	}
}

// Process runs handler for env exactly once per consumer group.
//
// Inside one transaction: if a dedup row exists the handler is not
// invoked and Process returns false. Otherwise the handler runs and a
// SUCCESS row commits with its effects. A handler error rolls everything
// back, then a FAILED row is committed separately so the poison event is
// parked instead of retried forever; the error is returned so the caller
// does not acknowledge this delivery.
func (p *Processor) Process(ctx context.Context, env domain.Envelope, group string, handler HandlerFunc) (bool, error) {
	var (
		processed  bool
		handlerErr error
	)

	err := p.db.WithTx(ctx, func(tx pgx.Tx) error {
		exists, err := p.repo.Exists(ctx, tx, env.EventID, group)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}

		if err := handler(ctx, tx, env); err != nil {
			handlerErr = err
			return err
		}

		if err := p.repo.Insert(ctx, tx, domain.NewProcessedEvent(env, group, domain.ResultSuccess, nil)); err != nil {
			return err
		}

		processed = true
		return nil
	})

	if handlerErr != nil {
		p.log.WithContext(ctx).Error("event handler failed, parking event",
			"event_id", env.EventID,
			"event_type", env.EventType,
			"consumer_group", group,
			"error", handlerErr,
		)
		if recErr := p.repo.Record(ctx, domain.NewProcessedEvent(env, group, domain.ResultFailed, handlerErr)); recErr != nil {
			p.log.WithContext(ctx).Error("failed to park event", "event_id", env.EventID, "error", recErr)
		}
		return false, handlerErr
	}
	if err != nil {
		return false, err
	}

	return processed, nil
}

// Skip records a SKIPPED row so the event is never offered to this group
// again.
func (p *Processor) Skip(ctx context.Context, env domain.Envelope, group, reason string) error {
	pe := domain.NewProcessedEvent(env, group, domain.ResultSkipped, nil)
	pe.ErrorMessage = &reason
	return p.repo.Record(ctx, pe)
}

package consumer

import (
	"context"

	"github.com/IBM/sarama"

	"github.com/mkravets/clearway/internal/core/consumer/domain"
	"github.com/mkravets/clearway/internal/pkg/metrics"
	"github.com/mkravets/clearway/pkg/logger"
)

// Router binds event types to handlers for one consumer group and feeds
// each consumed message through the idempotent processor. It implements
// the message handler contract of the Kafka consumer driver: a nil return
// acknowledges the delivery, an error forces redelivery.
type Router struct {
	group     string
	processor *Processor
	handlers  map[string]HandlerFunc
	log       *logger.Logger
}

// NewRouter creates a router for one consumer group.
func NewRouter(group string, processor *Processor, log *logger.Logger) *Router {
	return &Router{
		group:     group,
		processor: processor,
		handlers:  make(map[string]HandlerFunc),
		log:       log.WithField("consumer_group", group),
	}
}

// On binds handler to an event type.
func (r *Router) On(eventType string, handler HandlerFunc) *Router {
	r.handlers[eventType] = handler
	return r
}

// Handle processes one consumed message.
//
// A message whose envelope cannot be parsed carries no dedup identity, so
// it is logged and acknowledged rather than redelivered forever. Events
// with no bound handler are marked SKIPPED. Everything else goes through
// Process; its error propagates so the offset stays uncommitted.
func (r *Router) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	env, err := domain.ParseEnvelope(msg.Value)
	if err != nil {
		r.log.WithContext(ctx).Error("dropping unparseable event",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		metrics.RecordConsumerEvent(r.group, "unparseable")
		return nil
	}

	handler, ok := r.handlers[env.EventType]
	if !ok {
		if err := r.processor.Skip(ctx, env, r.group, "no handler for event type"); err != nil {
			return err
		}
		metrics.RecordConsumerEvent(r.group, "skipped")
		return nil
	}

	processed, err := r.processor.Process(ctx, env, r.group, handler)
	if err != nil {
		metrics.RecordConsumerEvent(r.group, "failed")
		return err
	}

	if processed {
		metrics.RecordConsumerEvent(r.group, "processed")
	} else {
		metrics.RecordConsumerEvent(r.group, "duplicate")
	}
	return nil
}

package kafka

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/mkravets/clearway/pkg/logger"
)

// MessageHandler processes one consumed message. A nil return acks the
// message; an error leaves the offset uncommitted so the message is
// redelivered after restart or rebalance.
type MessageHandler interface {
	Handle(ctx context.Context, msg *sarama.ConsumerMessage) error
}

// Consumer runs a sarama consumer group against one topic with manual
// offset commits: the offset moves only after the handler succeeds, which
// gives at-least-once delivery end to end.
type Consumer struct {
	group   sarama.ConsumerGroup
	groupID string
	topic   string
	handler MessageHandler
	log     *logger.Logger
	wg      sync.WaitGroup
}

// NewConsumer creates a new consumer group member.
func NewConsumer(cfg Config, groupID string, handler MessageHandler, log *logger.Logger) (*Consumer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if groupID == "" {
		return nil, fmt.Errorf("consumer group id is required")
	}

	saramaCfg := baseSaramaConfig()
	saramaCfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{
		sarama.NewBalanceStrategyRoundRobin(),
	}
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaCfg.Consumer.Offsets.AutoCommit.Enable = false
	saramaCfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, groupID, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return &Consumer{
		group:   group,
		groupID: groupID,
		topic:   cfg.Topic,
		handler: handler,
		log:     log.WithFields(map[string]any{"component": "kafka_consumer", "consumer_group": groupID}),
	}, nil
}

// Run consumes until ctx is cancelled. Consume must be re-called in a
// loop: a server-side rebalance ends the session and a new one is needed
// to pick up the reassigned claims.
func (c *Consumer) Run(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case err, ok := <-c.group.Errors():
				if !ok {
					return
				}
				c.log.Error("consumer group error", "error", err)
			case <-ctx.Done():
				return
			}
		}
	}()

	c.log.Info("consumer started", "topic", c.topic)

	handler := &groupHandler{handler: c.handler, log: c.log}
	for {
		if err := c.group.Consume(ctx, []string{c.topic}, handler); err != nil {
			c.log.Error("consumer session failed", "error", err)
			// A session that died on a processing error would otherwise
			// reconnect and refail in a tight loop.
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
			}
		}
		if ctx.Err() != nil {
			c.log.Info("consumer stopped")
			return
		}
	}
}

// Close releases the consumer group after Run has returned.
func (c *Consumer) Close() error {
	err := c.group.Close()
	c.wg.Wait()
	return err
}

// groupHandler adapts MessageHandler to sarama.ConsumerGroupHandler.
type groupHandler struct {
	handler MessageHandler
	log     *logger.Logger
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			// A failed message ends the claim. Moving on would let a later
			// success commit the offset past the failure and the broker
			// would never redeliver it; ending the session keeps the offset
			// put so the message comes back on the next session.
			if err := h.handler.Handle(session.Context(), msg); err != nil {
				h.log.Warn("message processing failed, ending session for redelivery",
					"partition", msg.Partition,
					"offset", msg.Offset,
					"error", err,
				)
				return err
			}

			session.MarkMessage(msg, "")
			session.Commit()

		case <-session.Context().Done():
			return nil
		}
	}
}

package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mkravets/clearway/pkg/logger"
)

const (
	// KeyPrefix is the prefix for idempotency cache keys
	KeyPrefix = "idempotency:"

	// DefaultTTL keeps the fast path warm for a week; the unique key on
	// the payments table is the durable record
	DefaultTTL = 7 * 24 * time.Hour
)

// IdempotencyCache is a Redis-backed dedup-key -> payment-id hint cache
type IdempotencyCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

// NewIdempotencyCache creates a new idempotency cache
func NewIdempotencyCache(client *redis.Client, ttl time.Duration, log *logger.Logger) *IdempotencyCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &IdempotencyCache{
		client: client,
		ttl:    ttl,
		logger: log.WithField("component", "idempotency_cache"),
	}
}

// Get retrieves the payment id for a dedup key. A miss is (uuid.Nil,
// false, nil); an unreachable cache is an error the resolver swallows.
func (c *IdempotencyCache) Get(ctx context.Context, key string) (uuid.UUID, bool, error) {
	val, err := c.client.Get(ctx, KeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		c.logger.Debug("cache miss", "key", key)
		return uuid.Nil, false, nil
	}
	if err != nil {
		c.logger.Error("cache error", "operation", "get", "key", key, "error", err)
		return uuid.Nil, false, fmt.Errorf("failed to get cached payment id: %w", err)
	}

	id, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to parse cached payment id: %w", err)
	}

	c.logger.Debug("cache hit", "key", key)
	return id, true, nil
}

// Set stores the dedup key -> payment id mapping with the configured TTL.
func (c *IdempotencyCache) Set(ctx context.Context, key string, paymentID uuid.UUID) error {
	if err := c.client.Set(ctx, KeyPrefix+key, paymentID.String(), c.ttl).Err(); err != nil {
		c.logger.Error("cache error", "operation", "set", "key", key, "error", err)
		return fmt.Errorf("failed to cache payment id: %w", err)
	}
	return nil
}

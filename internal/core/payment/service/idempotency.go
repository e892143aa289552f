package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/mkravets/clearway/internal/core/payment/domain"
	"github.com/mkravets/clearway/internal/core/payment/repository"
	"github.com/mkravets/clearway/pkg/logger"
)

// IdempotencyCache is the dedup-key fast path. Implementations are
// best-effort: any error is logged and the resolver falls through to the
// store, which holds the authoritative unique constraint.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) (uuid.UUID, bool, error)
	Set(ctx context.Context, key string, paymentID uuid.UUID) error
}

// IdempotencyResolver maps a client dedup key to a previously admitted
// payment, consulting the cache first and the store second.
type IdempotencyResolver struct {
	cache IdempotencyCache
	repo  repository.PaymentRepository
	log   *logger.Logger
}

// NewIdempotencyResolver creates a new resolver. cache may be nil when no
// cache is configured; resolution then always hits the store.
func NewIdempotencyResolver(cache IdempotencyCache, repo repository.PaymentRepository, log *logger.Logger) *IdempotencyResolver {
	return &IdempotencyResolver{
		cache: cache,
		repo:  repo,
		log:   log.WithField("component", "idempotency_resolver"),
	}
}

// Resolve returns the payment previously admitted under key, or
// (Payment{}, false, nil) when the key is new. Cache unavailability never
// surfaces: the store fallback preserves correctness.
func (r *IdempotencyResolver) Resolve(ctx context.Context, key string) (domain.Payment, bool, error) {
	if r.cache != nil {
		id, ok, err := r.cache.Get(ctx, key)
		if err != nil {
			r.log.WithContext(ctx).Warn("idempotency cache read failed, falling back to store", "error", err)
		} else if ok {
			p, err := r.repo.GetPayment(ctx, id)
			if err == nil {
				return p, true, nil
			}
			// A stale cache hint (payment missing) falls through to the
			// authoritative lookup.
			if !errors.Is(err, domain.ErrPaymentNotFound) {
				return domain.Payment{}, false, err
			}
		}
	}

	p, err := r.repo.GetPaymentByIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			return domain.Payment{}, false, nil
		}
		return domain.Payment{}, false, err
	}

	// Opportunistic write-through; errors are ignored.
	r.Remember(ctx, key, p.ID)

	return p, true, nil
}

// Remember caches the dedup-key mapping best-effort. The durable mapping
// is the unique constraint on payments.idempotency_key.
func (r *IdempotencyResolver) Remember(ctx context.Context, key string, paymentID uuid.UUID) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, key, paymentID); err != nil {
		r.log.WithContext(ctx).Warn("idempotency cache write failed", "error", err)
	}
}

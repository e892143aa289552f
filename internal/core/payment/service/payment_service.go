package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	ledgerdomain "github.com/mkravets/clearway/internal/core/ledger/domain"
	ledger "github.com/mkravets/clearway/internal/core/ledger/service"
	"github.com/mkravets/clearway/internal/core/payment/domain"
	"github.com/mkravets/clearway/internal/core/payment/repository"
	"github.com/mkravets/clearway/internal/pkg/metrics"
	"github.com/mkravets/clearway/pkg/logger"
)

// TxRunner runs a function inside a store transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// EventWriter appends an event row to the transactional outbox within the
// caller's transaction.
type EventWriter interface {
	Append(ctx context.Context, tx pgx.Tx, aggregateType, aggregateID, eventType string, data any) (uuid.UUID, error)
}

// LedgerEngine posts a balanced transaction to the ledger within the
// caller's transaction.
type LedgerEngine interface {
	PostTransaction(ctx context.Context, tx pgx.Tx, posting ledger.Posting) (uuid.UUID, error)
}

// CreateRequest carries the admission inputs for a new payment.
type CreateRequest struct {
	Amount         decimal.Decimal
	Currency       domain.Currency
	FromAccountID  uuid.UUID
	ToAccountID    uuid.UUID
	IdempotencyKey string
}

// Service coordinates the payment lifecycle: idempotent admission, state
// transitions, atomic settlement against the ledger, and outbox event
// emission. Every state change and its event row commit in one store
// transaction.
type Service struct {
	db       TxRunner
	repo     repository.PaymentRepository
	resolver *IdempotencyResolver
	ledger   LedgerEngine
	outbox   EventWriter
	log      *logger.Logger
}

// NewService creates a new payment service
func NewService(db TxRunner, repo repository.PaymentRepository, resolver *IdempotencyResolver, ledgerEngine LedgerEngine, outbox EventWriter, log *logger.Logger) *Service {
	return &Service{
		db:       db,
		repo:     repo,
		resolver: resolver,
		ledger:   ledgerEngine,
		outbox:   outbox,
		log:      log.WithField("component", "payment"),
	}
}

// Create admits a payment. Replays of the same idempotency key return the
// originally admitted payment with created=false, regardless of how far
// its lifecycle has advanced since. Two concurrent requests with the same
// key race on the unique constraint; the loser reads back the winner.
func (s *Service) Create(ctx context.Context, req CreateRequest) (domain.Payment, bool, error) {
	if existing, found, err := s.resolver.Resolve(ctx, req.IdempotencyKey); err != nil {
		return domain.Payment{}, false, err
	} else if found {
		metrics.RecordAdmission("duplicate")
		return existing, false, nil
	}

	p, err := domain.NewPayment(req.Amount, req.Currency, req.FromAccountID, req.ToAccountID, req.IdempotencyKey)
	if err != nil {
		return domain.Payment{}, false, err
	}

	err = s.db.WithTx(ctx, func(tx pgx.Tx) error {
		if err := s.repo.CreatePayment(ctx, tx, p); err != nil {
			return err
		}
		_, err := s.outbox.Append(ctx, tx, domain.AggregateTypePayment, p.ID.String(), domain.EventPaymentCreated, domain.NewEventData(p))
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateIdempotencyKey) {
			winner, err := s.repo.GetPaymentByIdempotencyKey(ctx, req.IdempotencyKey)
			if err != nil {
				return domain.Payment{}, false, fmt.Errorf("failed to resolve admission race: %w", err)
			}
			s.resolver.Remember(ctx, req.IdempotencyKey, winner.ID)
			metrics.RecordAdmission("duplicate")
			return winner, false, nil
		}
		return domain.Payment{}, false, err
	}

	s.resolver.Remember(ctx, req.IdempotencyKey, p.ID)
	metrics.RecordAdmission("created")

	s.log.WithContext(ctx).Info("payment created",
		"payment_id", p.ID,
		"amount", p.Amount,
		"currency", p.Currency,
	)
	return p, true, nil
}

// Get retrieves a payment by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Payment, error) {
	return s.repo.GetPayment(ctx, id)
}

// Authorize moves a payment CREATED -> AUTHORIZED.
func (s *Service) Authorize(ctx context.Context, id uuid.UUID) (domain.Payment, error) {
	p, err := s.mutate(ctx, id, domain.EventPaymentAuthorized, func(p domain.Payment) (domain.Payment, error) {
		return p.Authorize()
	})
	if err != nil {
		return domain.Payment{}, err
	}
	s.log.WithContext(ctx).Info("payment authorized", "payment_id", p.ID)
	return p, nil
}

// AuthorizeTx is Authorize running inside a caller-owned transaction, for
// callers that must commit the transition atomically with their own rows.
func (s *Service) AuthorizeTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (domain.Payment, error) {
	return s.mutateTx(ctx, tx, id, domain.EventPaymentAuthorized, func(p domain.Payment) (domain.Payment, error) {
		return p.Authorize()
	})
}

// Fail moves a payment to FAILED with a reason.
func (s *Service) Fail(ctx context.Context, id uuid.UUID, reason string) (domain.Payment, error) {
	p, err := s.mutate(ctx, id, domain.EventPaymentFailed, func(p domain.Payment) (domain.Payment, error) {
		return p.Fail(reason)
	})
	if err != nil {
		return domain.Payment{}, err
	}
	s.log.WithContext(ctx).Info("payment failed", "payment_id", p.ID, "reason", reason)
	return p, nil
}

// Settle moves a payment AUTHORIZED -> SETTLED and posts the matching
// ledger transaction: one debit on the source account, one credit on the
// destination. Payment update, ledger rows and outbox event commit
// together or not at all. A payment already bound to a ledger transaction
// is returned as-is; settlement retries never post twice.
func (s *Service) Settle(ctx context.Context, id uuid.UUID) (domain.Payment, error) {
	var settled domain.Payment

	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		p, err := s.repo.GetPaymentForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}

		if p.LedgerTransactionID != nil {
			settled = p
			return nil
		}

		if !domain.CanTransition(p.Status, domain.StatusSettled) {
			return &domain.InvalidTransitionError{From: p.Status, To: domain.StatusSettled}
		}

		ledgerTxID, err := s.ledger.PostTransaction(ctx, tx, ledger.Posting{
			Description: fmt.Sprintf("settlement of payment %s", p.ID),
			Debits: []ledgerdomain.EntryInput{
				{AccountID: p.FromAccountID, Amount: p.Amount},
			},
			Credits: []ledgerdomain.EntryInput{
				{AccountID: p.ToAccountID, Amount: p.Amount},
			},
		})
		if err != nil {
			return err
		}

		next, err := p.Settle(ledgerTxID)
		if err != nil {
			return err
		}

		if err := s.repo.UpdatePayment(ctx, tx, next); err != nil {
			return err
		}
		if _, err := s.outbox.Append(ctx, tx, domain.AggregateTypePayment, next.ID.String(), domain.EventPaymentSettled, domain.NewEventData(next)); err != nil {
			return err
		}

		settled = next
		return nil
	})
	if err != nil {
		return domain.Payment{}, err
	}

	s.log.WithContext(ctx).Info("payment settled",
		"payment_id", settled.ID,
		"ledger_transaction_id", settled.LedgerTransactionID,
	)
	return settled, nil
}

// mutate loads the payment under a row lock, applies the transition, and
// persists the new state plus its event atomically.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, eventType string, transition func(domain.Payment) (domain.Payment, error)) (domain.Payment, error) {
	var result domain.Payment

	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		result, err = s.mutateTx(ctx, tx, id, eventType, transition)
		return err
	})
	if err != nil {
		return domain.Payment{}, err
	}

	return result, nil
}

func (s *Service) mutateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, eventType string, transition func(domain.Payment) (domain.Payment, error)) (domain.Payment, error) {
	p, err := s.repo.GetPaymentForUpdate(ctx, tx, id)
	if err != nil {
		return domain.Payment{}, err
	}

	next, err := transition(p)
	if err != nil {
		return domain.Payment{}, err
	}

	if err := s.repo.UpdatePayment(ctx, tx, next); err != nil {
		return domain.Payment{}, err
	}
	if _, err := s.outbox.Append(ctx, tx, domain.AggregateTypePayment, next.ID.String(), eventType, domain.NewEventData(next)); err != nil {
		return domain.Payment{}, err
	}

	return next, nil
}

package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the payment lifecycle state
type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusAuthorized Status = "AUTHORIZED"
	StatusSettled    Status = "SETTLED"
	StatusFailed     Status = "FAILED"
)

// Payment is an immutable snapshot of a payment row. Transitions are pure:
// they return a new value with updated status and a fresh UpdatedAt, and
// never touch the store. SETTLED and FAILED are terminal.
type Payment struct {
	ID                  uuid.UUID
	Amount              decimal.Decimal
	Currency            Currency
	FromAccountID       uuid.UUID
	ToAccountID         uuid.UUID
	Status              Status
	FailureReason       *string
	IdempotencyKey      string
	LedgerTransactionID *uuid.UUID
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// NewPayment validates inputs and builds a payment in CREATED state.
func NewPayment(amount decimal.Decimal, currency Currency, from, to uuid.UUID, idempotencyKey string) (Payment, error) {
	if !amount.IsPositive() {
		return Payment{}, ErrNonPositiveAmount
	}
	if !currency.Valid() {
		return Payment{}, ErrInvalidCurrency
	}
	if from == uuid.Nil || to == uuid.Nil {
		return Payment{}, ErrAccountRequired
	}
	if from == to {
		return Payment{}, ErrSameAccount
	}
	if idempotencyKey == "" {
		return Payment{}, ErrIdempotencyKeyRequired
	}

	now := time.Now().UTC()
	return Payment{
		ID:             uuid.New(),
		Amount:         amount,
		Currency:       currency,
		FromAccountID:  from,
		ToAccountID:    to,
		Status:         StatusCreated,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// allowed edges of the state machine. Self-transitions are rejected;
// duplicate requests are collapsed by idempotency resolution instead.
var transitions = map[Status][]Status{
	StatusCreated:    {StatusAuthorized, StatusFailed},
	StatusAuthorized: {StatusSettled, StatusFailed},
}

// CanTransition reports whether the edge from -> to is legal.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (p Payment) transition(to Status) (Payment, error) {
	if !CanTransition(p.Status, to) {
		return p, &InvalidTransitionError{From: p.Status, To: to}
	}
	next := p
	next.Status = to
	next.UpdatedAt = time.Now().UTC()
	return next, nil
}

// Authorize moves CREATED -> AUTHORIZED.
func (p Payment) Authorize() (Payment, error) {
	return p.transition(StatusAuthorized)
}

// Settle moves AUTHORIZED -> SETTLED, binding the ledger transaction id.
// The id binds exactly once and never changes afterwards.
func (p Payment) Settle(ledgerTransactionID uuid.UUID) (Payment, error) {
	next, err := p.transition(StatusSettled)
	if err != nil {
		return p, err
	}
	next.LedgerTransactionID = &ledgerTransactionID
	return next, nil
}

// Fail moves CREATED or AUTHORIZED -> FAILED with a reason.
func (p Payment) Fail(reason string) (Payment, error) {
	next, err := p.transition(StatusFailed)
	if err != nil {
		return p, err
	}
	next.FailureReason = &reason
	return next, nil
}

// IsTerminal reports whether the payment is in a terminal state.
func (p Payment) IsTerminal() bool {
	return p.Status == StatusSettled || p.Status == StatusFailed
}

// InvalidTransitionError reports an illegal state-machine edge.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid payment transition %s -> %s", e.From, e.To)
}

package domain

import "errors"

var (
	ErrNonPositiveAmount      = errors.New("payment amount must be positive")
	ErrInvalidCurrency        = errors.New("invalid currency")
	ErrAccountRequired        = errors.New("payment requires both accounts")
	ErrSameAccount            = errors.New("payment accounts must be distinct")
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")

	ErrPaymentNotFound = errors.New("payment not found")

	// ErrDuplicateIdempotencyKey is returned by the store when an insert
	// loses an admission race. The caller re-resolves and returns the
	// winner's record.
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")
)

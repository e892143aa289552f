package domain

import "errors"

var (
	ErrAccountNumberRequired = errors.New("account number is required")
	ErrInvalidAccountType    = errors.New("invalid account type")
	ErrDuplicateAccount      = errors.New("account number already exists")
	ErrAccountNotFound       = errors.New("account not found")
	ErrTransactionNotFound   = errors.New("ledger transaction not found")

	ErrInvalidEntryType  = errors.New("entry must be DEBIT or CREDIT")
	ErrNonPositiveAmount = errors.New("entry amount must be positive")
	ErrEmptyEntrySide    = errors.New("transaction requires at least one debit and one credit")
	ErrUnbalanced        = errors.New("transaction debits and credits do not balance")
	ErrUnknownAccount    = errors.New("entry references an unknown account")

	// ErrConstraintViolation surfaces the store's commit-time balance
	// re-check. Seeing it means the application-level validation was
	// bypassed or raced; the enclosing transaction has been rolled back.
	ErrConstraintViolation = errors.New("ledger balance constraint violated at commit")
)

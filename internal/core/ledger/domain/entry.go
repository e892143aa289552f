package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryType represents whether an entry is a debit or credit
type EntryType string

const (
	Debit  EntryType = "DEBIT"
	Credit EntryType = "CREDIT"
)

// Entry is a single debit or credit row in the double-entry ledger.
// IMMUTABLE: entries are never updated or deleted. Corrections are
// modeled as new reversing transactions.
type Entry struct {
	ID             uuid.UUID
	TransactionID  uuid.UUID
	AccountID      uuid.UUID
	Amount         decimal.Decimal
	EntryType      EntryType
	Description    string
	SequenceNumber int64
	CreatedAt      time.Time
}

// Validate validates the entry
func (e *Entry) Validate() error {
	if e.EntryType != Debit && e.EntryType != Credit {
		return ErrInvalidEntryType
	}

	if !e.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}

	return nil
}

// IsDebit returns true if this entry is a debit
func (e *Entry) IsDebit() bool {
	return e.EntryType == Debit
}

// IsCredit returns true if this entry is a credit
func (e *Entry) IsCredit() bool {
	return e.EntryType == Credit
}

// SignedAmount returns the amount signed for the given account type.
func (e *Entry) SignedAmount(accountType AccountType) decimal.Decimal {
	sign := accountType.DebitSign()
	if e.IsCredit() {
		sign = -sign
	}
	if sign < 0 {
		return e.Amount.Neg()
	}
	return e.Amount
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

// AccountType represents the type of ledger account
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
)

// Account represents a ledger account. Accounts are append-only: they are
// never deleted while entries reference them.
type Account struct {
	ID            uuid.UUID
	AccountNumber string
	Type          AccountType
	CreatedAt     time.Time
}

// Validate validates the account
func (a *Account) Validate() error {
	if a.AccountNumber == "" {
		return ErrAccountNumberRequired
	}

	switch a.Type {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity:
	default:
		return ErrInvalidAccountType
	}

	return nil
}

// DebitSign returns the sign a debit entry contributes to this account
// type's balance. Assets grow on debit; liabilities and equity grow on
// credit.
func (t AccountType) DebitSign() int {
	if t == AccountTypeAsset {
		return 1
	}
	return -1
}

// ParseAccountType parses a string into an AccountType
func ParseAccountType(s string) (AccountType, error) {
	switch AccountType(s) {
	case AccountTypeAsset:
		return AccountTypeAsset, nil
	case AccountTypeLiability:
		return AccountTypeLiability, nil
	case AccountTypeEquity:
		return AccountTypeEquity, nil
	default:
		return "", ErrInvalidAccountType
	}
}

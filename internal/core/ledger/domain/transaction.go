package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction is a logical group of ledger entries whose debits and
// credits must sum to the same amount.
type Transaction struct {
	ID          uuid.UUID
	Description string
	CreatedAt   time.Time
	Entries     []*Entry
}

// EntryInput is one side-entry of a posting request.
type EntryInput struct {
	AccountID   uuid.UUID
	Amount      decimal.Decimal
	Description string
}

// DebitTotal sums the debit entries.
func (t *Transaction) DebitTotal() decimal.Decimal {
	total := decimal.Zero
	for _, e := range t.Entries {
		if e.IsDebit() {
			total = total.Add(e.Amount)
		}
	}
	return total
}

// CreditTotal sums the credit entries.
func (t *Transaction) CreditTotal() decimal.Decimal {
	total := decimal.Zero
	for _, e := range t.Entries {
		if e.IsCredit() {
			total = total.Add(e.Amount)
		}
	}
	return total
}

// IsBalanced reports whether debits equal credits exactly.
func (t *Transaction) IsBalanced() bool {
	return t.DebitTotal().Equal(t.CreditTotal())
}

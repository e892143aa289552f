package domain

// Aggregate and event type names as they appear on the wire. Consumers
// route on these strings; they are part of the public contract.
const (
	AggregateTypePayment = "payment"

	EventPaymentCreated    = "payment.created"
	EventPaymentAuthorized = "payment.authorized"
	EventPaymentSettled    = "payment.settled"
	EventPaymentFailed     = "payment.failed"
)

// EventData is the payload carried under the envelope's data field for
// every payment event. Amounts travel as strings to keep decimal
// precision across JSON.
type EventData struct {
	PaymentID           string  `json:"payment_id"`
	Amount              string  `json:"amount"`
	Currency            string  `json:"currency"`
	FromAccountID       string  `json:"from_account_id"`
	ToAccountID         string  `json:"to_account_id"`
	Status              string  `json:"status"`
	FailureReason       *string `json:"failure_reason,omitempty"`
	LedgerTransactionID *string `json:"ledger_transaction_id,omitempty"`
}

// NewEventData snapshots a payment for the outbox.
func NewEventData(p Payment) EventData {
	data := EventData{
		PaymentID:     p.ID.String(),
		Amount:        p.Amount.String(),
		Currency:      string(p.Currency),
		FromAccountID: p.FromAccountID.String(),
		ToAccountID:   p.ToAccountID.String(),
		Status:        string(p.Status),
		FailureReason: p.FailureReason,
	}
	if p.LedgerTransactionID != nil {
		id := p.LedgerTransactionID.String()
		data.LedgerTransactionID = &id
	}
	return data
}

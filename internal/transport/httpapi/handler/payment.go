package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkravets/clearway/internal/core/payment/domain"
	"github.com/mkravets/clearway/internal/core/payment/service"
)

// IdempotencyKeyHeader is the required dedup-key header on admission.
const IdempotencyKeyHeader = "Idempotency-Key"

// PaymentServiceInterface defines the payment operations needed by PaymentHandler
type PaymentServiceInterface interface {
	Create(ctx context.Context, req service.CreateRequest) (domain.Payment, bool, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Payment, error)
	Authorize(ctx context.Context, id uuid.UUID) (domain.Payment, error)
	Settle(ctx context.Context, id uuid.UUID) (domain.Payment, error)
	Fail(ctx context.Context, id uuid.UUID, reason string) (domain.Payment, error)
}

// PaymentHandler handles payment-related HTTP requests
type PaymentHandler struct {
	payments PaymentServiceInterface
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(payments PaymentServiceInterface) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// CreatePaymentRequest represents the payment admission request
type CreatePaymentRequest struct {
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	FromAccountID string `json:"from_account_id"`
	ToAccountID   string `json:"to_account_id"`
}

// PaymentResponse represents a payment
type PaymentResponse struct {
	ID                  string  `json:"id"`
	Amount              string  `json:"amount"`
	Currency            string  `json:"currency"`
	FromAccountID       string  `json:"from_account_id"`
	ToAccountID         string  `json:"to_account_id"`
	Status              string  `json:"status"`
	FailureReason       *string `json:"failure_reason,omitempty"`
	LedgerTransactionID *string `json:"ledger_transaction_id,omitempty"`
	CreatedAt           string  `json:"created_at"`
	UpdatedAt           string  `json:"updated_at"`
}

// FailPaymentRequest represents the manual failure request
type FailPaymentRequest struct {
	Reason string `json:"reason"`
}

// CreatePayment handles POST /api/payments.
// First admission of a dedup key returns 201; any replay returns 200 with
// the identical representation of the originally admitted payment.
func (h *PaymentHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	idempotencyKey := r.Header.Get(IdempotencyKeyHeader)
	if idempotencyKey == "" {
		respondWithError(w, http.StatusBadRequest, "Missing Required Header: "+IdempotencyKeyHeader)
		return
	}

	var req CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid amount format")
		return
	}

	currency, err := domain.ParseCurrency(req.Currency)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid currency")
		return
	}

	fromID, err := uuid.Parse(req.FromAccountID)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid from_account_id")
		return
	}
	toID, err := uuid.Parse(req.ToAccountID)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid to_account_id")
		return
	}

	payment, created, err := h.payments.Create(r.Context(), service.CreateRequest{
		Amount:         amount,
		Currency:       currency,
		FromAccountID:  fromID,
		ToAccountID:    toID,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondWithJSON(w, status, toPaymentResponse(payment))
}

// GetPayment handles GET /api/payments/{id}
func (h *PaymentHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := paymentIDParam(w, r)
	if !ok {
		return
	}

	payment, err := h.payments.Get(r.Context(), id)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, toPaymentResponse(payment))
}

// AuthorizePayment handles POST /api/payments/{id}/authorize
func (h *PaymentHandler) AuthorizePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := paymentIDParam(w, r)
	if !ok {
		return
	}

	payment, err := h.payments.Authorize(r.Context(), id)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, toPaymentResponse(payment))
}

// SettlePayment handles POST /api/payments/{id}/settle
func (h *PaymentHandler) SettlePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := paymentIDParam(w, r)
	if !ok {
		return
	}

	payment, err := h.payments.Settle(r.Context(), id)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, toPaymentResponse(payment))
}

// FailPayment handles POST /api/payments/{id}/fail
func (h *PaymentHandler) FailPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := paymentIDParam(w, r)
	if !ok {
		return
	}

	var req FailPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Reason == "" {
		respondWithError(w, http.StatusBadRequest, "reason is required")
		return
	}

	payment, err := h.payments.Fail(r.Context(), id, req.Reason)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, toPaymentResponse(payment))
}

func paymentIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid payment ID")
		return uuid.Nil, false
	}
	return id, true
}

func toPaymentResponse(p domain.Payment) PaymentResponse {
	resp := PaymentResponse{
		ID:            p.ID.String(),
		Amount:        p.Amount.String(),
		Currency:      string(p.Currency),
		FromAccountID: p.FromAccountID.String(),
		ToAccountID:   p.ToAccountID.String(),
		Status:        string(p.Status),
		FailureReason: p.FailureReason,
		CreatedAt:     p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     p.UpdatedAt.Format(time.RFC3339),
	}
	if p.LedgerTransactionID != nil {
		id := p.LedgerTransactionID.String()
		resp.LedgerTransactionID = &id
	}
	return resp
}

package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkravets/clearway/internal/core/ledger/domain"
)

// LedgerServiceInterface defines the ledger operations needed by AccountHandler
type LedgerServiceInterface interface {
	CreateAccount(ctx context.Context, number string, accountType domain.AccountType) (*domain.Account, error)
	GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	BalanceOf(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)
}

// AccountHandler handles account-related HTTP requests
type AccountHandler struct {
	ledger LedgerServiceInterface
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(ledger LedgerServiceInterface) *AccountHandler {
	return &AccountHandler{ledger: ledger}
}

// CreateAccountRequest represents the account creation request
type CreateAccountRequest struct {
	AccountNumber string `json:"account_number"`
	Type          string `json:"type"`
}

// AccountResponse represents an account
type AccountResponse struct {
	ID            string `json:"id"`
	AccountNumber string `json:"account_number"`
	Type          string `json:"type"`
	CreatedAt     string `json:"created_at"`
}

// BalanceResponse represents an account balance derived from ledger entries
type BalanceResponse struct {
	AccountID string `json:"account_id"`
	Balance   string `json:"balance"`
}

// CreateAccount handles POST /api/accounts
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	accountType, err := domain.ParseAccountType(req.Type)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid account type")
		return
	}

	account, err := h.ledger.CreateAccount(r.Context(), req.AccountNumber, accountType)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, toAccountResponse(account))
}

// GetAccount handles GET /api/accounts/{id}
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := accountIDParam(w, r)
	if !ok {
		return
	}

	account, err := h.ledger.GetAccount(r.Context(), id)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, toAccountResponse(account))
}

// GetBalance handles GET /api/accounts/{id}/balance
func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := accountIDParam(w, r)
	if !ok {
		return
	}

	balance, err := h.ledger.BalanceOf(r.Context(), id)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, BalanceResponse{
		AccountID: id.String(),
		Balance:   balance.String(),
	})
}

func accountIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid account ID")
		return uuid.Nil, false
	}
	return id, true
}

func toAccountResponse(a *domain.Account) AccountResponse {
	return AccountResponse{
		ID:            a.ID.String(),
		AccountNumber: a.AccountNumber,
		Type:          string(a.Type),
		CreatedAt:     a.CreatedAt.Format(time.RFC3339),
	}
}

package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	ledgerdomain "github.com/mkravets/clearway/internal/core/ledger/domain"
	paymentdomain "github.com/mkravets/clearway/internal/core/payment/domain"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondWithJSON sends a JSON response
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// respondWithError sends an error response
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

// respondWithDomainError maps domain errors to HTTP status codes:
// validation failures to 400, missing resources to 404, illegal state
// transitions and uniqueness conflicts to 409.
func respondWithDomainError(w http.ResponseWriter, err error) {
	var transitionErr *paymentdomain.InvalidTransitionError
	switch {
	case errors.As(err, &transitionErr):
		respondWithError(w, http.StatusConflict, transitionErr.Error())
	case errors.Is(err, paymentdomain.ErrPaymentNotFound),
		errors.Is(err, ledgerdomain.ErrAccountNotFound),
		errors.Is(err, ledgerdomain.ErrTransactionNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ledgerdomain.ErrDuplicateAccount):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ledgerdomain.ErrUnknownAccount):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, paymentdomain.ErrNonPositiveAmount),
		errors.Is(err, paymentdomain.ErrInvalidCurrency),
		errors.Is(err, paymentdomain.ErrAccountRequired),
		errors.Is(err, paymentdomain.ErrSameAccount),
		errors.Is(err, paymentdomain.ErrIdempotencyKeyRequired),
		errors.Is(err, ledgerdomain.ErrAccountNumberRequired),
		errors.Is(err, ledgerdomain.ErrInvalidAccountType):
		respondWithError(w, http.StatusBadRequest, err.Error())
	default:
		respondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}

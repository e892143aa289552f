package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mkravets/clearway/internal/core/consumer/domain"
	paymentdomain "github.com/mkravets/clearway/internal/core/payment/domain"
	paymentservice "github.com/mkravets/clearway/internal/core/payment/service"
	"github.com/mkravets/clearway/pkg/logger"
)

// Consumer group names.
const (
	GroupPaymentAuthorizer = "payment-authorizer"
	GroupPaymentAudit      = "payment-audit"
)

// AutoAuthorizeHandler authorizes freshly created payments. A payment
// that already moved past CREATED (an operator beat the consumer to it)
// is left alone.
func AutoAuthorizeHandler(payments *paymentservice.Service) HandlerFunc {
	return func(ctx context.Context, tx pgx.Tx, env domain.Envelope) error {
		id, err := paymentID(env)
		if err != nil {
			return err
		}

		if _, err := payments.AuthorizeTx(ctx, tx, id); err != nil {
			var transitionErr *paymentdomain.InvalidTransitionError
			if errors.As(err, &transitionErr) {
				return nil
			}
			return err
		}
		return nil
	}
}

// AuditHandler logs terminal payment outcomes.
func AuditHandler(log *logger.Logger) HandlerFunc {
	auditLog := log.WithField("component", "payment_audit")
	return func(ctx context.Context, tx pgx.Tx, env domain.Envelope) error {
		var data paymentdomain.EventData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return fmt.Errorf("failed to decode payment event data: %w", err)
		}

		auditLog.WithContext(ctx).Info("payment reached terminal state",
			"event_type", env.EventType,
			"payment_id", data.PaymentID,
			"amount", data.Amount,
			"currency", data.Currency,
			"status", data.Status,
			"failure_reason", data.FailureReason,
			"ledger_transaction_id", data.LedgerTransactionID,
		)
		return nil
	}
}

func paymentID(env domain.Envelope) (uuid.UUID, error) {
	var data paymentdomain.EventData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return uuid.Nil, fmt.Errorf("failed to decode payment event data: %w", err)
	}
	id, err := uuid.Parse(data.PaymentID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid payment id %q: %w", data.PaymentID, err)
	}
	return id, nil
}

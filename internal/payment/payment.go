package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Gateway abstracts the external payment provider. Charge and Refund are
// blocking network calls; callers pass a context with a deadline.
type Gateway interface {
	Charge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error)
	Refund(ctx context.Context, chargeID string) (*RefundResult, error)
}

// ChargeRequest describes a payment to collect for an order.
type ChargeRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	CustomerEmail  string          `json:"customer_email"`
	Description    string          `json:"description"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

// ChargeResult is the provider's acknowledgement of a successful charge.
type ChargeResult struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// RefundResult is the provider's acknowledgement of a successful refund.
type RefundResult struct {
	ID        string    `json:"id"`
	ChargeID  string    `json:"charge_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// GatewayError is a rejection from the payment provider, as opposed to a
// transport failure reaching it.
type GatewayError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway error %s: %s", e.Code, e.Message)
}

package entity

import (
	"net/mail"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRefunded  OrderStatus = "refunded"
)

const (
	MinQuantity = 1
	MaxQuantity = 10

	MinCustomerNameLen = 2
	MaxCustomerNameLen = 255
)

// Valid reports whether the status is one of the known order statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

// CanTransitionTo reports whether the status transition is allowed.
// Cancelled and refunded are terminal; a cancelled order is never
// re-confirmed.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderStatusPending:
		return next == OrderStatusConfirmed || next == OrderStatusCancelled
	case OrderStatusConfirmed:
		return next == OrderStatusCancelled || next == OrderStatusRefunded
	}
	return false
}

type Order struct {
	ID             int64           `json:"id" db:"id"`
	EventID        int64           `json:"event_id" db:"event_id"`
	CustomerEmail  string          `json:"customer_email" db:"customer_email"`
	CustomerName   string          `json:"customer_name" db:"customer_name"`
	Quantity       int             `json:"quantity" db:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price" db:"unit_price"`
	TotalAmount    decimal.Decimal `json:"total_amount" db:"total_amount"`
	Status         OrderStatus     `json:"status" db:"status"`
	IdempotencyKey *string         `json:"idempotency_key,omitempty" db:"idempotency_key"`
	ChargeID       *string         `json:"charge_id,omitempty" db:"charge_id"`
	ConfirmedAt    *time.Time      `json:"confirmed_at,omitempty" db:"confirmed_at"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`

	// Event is populated on read paths that join the event row.
	Event *Event `json:"event,omitempty" db:"-"`
}

// TotalAmountFor computes unit_price * quantity in decimal arithmetic.
// Float math is never used for money.
func TotalAmountFor(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// NormalizeEmail lowercases and trims a customer email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateCustomer checks the customer fields of a purchase against the
// order constraints and returns per-field messages, or nil when everything
// passes. The email must already be normalized.
func ValidateCustomer(email, name string, quantity int) *ValidationError {
	verr := NewValidationError()

	if email == "" {
		verr.Add("customer_email", "is required")
	} else if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		verr.Add("customer_email", "is not a valid email address")
	}

	if n := len(strings.TrimSpace(name)); n < MinCustomerNameLen || n > MaxCustomerNameLen {
		verr.Add("customer_name", "must be between 2 and 255 characters")
	}

	if quantity < MinQuantity || quantity > MaxQuantity {
		verr.Add("quantity", "must be between 1 and 10")
	}

	if verr.Empty() {
		return nil
	}
	return verr
}

package entity

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// Event errors
	ErrEventNotFound      = errors.New("event not found")
	ErrEventNotAvailable  = errors.New("event is not available for purchase")
	ErrEventEnded         = errors.New("event has already ended")
	ErrEventHasOrders     = errors.New("event has existing orders")
	ErrInvalidEventStatus = errors.New("invalid event status transition")

	// Inventory errors
	ErrInsufficientTickets = errors.New("not enough available tickets")

	// Order errors
	ErrOrderNotFound       = errors.New("order not found")
	ErrInvalidOrderStatus  = errors.New("invalid order status")
	ErrIdempotencyKeyTaken = errors.New("idempotency key already used")
)

// PaymentError wraps a failed charge attempt with the gateway's reason.
type PaymentError struct {
	Reason string
	Err    error
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("payment failed: %s", e.Reason)
}

func (e *PaymentError) Unwrap() error { return e.Err }

// RefundError wraps a failed refund attempt with the gateway's reason.
type RefundError struct {
	Reason string
	Err    error
}

func (e *RefundError) Error() string {
	return fmt.Sprintf("refund failed: %s", e.Reason)
}

func (e *RefundError) Unwrap() error { return e.Err }

// EnqueueError wraps a failed notification enqueue. An unacknowledged
// enqueue aborts the purchase unit of work.
type EnqueueError struct {
	Err error
}

func (e *EnqueueError) Error() string {
	return fmt.Sprintf("failed to enqueue notification: %v", e.Err)
}

func (e *EnqueueError) Unwrap() error { return e.Err }

// ValidationError carries per-field validation messages for the caller to
// relay to an end user.
type ValidationError struct {
	Fields map[string][]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string][]string)}
}

func (e *ValidationError) Add(field, message string) {
	e.Fields[field] = append(e.Fields[field], message)
}

func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, strings.Join(e.Fields[field], "; ")))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

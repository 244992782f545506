package service

import (
	"context"
	"time"

	"ticket-office/internal/entity"

	"github.com/shopspring/decimal"
)

// EventService covers the event catalog and its lifecycle.
type EventService interface {
	CreateEvent(ctx context.Context, req *CreateEventRequest) (*entity.Event, error)
	GetEvent(ctx context.Context, id int64) (*entity.Event, error)
	GetAllEvents(ctx context.Context) ([]*entity.Event, error)
	GetUpcomingEvents(ctx context.Context, limit int) ([]*entity.Event, error)
	UpdateEvent(ctx context.Context, id int64, req *UpdateEventRequest) (*entity.Event, error)
	DeleteEvent(ctx context.Context, id int64) error

	// Lifecycle operations
	PublishEvent(ctx context.Context, id int64) (*entity.Event, error)
	CancelEvent(ctx context.Context, id int64) (*entity.Event, error)
	MarkPastEventsCompleted(ctx context.Context) (int64, error)

	// Reporting
	GetEventOrders(ctx context.Context, eventID int64) ([]*entity.Order, error)
	GetEventStats(ctx context.Context, eventID int64) (*entity.EventOrderStats, error)
}

// OrderService covers ticket purchase, cancellation and order queries.
type OrderService interface {
	PurchaseTickets(ctx context.Context, req *PurchaseRequest) (*entity.Order, error)
	CancelOrder(ctx context.Context, orderID int64, reason string) (*entity.Order, error)
	GetOrder(ctx context.Context, id int64) (*entity.Order, error)
	GetOrderWithEvent(ctx context.Context, id int64) (*entity.Order, error)
	GetCustomerOrders(ctx context.Context, email string) ([]*entity.Order, error)
	GetRecentOrders(ctx context.Context, limit int) ([]*entity.Order, error)

	// MarkRefunded is an administrative operation for refunds settled
	// outside the cancellation flow.
	MarkRefunded(ctx context.Context, orderID int64) (*entity.Order, error)
}

// CreateEventRequest carries the fields for a new draft event.
type CreateEventRequest struct {
	Name         string          `json:"name" binding:"required,min=1,max=255"`
	Venue        string          `json:"venue" binding:"required,min=1,max=255"`
	Date         time.Time       `json:"date" binding:"required"`
	UnitPrice    decimal.Decimal `json:"unit_price" binding:"required"`
	TotalTickets int             `json:"total_tickets" binding:"required,min=1"`
}

// UpdateEventRequest carries optional catalog updates. Nil fields are left
// unchanged; ticket counts are never updatable here.
type UpdateEventRequest struct {
	Name      *string          `json:"name,omitempty"`
	Venue     *string          `json:"venue,omitempty"`
	Date      *time.Time       `json:"date,omitempty"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

// PurchaseRequest carries the customer's purchase. An omitted quantity
// defaults to one ticket. The idempotency key is optional; repeated requests
// with the same key return the original order.
type PurchaseRequest struct {
	EventID        int64  `json:"event_id" binding:"required"`
	CustomerEmail  string `json:"customer_email" binding:"required"`
	CustomerName   string `json:"customer_name" binding:"required"`
	Quantity       int    `json:"quantity" binding:"omitempty,min=1,max=10"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// TaskPublisher publishes background tasks to the notification queue.
type TaskPublisher interface {
	Publish(ctx context.Context, task *Task) error
}

// Task is the service-level view of a queue task.
type Task struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	ExecuteAt  time.Time              `json:"execute_at"`
	MaxRetries int                    `json:"max_retries"`
	Attempts   int                    `json:"attempts"`
}

const (
	TaskTypeOrderConfirmation = "order_confirmation"
	TaskTypeOrderCancellation = "order_cancellation"
)

// notificationMaxRetries bounds the delivery attempts for a customer email
// before the task lands in the dead letter queue.
const notificationMaxRetries = 5

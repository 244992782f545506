package database

import (
	"context"
	"time"

	"ticket-office/internal/entity"
)

// Store bundles the repositories over one backing storage and provides the
// unit-of-work boundary the sagas run in. Inside WithinTx every repository
// operation executes against the same transaction; returning an error rolls
// back everything done within the closure.
type Store interface {
	Events() EventRepository
	Orders() OrderRepository
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

type EventRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, event *entity.Event) error
	GetByID(ctx context.Context, id int64) (*entity.Event, error)
	GetAll(ctx context.Context) ([]*entity.Event, error)
	GetUpcoming(ctx context.Context, limit int) ([]*entity.Event, error)
	Update(ctx context.Context, event *entity.Event) error
	UpdateStatus(ctx context.Context, id int64, status entity.EventStatus) error
	Delete(ctx context.Context, id int64) error

	// Inventory ledger operations. DecrementAvailable is a single
	// conditional update: it succeeds only if the event exists, is
	// published and has at least quantity tickets available, all checked
	// in the same atomic statement. IncrementAvailable adds back
	// unconditionally; retry safety is the caller's concern.
	DecrementAvailable(ctx context.Context, eventID int64, quantity int) (*entity.Event, error)
	IncrementAvailable(ctx context.Context, eventID int64, quantity int) (*entity.Event, error)

	// MarkPastCompleted flips published events whose date has passed to
	// completed and returns the number of rows changed.
	MarkPastCompleted(ctx context.Context, now time.Time) (int64, error)
}

type OrderRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, order *entity.Order) error
	GetByID(ctx context.Context, id int64) (*entity.Order, error)
	GetWithEvent(ctx context.Context, id int64) (*entity.Order, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*entity.Order, error)
	UpdateStatus(ctx context.Context, id int64, status entity.OrderStatus) error

	// GetWithLock fetches the order under an exclusive row lock. Only
	// meaningful inside WithinTx; the lock is held until the transaction
	// ends.
	GetWithLock(ctx context.Context, id int64) (*entity.Order, error)

	// Query operations
	GetByEventID(ctx context.Context, eventID int64) ([]*entity.Order, error)
	GetByCustomerEmail(ctx context.Context, email string) ([]*entity.Order, error)
	GetRecent(ctx context.Context, limit int) ([]*entity.Order, error)
	GetEventOrderStats(ctx context.Context, eventID int64) (*entity.EventOrderStats, error)
}

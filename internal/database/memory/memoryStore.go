// Package memory provides an in-process Store implementation with the same
// transactional semantics as the postgres one: WithinTx runs the closure
// under a single exclusive lock and restores a snapshot when it fails.
// Intended for tests and local development without a database.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ticket-office/internal/database"
	"ticket-office/internal/entity"
)

type data struct {
	events      map[int64]*entity.Event
	orders      map[int64]*entity.Order
	byIdemKey   map[string]int64
	nextEventID int64
	nextOrderID int64
}

func newData() *data {
	return &data{
		events:      make(map[int64]*entity.Event),
		orders:      make(map[int64]*entity.Order),
		byIdemKey:   make(map[string]int64),
		nextEventID: 1,
		nextOrderID: 1,
	}
}

func (d *data) snapshot() *data {
	clone := newData()
	clone.nextEventID = d.nextEventID
	clone.nextOrderID = d.nextOrderID
	for id, e := range d.events {
		clone.events[id] = copyEvent(e)
	}
	for id, o := range d.orders {
		clone.orders[id] = copyOrder(o)
	}
	for k, v := range d.byIdemKey {
		clone.byIdemKey[k] = v
	}
	return clone
}

func copyEvent(e *entity.Event) *entity.Event {
	clone := *e
	return &clone
}

func copyOrder(o *entity.Order) *entity.Order {
	clone := *o
	if o.IdempotencyKey != nil {
		key := *o.IdempotencyKey
		clone.IdempotencyKey = &key
	}
	if o.ChargeID != nil {
		id := *o.ChargeID
		clone.ChargeID = &id
	}
	if o.ConfirmedAt != nil {
		at := *o.ConfirmedAt
		clone.ConfirmedAt = &at
	}
	clone.Event = nil
	return &clone
}

// Store holds everything in maps behind one mutex. A transactional Store
// returned to a WithinTx closure skips locking because the outer call already
// holds the lock for the whole unit of work.
type Store struct {
	mu     sync.Mutex
	data   *data
	locked bool
}

func NewStore() *Store {
	return &Store{data: newData()}
}

func (s *Store) Events() database.EventRepository {
	return &eventRepository{store: s}
}

func (s *Store) Orders() database.OrderRepository {
	return &orderRepository{store: s}
}

// WithinTx takes the store lock for the duration of fn and rolls the data
// back to a pre-transaction snapshot when fn returns an error.
func (s *Store) WithinTx(ctx context.Context, fn func(tx database.Store) error) error {
	if s.locked {
		return fn(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.snapshot()
	txStore := &Store{data: s.data, locked: true}

	if err := fn(txStore); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// lock is a no-op inside a transaction where the mutex is already held.
func (s *Store) lock() func() {
	if s.locked {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type eventRepository struct {
	store *Store
}

func (r *eventRepository) Create(ctx context.Context, event *entity.Event) error {
	defer r.store.lock()()
	d := r.store.data

	now := time.Now()
	event.ID = d.nextEventID
	d.nextEventID++
	event.CreatedAt = now
	event.UpdatedAt = now

	d.events[event.ID] = copyEvent(event)
	return nil
}

func (r *eventRepository) GetByID(ctx context.Context, id int64) (*entity.Event, error) {
	defer r.store.lock()()

	event, ok := r.store.data.events[id]
	if !ok {
		return nil, entity.ErrEventNotFound
	}
	return copyEvent(event), nil
}

func (r *eventRepository) GetAll(ctx context.Context) ([]*entity.Event, error) {
	defer r.store.lock()()

	events := make([]*entity.Event, 0, len(r.store.data.events))
	for _, e := range r.store.data.events {
		events = append(events, copyEvent(e))
	}
	return events, nil
}

func (r *eventRepository) GetUpcoming(ctx context.Context, limit int) ([]*entity.Event, error) {
	if limit <= 0 {
		limit = 10
	}
	defer r.store.lock()()

	now := time.Now()
	var events []*entity.Event
	for _, e := range r.store.data.events {
		if e.Status == entity.EventStatusPublished && e.Date.After(now) {
			events = append(events, copyEvent(e))
		}
		if len(events) == limit {
			break
		}
	}
	return events, nil
}

func (r *eventRepository) Update(ctx context.Context, event *entity.Event) error {
	defer r.store.lock()()

	current, ok := r.store.data.events[event.ID]
	if !ok {
		return entity.ErrEventNotFound
	}

	// Catalog fields only; counters belong to the ledger operations.
	current.Name = event.Name
	current.Venue = event.Venue
	current.Date = event.Date
	current.UnitPrice = event.UnitPrice
	current.UpdatedAt = time.Now()
	return nil
}

func (r *eventRepository) UpdateStatus(ctx context.Context, id int64, status entity.EventStatus) error {
	defer r.store.lock()()

	event, ok := r.store.data.events[id]
	if !ok {
		return entity.ErrEventNotFound
	}

	event.Status = status
	event.UpdatedAt = time.Now()
	return nil
}

func (r *eventRepository) Delete(ctx context.Context, id int64) error {
	defer r.store.lock()()
	d := r.store.data

	if _, ok := d.events[id]; !ok {
		return entity.ErrEventNotFound
	}
	for _, o := range d.orders {
		if o.EventID == id {
			return entity.ErrEventHasOrders
		}
	}

	delete(d.events, id)
	return nil
}

func (r *eventRepository) DecrementAvailable(ctx context.Context, eventID int64, quantity int) (*entity.Event, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d", quantity)
	}
	defer r.store.lock()()

	event, ok := r.store.data.events[eventID]
	if !ok {
		return nil, entity.ErrEventNotFound
	}
	if event.Status != entity.EventStatusPublished {
		return nil, entity.ErrEventNotAvailable
	}
	if event.AvailableTickets < quantity {
		return nil, entity.ErrInsufficientTickets
	}

	event.AvailableTickets -= quantity
	event.UpdatedAt = time.Now()
	return copyEvent(event), nil
}

func (r *eventRepository) IncrementAvailable(ctx context.Context, eventID int64, quantity int) (*entity.Event, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d", quantity)
	}
	defer r.store.lock()()

	event, ok := r.store.data.events[eventID]
	if !ok {
		return nil, entity.ErrEventNotFound
	}

	event.AvailableTickets += quantity
	event.UpdatedAt = time.Now()
	return copyEvent(event), nil
}

func (r *eventRepository) MarkPastCompleted(ctx context.Context, now time.Time) (int64, error) {
	defer r.store.lock()()

	var changed int64
	for _, e := range r.store.data.events {
		if e.Status == entity.EventStatusPublished && e.Date.Before(now) {
			e.Status = entity.EventStatusCompleted
			e.UpdatedAt = now
			changed++
		}
	}
	return changed, nil
}

type orderRepository struct {
	store *Store
}

func (r *orderRepository) Create(ctx context.Context, order *entity.Order) error {
	defer r.store.lock()()
	d := r.store.data

	if order.IdempotencyKey != nil {
		if _, exists := d.byIdemKey[*order.IdempotencyKey]; exists {
			return entity.ErrIdempotencyKeyTaken
		}
	}

	now := time.Now()
	order.ID = d.nextOrderID
	d.nextOrderID++
	order.CreatedAt = now
	order.UpdatedAt = now

	d.orders[order.ID] = copyOrder(order)
	if order.IdempotencyKey != nil {
		d.byIdemKey[*order.IdempotencyKey] = order.ID
	}
	return nil
}

func (r *orderRepository) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	defer r.store.lock()()

	order, ok := r.store.data.orders[id]
	if !ok {
		return nil, entity.ErrOrderNotFound
	}
	return copyOrder(order), nil
}

func (r *orderRepository) GetWithEvent(ctx context.Context, id int64) (*entity.Order, error) {
	defer r.store.lock()()
	d := r.store.data

	order, ok := d.orders[id]
	if !ok {
		return nil, entity.ErrOrderNotFound
	}

	result := copyOrder(order)
	if event, ok := d.events[order.EventID]; ok {
		result.Event = copyEvent(event)
	}
	return result, nil
}

func (r *orderRepository) GetByIdempotencyKey(ctx context.Context, key string) (*entity.Order, error) {
	defer r.store.lock()()
	d := r.store.data

	id, ok := d.byIdemKey[key]
	if !ok {
		return nil, entity.ErrOrderNotFound
	}
	return copyOrder(d.orders[id]), nil
}

// GetWithLock behaves like GetByID here; exclusion is provided by the
// store-wide mutex WithinTx holds for the whole unit of work.
func (r *orderRepository) GetWithLock(ctx context.Context, id int64) (*entity.Order, error) {
	return r.GetByID(ctx, id)
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id int64, status entity.OrderStatus) error {
	defer r.store.lock()()

	order, ok := r.store.data.orders[id]
	if !ok {
		return entity.ErrOrderNotFound
	}
	if !order.Status.CanTransitionTo(status) {
		return entity.ErrInvalidOrderStatus
	}

	order.Status = status
	order.UpdatedAt = time.Now()
	return nil
}

func (r *orderRepository) GetByEventID(ctx context.Context, eventID int64) ([]*entity.Order, error) {
	defer r.store.lock()()

	var orders []*entity.Order
	for _, o := range r.store.data.orders {
		if o.EventID == eventID {
			orders = append(orders, copyOrder(o))
		}
	}
	return orders, nil
}

func (r *orderRepository) GetByCustomerEmail(ctx context.Context, email string) ([]*entity.Order, error) {
	defer r.store.lock()()

	var orders []*entity.Order
	for _, o := range r.store.data.orders {
		if o.CustomerEmail == email {
			orders = append(orders, copyOrder(o))
		}
	}
	return orders, nil
}

func (r *orderRepository) GetRecent(ctx context.Context, limit int) ([]*entity.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	defer r.store.lock()()

	var orders []*entity.Order
	for _, o := range r.store.data.orders {
		orders = append(orders, copyOrder(o))
	}
	if len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (r *orderRepository) GetEventOrderStats(ctx context.Context, eventID int64) (*entity.EventOrderStats, error) {
	defer r.store.lock()()

	stats := &entity.EventOrderStats{EventID: eventID}
	for _, o := range r.store.data.orders {
		if o.EventID != eventID {
			continue
		}
		stats.TotalOrders++
		switch o.Status {
		case entity.OrderStatusConfirmed:
			stats.ConfirmedOrders++
			stats.ConfirmedQuantity += o.Quantity
			stats.ConfirmedRevenue = stats.ConfirmedRevenue.Add(o.TotalAmount)
		case entity.OrderStatusCancelled:
			stats.CancelledOrders++
		case entity.OrderStatusRefunded:
			stats.RefundedOrders++
		}
	}
	return stats, nil
}

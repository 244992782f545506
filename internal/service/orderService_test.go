package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ticket-office/config"
	"ticket-office/internal/database"
	"ticket-office/internal/database/memory"
	"ticket-office/internal/entity"
	"ticket-office/internal/payment"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingPublisher collects published tasks for assertions.
type recordingPublisher struct {
	mu    sync.Mutex
	tasks []*Task
	fail  error
}

func (p *recordingPublisher) Publish(ctx context.Context, task *Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.tasks = append(p.tasks, task)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tasks)
}

type orderFixture struct {
	store    *memory.Store
	gateway  *payment.FakeGateway
	queue    *recordingPublisher
	orders   OrderService
	eventID  int64
	capacity int
}

func newOrderFixture(t *testing.T, capacity int) *orderFixture {
	t.Helper()

	store := memory.NewStore()
	gateway := payment.NewFakeGateway()
	pub := &recordingPublisher{}

	event := &entity.Event{
		Name:             "Go Conference",
		Venue:            "Main Hall",
		Date:             time.Now().Add(30 * 24 * time.Hour),
		UnitPrice:        decimal.RequireFromString("50.00"),
		TotalTickets:     capacity,
		AvailableTickets: capacity,
		Status:           entity.EventStatusPublished,
	}
	require.NoError(t, store.Events().Create(context.Background(), event))

	return &orderFixture{
		store:    store,
		gateway:  gateway,
		queue:    pub,
		orders:   NewOrderService(store, gateway, pub, nil),
		eventID:  event.ID,
		capacity: capacity,
	}
}

func (f *orderFixture) available(t *testing.T) int {
	t.Helper()
	event, err := f.store.Events().GetByID(context.Background(), f.eventID)
	require.NoError(t, err)
	return event.AvailableTickets
}

func purchaseReq(eventID int64, quantity int) *PurchaseRequest {
	return &PurchaseRequest{
		EventID:       eventID,
		CustomerEmail: "alice@example.com",
		CustomerName:  "Alice",
		Quantity:      quantity,
	}
}

func TestPurchaseTickets(t *testing.T) {
	f := newOrderFixture(t, 10)
	ctx := context.Background()

	order, err := f.orders.PurchaseTickets(ctx, purchaseReq(f.eventID, 3))
	require.NoError(t, err)

	assert.Equal(t, entity.OrderStatusConfirmed, order.Status)
	assert.Equal(t, 3, order.Quantity)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("150.00")))
	assert.NotNil(t, order.ChargeID)
	assert.NotNil(t, order.ConfirmedAt)

	assert.Equal(t, 7, f.available(t))
	assert.Equal(t, 1, f.gateway.ChargeCount())
	assert.Equal(t, 1, f.queue.count())

	// The order comes back with its event loaded
	require.NotNil(t, order.Event)
	assert.Equal(t, f.eventID, order.Event.ID)
	assert.Equal(t, 7, order.Event.AvailableTickets)
}

func TestPurchaseTicketsDefaultQuantity(t *testing.T) {
	f := newOrderFixture(t, 10)

	// Quantity omitted entirely
	order, err := f.orders.PurchaseTickets(context.Background(), &PurchaseRequest{
		EventID:       f.eventID,
		CustomerEmail: "alice@example.com",
		CustomerName:  "Alice",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, order.Quantity)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("50.00")))
	assert.Equal(t, 9, f.available(t))
}

func TestPurchaseTicketsConfiguredDefaultQuantity(t *testing.T) {
	store := memory.NewStore()
	gateway := payment.NewFakeGateway()
	orders := NewOrderService(store, gateway, nil, &config.OrderConfig{DefaultQuantity: 2})
	ctx := context.Background()

	event := &entity.Event{
		Name:             "Pair Night",
		Venue:            "Hall",
		Date:             time.Now().Add(24 * time.Hour),
		UnitPrice:        decimal.RequireFromString("10.00"),
		TotalTickets:     10,
		AvailableTickets: 10,
		Status:           entity.EventStatusPublished,
	}
	require.NoError(t, store.Events().Create(ctx, event))

	order, err := orders.PurchaseTickets(ctx, &PurchaseRequest{
		EventID:       event.ID,
		CustomerEmail: "alice@example.com",
		CustomerName:  "Alice",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, order.Quantity)
}

func TestPurchaseTicketsNormalizesEmail(t *testing.T) {
	f := newOrderFixture(t, 10)

	order, err := f.orders.PurchaseTickets(context.Background(), &PurchaseRequest{
		EventID:       f.eventID,
		CustomerEmail: "  Alice@Example.COM ",
		CustomerName:  "Alice",
		Quantity:      1,
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", order.CustomerEmail)
}

func TestPurchaseTicketsValidation(t *testing.T) {
	f := newOrderFixture(t, 10)

	_, err := f.orders.PurchaseTickets(context.Background(), &PurchaseRequest{
		EventID:       f.eventID,
		CustomerEmail: "broken",
		CustomerName:  "A",
		Quantity:      99,
	})

	var verr *entity.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "customer_email")
	assert.Contains(t, verr.Fields, "customer_name")
	assert.Contains(t, verr.Fields, "quantity")

	// Nothing touched the store or the gateway
	assert.Equal(t, 10, f.available(t))
	assert.Equal(t, 0, f.gateway.ChargeCount())
}

func TestPurchaseTicketsEventNotFound(t *testing.T) {
	f := newOrderFixture(t, 10)

	_, err := f.orders.PurchaseTickets(context.Background(), purchaseReq(999, 1))
	assert.ErrorIs(t, err, entity.ErrEventNotFound)
}

func TestPurchaseTicketsUnpublishedEvent(t *testing.T) {
	f := newOrderFixture(t, 10)
	ctx := context.Background()

	draft := &entity.Event{
		Name:             "Unannounced Show",
		Venue:            "Club",
		Date:             time.Now().Add(24 * time.Hour),
		UnitPrice:        decimal.RequireFromString("20.00"),
		TotalTickets:     50,
		AvailableTickets: 50,
		Status:           entity.EventStatusDraft,
	}
	require.NoError(t, f.store.Events().Create(ctx, draft))

	_, err := f.orders.PurchaseTickets(ctx, purchaseReq(draft.ID, 1))
	assert.ErrorIs(t, err, entity.ErrEventNotAvailable)
}

func TestPurchaseTicketsEndedEvent(t *testing.T) {
	f := newOrderFixture(t, 10)
	ctx := context.Background()

	past := &entity.Event{
		Name:             "Yesterday's Gig",
		Venue:            "Arena",
		Date:             time.Now().Add(-24 * time.Hour),
		UnitPrice:        decimal.RequireFromString("20.00"),
		TotalTickets:     50,
		AvailableTickets: 50,
		Status:           entity.EventStatusPublished,
	}
	require.NoError(t, f.store.Events().Create(ctx, past))

	_, err := f.orders.PurchaseTickets(ctx, purchaseReq(past.ID, 1))
	assert.ErrorIs(t, err, entity.ErrEventEnded)
}

func TestPurchaseTicketsInsufficient(t *testing.T) {
	f := newOrderFixture(t, 2)

	_, err := f.orders.PurchaseTickets(context.Background(), purchaseReq(f.eventID, 3))
	assert.ErrorIs(t, err, entity.ErrInsufficientTickets)
	assert.Equal(t, 2, f.available(t))
	assert.Equal(t, 0, f.gateway.ChargeCount())
}

func TestPurchaseTicketsPaymentFailureRollsBack(t *testing.T) {
	f := newOrderFixture(t, 10)
	f.gateway.FailWith = &payment.GatewayError{Code: "card_declined", Message: "card declined"}

	_, err := f.orders.PurchaseTickets(context.Background(), purchaseReq(f.eventID, 2))

	var payErr *entity.PaymentError
	require.ErrorAs(t, err, &payErr)

	// The decrement was rolled back with the unit of work
	assert.Equal(t, 10, f.available(t))
	assert.Equal(t, 0, f.queue.count())

	orders, err := f.store.Orders().GetRecent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestPurchaseTicketsEnqueueFailureRollsBackAndRefunds(t *testing.T) {
	f := newOrderFixture(t, 10)
	f.queue.fail = errors.New("redis unavailable")

	_, err := f.orders.PurchaseTickets(context.Background(), purchaseReq(f.eventID, 2))

	var enqErr *entity.EnqueueError
	require.ErrorAs(t, err, &enqErr)

	assert.Equal(t, 10, f.available(t))
	assert.Equal(t, 1, f.gateway.ChargeCount())
	assert.Equal(t, 1, f.gateway.RefundCount(), "the orphaned charge must be refunded")

	orders, err := f.store.Orders().GetRecent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestPurchaseTicketsIdempotent(t *testing.T) {
	f := newOrderFixture(t, 10)
	ctx := context.Background()

	req := purchaseReq(f.eventID, 2)
	req.IdempotencyKey = "purchase-123"

	first, err := f.orders.PurchaseTickets(ctx, req)
	require.NoError(t, err)

	second, err := f.orders.PurchaseTickets(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 8, f.available(t), "inventory decremented exactly once")
	assert.Equal(t, 1, f.gateway.ChargeCount(), "customer charged exactly once")
	require.NotNil(t, second.Event, "replayed order carries its event")
}

func TestPurchaseTicketsConcurrentOversell(t *testing.T) {
	f := newOrderFixture(t, 5)
	ctx := context.Background()

	const buyers = 5
	results := make(chan error, buyers)

	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			req := &PurchaseRequest{
				EventID:       f.eventID,
				CustomerEmail: fmt.Sprintf("buyer%d@example.com", n),
				CustomerName:  "Buyer",
				Quantity:      2,
			}
			_, err := f.orders.PurchaseTickets(ctx, req)
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	succeeded, insufficient := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, entity.ErrInsufficientTickets):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	// 5 tickets, 5 buyers wanting 2 each: exactly two can win
	assert.Equal(t, 2, succeeded)
	assert.Equal(t, 3, insufficient)
	assert.Equal(t, 1, f.available(t))
	assert.Equal(t, 2, f.gateway.ChargeCount())

	// Conservation: available + confirmed quantity == capacity
	stats, err := f.store.Orders().GetEventOrderStats(ctx, f.eventID)
	require.NoError(t, err)
	assert.Equal(t, f.capacity, f.available(t)+stats.ConfirmedQuantity)
}

func TestCancelOrder(t *testing.T) {
	f := newOrderFixture(t, 10)
	ctx := context.Background()

	order, err := f.orders.PurchaseTickets(ctx, purchaseReq(f.eventID, 4))
	require.NoError(t, err)
	require.Equal(t, 6, f.available(t))

	cancelled, err := f.orders.CancelOrder(ctx, order.ID, "changed my mind")
	require.NoError(t, err)

	assert.Equal(t, entity.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, 10, f.available(t), "tickets returned to the pool")
	assert.Equal(t, 1, f.gateway.RefundCount())
	assert.True(t, f.gateway.Refunded(*order.ChargeID))

	// The cancelled order comes back with the post-increment event
	require.NotNil(t, cancelled.Event)
	assert.Equal(t, 10, cancelled.Event.AvailableTickets)
}

func TestCancelOrderTwice(t *testing.T) {
	f := newOrderFixture(t, 10)
	ctx := context.Background()

	order, err := f.orders.PurchaseTickets(ctx, purchaseReq(f.eventID, 2))
	require.NoError(t, err)

	_, err = f.orders.CancelOrder(ctx, order.ID, "first")
	require.NoError(t, err)

	_, err = f.orders.CancelOrder(ctx, order.ID, "second")
	assert.ErrorIs(t, err, entity.ErrInvalidOrderStatus)

	assert.Equal(t, 1, f.gateway.RefundCount(), "refunded at most once")
	assert.Equal(t, 10, f.available(t), "inventory returned exactly once")
}

func TestCancelOrderConcurrent(t *testing.T) {
	f := newOrderFixture(t, 10)
	ctx := context.Background()

	order, err := f.orders.PurchaseTickets(ctx, purchaseReq(f.eventID, 2))
	require.NoError(t, err)

	const attempts = 8
	results := make(chan error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.orders.CancelOrder(ctx, order.ID, "race")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded, rejected := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, entity.ErrInvalidOrderStatus):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, succeeded, "only one cancellation wins")
	assert.Equal(t, attempts-1, rejected)
	assert.Equal(t, 1, f.gateway.RefundCount())
	assert.Equal(t, 10, f.available(t))
}

func TestCancelOrderRefundFailureLeavesOrderConfirmed(t *testing.T) {
	f := newOrderFixture(t, 10)
	ctx := context.Background()

	order, err := f.orders.PurchaseTickets(ctx, purchaseReq(f.eventID, 2))
	require.NoError(t, err)

	f.gateway.RefundFailWith = &payment.GatewayError{Code: "provider_down", Message: "temporarily unavailable"}

	_, err = f.orders.CancelOrder(ctx, order.ID, "refund will fail")

	var refundErr *entity.RefundError
	require.ErrorAs(t, err, &refundErr)

	// Frozen: the order stays confirmed and inventory untouched, so the
	// cancellation can be retried later
	current, err := f.store.Orders().GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusConfirmed, current.Status)
	assert.Equal(t, 8, f.available(t))

	// Retry succeeds once the provider recovers
	f.gateway.RefundFailWith = nil
	cancelled, err := f.orders.CancelOrder(ctx, order.ID, "retry")
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, 10, f.available(t))
}

func TestCancelOrderNotFound(t *testing.T) {
	f := newOrderFixture(t, 10)

	_, err := f.orders.CancelOrder(context.Background(), 12345, "missing")
	assert.ErrorIs(t, err, entity.ErrOrderNotFound)
}

func TestMarkRefunded(t *testing.T) {
	f := newOrderFixture(t, 10)
	ctx := context.Background()

	order, err := f.orders.PurchaseTickets(ctx, purchaseReq(f.eventID, 1))
	require.NoError(t, err)

	refunded, err := f.orders.MarkRefunded(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusRefunded, refunded.Status)

	// A refunded order cannot be cancelled
	_, err = f.orders.CancelOrder(ctx, order.ID, "late")
	assert.ErrorIs(t, err, entity.ErrInvalidOrderStatus)
}

func TestMarkRefundedRacesCancel(t *testing.T) {
	f := newOrderFixture(t, 10)
	ctx := context.Background()

	order, err := f.orders.PurchaseTickets(ctx, purchaseReq(f.eventID, 2))
	require.NoError(t, err)

	// Both paths lock the order row, so exactly one terminal transition wins
	results := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := f.orders.CancelOrder(ctx, order.ID, "race")
		results <- err
	}()
	go func() {
		defer wg.Done()
		_, err := f.orders.MarkRefunded(ctx, order.ID)
		results <- err
	}()
	wg.Wait()
	close(results)

	succeeded, rejected := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, entity.ErrInvalidOrderStatus):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)

	current, err := f.store.Orders().GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Contains(t, []entity.OrderStatus{entity.OrderStatusCancelled, entity.OrderStatusRefunded}, current.Status)
}

func TestPurchaseWithoutQueue(t *testing.T) {
	store := memory.NewStore()
	gateway := payment.NewFakeGateway()
	orders := NewOrderService(store, gateway, nil, nil)
	ctx := context.Background()

	event := &entity.Event{
		Name:             "No Queue Night",
		Venue:            "Bar",
		Date:             time.Now().Add(48 * time.Hour),
		UnitPrice:        decimal.RequireFromString("15.00"),
		TotalTickets:     20,
		AvailableTickets: 20,
		Status:           entity.EventStatusPublished,
	}
	require.NoError(t, store.Events().Create(ctx, event))

	order, err := orders.PurchaseTickets(ctx, purchaseReq(event.ID, 1))
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusConfirmed, order.Status)
}

var _ database.Store = (*memory.Store)(nil)

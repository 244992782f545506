package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"ticket-office/internal/database"
	"ticket-office/internal/entity"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedEvent(t *testing.T, store *Store, available int) *entity.Event {
	t.Helper()

	event := &entity.Event{
		Name:             "Test Event",
		Venue:            "Test Venue",
		Date:             time.Now().Add(24 * time.Hour),
		UnitPrice:        decimal.RequireFromString("10.00"),
		TotalTickets:     available,
		AvailableTickets: available,
		Status:           entity.EventStatusPublished,
	}
	require.NoError(t, store.Events().Create(context.Background(), event))
	return event
}

func TestWithinTxRollback(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	event := seedEvent(t, store, 10)

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(tx database.Store) error {
		if _, err := tx.Events().DecrementAvailable(ctx, event.ID, 4); err != nil {
			return err
		}
		if err := tx.Orders().Create(ctx, &entity.Order{
			EventID:       event.ID,
			CustomerEmail: "alice@example.com",
			CustomerName:  "Alice",
			Quantity:      4,
			Status:        entity.OrderStatusConfirmed,
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// Everything inside the failed unit of work is gone
	current, err := store.Events().GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, current.AvailableTickets)

	orders, err := store.Orders().GetRecent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestWithinTxCommit(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	event := seedEvent(t, store, 10)

	err := store.WithinTx(ctx, func(tx database.Store) error {
		_, err := tx.Events().DecrementAvailable(ctx, event.ID, 4)
		return err
	})
	require.NoError(t, err)

	current, err := store.Events().GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, current.AvailableTickets)
}

func TestDecrementAvailableClassification(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	_, err := store.Events().DecrementAvailable(ctx, 999, 1)
	assert.ErrorIs(t, err, entity.ErrEventNotFound)

	event := seedEvent(t, store, 2)

	_, err = store.Events().DecrementAvailable(ctx, event.ID, 3)
	assert.ErrorIs(t, err, entity.ErrInsufficientTickets)

	require.NoError(t, store.Events().UpdateStatus(ctx, event.ID, entity.EventStatusCancelled))
	_, err = store.Events().DecrementAvailable(ctx, event.ID, 1)
	assert.ErrorIs(t, err, entity.ErrEventNotAvailable)
}

func TestIdempotencyKeyUniqueness(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	event := seedEvent(t, store, 10)

	key := "unique-key"
	first := &entity.Order{
		EventID:        event.ID,
		CustomerEmail:  "alice@example.com",
		CustomerName:   "Alice",
		Quantity:       1,
		Status:         entity.OrderStatusConfirmed,
		IdempotencyKey: &key,
	}
	require.NoError(t, store.Orders().Create(ctx, first))

	dup := &entity.Order{
		EventID:        event.ID,
		CustomerEmail:  "bob@example.com",
		CustomerName:   "Bob",
		Quantity:       1,
		Status:         entity.OrderStatusConfirmed,
		IdempotencyKey: &key,
	}
	err := store.Orders().Create(ctx, dup)
	assert.ErrorIs(t, err, entity.ErrIdempotencyKeyTaken)

	found, err := store.Orders().GetByIdempotencyKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)
}

func TestReadsReturnCopies(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	event := seedEvent(t, store, 10)

	read, err := store.Events().GetByID(ctx, event.ID)
	require.NoError(t, err)

	// Mutating the returned value must not leak into the store
	read.AvailableTickets = 0

	again, err := store.Events().GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, again.AvailableTickets)
}

func TestUpdateStatusValidatesTransition(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	event := seedEvent(t, store, 10)

	order := &entity.Order{
		EventID:       event.ID,
		CustomerEmail: "alice@example.com",
		CustomerName:  "Alice",
		Quantity:      1,
		Status:        entity.OrderStatusConfirmed,
	}
	require.NoError(t, store.Orders().Create(ctx, order))

	require.NoError(t, store.Orders().UpdateStatus(ctx, order.ID, entity.OrderStatusCancelled))

	err := store.Orders().UpdateStatus(ctx, order.ID, entity.OrderStatusConfirmed)
	assert.ErrorIs(t, err, entity.ErrInvalidOrderStatus)
}

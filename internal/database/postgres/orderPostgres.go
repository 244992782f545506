package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ticket-office/internal/entity"

	"github.com/lib/pq"
)

type orderRepository struct {
	q dbtx
}

const orderColumns = `id, event_id, customer_email, customer_name, quantity, unit_price, total_amount, status, idempotency_key, charge_id, confirmed_at, created_at, updated_at`

const uniqueViolation = "23505"

func scanOrder(row interface{ Scan(...interface{}) error }) (*entity.Order, error) {
	var order entity.Order
	var idempotencyKey, chargeID sql.NullString
	var confirmedAt sql.NullTime

	err := row.Scan(
		&order.ID,
		&order.EventID,
		&order.CustomerEmail,
		&order.CustomerName,
		&order.Quantity,
		&order.UnitPrice,
		&order.TotalAmount,
		&order.Status,
		&idempotencyKey,
		&chargeID,
		&confirmedAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if idempotencyKey.Valid {
		order.IdempotencyKey = &idempotencyKey.String
	}
	if chargeID.Valid {
		order.ChargeID = &chargeID.String
	}
	if confirmedAt.Valid {
		order.ConfirmedAt = &confirmedAt.Time
	}

	return &order, nil
}

// Create inserts the order row. A unique violation on the idempotency key
// index means a concurrent request with the same key won the race; the
// caller resolves it by returning the winner's order.
func (r *orderRepository) Create(ctx context.Context, order *entity.Order) error {
	query := `
		INSERT INTO orders (event_id, customer_email, customer_name, quantity, unit_price, total_amount, status, idempotency_key, charge_id, confirmed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`

	now := time.Now()
	err := r.q.QueryRowContext(ctx, query,
		order.EventID,
		order.CustomerEmail,
		order.CustomerName,
		order.Quantity,
		order.UnitPrice,
		order.TotalAmount,
		order.Status,
		order.IdempotencyKey,
		order.ChargeID,
		order.ConfirmedAt,
		now,
		now,
	).Scan(&order.ID)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return entity.ErrIdempotencyKeyTaken
		}
		return fmt.Errorf("failed to create order: %w", err)
	}

	order.CreatedAt = now
	order.UpdatedAt = now
	return nil
}

func (r *orderRepository) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, entity.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	return order, nil
}

func (r *orderRepository) GetWithEvent(ctx context.Context, id int64) (*entity.Order, error) {
	order, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	event, err := (&eventRepository{q: r.q}).GetByID(ctx, order.EventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order event: %w", err)
	}

	order.Event = event
	return order, nil
}

func (r *orderRepository) GetByIdempotencyKey(ctx context.Context, key string) (*entity.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE idempotency_key = $1`

	order, err := scanOrder(r.q.QueryRowContext(ctx, query, key))
	if err == sql.ErrNoRows {
		return nil, entity.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order by idempotency key: %w", err)
	}

	return order, nil
}

// GetWithLock fetches the order row FOR UPDATE. Concurrent cancellations of
// the same order serialize here; only the first sees status confirmed.
func (r *orderRepository) GetWithLock(ctx context.Context, id int64) (*entity.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

	order, err := scanOrder(r.q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, entity.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order with lock: %w", err)
	}

	return order, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id int64, status entity.OrderStatus) error {
	var current entity.OrderStatus
	query := `SELECT status FROM orders WHERE id = $1`
	err := r.q.QueryRowContext(ctx, query, id).Scan(&current)
	if err == sql.ErrNoRows {
		return entity.ErrOrderNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get current order status: %w", err)
	}

	if !current.CanTransitionTo(status) {
		return entity.ErrInvalidOrderStatus
	}

	query = `UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := r.q.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entity.ErrOrderNotFound
	}

	return nil
}

func (r *orderRepository) GetByEventID(ctx context.Context, eventID int64) ([]*entity.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE event_id = $1 ORDER BY created_at DESC`

	rows, err := r.q.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders by event: %w", err)
	}
	defer rows.Close()

	return collectOrders(rows)
}

func (r *orderRepository) GetByCustomerEmail(ctx context.Context, email string) ([]*entity.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE customer_email = $1 ORDER BY created_at DESC`

	rows, err := r.q.QueryContext(ctx, query, email)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders by customer: %w", err)
	}
	defer rows.Close()

	return collectOrders(rows)
}

func (r *orderRepository) GetRecent(ctx context.Context, limit int) ([]*entity.Order, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC LIMIT $1`

	rows, err := r.q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent orders: %w", err)
	}
	defer rows.Close()

	return collectOrders(rows)
}

func collectOrders(rows *sql.Rows) ([]*entity.Order, error) {
	var orders []*entity.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}

func (r *orderRepository) GetEventOrderStats(ctx context.Context, eventID int64) (*entity.EventOrderStats, error) {
	query := `
		SELECT
			COUNT(*) as total_orders,
			COALESCE(SUM(CASE WHEN status = 'confirmed' THEN 1 ELSE 0 END), 0) as confirmed_orders,
			COALESCE(SUM(CASE WHEN status = 'cancelled' THEN 1 ELSE 0 END), 0) as cancelled_orders,
			COALESCE(SUM(CASE WHEN status = 'refunded' THEN 1 ELSE 0 END), 0) as refunded_orders,
			COALESCE(SUM(CASE WHEN status = 'confirmed' THEN quantity ELSE 0 END), 0) as confirmed_quantity,
			COALESCE(SUM(CASE WHEN status = 'confirmed' THEN total_amount ELSE 0 END), 0) as confirmed_revenue
		FROM orders
		WHERE event_id = $1
	`

	stats := &entity.EventOrderStats{EventID: eventID}
	err := r.q.QueryRowContext(ctx, query, eventID).Scan(
		&stats.TotalOrders,
		&stats.ConfirmedOrders,
		&stats.CancelledOrders,
		&stats.RefundedOrders,
		&stats.ConfirmedQuantity,
		&stats.ConfirmedRevenue,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get event order stats: %w", err)
	}

	return stats, nil
}

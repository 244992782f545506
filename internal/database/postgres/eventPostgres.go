package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ticket-office/internal/entity"
)

type eventRepository struct {
	q dbtx
}

const eventColumns = `id, name, venue, date, unit_price, total_tickets, available_tickets, status, created_at, updated_at`

func scanEvent(row interface{ Scan(...interface{}) error }) (*entity.Event, error) {
	var event entity.Event
	err := row.Scan(
		&event.ID,
		&event.Name,
		&event.Venue,
		&event.Date,
		&event.UnitPrice,
		&event.TotalTickets,
		&event.AvailableTickets,
		&event.Status,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *eventRepository) Create(ctx context.Context, event *entity.Event) error {
	query := `
		INSERT INTO events (name, venue, date, unit_price, total_tickets, available_tickets, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	now := time.Now()
	err := r.q.QueryRowContext(ctx, query,
		event.Name,
		event.Venue,
		event.Date,
		event.UnitPrice,
		event.TotalTickets,
		event.AvailableTickets,
		event.Status,
		now,
		now,
	).Scan(&event.ID)

	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}

	event.CreatedAt = now
	event.UpdatedAt = now
	return nil
}

func (r *eventRepository) GetByID(ctx context.Context, id int64) (*entity.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	event, err := scanEvent(r.q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, entity.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	return event, nil
}

func (r *eventRepository) GetAll(ctx context.Context) ([]*entity.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events ORDER BY date ASC`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

func (r *eventRepository) GetUpcoming(ctx context.Context, limit int) ([]*entity.Event, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE date > $1 AND status = $2
		ORDER BY date ASC
		LIMIT $3
	`

	rows, err := r.q.QueryContext(ctx, query, time.Now(), entity.EventStatusPublished, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query upcoming events: %w", err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

func collectEvents(rows *sql.Rows) ([]*entity.Event, error) {
	var events []*entity.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

// Update persists the mutable catalog fields. Total and available ticket
// counts are never written here; inventory changes go through the ledger
// operations only.
func (r *eventRepository) Update(ctx context.Context, event *entity.Event) error {
	query := `
		UPDATE events
		SET name = $1, venue = $2, date = $3, unit_price = $4, updated_at = $5
		WHERE id = $6
	`

	result, err := r.q.ExecContext(ctx, query,
		event.Name,
		event.Venue,
		event.Date,
		event.UnitPrice,
		time.Now(),
		event.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entity.ErrEventNotFound
	}

	return nil
}

func (r *eventRepository) UpdateStatus(ctx context.Context, id int64, status entity.EventStatus) error {
	query := `UPDATE events SET status = $1, updated_at = $2 WHERE id = $3`

	result, err := r.q.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update event status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entity.ErrEventNotFound
	}

	return nil
}

func (r *eventRepository) Delete(ctx context.Context, id int64) error {
	var orderCount int
	query := `SELECT COUNT(*) FROM orders WHERE event_id = $1`
	if err := r.q.QueryRowContext(ctx, query, id).Scan(&orderCount); err != nil {
		return fmt.Errorf("failed to check event orders: %w", err)
	}

	if orderCount > 0 {
		return entity.ErrEventHasOrders
	}

	query = `DELETE FROM events WHERE id = $1`
	result, err := r.q.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entity.ErrEventNotFound
	}

	return nil
}

// DecrementAvailable subtracts quantity from the available counter in a
// single conditional UPDATE. The row is never read first: existence, status
// and availability are all part of the WHERE clause, so concurrent
// purchases serialize on the row write and the counter can never go
// negative. When no row is affected a secondary read classifies the failure
// for the caller; that read is diagnostic only.
func (r *eventRepository) DecrementAvailable(ctx context.Context, eventID int64, quantity int) (*entity.Event, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d", quantity)
	}

	query := `
		UPDATE events
		SET available_tickets = available_tickets - $2, updated_at = $3
		WHERE id = $1 AND status = $4 AND available_tickets >= $2
		RETURNING ` + eventColumns

	event, err := scanEvent(r.q.QueryRowContext(ctx, query, eventID, quantity, time.Now(), entity.EventStatusPublished))
	if err == nil {
		return event, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to decrement available tickets: %w", err)
	}

	return nil, r.classifyDecrementFailure(ctx, eventID, quantity)
}

func (r *eventRepository) classifyDecrementFailure(ctx context.Context, eventID int64, quantity int) error {
	var status entity.EventStatus
	var available int
	query := `SELECT status, available_tickets FROM events WHERE id = $1`
	err := r.q.QueryRowContext(ctx, query, eventID).Scan(&status, &available)
	if err == sql.ErrNoRows {
		return entity.ErrEventNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to classify decrement failure: %w", err)
	}

	if status != entity.EventStatusPublished {
		return entity.ErrEventNotAvailable
	}
	if available < quantity {
		return entity.ErrInsufficientTickets
	}

	// The conditions held on re-read, so the conditional update lost a
	// race that has since resolved. Report the inventory error; the
	// caller does not retry blindly.
	return entity.ErrInsufficientTickets
}

// IncrementAvailable adds quantity back to the available counter. The add is
// unconditional; at-most-once invocation per cancelled order is guaranteed by
// the cancellation saga's row lock, not here.
func (r *eventRepository) IncrementAvailable(ctx context.Context, eventID int64, quantity int) (*entity.Event, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d", quantity)
	}

	query := `
		UPDATE events
		SET available_tickets = available_tickets + $2, updated_at = $3
		WHERE id = $1
		RETURNING ` + eventColumns

	event, err := scanEvent(r.q.QueryRowContext(ctx, query, eventID, quantity, time.Now()))
	if err == sql.ErrNoRows {
		return nil, entity.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to increment available tickets: %w", err)
	}

	return event, nil
}

func (r *eventRepository) MarkPastCompleted(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE events
		SET status = $1, updated_at = $2
		WHERE date < $2 AND status = $3
	`

	result, err := r.q.ExecContext(ctx, query, entity.EventStatusCompleted, now, entity.EventStatusPublished)
	if err != nil {
		return 0, fmt.Errorf("failed to mark past events completed: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

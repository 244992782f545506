package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"ticket-office/internal/database"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx so the repositories can run
// standalone or inside a unit of work.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type Store struct {
	db   *sql.DB
	q    dbtx
	inTx bool
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

func (s *Store) Events() database.EventRepository {
	return &eventRepository{q: s.q}
}

func (s *Store) Orders() database.OrderRepository {
	return &orderRepository{q: s.q}
}

// WithinTx runs fn inside a single read-committed transaction. The Store
// passed to fn is bound to that transaction; any error from fn rolls the
// whole unit back. Nested calls join the enclosing transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(tx database.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	txStore := &Store{db: s.db, q: tx, inTx: true}
	if err := fn(txStore); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

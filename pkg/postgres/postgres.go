package postgres

import (
	"database/sql"
	"fmt"
	"log"

	"ticket-office/config"

	_ "github.com/lib/pq"
)

func NewPostgresDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Successfully connected to PostgreSQL")
	return db, nil
}

func RunMigrations(db *sql.DB) error {
	// Read migration files and execute them
	// This is a simplified version - you might want to use a proper migration tool
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id SERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			venue VARCHAR(255) NOT NULL,
			date TIMESTAMP NOT NULL,
			unit_price NUMERIC(12,2) NOT NULL,
			total_tickets INTEGER NOT NULL CHECK (total_tickets > 0),
			available_tickets INTEGER NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'draft',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT available_within_total CHECK (available_tickets >= 0 AND available_tickets <= total_tickets)
		)`,

		`CREATE TABLE IF NOT EXISTS orders (
			id SERIAL PRIMARY KEY,
			event_id INTEGER NOT NULL REFERENCES events(id) ON DELETE RESTRICT,
			customer_email VARCHAR(255) NOT NULL,
			customer_name VARCHAR(255) NOT NULL,
			quantity INTEGER NOT NULL CHECK (quantity >= 1 AND quantity <= 10),
			unit_price NUMERIC(12,2) NOT NULL,
			total_amount NUMERIC(12,2) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'confirmed',
			idempotency_key TEXT,
			charge_id TEXT,
			confirmed_at TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		// The idempotency key is unique only when present
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_idempotency_key ON orders(idempotency_key) WHERE idempotency_key IS NOT NULL`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_orders_event_id ON orders(event_id)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_customer_email ON orders(customer_email)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_event_status ON orders(event_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_events_status_date ON events(status, date)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("failed to execute migration: %v", err)
		}
	}

	log.Println("Database migrations completed successfully")
	return nil
}

package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type EventStatus string

const (
	EventStatusDraft     EventStatus = "draft"
	EventStatusPublished EventStatus = "published"
	EventStatusCompleted EventStatus = "completed"
	EventStatusCancelled EventStatus = "cancelled"
)

// Valid reports whether the status is one of the known event statuses.
func (s EventStatus) Valid() bool {
	switch s {
	case EventStatusDraft, EventStatusPublished, EventStatusCompleted, EventStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the status transition is allowed.
// Completed and cancelled are terminal.
func (s EventStatus) CanTransitionTo(next EventStatus) bool {
	switch s {
	case EventStatusDraft:
		return next == EventStatusPublished || next == EventStatusCancelled
	case EventStatusPublished:
		return next == EventStatusCompleted || next == EventStatusCancelled
	}
	return false
}

type Event struct {
	ID               int64           `json:"id" db:"id"`
	Name             string          `json:"name" db:"name"`
	Venue            string          `json:"venue" db:"venue"`
	Date             time.Time       `json:"date" db:"date"`
	UnitPrice        decimal.Decimal `json:"unit_price" db:"unit_price"`
	TotalTickets     int             `json:"total_tickets" db:"total_tickets"`
	AvailableTickets int             `json:"available_tickets" db:"available_tickets"`
	Status           EventStatus     `json:"status" db:"status"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// Purchasable checks the eligibility rules for selling tickets: the event
// must not have ended and must be published. Inventory is checked separately
// by the conditional decrement, not here.
func (e *Event) Purchasable(now time.Time) error {
	if !e.Date.After(now) {
		return ErrEventEnded
	}
	if e.Status != EventStatusPublished {
		return ErrEventNotAvailable
	}
	return nil
}

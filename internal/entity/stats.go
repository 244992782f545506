package entity

import "github.com/shopspring/decimal"

// EventOrderStats aggregates order counts and sold quantities for one event.
type EventOrderStats struct {
	EventID           int64           `json:"event_id"`
	TotalOrders       int             `json:"total_orders"`
	ConfirmedOrders   int             `json:"confirmed_orders"`
	CancelledOrders   int             `json:"cancelled_orders"`
	RefundedOrders    int             `json:"refunded_orders"`
	ConfirmedQuantity int             `json:"confirmed_quantity"`
	ConfirmedRevenue  decimal.Decimal `json:"confirmed_revenue"`
}

package payment

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FakeGateway is an in-process Gateway for development and tests. It records
// every charge and refund and can be told to reject the next calls.
type FakeGateway struct {
	mu       sync.Mutex
	charges  map[string]*ChargeRequest
	refunds  map[string]string
	FailWith *GatewayError
	// RefundFailWith rejects refunds only, leaving charges working.
	RefundFailWith *GatewayError
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		charges: make(map[string]*ChargeRequest),
		refunds: make(map[string]string),
	}
}

func (g *FakeGateway) Charge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.FailWith != nil {
		return nil, g.FailWith
	}

	id := "ch_" + uuid.NewString()
	g.charges[id] = req

	return &ChargeResult{
		ID:        id,
		Status:    "succeeded",
		CreatedAt: time.Now(),
	}, nil
}

func (g *FakeGateway) Refund(ctx context.Context, chargeID string) (*RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.FailWith != nil {
		return nil, g.FailWith
	}
	if g.RefundFailWith != nil {
		return nil, g.RefundFailWith
	}

	if _, ok := g.charges[chargeID]; !ok {
		return nil, &GatewayError{Code: "charge_not_found", Message: "no such charge: " + chargeID}
	}

	id := "re_" + uuid.NewString()
	g.refunds[id] = chargeID

	return &RefundResult{
		ID:        id,
		ChargeID:  chargeID,
		Status:    "succeeded",
		CreatedAt: time.Now(),
	}, nil
}

// ChargeCount returns how many charges were collected.
func (g *FakeGateway) ChargeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.charges)
}

// RefundCount returns how many refunds were issued.
func (g *FakeGateway) RefundCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.refunds)
}

// Refunded reports whether the given charge has been refunded.
func (g *FakeGateway) Refunded(chargeID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, ch := range g.refunds {
		if ch == chargeID {
			return true
		}
	}
	return false
}

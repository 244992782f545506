package payment

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeGatewayChargeAndRefund(t *testing.T) {
	g := NewFakeGateway()
	ctx := context.Background()

	charge, err := g.Charge(ctx, &ChargeRequest{
		Amount:        decimal.RequireFromString("100.00"),
		CustomerEmail: "alice@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "succeeded", charge.Status)
	assert.Equal(t, 1, g.ChargeCount())

	refund, err := g.Refund(ctx, charge.ID)
	require.NoError(t, err)
	assert.Equal(t, charge.ID, refund.ChargeID)
	assert.True(t, g.Refunded(charge.ID))
}

func TestFakeGatewayFailureInjection(t *testing.T) {
	g := NewFakeGateway()
	ctx := context.Background()

	g.FailWith = &GatewayError{Code: "card_declined", Message: "card declined"}

	_, err := g.Charge(ctx, &ChargeRequest{Amount: decimal.RequireFromString("10.00")})
	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "card_declined", gwErr.Code)
	assert.Zero(t, g.ChargeCount())
}

func TestFakeGatewayUnknownCharge(t *testing.T) {
	g := NewFakeGateway()

	_, err := g.Refund(context.Background(), "ch_missing")
	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "charge_not_found", gwErr.Code)
}

package payment

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewStripeGatewayRequiresKey(t *testing.T) {
	_, err := NewStripeGateway(StripeConfig{Logger: zerolog.Nop()})
	require.Error(t, err)

	gateway, err := NewStripeGateway(StripeConfig{SecretKey: "sk_test_123", Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.Equal(t, "bdt", gateway.currency)
	require.Equal(t, "usd", gateway.currencyOf(" USD "))
	require.Equal(t, "bdt", gateway.currencyOf(""))
}

func TestDisabledGatewayRefusesEverything(t *testing.T) {
	var gateway Gateway = Disabled{}

	_, err := gateway.CreateIntent(context.Background(), IntentRequest{Amount: 10})
	require.ErrorIs(t, err, ErrNotConfigured)

	_, err = gateway.Confirm(context.Background(), "pi_123")
	require.ErrorIs(t, err, ErrNotConfigured)

	_, err = gateway.Refund(context.Background(), RefundRequest{Reference: "pi_123"})
	require.ErrorIs(t, err, ErrNotConfigured)
}

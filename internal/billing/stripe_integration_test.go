//go:build integration
// +build integration

package billing

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loadTestConfig loads Stripe test credentials from .env.test
func loadTestConfig(t *testing.T) StripeConfig {
	t.Helper()

	// Load .env.test from project root
	err := godotenv.Load("../../.env.test")
	if err != nil {
		t.Skipf("Skipping integration test: .env.test not found (%v)", err)
	}

	apiKey := os.Getenv("STRIPE_SECRET_KEY")
	if apiKey == "" || apiKey == "sk_test_your_key_here" {
		t.Skip("Skipping integration test: STRIPE_SECRET_KEY not set in .env.test")
	}

	config := StripeConfig{
		APIKey:        apiKey,
		WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		HTTPTimeout:   30 * time.Second,
	}

	// Verify it's a test key, not a live key
	if !config.IsTestMode() {
		t.Fatal("DANGER: Live Stripe key detected! Integration tests must use test mode keys (sk_test_...)")
	}

	return config
}

func newIntegrationGateway(t *testing.T) *StripeGateway {
	t.Helper()
	g, err := NewStripeGateway(loadTestConfig(t))
	require.NoError(t, err, "Failed to create Stripe gateway")
	return g
}

// TestStripeIntegration_IdempotencyKey verifies Stripe returns the original intent for a reused key
func TestStripeIntegration_IdempotencyKey(t *testing.T) {
	g := newIntegrationGateway(t)
	ctx := context.Background()

	params := CreatePaymentIntentParams{
		AmountMinor:    1999,
		Currency:       "gbp",
		Metadata:       map[string]string{"source": "integration_test"},
		IdempotencyKey: "integration_test_" + time.Now().Format("20060102_150405.000000"),
	}

	first, err := g.CreatePaymentIntent(ctx, params)
	require.NoError(t, err)
	assert.NotEmpty(t, first.ClientSecret)
	assert.Equal(t, int64(1999), first.AmountMinor)
	assert.Equal(t, "gbp", first.Currency)

	second, err := g.CreatePaymentIntent(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "same idempotency key must return the same intent")

	fetched, err := g.GetPaymentIntent(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "integration_test", fetched.Metadata["source"])
}

// TestStripeIntegration_CustomerAndPaymentMethods exercises the customer and card lifecycle
func TestStripeIntegration_CustomerAndPaymentMethods(t *testing.T) {
	g := newIntegrationGateway(t)
	ctx := context.Background()

	email := "integration+" + time.Now().Format("20060102150405") + "@example.com"
	customer, err := g.CreateCustomer(ctx, CreateCustomerParams{
		Email:    email,
		Name:     "Integration Test",
		Metadata: map[string]string{"customer_type": "patient", "patient_id": "it-1"},
	})
	require.NoError(t, err)

	// Stripe's customer search is eventually consistent; list by email is not.
	found, err := g.ListCustomersByEmail(ctx, email, 1)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, customer.ID, found[0].ID)

	pm, err := g.AttachPaymentMethod(ctx, "pm_card_visa", customer.ID)
	require.NoError(t, err)
	assert.Equal(t, customer.ID, pm.CustomerID)
	assert.Equal(t, "visa", pm.Brand)

	require.NoError(t, g.SetDefaultPaymentMethod(ctx, customer.ID, pm.ID))

	methods, err := g.ListPaymentMethods(ctx, customer.ID, 10)
	require.NoError(t, err)
	require.Len(t, methods, 1)

	_, err = g.AttachPaymentMethod(ctx, pm.ID, customer.ID)
	if err != nil {
		assert.True(t, IsAlreadyAttached(err), "re-attach should classify as already attached: %v", err)
	}

	require.NoError(t, g.DetachPaymentMethod(ctx, pm.ID))

	methods, err = g.ListPaymentMethods(ctx, customer.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, methods)
}

// TestStripeIntegration_ErrorHandling verifies Stripe errors are classified
func TestStripeIntegration_ErrorHandling(t *testing.T) {
	g := newIntegrationGateway(t)

	_, err := g.GetPaymentIntent(context.Background(), "pi_does_not_exist")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.NotEmpty(t, GatewayMessage(err))

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err = g.GetPaymentIntent(ctx, "pi_does_not_exist")
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
}

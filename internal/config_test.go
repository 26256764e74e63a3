package internal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, uint16(3000), cfg.Port)
	assert.Equal(t, "gbp", cfg.DefaultCurrency)
	assert.Equal(t, 10*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Cache.CustomerTTL)
	assert.Equal(t, time.Minute, cfg.Cache.PaymentMethodTTL)
	assert.Equal(t, 10, cfg.Cache.PaymentMethodPageSize)
	assert.Equal(t, 24*time.Hour, cfg.Webhook.DedupeTTL)
	assert.Equal(t, "payments", cfg.NATS.SubjectPrefix)
	assert.Empty(t, cfg.NATS.URL)
	assert.False(t, cfg.Sentry.Enabled)
	assert.True(t, cfg.Stripe.IsTestMode())
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("GATEWAY_TIMEOUT", "3s")
	t.Setenv("CUSTOMER_CACHE_TTL", "120")
	t.Setenv("DEFAULT_CURRENCY", "EUR")
	t.Setenv("PAYMENT_METHOD_PAGE_SIZE", "25")
	t.Setenv("NATS_URL", "nats://localhost:4222")

	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, uint16(8080), cfg.Port)
	assert.Equal(t, 3*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Cache.CustomerTTL)
	assert.Equal(t, "eur", cfg.DefaultCurrency)
	assert.Equal(t, 25, cfg.Cache.PaymentMethodPageSize)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
}

func TestLoadConfig_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("ENV", "staging")
	t.Setenv("LOG_LEVEL", "verbose")
	t.Setenv("STRIPE_SECRET_KEY", "sk_live_real")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_real")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfig_ProductionRequiresStripeSecrets(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "placeholder secret key",
			env:     map[string]string{"STRIPE_WEBHOOK_SECRET": "whsec_real"},
			wantErr: "STRIPE_SECRET_KEY",
		},
		{
			name:    "placeholder webhook secret",
			env:     map[string]string{"STRIPE_SECRET_KEY": "sk_live_real"},
			wantErr: "STRIPE_WEBHOOK_SECRET",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENV", "prod")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := loadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfig_Rejects(t *testing.T) {
	tests := map[string]string{
		"PAYMENT_METHOD_PAGE_SIZE": "500",
		"DEFAULT_CURRENCY":         "pounds",
		"GATEWAY_TIMEOUT":          "-1s",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := loadConfig()
			assert.Error(t, err)
		})
	}
}

package internal

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/thanksdoc/payrecon/internal/billing"
	"github.com/thanksdoc/payrecon/internal/telemetry"
)

const (
	placeholderSecretKey     = "sk_test_your_key_here"
	placeholderWebhookSecret = "whsec_your_webhook_secret_here"
)

type Config struct {
	Env      string
	LogLevel string
	Port     uint16

	Stripe         billing.StripeConfig
	GatewayTimeout time.Duration

	// DefaultCurrency applies to payment intents created without one.
	DefaultCurrency string

	Cache   CacheConfig
	Webhook WebhookConfig
	NATS    NATSConfig
	Sentry  telemetry.SentryConfig
}

// CacheConfig controls the in-memory customer and payment-method caches.
type CacheConfig struct {
	CustomerTTL      time.Duration
	PaymentMethodTTL time.Duration

	// SweepInterval is how often expired entries are evicted. Zero disables the janitor.
	SweepInterval time.Duration

	PaymentMethodPageSize int
}

type WebhookConfig struct {
	// DedupeTTL is how long a processed event id is remembered.
	DedupeTTL time.Duration
}

// NATSConfig holds the payment outcome publisher settings.
// An empty URL means outcomes are only logged.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
}

func NewConfig() (*Config, error) {
	// Try to load .env from current directory, then walk up to find it (max 2 levels)
	err := godotenv.Load()
	if err != nil {
		dir, _ := os.Getwd()
		found := false
		for i := 0; i < 2; i++ {
			dir = filepath.Join(dir, "..")
			if err := godotenv.Load(filepath.Join(dir, ".env")); err == nil {
				found = true
				break
			}
		}
		if !found {
			slog.Default().Warn("Warning: .env file not found, using environment variables and defaults")
		}
	}

	return loadConfig()
}

func loadConfig() (*Config, error) {
	cfg := &Config{
		Env:      getEnv("ENV", "dev"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Port:     getEnvInt("PORT", 3000),
		Stripe: billing.StripeConfig{
			APIKey:        getEnv("STRIPE_SECRET_KEY", placeholderSecretKey),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", placeholderWebhookSecret),
		},
		GatewayTimeout:  getEnvDuration("GATEWAY_TIMEOUT", 10*time.Second),
		DefaultCurrency: strings.ToLower(getEnv("DEFAULT_CURRENCY", "gbp")),
		Cache: CacheConfig{
			CustomerTTL:           getEnvDuration("CUSTOMER_CACHE_TTL", 10*time.Minute),
			PaymentMethodTTL:      getEnvDuration("PAYMENT_METHOD_CACHE_TTL", time.Minute),
			SweepInterval:         getEnvDuration("CACHE_SWEEP_INTERVAL", 5*time.Minute),
			PaymentMethodPageSize: int(getEnvInt("PAYMENT_METHOD_PAGE_SIZE", 10)),
		},
		Webhook: WebhookConfig{
			DedupeTTL: getEnvDuration("WEBHOOK_DEDUPE_TTL", 24*time.Hour),
		},
		NATS: NATSConfig{
			URL:           getEnv("NATS_URL", ""),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "payments"),
		},
		Sentry: telemetry.SentryConfig{
			DSN:              getEnv("SENTRY_DSN", ""),
			Enabled:          getEnvBool("SENTRY_ENABLED", false), // Disabled by default for development
			Environment:      getEnv("SENTRY_ENVIRONMENT", "development"),
			Release:          getEnv("SENTRY_RELEASE", ""),
			SampleRate:       getEnvFloat("SENTRY_SAMPLE_RATE", 1.0),
			TracesSampleRate: getEnvFloat("SENTRY_TRACES_SAMPLE_RATE", 0.0),
			Debug:            getEnvBool("SENTRY_DEBUG", false),
		},
	}

	// Validate env
	validEnv := cfg.Env == "dev" || cfg.Env == "prod"
	if !validEnv {
		slog.Default().Warn("Invalid environment. Using default: prod", slog.String("env", cfg.Env))
		cfg.Env = "prod"
	}

	// Validate log level
	validLevel := cfg.LogLevel == "info" || cfg.LogLevel == "debug" || cfg.LogLevel == "warn" || cfg.LogLevel == "error"
	if !validLevel {
		slog.Default().Warn("Invalid log level. Using default: info", slog.String("value", cfg.LogLevel))
		cfg.LogLevel = "info"
	}

	if err := cfg.Stripe.Validate(); err != nil {
		return nil, err
	}

	if cfg.Env == "prod" {
		if cfg.Stripe.APIKey == placeholderSecretKey {
			return nil, fmt.Errorf("STRIPE_SECRET_KEY must be set in production environment")
		}
		if cfg.Stripe.WebhookSecret == placeholderWebhookSecret {
			return nil, fmt.Errorf("STRIPE_WEBHOOK_SECRET must be set in production environment")
		}
	}

	if cfg.GatewayTimeout <= 0 {
		return nil, fmt.Errorf("GATEWAY_TIMEOUT must be positive, got %s", cfg.GatewayTimeout)
	}
	if cfg.Cache.CustomerTTL <= 0 || cfg.Cache.PaymentMethodTTL <= 0 {
		return nil, fmt.Errorf("cache TTLs must be positive")
	}
	if cfg.Cache.PaymentMethodPageSize < 1 || cfg.Cache.PaymentMethodPageSize > 100 {
		return nil, fmt.Errorf("PAYMENT_METHOD_PAGE_SIZE must be between 1 and 100, got %d", cfg.Cache.PaymentMethodPageSize)
	}
	if len(cfg.DefaultCurrency) != 3 {
		return nil, fmt.Errorf("DEFAULT_CURRENCY must be a three-letter ISO code, got %q", cfg.DefaultCurrency)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue uint16) uint16 {
	if value := os.Getenv(key); value != "" {
		var intValue uint16
		if _, err := fmt.Sscanf(value, "%d", &intValue); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var floatValue float64
		if _, err := fmt.Sscanf(value, "%f", &floatValue); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("90s", "10m") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	var seconds int64
	if _, err := fmt.Sscanf(value, "%d", &seconds); err == nil {
		return time.Duration(seconds) * time.Second
	}
	slog.Default().Warn("Invalid duration. Using default", slog.String("key", key), slog.String("value", value))
	return defaultValue
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/thanksdoc/payrecon/internal"
	"github.com/thanksdoc/payrecon/internal/billing"
	"github.com/thanksdoc/payrecon/internal/cache"
	"github.com/thanksdoc/payrecon/internal/domain"
	"github.com/thanksdoc/payrecon/internal/handler/api"
	"github.com/thanksdoc/payrecon/internal/handler/webhook"
	"github.com/thanksdoc/payrecon/internal/idempotency"
	"github.com/thanksdoc/payrecon/internal/middleware"
	"github.com/thanksdoc/payrecon/internal/notify"
	"github.com/thanksdoc/payrecon/internal/router"
	"github.com/thanksdoc/payrecon/internal/routes"
	"github.com/thanksdoc/payrecon/internal/service"
	"github.com/thanksdoc/payrecon/internal/telemetry"
)

const (
	metricsNamespace = "payrecon"
	shutdownTimeout  = 15 * time.Second
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	// Error tracking
	flushSentry, err := telemetry.InitSentry(cfg.Sentry, logger)
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	defer flushSentry()

	// Metrics share one registry so /metrics exposes both HTTP and domain series
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	domainMetrics := telemetry.NewMetrics(metricsNamespace, registry)
	httpMetrics := middleware.NewMetrics(metricsNamespace, registry)

	// Initialize Stripe gateway
	logger.Info("Initializing Stripe gateway...")
	stripeConfig := cfg.Stripe
	stripeConfig.HTTPTimeout = cfg.GatewayTimeout + 5*time.Second
	stripeConfig.Transport = &telemetry.HTTPTransport{}
	gateway, err := billing.NewStripeGateway(stripeConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize Stripe gateway: %w", err)
	}
	logger.Info("Stripe gateway initialized", "test_mode", stripeConfig.IsTestMode())

	// Caches
	customers := cache.New[domain.Customer]("customers", cfg.Cache.CustomerTTL, cache.WithObserver(domainMetrics))
	methods := cache.New[[]domain.PaymentMethod]("payment_methods", cfg.Cache.PaymentMethodTTL, cache.WithObserver(domainMetrics))
	seenEvents := cache.New[struct{}]("webhook_events", cfg.Webhook.DedupeTTL, cache.WithObserver(domainMetrics))

	janitorCtx, stopJanitors := context.WithCancel(context.Background())
	defer stopJanitors()
	if cfg.Cache.SweepInterval > 0 {
		customers.StartJanitor(janitorCtx, cfg.Cache.SweepInterval)
		methods.StartJanitor(janitorCtx, cfg.Cache.SweepInterval)
		seenEvents.StartJanitor(janitorCtx, cfg.Cache.SweepInterval)
	}

	// Outcome notifier
	var (
		notifier service.Notifier
		ready    func() error
	)
	if cfg.NATS.URL != "" {
		logger.Info("Connecting to NATS...", "url", cfg.NATS.URL)
		nc, err := notify.Connect(cfg.NATS.URL, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := nc.Drain(); err != nil {
				logger.Error("NATS drain failed", "error", err)
			}
		}()
		notifier = notify.NewNATSNotifier(nc, cfg.NATS.SubjectPrefix, logger)
		ready = func() error {
			if status := nc.Status(); status != nats.CONNECTED {
				return fmt.Errorf("nats: %s", status)
			}
			return nil
		}
		logger.Info("NATS notifier initialized", "prefix", cfg.NATS.SubjectPrefix)
	} else {
		logger.Warn("NATS_URL not set, payment outcomes will only be logged")
		notifier = notify.NewLogNotifier(logger)
	}

	// Initialize services
	opts := service.Options{
		GatewayTimeout: cfg.GatewayTimeout,
		Metrics:        domainMetrics,
		Logger:         logger,
	}
	customerService := service.NewCustomerService(gateway, customers, opts)
	methodService := service.NewPaymentMethodService(gateway, methods, cfg.Cache.PaymentMethodPageSize, opts)
	intentService := service.NewPaymentIntentService(gateway, idempotency.NewGenerator(idempotency.DefaultPrefix), cfg.DefaultCurrency, opts)
	webhookService := service.NewWebhookService(gateway, notifier, seenEvents, opts)

	// ==========================================================================
	// Build router
	// ==========================================================================

	securityConfig := middleware.DefaultSecurityHeadersConfig()
	if cfg.Env == "dev" {
		securityConfig.HSTSMaxAge = 0 // Disable HSTS in development
	}

	r := router.New(
		router.Recovery(logger),
		middleware.RequestID,
		telemetry.SentryMiddleware(),
		httpMetrics.Middleware,
		middleware.SecurityHeaders(securityConfig),
		router.Logger(logger),
		middleware.WithRequestLogger(logger),
	)

	routes.RegisterOpsRoutes(r, routes.OpsDeps{
		Metrics: httpMetrics.Handler(),
		Ready:   ready,
	})
	routes.RegisterAPIRoutes(r, routes.APIDeps{
		Payments: api.NewPaymentsHandler(customerService, methodService, intentService, logger),
	})
	routes.RegisterWebhookRoutes(r, routes.WebhookDeps{
		StripeHandler: webhook.NewStripeHandler(webhookService, logger).HandleWebhook,
	})

	// ==========================================================================
	// Start server
	// ==========================================================================

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.GatewayTimeout * 4,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "address", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("Server stopped")

	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

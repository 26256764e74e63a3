// Package service holds the payment reconciliation operations: customer
// resolution, payment method reconciliation, payment intent issuance and
// webhook dispatch. The four services never call each other; each owns its
// cache instance.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/thanksdoc/payrecon/internal/telemetry"
)

// DefaultGatewayTimeout bounds each gateway call when Options leaves it unset.
const DefaultGatewayTimeout = 10 * time.Second

// Options carries the ambient collaborators shared by every service.
type Options struct {
	// GatewayTimeout bounds each individual gateway call.
	GatewayTimeout time.Duration

	// Metrics may be nil.
	Metrics *telemetry.Metrics

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

func (o Options) withDefaults(service string) Options {
	if o.GatewayTimeout <= 0 {
		o.GatewayTimeout = DefaultGatewayTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	o.Logger = o.Logger.With("service", service)
	return o
}

// gatewayCaller runs gateway calls under a deadline and records their outcome.
type gatewayCaller struct {
	timeout time.Duration
	metrics *telemetry.Metrics
}

func newGatewayCaller(o Options) gatewayCaller {
	return gatewayCaller{timeout: o.GatewayTimeout, metrics: o.Metrics}
}

// call runs fn with a context bounded by the gateway timeout. Caller
// cancellation propagates through the same context.
func (c gatewayCaller) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, finish := telemetry.StartSpan(ctx, "stripe."+op, op)
	defer finish()

	start := time.Now()
	err := fn(ctx)
	c.metrics.ObserveGateway(op, time.Since(start), errorKind(err))
	return err
}

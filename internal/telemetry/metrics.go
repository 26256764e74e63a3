package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for payment reconciliation.
// A nil *Metrics is valid and records nothing, which keeps tests free of
// registry setup.
type Metrics struct {
	// Caches
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	// Gateway calls
	GatewayLatency *prometheus.HistogramVec
	GatewayErrors  *prometheus.CounterVec

	// Payment intents
	IntentsCreated *prometheus.CounterVec
	IntentAmount   *prometheus.HistogramVec

	// Payment methods
	MethodsAttached *prometheus.CounterVec

	// Customers
	CustomersCreated *prometheus.CounterVec

	// Webhooks
	WebhookReceived   *prometheus.CounterVec
	WebhookProcessed  *prometheus.CounterVec
	WebhookFailed     *prometheus.CounterVec
	WebhookDuplicates prometheus.Counter
	SignatureFailures prometheus.Counter
}

// NewMetrics creates all metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "payrecon"
	}
	factory := promauto.With(reg)

	return &Metrics{
		// =======================================================================
		// Caches
		// =======================================================================
		CacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "hits_total",
				Help:      "Total cache lookups served from a fresh entry",
			},
			[]string{"cache"}, // cache: customers, payment_methods, webhook_events
		),
		CacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "misses_total",
				Help:      "Total cache lookups that found no entry or a stale one",
			},
			[]string{"cache"},
		),

		// =======================================================================
		// Gateway
		// =======================================================================
		GatewayLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "request_duration_seconds",
				Help:      "Stripe API call duration (helps differentiate app slowness from Stripe issues)",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"operation"},
		),
		GatewayErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "errors_total",
				Help:      "Total failed Stripe API calls",
			},
			[]string{"operation", "kind"}, // kind: timeout, gateway, already_attached
		),

		// =======================================================================
		// Payments
		// =======================================================================
		IntentsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "payments",
				Name:      "intents_created_total",
				Help:      "Total payment intents created or replayed by idempotency key",
			},
			[]string{"currency", "key_source"}, // key_source: supplied, generated
		),
		IntentAmount: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "payments",
				Name:      "intent_amount_minor",
				Help:      "Payment intent amount distribution in minor units",
				Buckets:   []float64{500, 1000, 2500, 5000, 10000, 25000, 50000, 100000},
			},
			[]string{"currency"},
		),
		MethodsAttached: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "payments",
				Name:      "methods_attached_total",
				Help:      "Total attach requests by outcome",
			},
			[]string{"outcome"}, // outcome: attached, already_attached
		),
		CustomersCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "payments",
				Name:      "customers_resolved_total",
				Help:      "Total customer resolutions that reached the gateway",
			},
			[]string{"customer_type", "outcome"}, // outcome: found, created
		),

		// =======================================================================
		// Webhooks
		// =======================================================================
		WebhookReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "webhooks",
				Name:      "received_total",
				Help:      "Total verified webhook events received",
			},
			[]string{"kind"},
		),
		WebhookProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "webhooks",
				Name:      "processed_total",
				Help:      "Total webhook events dispatched successfully",
			},
			[]string{"kind"},
		),
		WebhookFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "webhooks",
				Name:      "failed_total",
				Help:      "Total webhook events acknowledged but not fully processed",
			},
			[]string{"kind", "reason"}, // reason: malformed, notifier
		),
		WebhookDuplicates: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "webhooks",
				Name:      "duplicates_total",
				Help:      "Total redelivered webhook events skipped",
			},
		),
		SignatureFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "webhooks",
				Name:      "signature_failures_total",
				Help:      "Total webhook requests rejected for an invalid signature",
			},
		),
	}
}

// CacheHit implements cache.Observer.
func (m *Metrics) CacheHit(name string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(name).Inc()
}

// CacheMiss implements cache.Observer.
func (m *Metrics) CacheMiss(name string) {
	if m == nil {
		return
	}
	m.CacheMisses.WithLabelValues(name).Inc()
}

// ObserveGateway records one gateway call. errKind is "" on success.
func (m *Metrics) ObserveGateway(operation string, elapsed time.Duration, errKind string) {
	if m == nil {
		return
	}
	m.GatewayLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
	if errKind != "" {
		m.GatewayErrors.WithLabelValues(operation, errKind).Inc()
	}
}

// IntentCreated records a created payment intent.
func (m *Metrics) IntentCreated(currency, keySource string, amountMinor int64) {
	if m == nil {
		return
	}
	m.IntentsCreated.WithLabelValues(currency, keySource).Inc()
	m.IntentAmount.WithLabelValues(currency).Observe(float64(amountMinor))
}

// MethodAttached records an attach outcome.
func (m *Metrics) MethodAttached(alreadyAttached bool) {
	if m == nil {
		return
	}
	outcome := "attached"
	if alreadyAttached {
		outcome = "already_attached"
	}
	m.MethodsAttached.WithLabelValues(outcome).Inc()
}

// CustomerResolved records a customer lookup that reached the gateway.
func (m *Metrics) CustomerResolved(customerType string, created bool) {
	if m == nil {
		return
	}
	outcome := "found"
	if created {
		outcome = "created"
	}
	m.CustomersCreated.WithLabelValues(customerType, outcome).Inc()
}

// WebhookEvent records a verified event and its dispatch result.
// reason is "" when the event was handled cleanly.
func (m *Metrics) WebhookEvent(kind, reason string) {
	if m == nil {
		return
	}
	m.WebhookReceived.WithLabelValues(kind).Inc()
	if reason == "" {
		m.WebhookProcessed.WithLabelValues(kind).Inc()
		return
	}
	m.WebhookFailed.WithLabelValues(kind, reason).Inc()
}

// WebhookDuplicate records a skipped redelivery.
func (m *Metrics) WebhookDuplicate() {
	if m == nil {
		return
	}
	m.WebhookDuplicates.Inc()
}

// SignatureFailure records a rejected webhook signature.
func (m *Metrics) SignatureFailure() {
	if m == nil {
		return
	}
	m.SignatureFailures.Inc()
}

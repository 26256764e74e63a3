package routes

import (
	"net/http"

	"github.com/thanksdoc/payrecon/internal/handler/api"
)

// APIDeps contains dependencies for the reconciliation API routes
type APIDeps struct {
	Payments *api.PaymentsHandler
}

// WebhookDeps contains dependencies for webhook routes
type WebhookDeps struct {
	StripeHandler http.HandlerFunc
}

// OpsDeps contains dependencies for operational endpoints
type OpsDeps struct {
	// Metrics serves the Prometheus exposition format. Nil disables /metrics.
	Metrics http.Handler

	// Ready reports whether downstream dependencies are usable. Nil means always ready.
	Ready func() error
}

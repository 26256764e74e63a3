package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/thanksdoc/payrecon/internal/domain"
	"github.com/thanksdoc/payrecon/internal/handler"
	"github.com/thanksdoc/payrecon/internal/middleware"
	"github.com/thanksdoc/payrecon/internal/service"
)

// SignatureHeader carries Stripe's timestamped HMAC signature.
const SignatureHeader = "Stripe-Signature"

// EventHandler verifies and dispatches one raw webhook delivery.
type EventHandler interface {
	Handle(ctx context.Context, payload []byte, signature string) (service.Ack, error)
}

// StripeHandler handles Stripe webhook events
type StripeHandler struct {
	events EventHandler
	logger *slog.Logger
}

// NewStripeHandler creates a new Stripe webhook handler
func NewStripeHandler(events EventHandler, logger *slog.Logger) *StripeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeHandler{events: events, logger: logger}
}

// HandleWebhook processes incoming Stripe webhook events
//
// The body is read in full and handed over as raw bytes, since the signature
// covers the exact payload Stripe sent. Only a failed signature is answered
// with an error; every verified delivery gets 200 so Stripe stops retrying.
//
// Stripe CLI testing:
//
//	stripe listen --forward-to localhost:3000/webhooks/stripe
//	stripe trigger payment_intent.succeeded
func (h *StripeHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger := middleware.GetLogger(r.Context(), h.logger)

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			handler.ErrorResponse(w, r, domain.Errorf(domain.ETOOLARGE, "webhook.read", "Webhook payload too large"))
			return
		}
		handler.ErrorResponse(w, r, domain.WrapError(err, domain.EINVALID, "webhook.read", "Error reading request body"))
		return
	}

	ack, err := h.events.Handle(r.Context(), payload, r.Header.Get(SignatureHeader))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	logger.Debug("webhook acknowledged",
		"event_id", ack.EventID,
		"event_type", ack.Type,
		"handled", ack.Handled,
		"duplicate", ack.Duplicate,
		"duration", time.Since(start),
	)
	handler.JSON(w, http.StatusOK, ack)
}

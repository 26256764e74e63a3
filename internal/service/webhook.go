package service

import (
	"context"
	"log/slog"

	"github.com/thanksdoc/payrecon/internal/billing"
	"github.com/thanksdoc/payrecon/internal/cache"
	"github.com/thanksdoc/payrecon/internal/domain"
	"github.com/thanksdoc/payrecon/internal/telemetry"
)

// Ack is returned for every webhook whose signature verified.
type Ack struct {
	Received  bool   `json:"received"`
	EventID   string `json:"event_id,omitempty"`
	Type      string `json:"type,omitempty"`
	Handled   bool   `json:"handled"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// Webhook failure reasons recorded in metrics.
const (
	reasonMalformed = "malformed"
	reasonNotifier  = "notifier"
)

// WebhookService verifies and dispatches gateway callbacks.
type WebhookService struct {
	gateway  billing.Gateway
	notifier Notifier
	seen     *cache.Cache[struct{}]
	opts     Options
	logger   *slog.Logger
}

// NewWebhookService creates a WebhookService. seen remembers dispatched event
// ids so redeliveries are acknowledged without notifying twice; it may be nil.
func NewWebhookService(gateway billing.Gateway, notifier Notifier, seen *cache.Cache[struct{}], opts Options) *WebhookService {
	opts = opts.withDefaults("webhook")
	return &WebhookService{
		gateway:  gateway,
		notifier: notifier,
		seen:     seen,
		opts:     opts,
		logger:   opts.Logger,
	}
}

// Handle verifies payload against signature and dispatches the event.
//
// The signature is checked over the raw bytes before anything is decoded; a
// failure is the only error Handle returns. Once verified, the event is always
// acknowledged: unparseable bodies, unhandled types and notifier failures are
// logged and counted but never surface to the gateway as errors, because a
// non-2xx reply would only make it redeliver the same event.
func (s *WebhookService) Handle(ctx context.Context, payload []byte, signature string) (Ack, error) {
	if err := s.gateway.VerifyWebhook(payload, signature); err != nil {
		s.opts.Metrics.SignatureFailure()
		s.logger.Warn("webhook signature verification failed",
			"error", err,
			"payload_bytes", len(payload),
			"signature_present", signature != "",
		)
		telemetry.CaptureSecurityEvent(ctx, "webhook signature verification failed", map[string]string{
			"webhook": "stripe",
		})
		return Ack{}, domain.SignatureInvalid(err, opHandleWebhook)
	}

	parsed, err := s.gateway.ParseWebhookEvent(payload)
	if err != nil {
		s.opts.Metrics.WebhookEvent(domain.EventUnhandled.String(), reasonMalformed)
		s.logger.Warn("verified webhook could not be parsed", "error", err)
		return Ack{Received: true}, nil
	}

	event := domain.WebhookEvent{
		ID:     parsed.ID,
		Type:   parsed.Type,
		Kind:   domain.ParseEventKind(parsed.Type),
		Object: parsed.Object,
	}
	ack := Ack{Received: true, EventID: event.ID, Type: event.Type}
	logger := s.logger.With("event_id", event.ID, "event_type", event.Type)

	// The id is claimed before dispatch so concurrent deliveries of one event
	// notify once. A delivery arriving while the first is in flight is
	// reported as a duplicate.
	claimed := s.seen != nil && event.ID != ""
	if claimed {
		if !s.seen.PutIfAbsent(event.ID, struct{}{}) {
			s.opts.Metrics.WebhookDuplicate()
			logger.Info("duplicate webhook delivery skipped")
			ack.Duplicate = true
			ack.Handled = true
			return ack, nil
		}
	}

	telemetry.AddBreadcrumb("webhook", "received "+event.Type, map[string]interface{}{
		"event_id": event.ID,
	})

	switch event.Kind {
	case domain.EventPaymentSucceeded, domain.EventPaymentFailed:
		if parsed.PaymentIntent == nil {
			s.opts.Metrics.WebhookEvent(event.Kind.String(), reasonMalformed)
			logger.Warn("payment intent event carried no payment intent")
			return ack, nil
		}

		outcome := toOutcome(parsed)
		if err := s.notify(ctx, event.Kind, outcome); err != nil {
			if claimed {
				s.seen.Invalidate(event.ID)
			}
			s.opts.Metrics.WebhookEvent(event.Kind.String(), reasonNotifier)
			logger.Error("failed to notify payment outcome",
				"error", err,
				"payment_intent_id", outcome.IntentID,
			)
			telemetry.CaptureErrorFromContext(ctx, domain.WrapError(err, domain.EINTERNAL, opNotifyPaymentDone, "notifier failed"), map[string]interface{}{
				"event_id":          event.ID,
				"payment_intent_id": outcome.IntentID,
			})
			return ack, nil
		}

		ack.Handled = true
		logger.Info("payment outcome dispatched",
			"payment_intent_id", outcome.IntentID,
			"amount", outcome.AmountMinor,
			"currency", outcome.Currency,
		)
	default:
		logger.Info("unhandled webhook event type")
	}

	s.opts.Metrics.WebhookEvent(event.Kind.String(), "")
	return ack, nil
}

func (s *WebhookService) notify(ctx context.Context, kind domain.EventKind, outcome domain.PaymentOutcome) error {
	if s.notifier == nil {
		return nil
	}
	if kind == domain.EventPaymentFailed {
		return s.notifier.PaymentFailed(ctx, outcome)
	}
	return s.notifier.PaymentSucceeded(ctx, outcome)
}

func toOutcome(e *billing.Event) domain.PaymentOutcome {
	pi := e.PaymentIntent
	outcome := domain.PaymentOutcome{
		EventID:     e.ID,
		IntentID:    pi.ID,
		AmountMinor: pi.AmountMinor,
		Currency:    pi.Currency,
		Metadata:    pi.Metadata,
		OccurredAt:  e.Created,
	}
	if pi.LastPaymentError != nil {
		outcome.FailureCode = pi.LastPaymentError.Code
		outcome.FailureMessage = pi.LastPaymentError.Message
	}
	return outcome
}

package notify

import (
	"context"
	"log/slog"

	"github.com/thanksdoc/payrecon/internal/domain"
)

// LogNotifier records outcomes in the log. Used when no broker is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) PaymentSucceeded(ctx context.Context, outcome domain.PaymentOutcome) error {
	n.logger.InfoContext(ctx, "payment succeeded",
		"event_id", outcome.EventID,
		"intent_id", outcome.IntentID,
		"amount", outcome.AmountMinor,
		"currency", outcome.Currency,
	)
	return nil
}

func (n *LogNotifier) PaymentFailed(ctx context.Context, outcome domain.PaymentOutcome) error {
	n.logger.WarnContext(ctx, "payment failed",
		"event_id", outcome.EventID,
		"intent_id", outcome.IntentID,
		"amount", outcome.AmountMinor,
		"currency", outcome.Currency,
		"failure_code", outcome.FailureCode,
		"failure_message", outcome.FailureMessage,
	)
	return nil
}

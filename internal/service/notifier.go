package service

import (
	"context"

	"github.com/thanksdoc/payrecon/internal/domain"
)

// Notifier tells the business backend that a payment intent settled.
// Implementations must be safe for concurrent use.
type Notifier interface {
	PaymentSucceeded(ctx context.Context, outcome domain.PaymentOutcome) error
	PaymentFailed(ctx context.Context, outcome domain.PaymentOutcome) error
}

package billing

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v82"
)

var (
	// ErrInvalidAPIKey is returned when Stripe API key is invalid or missing.
	ErrInvalidAPIKey = errors.New("billing: invalid or missing API key")

	// ErrInvalidWebhookSignature is returned when webhook signature verification fails.
	ErrInvalidWebhookSignature = errors.New("billing: invalid webhook signature")

	// ErrMalformedEvent is returned when a verified webhook payload cannot be decoded.
	ErrMalformedEvent = errors.New("billing: malformed webhook event")
)

// Stripe error codes checked structurally.
const (
	codeResourceAlreadyExists = "resource_already_exists"
	codeResourceMissing       = "resource_missing"
)

// GatewayError wraps a Stripe API error with additional context.
type GatewayError struct {
	Op          string // Gateway operation, e.g. "attach_payment_method"
	Message     string // Human-readable error message from Stripe
	Code        string // Stripe error code (e.g., "card_declined")
	DeclineCode string // Card decline reason (if applicable)
	Type        string // Stripe error type (e.g., "invalid_request_error")
	HTTPStatus  int    // HTTP status code from Stripe
	RequestID   string // Stripe request ID for debugging
	Err         error  // Original error from Stripe SDK
}

func (e *GatewayError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("stripe %s: %s (code: %s)", e.Op, e.Message, e.Code)
	}
	return fmt.Sprintf("stripe %s: %s", e.Op, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// IsDeclined returns true if error is due to card decline.
func (e *GatewayError) IsDeclined() bool {
	return e.Code == string(stripe.ErrorCodeCardDeclined) || e.DeclineCode != ""
}

// IsTemporary returns true if error is likely transient and retryable by the caller.
func (e *GatewayError) IsTemporary() bool {
	return e.Code == "rate_limit" || e.Code == "api_connection_error" ||
		e.HTTPStatus == http.StatusTooManyRequests || e.HTTPStatus >= http.StatusInternalServerError
}

// wrapStripeError converts SDK errors into *GatewayError. Context and
// transport errors are returned as-is so timeout detection still works.
func wrapStripeError(op string, err error) error {
	if err == nil {
		return nil
	}

	var se *stripe.Error
	if !errors.As(err, &se) {
		return err
	}

	return &GatewayError{
		Op:          op,
		Message:     se.Msg,
		Code:        string(se.Code),
		DeclineCode: string(se.DeclineCode),
		Type:        string(se.Type),
		HTTPStatus:  se.HTTPStatusCode,
		RequestID:   se.RequestID,
		Err:         err,
	}
}

// GatewayMessage returns the gateway's own description of err, or "" if err
// did not come from the gateway.
func GatewayMessage(err error) string {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Message
	}
	return ""
}

// IsAlreadyAttached reports whether an attach failed only because the payment
// method is already attached.
func IsAlreadyAttached(err error) bool {
	var ge *GatewayError
	if !errors.As(err, &ge) {
		return false
	}
	if ge.Code == codeResourceAlreadyExists {
		return true
	}
	return alreadyAttachedMessage(ge)
}

// alreadyAttachedMessage matches Stripe's wording for attach races that come
// back without a dedicated error code. Keep message matching confined here.
func alreadyAttachedMessage(ge *GatewayError) bool {
	if ge.Type != "" && ge.Type != string(stripe.ErrorTypeInvalidRequest) {
		return false
	}
	return strings.Contains(strings.ToLower(ge.Message), "already been attached")
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// IsNotFound reports whether the gateway said the resource does not exist.
func IsNotFound(err error) bool {
	var ge *GatewayError
	if !errors.As(err, &ge) {
		return false
	}
	return ge.Code == codeResourceMissing || ge.HTTPStatus == http.StatusNotFound
}

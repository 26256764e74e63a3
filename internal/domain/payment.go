package domain

import (
	"encoding/json"
	"time"
)

// DefaultCurrency is used when a payment intent request names no currency.
const DefaultCurrency = "gbp"

// CustomerType distinguishes the two kinds of identity a gateway customer can represent.
type CustomerType string

const (
	CustomerTypePatient  CustomerType = "patient"
	CustomerTypeBusiness CustomerType = "business"
)

// Customer is the gateway-side customer record. It is created or fetched,
// never deleted. Exactly one of PatientID and BusinessID is set.
type Customer struct {
	ID         string       `json:"id"`
	Email      string       `json:"email"`
	Name       string       `json:"name,omitempty"`
	Type       CustomerType `json:"customer_type"`
	PatientID  string       `json:"patient_id,omitempty"`
	BusinessID string       `json:"business_id,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

// PaymentMethod is the reduced card projection of a gateway payment method.
type PaymentMethod struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id,omitempty"`
	Brand      string    `json:"brand,omitempty"`
	Last4      string    `json:"last4,omitempty"`
	ExpMonth   int64     `json:"exp_month,omitempty"`
	ExpYear    int64     `json:"exp_year,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// PaymentIntent is created exactly once per idempotency key at the gateway.
type PaymentIntent struct {
	ID             string            `json:"id"`
	ClientSecret   string            `json:"client_secret,omitempty"`
	AmountMinor    int64             `json:"amount"`
	Currency       string            `json:"currency"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Status         string            `json:"status"`
}

// EventKind is the closed set of webhook event variants this service acts on.
// Every type not listed decodes to EventUnhandled.
type EventKind int

const (
	EventUnhandled EventKind = iota
	EventPaymentSucceeded
	EventPaymentFailed
)

// Gateway event type strings for the handled kinds.
const (
	EventTypePaymentSucceeded = "payment_intent.succeeded"
	EventTypePaymentFailed    = "payment_intent.payment_failed"
)

// ParseEventKind maps a gateway event type onto its kind.
func ParseEventKind(eventType string) EventKind {
	switch eventType {
	case EventTypePaymentSucceeded:
		return EventPaymentSucceeded
	case EventTypePaymentFailed:
		return EventPaymentFailed
	default:
		return EventUnhandled
	}
}

// String returns a stable label for logs and metrics.
func (k EventKind) String() string {
	switch k {
	case EventPaymentSucceeded:
		return "payment_succeeded"
	case EventPaymentFailed:
		return "payment_failed"
	default:
		return "unhandled"
	}
}

// WebhookEvent is a verified inbound gateway callback. It is built once,
// dispatched and discarded.
type WebhookEvent struct {
	ID     string
	Type   string
	Kind   EventKind
	Object json.RawMessage
}

// PaymentOutcome is what the business backend is told about a settled intent.
type PaymentOutcome struct {
	EventID        string            `json:"event_id"`
	IntentID       string            `json:"payment_intent_id"`
	AmountMinor    int64             `json:"amount"`
	Currency       string            `json:"currency"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	FailureCode    string            `json:"failure_code,omitempty"`
	FailureMessage string            `json:"failure_message,omitempty"`
	OccurredAt     time.Time         `json:"occurred_at"`
}

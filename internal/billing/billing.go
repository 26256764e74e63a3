package billing

import (
	"context"
	"encoding/json"
	"time"
)

// Gateway is the capability set payrecon needs from a payment processor.
// StripeGateway implements it against the Stripe API; MockGateway is used in tests.
type Gateway interface {
	// CreatePaymentIntent creates a payment intent. The idempotency key is
	// forwarded verbatim so the gateway collapses retries into one intent.
	CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error)

	// GetPaymentIntent retrieves an existing payment intent.
	GetPaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error)

	// ListCustomersByEmail returns up to limit customers whose email matches exactly.
	// An empty slice means no match, not an error.
	ListCustomersByEmail(ctx context.Context, email string, limit int) ([]Customer, error)

	// CreateCustomer creates a customer record.
	CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error)

	// ListPaymentMethods returns up to limit card payment methods attached to a customer.
	ListPaymentMethods(ctx context.Context, customerID string, limit int) ([]PaymentMethod, error)

	// GetPaymentMethod retrieves a payment method including its current owner.
	GetPaymentMethod(ctx context.Context, methodID string) (*PaymentMethod, error)

	// AttachPaymentMethod attaches a payment method to a customer.
	AttachPaymentMethod(ctx context.Context, methodID, customerID string) (*PaymentMethod, error)

	// DetachPaymentMethod detaches a payment method from whichever customer owns it.
	DetachPaymentMethod(ctx context.Context, methodID string) error

	// SetDefaultPaymentMethod sets the customer's default method for invoices and payments.
	SetDefaultPaymentMethod(ctx context.Context, customerID, methodID string) error

	// VerifyWebhook checks the signature header against the raw payload.
	// It must not parse the payload.
	VerifyWebhook(payload []byte, signature string) error

	// ParseWebhookEvent decodes an already verified payload.
	ParseWebhookEvent(payload []byte) (*Event, error)
}

// CreateCustomerParams contains parameters for creating a customer.
type CreateCustomerParams struct {
	Email          string
	Name           string
	Metadata       map[string]string
	IdempotencyKey string
}

// Customer represents a billing customer.
type Customer struct {
	ID        string
	Email     string
	Name      string
	Metadata  map[string]string
	CreatedAt time.Time
}

// CreatePaymentIntentParams contains parameters for creating a payment intent.
type CreatePaymentIntentParams struct {
	// AmountMinor is the amount in the currency's smallest unit (pence for GBP).
	AmountMinor int64

	// Currency code (ISO 4217, lower case) - e.g., "gbp", "usd"
	Currency string

	// CustomerID is optional - if provided, links payment to existing customer
	CustomerID string

	// Metadata is passed through to the gateway untouched
	Metadata map[string]string

	// IdempotencyKey prevents duplicate payment intents
	IdempotencyKey string
}

// PaymentIntent represents a gateway payment intent.
type PaymentIntent struct {
	ID           string
	ClientSecret string
	AmountMinor  int64
	Currency     string
	Status       string
	CustomerID   string
	Metadata     map[string]string

	// LastPaymentError is set on failed intents.
	LastPaymentError *PaymentError

	CreatedAt time.Time
}

// PaymentError describes why the last payment attempt on an intent failed.
type PaymentError struct {
	Code        string
	DeclineCode string
	Message     string
}

// PaymentMethod represents a card payment method.
type PaymentMethod struct {
	ID         string
	CustomerID string
	Type       string
	Brand      string
	Last4      string
	ExpMonth   int64
	ExpYear    int64
	CreatedAt  time.Time
}

// Event is a verified webhook event.
type Event struct {
	ID      string
	Type    string
	Created time.Time

	// Object is the raw data.object of the event.
	Object json.RawMessage

	// PaymentIntent is decoded from Object for payment_intent.* events.
	PaymentIntent *PaymentIntent
}

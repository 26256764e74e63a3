package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeGateway implements Gateway using the Stripe API.
type StripeGateway struct {
	client        *client.API
	webhookSecret string
}

// NewStripeGateway creates a Stripe-backed gateway.
// The SDK's own network retries are disabled: retry policy belongs to callers,
// who retry with the same idempotency key.
func NewStripeGateway(cfg StripeConfig) (*StripeGateway, error) {
	if cfg.APIKey == "" {
		return nil, ErrInvalidAPIKey
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout, Transport: cfg.Transport}

	backendConfig := func() *stripe.BackendConfig {
		return &stripe.BackendConfig{
			HTTPClient:        httpClient,
			MaxNetworkRetries: stripe.Int64(0),
		}
	}

	sc := &client.API{}
	sc.Init(cfg.APIKey, &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig()),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendConfig()),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendConfig()),
	})

	return &StripeGateway{
		client:        sc,
		webhookSecret: cfg.WebhookSecret,
	}, nil
}

// CreatePaymentIntent creates a Stripe payment intent.
func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error) {
	p := &stripe.PaymentIntentParams{
		Params: stripe.Params{
			Context: ctx,
		},
		Amount:   stripe.Int64(params.AmountMinor),
		Currency: stripe.String(params.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if params.IdempotencyKey != "" {
		p.IdempotencyKey = stripe.String(params.IdempotencyKey)
	}
	if params.CustomerID != "" {
		p.Customer = stripe.String(params.CustomerID)
	}
	for k, v := range params.Metadata {
		p.AddMetadata(k, v)
	}

	pi, err := g.client.PaymentIntents.New(p)
	if err != nil {
		return nil, wrapStripeError("create_payment_intent", err)
	}
	return toPaymentIntent(pi), nil
}

// GetPaymentIntent retrieves a Stripe payment intent.
func (g *StripeGateway) GetPaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error) {
	pi, err := g.client.PaymentIntents.Get(intentID, &stripe.PaymentIntentParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return nil, wrapStripeError("get_payment_intent", err)
	}
	return toPaymentIntent(pi), nil
}

// ListCustomersByEmail lists customers with an exact email match.
func (g *StripeGateway) ListCustomersByEmail(ctx context.Context, email string, limit int) ([]Customer, error) {
	if limit <= 0 {
		limit = 1
	}

	params := &stripe.CustomerListParams{
		Email: stripe.String(email),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(int64(limit))

	var customers []Customer
	iter := g.client.Customers.List(params)
	for iter.Next() {
		customers = append(customers, toCustomer(iter.Customer()))
		if len(customers) >= limit {
			break
		}
	}
	if err := iter.Err(); err != nil {
		return nil, wrapStripeError("list_customers", err)
	}
	return customers, nil
}

// CreateCustomer creates a Stripe customer.
func (g *StripeGateway) CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error) {
	p := &stripe.CustomerParams{
		Params: stripe.Params{
			Context: ctx,
		},
		Email: stripe.String(params.Email),
	}
	if params.Name != "" {
		p.Name = stripe.String(params.Name)
	}
	if params.IdempotencyKey != "" {
		p.IdempotencyKey = stripe.String(params.IdempotencyKey)
	}
	for k, v := range params.Metadata {
		p.AddMetadata(k, v)
	}

	c, err := g.client.Customers.New(p)
	if err != nil {
		return nil, wrapStripeError("create_customer", err)
	}
	customer := toCustomer(c)
	return &customer, nil
}

// ListPaymentMethods lists card payment methods attached to a customer.
func (g *StripeGateway) ListPaymentMethods(ctx context.Context, customerID string, limit int) ([]PaymentMethod, error) {
	if limit <= 0 {
		limit = 10
	}

	params := &stripe.PaymentMethodListParams{
		Customer: stripe.String(customerID),
		Type:     stripe.String(string(stripe.PaymentMethodTypeCard)),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(int64(limit))

	methods := []PaymentMethod{}
	iter := g.client.PaymentMethods.List(params)
	for iter.Next() {
		methods = append(methods, toPaymentMethod(iter.PaymentMethod()))
		if len(methods) >= limit {
			break
		}
	}
	if err := iter.Err(); err != nil {
		return nil, wrapStripeError("list_payment_methods", err)
	}
	return methods, nil
}

// GetPaymentMethod retrieves a Stripe payment method.
func (g *StripeGateway) GetPaymentMethod(ctx context.Context, methodID string) (*PaymentMethod, error) {
	pm, err := g.client.PaymentMethods.Get(methodID, &stripe.PaymentMethodParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return nil, wrapStripeError("get_payment_method", err)
	}
	method := toPaymentMethod(pm)
	return &method, nil
}

// AttachPaymentMethod attaches a payment method to a customer.
func (g *StripeGateway) AttachPaymentMethod(ctx context.Context, methodID, customerID string) (*PaymentMethod, error) {
	pm, err := g.client.PaymentMethods.Attach(methodID, &stripe.PaymentMethodAttachParams{
		Params:   stripe.Params{Context: ctx},
		Customer: stripe.String(customerID),
	})
	if err != nil {
		return nil, wrapStripeError("attach_payment_method", err)
	}
	method := toPaymentMethod(pm)
	return &method, nil
}

// DetachPaymentMethod detaches a payment method from its customer.
func (g *StripeGateway) DetachPaymentMethod(ctx context.Context, methodID string) error {
	_, err := g.client.PaymentMethods.Detach(methodID, &stripe.PaymentMethodDetachParams{
		Params: stripe.Params{Context: ctx},
	})
	return wrapStripeError("detach_payment_method", err)
}

// SetDefaultPaymentMethod updates the customer's invoice default payment method.
func (g *StripeGateway) SetDefaultPaymentMethod(ctx context.Context, customerID, methodID string) error {
	_, err := g.client.Customers.Update(customerID, &stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
		InvoiceSettings: &stripe.CustomerInvoiceSettingsParams{
			DefaultPaymentMethod: stripe.String(methodID),
		},
	})
	return wrapStripeError("set_default_payment_method", err)
}

// VerifyWebhook checks the Stripe-Signature header over the raw payload
// using the default 300s timestamp tolerance.
func (g *StripeGateway) VerifyWebhook(payload []byte, signature string) error {
	if err := webhook.ValidatePayload(payload, signature, g.webhookSecret); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWebhookSignature, err)
	}
	return nil
}

// ParseWebhookEvent decodes a verified Stripe event.
func (g *StripeGateway) ParseWebhookEvent(payload []byte) (*Event, error) {
	var se stripe.Event
	if err := json.Unmarshal(payload, &se); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if se.ID == "" || se.Type == "" {
		return nil, fmt.Errorf("%w: missing id or type", ErrMalformedEvent)
	}

	event := &Event{
		ID:      se.ID,
		Type:    string(se.Type),
		Created: time.Unix(se.Created, 0).UTC(),
	}
	if se.Data != nil {
		event.Object = se.Data.Raw
	}

	if strings.HasPrefix(event.Type, "payment_intent.") && len(event.Object) > 0 {
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Object, &pi); err != nil {
			return nil, fmt.Errorf("%w: payment intent: %v", ErrMalformedEvent, err)
		}
		event.PaymentIntent = toPaymentIntent(&pi)
	}

	return event, nil
}

func toPaymentIntent(pi *stripe.PaymentIntent) *PaymentIntent {
	out := &PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountMinor:  pi.Amount,
		Currency:     string(pi.Currency),
		Status:       string(pi.Status),
		Metadata:     pi.Metadata,
	}
	if pi.Created > 0 {
		out.CreatedAt = time.Unix(pi.Created, 0).UTC()
	}
	if pi.Customer != nil {
		out.CustomerID = pi.Customer.ID
	}
	if pi.LastPaymentError != nil {
		out.LastPaymentError = &PaymentError{
			Code:        string(pi.LastPaymentError.Code),
			DeclineCode: string(pi.LastPaymentError.DeclineCode),
			Message:     pi.LastPaymentError.Msg,
		}
	}
	return out
}

func toCustomer(c *stripe.Customer) Customer {
	out := Customer{
		ID:       c.ID,
		Email:    c.Email,
		Name:     c.Name,
		Metadata: c.Metadata,
	}
	if c.Created > 0 {
		out.CreatedAt = time.Unix(c.Created, 0).UTC()
	}
	return out
}

func toPaymentMethod(pm *stripe.PaymentMethod) PaymentMethod {
	out := PaymentMethod{
		ID:   pm.ID,
		Type: string(pm.Type),
	}
	if pm.Created > 0 {
		out.CreatedAt = time.Unix(pm.Created, 0).UTC()
	}
	if pm.Customer != nil {
		out.CustomerID = pm.Customer.ID
	}
	if pm.Card != nil {
		out.Brand = string(pm.Card.Brand)
		out.Last4 = pm.Card.Last4
		out.ExpMonth = pm.Card.ExpMonth
		out.ExpYear = pm.Card.ExpYear
	}
	return out
}

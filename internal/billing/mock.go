package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockGateway is a mock billing gateway for testing.
// Simulates Stripe behavior in memory without calling the Stripe API.
type MockGateway struct {
	// CreatePaymentIntentFunc allows customizing payment intent creation behavior
	CreatePaymentIntentFunc func(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error)

	// GetPaymentIntentFunc allows customizing payment intent retrieval behavior
	GetPaymentIntentFunc func(ctx context.Context, intentID string) (*PaymentIntent, error)

	// ListCustomersByEmailFunc allows customizing customer lookup behavior
	ListCustomersByEmailFunc func(ctx context.Context, email string, limit int) ([]Customer, error)

	// CreateCustomerFunc allows customizing customer creation behavior
	CreateCustomerFunc func(ctx context.Context, params CreateCustomerParams) (*Customer, error)

	// ListPaymentMethodsFunc allows customizing payment method listing
	ListPaymentMethodsFunc func(ctx context.Context, customerID string, limit int) ([]PaymentMethod, error)

	// GetPaymentMethodFunc allows customizing payment method retrieval
	GetPaymentMethodFunc func(ctx context.Context, methodID string) (*PaymentMethod, error)

	// AttachPaymentMethodFunc allows customizing attach behavior
	AttachPaymentMethodFunc func(ctx context.Context, methodID, customerID string) (*PaymentMethod, error)

	// DetachPaymentMethodFunc allows customizing detach behavior
	DetachPaymentMethodFunc func(ctx context.Context, methodID string) error

	// SetDefaultPaymentMethodFunc allows customizing default method updates
	SetDefaultPaymentMethodFunc func(ctx context.Context, customerID, methodID string) error

	// VerifyWebhookFunc allows customizing webhook verification behavior.
	// Default: the signature must equal "valid".
	VerifyWebhookFunc func(payload []byte, signature string) error

	// ParseWebhookEventFunc allows customizing webhook decoding.
	ParseWebhookEventFunc func(payload []byte) (*Event, error)

	// PaymentIntents stores created payment intents, keyed by ID
	PaymentIntents map[string]*PaymentIntent

	// Customers stores created customers, keyed by ID
	Customers map[string]*Customer

	// PaymentMethods stores known payment methods, keyed by ID
	PaymentMethods map[string]*PaymentMethod

	// CallLog tracks method calls for test assertions
	CallLog []string

	mu             sync.Mutex
	intentsByKey   map[string]*PaymentIntent
	customersByKey map[string]*Customer
	defaultMethods map[string]string
}

// NewMockGateway creates a new mock billing gateway.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		PaymentIntents: make(map[string]*PaymentIntent),
		Customers:      make(map[string]*Customer),
		PaymentMethods: make(map[string]*PaymentMethod),
		CallLog:        []string{},
		intentsByKey:   make(map[string]*PaymentIntent),
		customersByKey: make(map[string]*Customer),
		defaultMethods: make(map[string]string),
	}
}

func (m *MockGateway) record(call string) {
	m.mu.Lock()
	m.CallLog = append(m.CallLog, call)
	m.mu.Unlock()
}

// Calls returns the number of logged calls whose name starts with method.
func (m *MockGateway) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, c := range m.CallLog {
		if strings.HasPrefix(c, method+"(") {
			n++
		}
	}
	return n
}

// Log returns a copy of the call log.
func (m *MockGateway) Log() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.CallLog...)
}

// AddPaymentMethod seeds a payment method, optionally owned by a customer.
func (m *MockGateway) AddPaymentMethod(pm PaymentMethod) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pm.CreatedAt.IsZero() {
		pm.CreatedAt = time.Now()
	}
	m.PaymentMethods[pm.ID] = &pm
}

// AddCustomer seeds an existing customer.
func (m *MockGateway) AddCustomer(c Customer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	m.Customers[c.ID] = &c
}

// DefaultMethod returns the default payment method set for a customer.
func (m *MockGateway) DefaultMethod(customerID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.defaultMethods[customerID]
}

// CreatePaymentIntent creates a mock payment intent. Reusing an idempotency
// key returns the original intent, as Stripe does.
func (m *MockGateway) CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error) {
	m.record(fmt.Sprintf("CreatePaymentIntent(%d, %s, %s)", params.AmountMinor, params.Currency, params.IdempotencyKey))

	if m.CreatePaymentIntentFunc != nil {
		return m.CreatePaymentIntentFunc(ctx, params)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if params.IdempotencyKey != "" {
		if pi, ok := m.intentsByKey[params.IdempotencyKey]; ok {
			return pi, nil
		}
	}

	id := "pi_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
	pi := &PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24],
		AmountMinor:  params.AmountMinor,
		Currency:     params.Currency,
		Status:       "requires_payment_method",
		CustomerID:   params.CustomerID,
		Metadata:     params.Metadata,
		CreatedAt:    time.Now(),
	}

	m.PaymentIntents[pi.ID] = pi
	if params.IdempotencyKey != "" {
		m.intentsByKey[params.IdempotencyKey] = pi
	}
	return pi, nil
}

// GetPaymentIntent retrieves a mock payment intent.
func (m *MockGateway) GetPaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error) {
	m.record(fmt.Sprintf("GetPaymentIntent(%s)", intentID))

	if m.GetPaymentIntentFunc != nil {
		return m.GetPaymentIntentFunc(ctx, intentID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pi, ok := m.PaymentIntents[intentID]
	if !ok {
		return nil, notFound("get_payment_intent", "payment_intent", intentID)
	}
	return pi, nil
}

// ListCustomersByEmail returns stored customers with a matching email, oldest first.
func (m *MockGateway) ListCustomersByEmail(ctx context.Context, email string, limit int) ([]Customer, error) {
	m.record(fmt.Sprintf("ListCustomersByEmail(%s)", email))

	if m.ListCustomersByEmailFunc != nil {
		return m.ListCustomersByEmailFunc(ctx, email, limit)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Customer
	for _, c := range m.Customers {
		if c.Email == email {
			out = append(out, *c)
		}
	}
	sortCustomers(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CreateCustomer creates a mock customer.
func (m *MockGateway) CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error) {
	m.record(fmt.Sprintf("CreateCustomer(%s)", params.Email))

	if m.CreateCustomerFunc != nil {
		return m.CreateCustomerFunc(ctx, params)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if params.IdempotencyKey != "" {
		if c, ok := m.customersByKey[params.IdempotencyKey]; ok {
			return c, nil
		}
	}

	c := &Customer{
		ID:        "cus_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14],
		Email:     params.Email,
		Name:      params.Name,
		Metadata:  params.Metadata,
		CreatedAt: time.Now(),
	}
	m.Customers[c.ID] = c
	if params.IdempotencyKey != "" {
		m.customersByKey[params.IdempotencyKey] = c
	}
	return c, nil
}

// ListPaymentMethods returns stored methods owned by customerID.
func (m *MockGateway) ListPaymentMethods(ctx context.Context, customerID string, limit int) ([]PaymentMethod, error) {
	m.record(fmt.Sprintf("ListPaymentMethods(%s)", customerID))

	if m.ListPaymentMethodsFunc != nil {
		return m.ListPaymentMethodsFunc(ctx, customerID, limit)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out := []PaymentMethod{}
	for _, pm := range m.PaymentMethods {
		if pm.CustomerID == customerID {
			out = append(out, *pm)
		}
	}
	sortMethods(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetPaymentMethod retrieves a stored method.
func (m *MockGateway) GetPaymentMethod(ctx context.Context, methodID string) (*PaymentMethod, error) {
	m.record(fmt.Sprintf("GetPaymentMethod(%s)", methodID))

	if m.GetPaymentMethodFunc != nil {
		return m.GetPaymentMethodFunc(ctx, methodID)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pm, ok := m.PaymentMethods[methodID]
	if !ok {
		return nil, notFound("get_payment_method", "payment_method", methodID)
	}
	cp := *pm
	return &cp, nil
}

// AttachPaymentMethod attaches a stored method. Attaching a method that
// already has an owner fails like Stripe does.
func (m *MockGateway) AttachPaymentMethod(ctx context.Context, methodID, customerID string) (*PaymentMethod, error) {
	m.record(fmt.Sprintf("AttachPaymentMethod(%s, %s)", methodID, customerID))

	if m.AttachPaymentMethodFunc != nil {
		return m.AttachPaymentMethodFunc(ctx, methodID, customerID)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pm, ok := m.PaymentMethods[methodID]
	if !ok {
		return nil, notFound("attach_payment_method", "payment_method", methodID)
	}
	if pm.CustomerID != "" {
		return nil, &GatewayError{
			Op:         "attach_payment_method",
			Message:    "The payment method you provided has already been attached to a customer.",
			Code:       codeResourceAlreadyExists,
			Type:       "invalid_request_error",
			HTTPStatus: 400,
		}
	}
	pm.CustomerID = customerID
	cp := *pm
	return &cp, nil
}

// DetachPaymentMethod clears the owner of a stored method.
func (m *MockGateway) DetachPaymentMethod(ctx context.Context, methodID string) error {
	m.record(fmt.Sprintf("DetachPaymentMethod(%s)", methodID))

	if m.DetachPaymentMethodFunc != nil {
		return m.DetachPaymentMethodFunc(ctx, methodID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pm, ok := m.PaymentMethods[methodID]
	if !ok {
		return notFound("detach_payment_method", "payment_method", methodID)
	}
	pm.CustomerID = ""
	return nil
}

// SetDefaultPaymentMethod records the customer's default method.
func (m *MockGateway) SetDefaultPaymentMethod(ctx context.Context, customerID, methodID string) error {
	m.record(fmt.Sprintf("SetDefaultPaymentMethod(%s, %s)", customerID, methodID))

	if m.SetDefaultPaymentMethodFunc != nil {
		return m.SetDefaultPaymentMethodFunc(ctx, customerID, methodID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultMethods[customerID] = methodID
	return nil
}

// VerifyWebhook accepts the signature "valid" unless overridden.
func (m *MockGateway) VerifyWebhook(payload []byte, signature string) error {
	m.record("VerifyWebhook()")

	if m.VerifyWebhookFunc != nil {
		return m.VerifyWebhookFunc(payload, signature)
	}
	if signature != "valid" {
		return ErrInvalidWebhookSignature
	}
	return nil
}

// ParseWebhookEvent decodes a minimal Stripe-shaped event envelope.
func (m *MockGateway) ParseWebhookEvent(payload []byte) (*Event, error) {
	m.record("ParseWebhookEvent()")

	if m.ParseWebhookEventFunc != nil {
		return m.ParseWebhookEventFunc(payload)
	}

	var envelope struct {
		ID      string `json:"id"`
		Type    string `json:"type"`
		Created int64  `json:"created"`
		Data    struct {
			Object json.RawMessage `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if envelope.ID == "" || envelope.Type == "" {
		return nil, fmt.Errorf("%w: missing id or type", ErrMalformedEvent)
	}

	event := &Event{
		ID:      envelope.ID,
		Type:    envelope.Type,
		Created: time.Unix(envelope.Created, 0).UTC(),
		Object:  envelope.Data.Object,
	}

	if strings.HasPrefix(envelope.Type, "payment_intent.") && len(envelope.Data.Object) > 0 {
		var obj struct {
			ID               string            `json:"id"`
			Amount           int64             `json:"amount"`
			Currency         string            `json:"currency"`
			Status           string            `json:"status"`
			Metadata         map[string]string `json:"metadata"`
			LastPaymentError *struct {
				Code        string `json:"code"`
				DeclineCode string `json:"decline_code"`
				Message     string `json:"message"`
			} `json:"last_payment_error"`
		}
		if err := json.Unmarshal(envelope.Data.Object, &obj); err != nil {
			return nil, fmt.Errorf("%w: payment intent: %v", ErrMalformedEvent, err)
		}
		pi := &PaymentIntent{
			ID:          obj.ID,
			AmountMinor: obj.Amount,
			Currency:    obj.Currency,
			Status:      obj.Status,
			Metadata:    obj.Metadata,
		}
		if obj.LastPaymentError != nil {
			pi.LastPaymentError = &PaymentError{
				Code:        obj.LastPaymentError.Code,
				DeclineCode: obj.LastPaymentError.DeclineCode,
				Message:     obj.LastPaymentError.Message,
			}
		}
		event.PaymentIntent = pi
	}

	return event, nil
}

func notFound(op, resource, id string) error {
	return &GatewayError{
		Op:         op,
		Message:    fmt.Sprintf("No such %s: '%s'", resource, id),
		Code:       codeResourceMissing,
		Type:       "invalid_request_error",
		HTTPStatus: 404,
	}
}

func sortCustomers(cs []Customer) {
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].CreatedAt.Before(cs[j].CreatedAt) })
}

func sortMethods(ms []PaymentMethod) {
	sort.SliceStable(ms, func(i, j int) bool { return ms[i].CreatedAt.Before(ms[j].CreatedAt) })
}

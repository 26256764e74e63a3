// Package api exposes the payment reconciliation operations as JSON endpoints.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/thanksdoc/payrecon/internal/domain"
	"github.com/thanksdoc/payrecon/internal/handler"
	"github.com/thanksdoc/payrecon/internal/middleware"
	"github.com/thanksdoc/payrecon/internal/service"
)

// IdempotencyKeyHeader lets callers supply the key outside the body.
const IdempotencyKeyHeader = "Idempotency-Key"

// CustomerResolver is the customer operation used by PaymentsHandler.
type CustomerResolver interface {
	ResolveOrCreate(ctx context.Context, req service.CustomerRequest) (*domain.Customer, error)
}

// MethodReconciler is the payment method operations used by PaymentsHandler.
type MethodReconciler interface {
	List(ctx context.Context, customerID string) ([]domain.PaymentMethod, error)
	AttachIfNeeded(ctx context.Context, customerID, methodID string) (service.AttachResult, error)
	SetDefault(ctx context.Context, customerID, methodID string) error
	Detach(ctx context.Context, methodID, customerID string) error
}

// IntentIssuer is the payment intent operations used by PaymentsHandler.
type IntentIssuer interface {
	CreateIntent(ctx context.Context, req service.CreateIntentRequest) (*domain.PaymentIntent, error)
	GetIntent(ctx context.Context, intentID string) (*domain.PaymentIntent, error)
}

// PaymentsHandler serves the /api endpoints.
type PaymentsHandler struct {
	customers CustomerResolver
	methods   MethodReconciler
	intents   IntentIssuer
	logger    *slog.Logger
}

// NewPaymentsHandler creates a new payments handler
func NewPaymentsHandler(customers CustomerResolver, methods MethodReconciler, intents IntentIssuer, logger *slog.Logger) *PaymentsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentsHandler{
		customers: customers,
		methods:   methods,
		intents:   intents,
		logger:    logger,
	}
}

// attachRequest is the body of POST /api/customers/{customerID}/payment-methods.
type attachRequest struct {
	PaymentMethodID string `json:"payment_method_id" validate:"required,startswith=pm_,max=255"`
	SetDefault      bool   `json:"set_default"`
}

type attachResponse struct {
	CustomerID      string `json:"customer_id"`
	PaymentMethodID string `json:"payment_method_id"`
	AlreadyAttached bool   `json:"already_attached"`
	Default         bool   `json:"default"`
}

// defaultMethodRequest is the body of PUT /api/customers/{customerID}/default-payment-method.
type defaultMethodRequest struct {
	PaymentMethodID string `json:"payment_method_id" validate:"required,startswith=pm_,max=255"`
}

type defaultMethodResponse struct {
	CustomerID      string `json:"customer_id"`
	PaymentMethodID string `json:"payment_method_id"`
}

type methodListResponse struct {
	CustomerID     string                 `json:"customer_id"`
	PaymentMethods []domain.PaymentMethod `json:"payment_methods"`
}

type detachResponse struct {
	PaymentMethodID string `json:"payment_method_id"`
	Detached        bool   `json:"detached"`
}

// ResolveCustomer handles POST /api/customers/resolve
func (h *PaymentsHandler) ResolveCustomer(w http.ResponseWriter, r *http.Request) {
	var req service.CustomerRequest
	if err := handler.DecodeJSON(r, "customer.resolve", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	customer, err := h.customers.ResolveOrCreate(r.Context(), req)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusOK, customer)
}

// ListPaymentMethods handles GET /api/customers/{customerID}/payment-methods
func (h *PaymentsHandler) ListPaymentMethods(w http.ResponseWriter, r *http.Request) {
	customerID := r.PathValue("customerID")

	methods, err := h.methods.List(r.Context(), customerID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusOK, methodListResponse{
		CustomerID:     customerID,
		PaymentMethods: methods,
	})
}

// AttachPaymentMethod handles POST /api/customers/{customerID}/payment-methods
//
// Attaching a method the customer already owns is a success with
// already_attached=true. With set_default the method also becomes the
// customer's default, whether or not it was just attached.
func (h *PaymentsHandler) AttachPaymentMethod(w http.ResponseWriter, r *http.Request) {
	customerID := r.PathValue("customerID")

	var req attachRequest
	if err := handler.DecodeJSON(r, "method.attach", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	if err := service.Validate("method.attach", req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	result, err := h.methods.AttachIfNeeded(r.Context(), customerID, req.PaymentMethodID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	if req.SetDefault {
		if err := h.methods.SetDefault(r.Context(), customerID, req.PaymentMethodID); err != nil {
			handler.ErrorResponse(w, r, err)
			return
		}
	}

	status := http.StatusCreated
	if result.AlreadyAttached {
		status = http.StatusOK
	}
	handler.JSON(w, status, attachResponse{
		CustomerID:      customerID,
		PaymentMethodID: req.PaymentMethodID,
		AlreadyAttached: result.AlreadyAttached,
		Default:         req.SetDefault,
	})
}

// SetDefaultPaymentMethod handles PUT /api/customers/{customerID}/default-payment-method
func (h *PaymentsHandler) SetDefaultPaymentMethod(w http.ResponseWriter, r *http.Request) {
	customerID := r.PathValue("customerID")

	var req defaultMethodRequest
	if err := handler.DecodeJSON(r, "method.set_default", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	if err := service.Validate("method.set_default", req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	if err := h.methods.SetDefault(r.Context(), customerID, req.PaymentMethodID); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusOK, defaultMethodResponse{
		CustomerID:      customerID,
		PaymentMethodID: req.PaymentMethodID,
	})
}

// DetachPaymentMethod handles DELETE /api/payment-methods/{methodID}?customer_id=
func (h *PaymentsHandler) DetachPaymentMethod(w http.ResponseWriter, r *http.Request) {
	methodID := r.PathValue("methodID")
	customerID := r.URL.Query().Get("customer_id")

	if err := h.methods.Detach(r.Context(), methodID, customerID); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusOK, detachResponse{PaymentMethodID: methodID, Detached: true})
}

// CreatePaymentIntent handles POST /api/payment-intents
//
// The idempotency key may come from the Idempotency-Key header or the body;
// the header wins when both are present.
func (h *PaymentsHandler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	var req service.CreateIntentRequest
	if err := handler.DecodeJSON(r, "intent.create", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	if key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader)); key != "" {
		req.IdempotencyKey = key
	}

	intent, err := h.intents.CreateIntent(r.Context(), req)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	middleware.GetLogger(r.Context(), h.logger).Debug("payment intent issued",
		"payment_intent_id", intent.ID,
		"idempotency_key", intent.IdempotencyKey,
	)
	w.Header().Set(IdempotencyKeyHeader, intent.IdempotencyKey)
	handler.JSON(w, http.StatusCreated, intent)
}

// GetPaymentIntent handles GET /api/payment-intents/{intentID}
func (h *PaymentsHandler) GetPaymentIntent(w http.ResponseWriter, r *http.Request) {
	intent, err := h.intents.GetIntent(r.Context(), r.PathValue("intentID"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	// The client secret is only handed out at creation.
	intent.ClientSecret = ""
	handler.JSON(w, http.StatusOK, intent)
}

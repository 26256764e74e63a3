package routes

import (
	"github.com/thanksdoc/payrecon/internal/middleware"
	"github.com/thanksdoc/payrecon/internal/router"
)

// RegisterAPIRoutes registers the payment reconciliation API.
// Callers are authenticated upstream; the bearer token is only carried in the
// request context for logging and auditing.
func RegisterAPIRoutes(r *router.Router, deps APIDeps) {
	api := r.Group(
		middleware.AuthToken,
		middleware.MaxBodySize(middleware.DefaultMaxBodySize),
	)

	h := deps.Payments

	// Customers
	api.Post("/api/customers/resolve", h.ResolveCustomer)

	// Payment methods
	api.Get("/api/customers/{customerID}/payment-methods", h.ListPaymentMethods)
	api.Post("/api/customers/{customerID}/payment-methods", h.AttachPaymentMethod)
	api.Put("/api/customers/{customerID}/default-payment-method", h.SetDefaultPaymentMethod)
	api.Delete("/api/payment-methods/{methodID}", h.DetachPaymentMethod)

	// Payment intents
	api.Post("/api/payment-intents", h.CreatePaymentIntent)
	api.Get("/api/payment-intents/{intentID}", h.GetPaymentIntent)
}

package service

import (
	"context"
	"errors"

	"github.com/thanksdoc/payrecon/internal/billing"
	"github.com/thanksdoc/payrecon/internal/domain"
)

// Operation names used in domain errors and logs.
const (
	opResolveCustomer   = "customer.resolve"
	opListMethods       = "method.list"
	opAttachMethod      = "method.attach"
	opSetDefaultMethod  = "method.set_default"
	opDetachMethod      = "method.detach"
	opCreateIntent      = "intent.create"
	opGetIntent         = "intent.get"
	opHandleWebhook     = "webhook.handle"
	opNotifyPaymentDone = "webhook.notify"
)

// Gateway operation labels used for metrics and tracing.
const (
	gwListCustomers    = "list_customers"
	gwCreateCustomer   = "create_customer"
	gwListMethods      = "list_payment_methods"
	gwGetMethod        = "get_payment_method"
	gwAttachMethod     = "attach_payment_method"
	gwDetachMethod     = "detach_payment_method"
	gwSetDefaultMethod = "set_default_payment_method"
	gwCreateIntent     = "create_payment_intent"
	gwGetIntent        = "get_payment_intent"
)

// Validation errors - use domain.EINVALID
var (
	ErrAmountNotPositive  = domain.Errorf(domain.EINVALID, opCreateIntent, "Amount must be greater than zero")
	ErrAmountTooSmall     = domain.Errorf(domain.EINVALID, opCreateIntent, "Amount rounds to zero minor units")
	ErrAmountTooLarge     = domain.Errorf(domain.EINVALID, opCreateIntent, "Amount exceeds the maximum chargeable amount")
	ErrMethodOwnedByOther = domain.Errorf(domain.EINVALID, opAttachMethod, "Payment method is attached to a different customer")
)

// gatewayFailure converts a gateway error into the domain taxonomy.
// The gateway's own message is kept so it reaches diagnostics.
func gatewayFailure(op string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case billing.IsTimeout(err):
		return domain.Timeout(err, op)
	case errors.Is(err, context.Canceled):
		return domain.Gateway(err, op, "request canceled before the payment gateway responded")
	case billing.IsNotFound(err):
		return domain.NotFound(err, op, billing.GatewayMessage(err))
	default:
		return domain.Gateway(err, op, billing.GatewayMessage(err))
	}
}

// errorKind labels a gateway error for metrics.
func errorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case billing.IsTimeout(err):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case billing.IsAlreadyAttached(err):
		return "already_attached"
	case billing.IsNotFound(err):
		return "not_found"
	default:
		return "gateway"
	}
}

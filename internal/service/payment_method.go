package service

import (
	"context"
	"log/slog"
	"slices"

	"github.com/thanksdoc/payrecon/internal/billing"
	"github.com/thanksdoc/payrecon/internal/cache"
	"github.com/thanksdoc/payrecon/internal/domain"
)

// DefaultPaymentMethodPageSize caps how many methods a single List fetches.
const DefaultPaymentMethodPageSize = 10

// AttachResult reports whether an attach was a no-op.
type AttachResult struct {
	AlreadyAttached bool `json:"already_attached"`
}

// PaymentMethodCacheKey is the cache key for a customer's method list.
func PaymentMethodCacheKey(customerID string) string {
	return "methods:" + customerID
}

// PaymentMethodService lists and reconciles a customer's card payment methods.
// Every attach or detach it performs invalidates the affected customer's
// cached list, whether or not the gateway call succeeded.
type PaymentMethodService struct {
	gateway  billing.Gateway
	cache    *cache.Cache[[]domain.PaymentMethod]
	pageSize int
	caller   gatewayCaller
	opts     Options
	logger   *slog.Logger
}

// NewPaymentMethodService creates a PaymentMethodService backed by its own cache.
func NewPaymentMethodService(gateway billing.Gateway, methods *cache.Cache[[]domain.PaymentMethod], pageSize int, opts Options) *PaymentMethodService {
	opts = opts.withDefaults("payment_method")
	if pageSize <= 0 {
		pageSize = DefaultPaymentMethodPageSize
	}
	return &PaymentMethodService{
		gateway:  gateway,
		cache:    methods,
		pageSize: pageSize,
		caller:   newGatewayCaller(opts),
		opts:     opts,
		logger:   opts.Logger,
	}
}

// List returns the customer's card methods, from cache when fresh.
func (s *PaymentMethodService) List(ctx context.Context, customerID string) ([]domain.PaymentMethod, error) {
	if customerID == "" {
		return nil, domain.NewValidationError(opListMethods, "customer_id", "is required")
	}

	key := PaymentMethodCacheKey(customerID)
	if cached, ok := s.cache.Get(key); ok {
		return slices.Clone(cached), nil
	}

	var fetched []billing.PaymentMethod
	err := s.caller.call(ctx, gwListMethods, func(ctx context.Context) error {
		var err error
		fetched, err = s.gateway.ListPaymentMethods(ctx, customerID, s.pageSize)
		return err
	})
	if err != nil {
		s.logger.Error("failed to list payment methods", "error", err, "customer_id", customerID)
		return nil, gatewayFailure(opListMethods, err)
	}

	methods := make([]domain.PaymentMethod, 0, len(fetched))
	for _, pm := range fetched {
		methods = append(methods, toDomainMethod(pm, customerID))
	}

	s.cache.Put(key, methods)
	return slices.Clone(methods), nil
}

// AttachIfNeeded attaches methodID to customerID unless it is already theirs.
// A gateway rejection that says the method is already attached counts as
// success once the method is confirmed to belong to customerID.
func (s *PaymentMethodService) AttachIfNeeded(ctx context.Context, customerID, methodID string) (AttachResult, error) {
	if err := requireIDs(opAttachMethod, customerID, methodID); err != nil {
		return AttachResult{}, err
	}

	current, err := s.getMethod(ctx, opAttachMethod, methodID)
	if err != nil {
		return AttachResult{}, err
	}
	if current.CustomerID == customerID {
		s.opts.Metrics.MethodAttached(true)
		return AttachResult{AlreadyAttached: true}, nil
	}

	err = s.caller.call(ctx, gwAttachMethod, func(ctx context.Context) error {
		_, err := s.gateway.AttachPaymentMethod(ctx, methodID, customerID)
		return err
	})
	s.cache.Invalidate(PaymentMethodCacheKey(customerID))

	if err == nil {
		s.opts.Metrics.MethodAttached(false)
		s.logger.Info("payment method attached", "customer_id", customerID, "payment_method_id", methodID)
		return AttachResult{}, nil
	}

	if !billing.IsAlreadyAttached(err) {
		s.logger.Error("failed to attach payment method", "error", err, "customer_id", customerID, "payment_method_id", methodID)
		return AttachResult{}, gatewayFailure(opAttachMethod, err)
	}

	// Lost a race with another attach. Confirm it went to the same customer.
	owner, err := s.getMethod(ctx, opAttachMethod, methodID)
	if err != nil {
		return AttachResult{}, err
	}
	if owner.CustomerID != customerID {
		s.logger.Warn("payment method attached to another customer",
			"customer_id", customerID,
			"payment_method_id", methodID,
		)
		return AttachResult{}, ErrMethodOwnedByOther
	}

	s.opts.Metrics.MethodAttached(true)
	s.logger.Info("payment method already attached", "customer_id", customerID, "payment_method_id", methodID)
	return AttachResult{AlreadyAttached: true}, nil
}

// SetDefault makes methodID the customer's default. It is always safe to repeat.
func (s *PaymentMethodService) SetDefault(ctx context.Context, customerID, methodID string) error {
	if err := requireIDs(opSetDefaultMethod, customerID, methodID); err != nil {
		return err
	}

	err := s.caller.call(ctx, gwSetDefaultMethod, func(ctx context.Context) error {
		return s.gateway.SetDefaultPaymentMethod(ctx, customerID, methodID)
	})
	if err != nil {
		s.logger.Error("failed to set default payment method", "error", err, "customer_id", customerID, "payment_method_id", methodID)
		return gatewayFailure(opSetDefaultMethod, err)
	}
	return nil
}

// Detach removes methodID from its customer. When customerID is empty the
// current owner is looked up first so its cached list can be invalidated.
func (s *PaymentMethodService) Detach(ctx context.Context, methodID, customerID string) error {
	if methodID == "" {
		return domain.NewValidationError(opDetachMethod, "payment_method_id", "is required")
	}

	if customerID == "" {
		current, err := s.getMethod(ctx, opDetachMethod, methodID)
		if err != nil {
			return err
		}
		customerID = current.CustomerID
	}

	err := s.caller.call(ctx, gwDetachMethod, func(ctx context.Context) error {
		return s.gateway.DetachPaymentMethod(ctx, methodID)
	})
	if customerID != "" {
		s.cache.Invalidate(PaymentMethodCacheKey(customerID))
	}
	if err != nil {
		s.logger.Error("failed to detach payment method", "error", err, "customer_id", customerID, "payment_method_id", methodID)
		return gatewayFailure(opDetachMethod, err)
	}

	s.logger.Info("payment method detached", "customer_id", customerID, "payment_method_id", methodID)
	return nil
}

func (s *PaymentMethodService) getMethod(ctx context.Context, op, methodID string) (*billing.PaymentMethod, error) {
	var pm *billing.PaymentMethod
	err := s.caller.call(ctx, gwGetMethod, func(ctx context.Context) error {
		var err error
		pm, err = s.gateway.GetPaymentMethod(ctx, methodID)
		return err
	})
	if err != nil {
		s.logger.Error("failed to retrieve payment method", "error", err, "payment_method_id", methodID)
		return nil, gatewayFailure(op, err)
	}
	return pm, nil
}

func requireIDs(op, customerID, methodID string) error {
	var err error
	if customerID == "" {
		err = domain.NewValidationError(op, "customer_id", "is required")
	}
	if methodID == "" {
		if err == nil {
			err = domain.NewValidationError(op, "payment_method_id", "is required")
		} else {
			err = domain.AddFieldError(err, "payment_method_id", "is required")
		}
	}
	return err
}

func toDomainMethod(pm billing.PaymentMethod, customerID string) domain.PaymentMethod {
	owner := pm.CustomerID
	if owner == "" {
		owner = customerID
	}
	return domain.PaymentMethod{
		ID:         pm.ID,
		CustomerID: owner,
		Brand:      pm.Brand,
		Last4:      pm.Last4,
		ExpMonth:   pm.ExpMonth,
		ExpYear:    pm.ExpYear,
		CreatedAt:  pm.CreatedAt,
	}
}

package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/thanksdoc/payrecon/internal/billing"
	"github.com/thanksdoc/payrecon/internal/cache"
	"github.com/thanksdoc/payrecon/internal/domain"
)

// CustomerRequest identifies the person or business a gateway customer is for.
// Exactly one of PatientID and BusinessID must be set.
type CustomerRequest struct {
	Email        string `json:"email" validate:"required,email,max=512"`
	Name         string `json:"name" validate:"max=256"`
	PatientID    string `json:"patient_id" validate:"required_without=BusinessID,excluded_with=BusinessID,max=128"`
	BusinessID   string `json:"business_id" validate:"required_without=PatientID,excluded_with=PatientID,max=128"`
	BusinessName string `json:"business_name" validate:"max=256"`
}

func (r CustomerRequest) customerType() domain.CustomerType {
	if r.BusinessID != "" {
		return domain.CustomerTypeBusiness
	}
	return domain.CustomerTypePatient
}

func (r CustomerRequest) domainID() string {
	if r.BusinessID != "" {
		return r.BusinessID
	}
	return r.PatientID
}

// CustomerCacheKey is the cache key for a resolved customer. The domain id is
// part of the key so a patient and a business sharing an email are cached
// separately.
func CustomerCacheKey(email string, customerType domain.CustomerType, domainID string) string {
	return fmt.Sprintf("customer:%s:%s:%s", email, customerType, domainID)
}

// CustomerIdempotencyKey derives the create key for one identity. It covers
// created_at, so concurrent creates within the same second collapse into one
// customer while a later create never reuses a key with different metadata.
func CustomerIdempotencyKey(cacheKey, createdAt string) string {
	return "cus_" + uuid.NewSHA1(uuid.NameSpaceOID, []byte(cacheKey+"|"+createdAt)).String()
}

// CustomerService finds or creates gateway customers.
type CustomerService struct {
	gateway billing.Gateway
	cache   *cache.Cache[domain.Customer]
	caller  gatewayCaller
	opts    Options
	logger  *slog.Logger
	now     func() time.Time
}

// NewCustomerService creates a CustomerService backed by its own cache.
func NewCustomerService(gateway billing.Gateway, customers *cache.Cache[domain.Customer], opts Options) *CustomerService {
	opts = opts.withDefaults("customer")
	return &CustomerService{
		gateway: gateway,
		cache:   customers,
		caller:  newGatewayCaller(opts),
		opts:    opts,
		logger:  opts.Logger,
		now:     time.Now,
	}
}

// ResolveOrCreate returns the gateway customer for req.
//
// Flow:
//  1. Validate email and the single domain id
//  2. Serve a fresh cache entry without any remote call
//  3. Look up existing customers by exact email; the first match wins even if
//     its metadata describes a different domain id
//  4. Otherwise create a customer tagged with the customer type and domain id
//  5. Cache the result
//
// Expired entries are never served when the gateway is unreachable.
func (s *CustomerService) ResolveOrCreate(ctx context.Context, req CustomerRequest) (*domain.Customer, error) {
	if err := Validate(opResolveCustomer, req); err != nil {
		return nil, err
	}

	customerType := req.customerType()
	key := CustomerCacheKey(req.Email, customerType, req.domainID())

	if cached, ok := s.cache.Get(key); ok {
		return &cached, nil
	}

	var existing []billing.Customer
	err := s.caller.call(ctx, gwListCustomers, func(ctx context.Context) error {
		var err error
		existing, err = s.gateway.ListCustomersByEmail(ctx, req.Email, 1)
		return err
	})
	if err != nil {
		s.logger.Error("failed to look up customer", "error", err, "customer_type", customerType)
		return nil, gatewayFailure(opResolveCustomer, err)
	}

	if len(existing) > 0 {
		customer := s.toDomain(existing[0], req)
		s.cache.Put(key, customer)
		s.opts.Metrics.CustomerResolved(string(customerType), false)
		s.logger.Debug("customer found", "customer_id", customer.ID, "customer_type", customerType)
		return &customer, nil
	}

	metadata := s.customerMetadata(req)
	params := billing.CreateCustomerParams{
		Email:          req.Email,
		Name:           displayName(req),
		Metadata:       metadata,
		IdempotencyKey: CustomerIdempotencyKey(key, metadata["created_at"]),
	}

	var created *billing.Customer
	err = s.caller.call(ctx, gwCreateCustomer, func(ctx context.Context) error {
		var err error
		created, err = s.gateway.CreateCustomer(ctx, params)
		return err
	})
	if err != nil {
		s.logger.Error("failed to create customer", "error", err, "customer_type", customerType)
		return nil, gatewayFailure(opResolveCustomer, err)
	}

	customer := s.toDomain(*created, req)
	s.cache.Put(key, customer)
	s.opts.Metrics.CustomerResolved(string(customerType), true)
	s.logger.Info("customer created", "customer_id", customer.ID, "customer_type", customerType)
	return &customer, nil
}

func (s *CustomerService) customerMetadata(req CustomerRequest) map[string]string {
	md := map[string]string{
		"created_at":    s.now().UTC().Format(time.RFC3339),
		"customer_type": string(req.customerType()),
	}
	if req.BusinessID != "" {
		md["business_id"] = req.BusinessID
		md["business_name"] = req.BusinessName
	} else {
		md["patient_id"] = req.PatientID
	}
	return md
}

// toDomain projects a gateway customer. The type and domain id come from the
// request, since a customer found by email may carry another context's metadata.
func (s *CustomerService) toDomain(c billing.Customer, req CustomerRequest) domain.Customer {
	created := c.CreatedAt
	if created.IsZero() {
		created = s.now().UTC()
	}
	return domain.Customer{
		ID:         c.ID,
		Email:      c.Email,
		Name:       c.Name,
		Type:       req.customerType(),
		PatientID:  req.PatientID,
		BusinessID: req.BusinessID,
		CreatedAt:  created,
	}
}

func displayName(req CustomerRequest) string {
	if req.Name != "" {
		return req.Name
	}
	return req.BusinessName
}

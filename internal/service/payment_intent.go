package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/thanksdoc/payrecon/internal/billing"
	"github.com/thanksdoc/payrecon/internal/domain"
	"github.com/thanksdoc/payrecon/internal/idempotency"
)

// MaxAmountMinor is the largest single charge the gateway accepts for
// two-decimal currencies.
const MaxAmountMinor = 99_999_999

var hundred = decimal.NewFromInt(100)

// CreateIntentRequest describes a payment intent to open at the gateway.
type CreateIntentRequest struct {
	Amount         decimal.Decimal   `json:"amount"`
	Currency       string            `json:"currency" validate:"omitempty,len=3,alpha"`
	Metadata       map[string]string `json:"metadata"`
	IdempotencyKey string            `json:"idempotency_key" validate:"omitempty,max=255"`
	CustomerID     string            `json:"customer_id" validate:"omitempty,startswith=cus_"`
}

// ToMinorUnits converts a major-unit amount to minor units, rounding half away
// from zero. Non-positive amounts and amounts that round to zero are rejected.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, ErrAmountNotPositive
	}

	minor := amount.Mul(hundred).Round(0)
	if minor.IsZero() {
		return 0, ErrAmountTooSmall
	}
	if minor.GreaterThan(decimal.NewFromInt(MaxAmountMinor)) {
		return 0, ErrAmountTooLarge
	}
	return minor.IntPart(), nil
}

// PaymentIntentService opens and retrieves payment intents.
type PaymentIntentService struct {
	gateway         billing.Gateway
	keys            *idempotency.Generator
	defaultCurrency string
	caller          gatewayCaller
	opts            Options
	logger          *slog.Logger
}

// NewPaymentIntentService creates a PaymentIntentService. A nil generator uses
// idempotency.DefaultPrefix.
func NewPaymentIntentService(gateway billing.Gateway, keys *idempotency.Generator, defaultCurrency string, opts Options) *PaymentIntentService {
	opts = opts.withDefaults("payment_intent")
	if keys == nil {
		keys = idempotency.NewGenerator(idempotency.DefaultPrefix)
	}
	if defaultCurrency == "" {
		defaultCurrency = domain.DefaultCurrency
	}
	return &PaymentIntentService{
		gateway:         gateway,
		keys:            keys,
		defaultCurrency: strings.ToLower(defaultCurrency),
		caller:          newGatewayCaller(opts),
		opts:            opts,
		logger:          opts.Logger,
	}
}

// CreateIntent opens a payment intent for req.
//
// The amount is checked before any remote call. A caller-supplied idempotency
// key is passed through unchanged; a missing or blank one is replaced by a
// generated key, so a retried request only collapses at the gateway when the
// caller resends its key.
// Gateway failures are returned as-is without retry.
func (s *PaymentIntentService) CreateIntent(ctx context.Context, req CreateIntentRequest) (*domain.PaymentIntent, error) {
	if err := Validate(opCreateIntent, req); err != nil {
		return nil, err
	}

	amountMinor, err := ToMinorUnits(req.Amount)
	if err != nil {
		return nil, err
	}

	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = s.defaultCurrency
	}

	keySource := "generated"
	if strings.TrimSpace(req.IdempotencyKey) != "" {
		if err := idempotency.Valid(req.IdempotencyKey); err != nil {
			return nil, domain.NewValidationError(opCreateIntent, "idempotency_key", err.Error())
		}
		keySource = "supplied"
	}
	key := s.keys.Resolve(req.IdempotencyKey)

	params := billing.CreatePaymentIntentParams{
		AmountMinor:    amountMinor,
		Currency:       currency,
		CustomerID:     req.CustomerID,
		Metadata:       req.Metadata,
		IdempotencyKey: key,
	}

	var pi *billing.PaymentIntent
	err = s.caller.call(ctx, gwCreateIntent, func(ctx context.Context) error {
		var err error
		pi, err = s.gateway.CreatePaymentIntent(ctx, params)
		return err
	})
	if err != nil {
		s.logger.Error("failed to create payment intent",
			"error", err,
			"amount", amountMinor,
			"currency", currency,
			"idempotency_key", key,
		)
		return nil, gatewayFailure(opCreateIntent, err)
	}

	s.opts.Metrics.IntentCreated(currency, keySource, amountMinor)
	s.logger.Info("payment intent created",
		"payment_intent_id", pi.ID,
		"amount", amountMinor,
		"currency", currency,
		"idempotency_key", key,
	)

	intent := toDomainIntent(pi)
	intent.IdempotencyKey = key
	return &intent, nil
}

// GetIntent retrieves a payment intent. Results are never cached.
func (s *PaymentIntentService) GetIntent(ctx context.Context, intentID string) (*domain.PaymentIntent, error) {
	if intentID == "" {
		return nil, domain.NewValidationError(opGetIntent, "payment_intent_id", "is required")
	}

	var pi *billing.PaymentIntent
	err := s.caller.call(ctx, gwGetIntent, func(ctx context.Context) error {
		var err error
		pi, err = s.gateway.GetPaymentIntent(ctx, intentID)
		return err
	})
	if err != nil {
		s.logger.Warn("failed to retrieve payment intent", "error", err, "payment_intent_id", intentID)
		return nil, gatewayFailure(opGetIntent, err)
	}

	intent := toDomainIntent(pi)
	return &intent, nil
}

func toDomainIntent(pi *billing.PaymentIntent) domain.PaymentIntent {
	return domain.PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountMinor:  pi.AmountMinor,
		Currency:     pi.Currency,
		Metadata:     pi.Metadata,
		Status:       pi.Status,
	}
}

package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thanksdoc/payrecon/internal/billing"
	"github.com/thanksdoc/payrecon/internal/domain"
	"github.com/thanksdoc/payrecon/internal/idempotency"
)

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		amount  string
		want    int64
		wantErr error
	}{
		{amount: "19.99", want: 1999},
		{amount: "0.005", want: 1},
		{amount: "0.004", wantErr: ErrAmountTooSmall},
		{amount: "1", want: 100},
		{amount: "10.125", want: 1013},
		{amount: "999999.99", want: 99999999},
		{amount: "1000000", wantErr: ErrAmountTooLarge},
		{amount: "0", wantErr: ErrAmountNotPositive},
		{amount: "-5.00", wantErr: ErrAmountNotPositive},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			got, err := ToMinorUnits(decimal.RequireFromString(tt.amount))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPaymentIntentService_CreateIntent(t *testing.T) {
	gw := billing.NewMockGateway()
	svc := NewPaymentIntentService(gw, nil, "", testOptions())

	intent, err := svc.CreateIntent(context.Background(), CreateIntentRequest{
		Amount:   decimal.RequireFromString("19.99"),
		Currency: "GBP",
		Metadata: map[string]string{"appointment_id": "appt_1"},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1999), intent.AmountMinor)
	assert.Equal(t, "gbp", intent.Currency)
	assert.NotEmpty(t, intent.ClientSecret)
	assert.Equal(t, "appt_1", intent.Metadata["appointment_id"])
	assert.True(t, strings.HasPrefix(intent.IdempotencyKey, idempotency.DefaultPrefix+"_"))
}

func TestPaymentIntentService_DefaultCurrency(t *testing.T) {
	gw := billing.NewMockGateway()
	var got billing.CreatePaymentIntentParams
	gw.CreatePaymentIntentFunc = func(ctx context.Context, params billing.CreatePaymentIntentParams) (*billing.PaymentIntent, error) {
		got = params
		return &billing.PaymentIntent{ID: "pi_1", AmountMinor: params.AmountMinor, Currency: params.Currency}, nil
	}

	svc := NewPaymentIntentService(gw, nil, "", testOptions())
	_, err := svc.CreateIntent(context.Background(), CreateIntentRequest{Amount: decimal.NewFromInt(5)})
	require.NoError(t, err)
	assert.Equal(t, "gbp", got.Currency)

	svc = NewPaymentIntentService(gw, nil, "EUR", testOptions())
	_, err = svc.CreateIntent(context.Background(), CreateIntentRequest{Amount: decimal.NewFromInt(5)})
	require.NoError(t, err)
	assert.Equal(t, "eur", got.Currency)
}

func TestPaymentIntentService_SuppliedKeyPassedThrough(t *testing.T) {
	gw := billing.NewMockGateway()
	svc := NewPaymentIntentService(gw, nil, "", testOptions())
	ctx := context.Background()

	req := CreateIntentRequest{
		Amount:         decimal.RequireFromString("42.00"),
		IdempotencyKey: "order-123-attempt",
	}

	first, err := svc.CreateIntent(ctx, req)
	require.NoError(t, err)
	second, err := svc.CreateIntent(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, "order-123-attempt", first.IdempotencyKey)
	assert.Equal(t, first.ID, second.ID, "the gateway collapses requests sharing a key")
	assert.Equal(t, []string{
		"CreatePaymentIntent(4200, gbp, order-123-attempt)",
		"CreatePaymentIntent(4200, gbp, order-123-attempt)",
	}, gw.Log())
}

func TestPaymentIntentService_BlankKeyIsGenerated(t *testing.T) {
	gw := billing.NewMockGateway()
	svc := NewPaymentIntentService(gw, nil, "", testOptions())

	intent, err := svc.CreateIntent(context.Background(), CreateIntentRequest{
		Amount:         decimal.NewFromInt(5),
		IdempotencyKey: "   ",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(intent.IdempotencyKey, idempotency.DefaultPrefix+"_"))
	assert.Equal(t, []string{"CreatePaymentIntent(500, gbp, " + intent.IdempotencyKey + ")"}, gw.Log())
}

func TestPaymentIntentService_OverlongKeyRejected(t *testing.T) {
	gw := billing.NewMockGateway()
	svc := NewPaymentIntentService(gw, nil, "", testOptions())

	_, err := svc.CreateIntent(context.Background(), CreateIntentRequest{
		Amount:         decimal.NewFromInt(5),
		IdempotencyKey: strings.Repeat("k", idempotency.MaxLength+1),
	})
	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	assert.Contains(t, domain.GetValidationFields(err), "idempotency_key")
	assert.Empty(t, gw.Log())
}

func TestPaymentIntentService_GeneratedKeysDiffer(t *testing.T) {
	gw := billing.NewMockGateway()
	svc := NewPaymentIntentService(gw, idempotency.NewGenerator("appt"), "", testOptions())
	ctx := context.Background()
	req := CreateIntentRequest{Amount: decimal.NewFromInt(10)}

	first, err := svc.CreateIntent(ctx, req)
	require.NoError(t, err)
	second, err := svc.CreateIntent(ctx, req)
	require.NoError(t, err)

	assert.NotEqual(t, first.IdempotencyKey, second.IdempotencyKey)
	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, strings.HasPrefix(first.IdempotencyKey, "appt_"))
}

func TestPaymentIntentService_InvalidAmountNoRemoteCall(t *testing.T) {
	for _, amount := range []string{"0", "-1", "-0.01", "0.001"} {
		t.Run(amount, func(t *testing.T) {
			gw := billing.NewMockGateway()
			svc := NewPaymentIntentService(gw, nil, "", testOptions())

			_, err := svc.CreateIntent(context.Background(), CreateIntentRequest{Amount: decimal.RequireFromString(amount)})
			require.Error(t, err)
			assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
			assert.Empty(t, gw.Log())
		})
	}
}

func TestPaymentIntentService_MissingAmount(t *testing.T) {
	gw := billing.NewMockGateway()
	svc := NewPaymentIntentService(gw, nil, "", testOptions())

	_, err := svc.CreateIntent(context.Background(), CreateIntentRequest{Currency: "gbp"})
	require.ErrorIs(t, err, ErrAmountNotPositive)
	assert.Empty(t, gw.Log())
}

func TestPaymentIntentService_InvalidCurrency(t *testing.T) {
	gw := billing.NewMockGateway()
	svc := NewPaymentIntentService(gw, nil, "", testOptions())

	_, err := svc.CreateIntent(context.Background(), CreateIntentRequest{Amount: decimal.NewFromInt(1), Currency: "pounds"})
	require.Error(t, err)
	assert.Contains(t, domain.GetValidationFields(err), "currency")
	assert.Empty(t, gw.Log())
}

func TestPaymentIntentService_GatewayErrorNotRetried(t *testing.T) {
	gw := billing.NewMockGateway()
	gw.CreatePaymentIntentFunc = func(ctx context.Context, params billing.CreatePaymentIntentParams) (*billing.PaymentIntent, error) {
		return nil, &billing.GatewayError{
			Op:         "create_payment_intent",
			Message:    "Amount must be at least £0.30 gbp",
			Code:       "amount_too_small",
			Type:       "invalid_request_error",
			HTTPStatus: 400,
		}
	}
	svc := NewPaymentIntentService(gw, nil, "", testOptions())

	_, err := svc.CreateIntent(context.Background(), CreateIntentRequest{Amount: decimal.RequireFromString("0.10")})
	require.Error(t, err)
	assert.Equal(t, domain.EGATEWAY, domain.ErrorCode(err))
	assert.Equal(t, "Amount must be at least £0.30 gbp", domain.ErrorMessage(err))
	assert.Equal(t, 1, gw.Calls("CreatePaymentIntent"))
}

func TestPaymentIntentService_CallerCancellation(t *testing.T) {
	gw := billing.NewMockGateway()
	svc := NewPaymentIntentService(gw, nil, "", testOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.CreateIntent(ctx, CreateIntentRequest{Amount: decimal.NewFromInt(1)})
	require.Error(t, err)
	assert.Equal(t, domain.EGATEWAY, domain.ErrorCode(err))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestPaymentIntentService_GetIntent(t *testing.T) {
	gw := billing.NewMockGateway()
	svc := NewPaymentIntentService(gw, nil, "", testOptions())
	ctx := context.Background()

	created, err := svc.CreateIntent(ctx, CreateIntentRequest{Amount: decimal.NewFromInt(25)})
	require.NoError(t, err)

	got, err := svc.GetIntent(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, int64(2500), got.AmountMinor)

	_, err = svc.GetIntent(ctx, "pi_missing")
	require.Error(t, err)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))

	_, err = svc.GetIntent(ctx, "")
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

package service

import (
	"context"
	"errors"
	"testing"

	domainErrors "github.com/cassiomorais/creditshop/internal/domain/errors"
	"github.com/cassiomorais/creditshop/internal/domain/payment"
	"github.com/cassiomorais/creditshop/internal/domain/product"
	"github.com/cassiomorais/creditshop/internal/domain/user"
	"github.com/cassiomorais/creditshop/internal/infrastructure/observability"
	"github.com/cassiomorais/creditshop/internal/testutil"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type checkoutFixture struct {
	svc       *CheckoutService
	payments  *testutil.MockPaymentRepository
	processor *testutil.MockProcessor
	discounts *testutil.MockDiscountProvider
	metrics   *observability.Metrics
	user      *user.User
	product   *product.Product
}

func setupCheckout(t *testing.T, baseURL string) *checkoutFixture {
	t.Helper()
	users := testutil.NewMockUserRepository()
	products := testutil.NewMockProductRepository()
	f := &checkoutFixture{
		payments:  testutil.NewMockPaymentRepository(),
		processor: testutil.NewMockProcessor(),
		discounts: &testutil.MockDiscountProvider{Percent: decimal.Zero},
		metrics:   observability.NewMetrics("test", prometheus.NewRegistry()),
		user:      testutil.NewTestUser(0),
		product:   testutil.NewTestProduct(),
	}
	users.AddUser(f.user)
	products.AddProduct(f.product)

	f.svc = NewCheckoutService(users, products, f.payments, f.discounts, f.processor, CheckoutConfig{
		BaseURL:    baseURL,
		TaxPercent: decimal.NewFromInt(19),
	}, f.metrics, zerolog.Nop())
	return f
}

func (f *checkoutFixture) start(t *testing.T) (*CheckoutResult, error) {
	t.Helper()
	return f.svc.Start(context.Background(), StartCheckoutRequest{UserID: f.user.ID, ProductID: f.product.ID})
}

func TestCheckout_Start_Success(t *testing.T) {
	f := setupCheckout(t, "https://shop.example.com")

	res, err := f.start(t)
	require.NoError(t, err)

	assert.Contains(t, res.RedirectURL, "mercadopago.com")
	stored := f.payments.Stored(res.Payment.ID)
	require.NotNil(t, stored)
	assert.Equal(t, payment.StatusOpen, stored.Status)
	assert.Nil(t, stored.ExternalPaymentID)
	assert.Equal(t, f.user.ID, stored.OwnerUserID)
	assert.Equal(t, int64(1000), stored.Amount)
	assert.Equal(t, int64(1000), stored.Charge.Price)
	assert.Equal(t, int64(190), stored.Charge.TaxValue)
	assert.Equal(t, int64(1190), stored.Charge.Total)

	require.Len(t, f.processor.CheckoutRequests, 1)
	req := f.processor.CheckoutRequests[0]
	assert.Equal(t, "1000 Credits", req.Title)
	assert.True(t, req.UnitPrice.Equal(decimal.RequireFromString("11.90")))
	assert.Equal(t, "BRL", req.Currency)
	assert.Equal(t, "ana@example.com", req.PayerEmail)
	assert.Equal(t, "https://shop.example.com/payment/mercadopago/checker", req.SuccessURL)
	assert.Equal(t, req.SuccessURL, req.PendingURL)
	assert.Equal(t, "https://shop.example.com/payment/cancel", req.FailureURL)
	assert.Equal(t, "https://shop.example.com/payment/mercadopago/ipn", req.NotificationURL)
	assert.Equal(t, map[string]any{
		payment.MetaCreditAmount: int64(1000),
		payment.MetaUserID:       f.user.ID.String(),
		payment.MetaUserEmail:    "ana@example.com",
		payment.MetaPaymentID:    res.Payment.ID.String(),
	}, req.Metadata)

	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.CheckoutSessions.WithLabelValues("success")))
}

func TestCheckout_Start_AppliesPartnerDiscount(t *testing.T) {
	f := setupCheckout(t, "https://shop.example.com")
	f.discounts.Percent = decimal.NewFromInt(10)

	res, err := f.start(t)
	require.NoError(t, err)

	assert.Equal(t, int64(900), res.Payment.Charge.Price)
	assert.Equal(t, int64(171), res.Payment.Charge.TaxValue)
	assert.Equal(t, int64(1071), res.Payment.Charge.Total)
	assert.Equal(t, "1000 Credits (Discount 10%)", f.processor.CheckoutRequests[0].Title)
}

func TestCheckout_Start_NonHTTPSBaseURL(t *testing.T) {
	f := setupCheckout(t, "http://localhost:8080")

	_, err := f.start(t)

	assert.ErrorIs(t, err, domainErrors.ErrConfiguration)
	assert.Empty(t, f.processor.CheckoutRequests, "processor must not be called")
	assert.Equal(t, 0, f.payments.Count(), "record must be removed")
	assert.Equal(t, 1, f.payments.DeleteCalls)
	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.CheckoutSessions.WithLabelValues("configuration_error")))
}

func TestCheckout_Start_ProcessorFailureDeletesRecord(t *testing.T) {
	f := setupCheckout(t, "https://shop.example.com")
	f.processor.CreateCheckoutFunc = func(context.Context, payment.CheckoutRequest) (*payment.CheckoutSession, error) {
		return nil, domainErrors.NewDomainError("processor_unavailable", "timeout", errors.Join(domainErrors.ErrProviderUnavailable, context.DeadlineExceeded))
	}

	_, err := f.start(t)

	assert.ErrorIs(t, err, domainErrors.ErrCheckoutFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, f.payments.Count())
	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.CheckoutSessions.WithLabelValues("processor_error")))
}

func TestCheckout_Start_LookupFailures(t *testing.T) {
	t.Run("unknown user", func(t *testing.T) {
		f := setupCheckout(t, "https://shop.example.com")
		_, err := f.svc.Start(context.Background(), StartCheckoutRequest{UserID: uuid.New(), ProductID: f.product.ID})
		assert.ErrorIs(t, err, domainErrors.ErrUserNotFound)
	})

	t.Run("unknown product", func(t *testing.T) {
		f := setupCheckout(t, "https://shop.example.com")
		_, err := f.svc.Start(context.Background(), StartCheckoutRequest{UserID: f.user.ID, ProductID: uuid.New()})
		assert.ErrorIs(t, err, domainErrors.ErrProductNotFound)
	})

	t.Run("disabled product", func(t *testing.T) {
		f := setupCheckout(t, "https://shop.example.com")
		f.product.Disabled = true
		_, err := f.start(t)
		assert.ErrorIs(t, err, domainErrors.ErrProductNotFound)
	})

	t.Run("discount lookup fails", func(t *testing.T) {
		f := setupCheckout(t, "https://shop.example.com")
		f.discounts.Err = errors.New("db down")
		_, err := f.start(t)
		assert.Error(t, err)
		assert.Equal(t, 0, f.payments.Count())
	})
}

package controller

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cassiomorais/creditshop/internal/domain/payment"
	"github.com/cassiomorais/creditshop/internal/domain/product"
	"github.com/cassiomorais/creditshop/internal/domain/user"
	"github.com/cassiomorais/creditshop/internal/infrastructure/config"
	"github.com/cassiomorais/creditshop/internal/infrastructure/observability"
	customMW "github.com/cassiomorais/creditshop/internal/middleware"
	"github.com/cassiomorais/creditshop/internal/service"
	"github.com/cassiomorais/creditshop/internal/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testHomeURL  = "https://shop.example.com/home"
	testStoreURL = "https://shop.example.com/store"
	testExternal = "1319567894"
)

type routerFixture struct {
	router    *chi.Mux
	payments  *testutil.MockPaymentRepository
	users     *testutil.MockUserRepository
	products  *testutil.MockProductRepository
	processor *testutil.MockProcessor
	outbox    *testutil.MockOutboxRepository
	metrics   *observability.Metrics
	user      *user.User
	product   *product.Product
}

func setupRouter(t *testing.T, baseURL string) *routerFixture {
	t.Helper()
	f := &routerFixture{
		payments:  testutil.NewMockPaymentRepository(),
		users:     testutil.NewMockUserRepository(),
		products:  testutil.NewMockProductRepository(),
		processor: testutil.NewMockProcessor(),
		outbox:    &testutil.MockOutboxRepository{},
		metrics:   observability.NewMetrics("test", prometheus.NewRegistry()),
		user:      testutil.NewTestUser(0),
		product:   testutil.NewTestProduct(),
	}
	f.users.AddUser(f.user)
	f.products.AddProduct(f.product)

	authz := service.NewAuthzService()
	checkout := service.NewCheckoutService(f.users, f.products, f.payments, &testutil.MockDiscountProvider{Percent: decimal.Zero},
		f.processor, service.CheckoutConfig{BaseURL: baseURL, TaxPercent: decimal.NewFromInt(19)}, f.metrics, zerolog.Nop())
	reconcile := service.NewReconcileService(f.payments, f.users, f.products, f.outbox,
		testutil.NewMockTransactionManager(), f.processor, &testutil.MockLocker{},
		service.ReconcileConfig{LockWait: time.Second, MaxCASAttempts: 3}, f.metrics, zerolog.Nop())

	f.router = NewRouter(RouterDeps{
		CheckoutService:  checkout,
		ReconcileService: reconcile,
		PaymentService:   service.NewPaymentService(f.payments, authz),
		AuthzService:     authz,
		Metrics:          f.metrics,
		Logger:           zerolog.Nop(),
		Auth:             config.AuthConfig{JWTSecret: testSecret, SessionCookie: "session"},
		Store:            config.StoreConfig{HomeURL: testHomeURL, StoreURL: testStoreURL},
	})
	return f
}

// addRecord stores a record for the fixture user and registers the processor's view of it.
func (f *routerFixture) addRecord(status payment.Status, processorStatus string) *payment.Payment {
	p := testutil.NewTestPayment(f.user, f.product, status)
	f.payments.AddPayment(p)
	if processorStatus != "" {
		f.processor.AddPayment(testutil.NewProcessorPayment(testExternal, p, processorStatus))
	}
	return p
}

func (f *routerFixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *routerFixture) authed(t *testing.T, method, target string, body io.Reader) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	req.AddCookie(&http.Cookie{Name: "session", Value: signToken(t, f.user.ID.String())})
	return req
}

func signToken(t *testing.T, userID string) string {
	t.Helper()
	claims := customMW.Claims{
		UserID:           userID,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func flashFrom(t *testing.T, w *httptest.ResponseRecorder) Flash {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == flashCookie {
			f, ok := ReadFlash(c)
			require.True(t, ok, "flash cookie is not decodable")
			return f
		}
	}
	t.Fatal("no flash cookie set")
	return Flash{}
}

func newRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}

package controller

import (
	"time"

	"github.com/cassiomorais/creditshop/internal/infrastructure/config"
	"github.com/cassiomorais/creditshop/internal/infrastructure/observability"
	customMW "github.com/cassiomorais/creditshop/internal/middleware"
	"github.com/cassiomorais/creditshop/internal/service"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type RouterDeps struct {
	CheckoutService  *service.CheckoutService
	ReconcileService *service.ReconcileService
	PaymentService   *service.PaymentService
	AuthzService     *service.AuthzService
	HealthChecks     []HealthCheck
	Metrics          *observability.Metrics
	Logger           zerolog.Logger
	CORSConfig       config.CORSConfig
	Auth             config.AuthConfig
	Store            config.StoreConfig
	Webhook          config.WebhookConfig
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(customMW.SecurityHeaders())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSConfig.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: deps.CORSConfig.AllowCredentials,
		MaxAge:           300,
	}))
	if deps.Metrics != nil {
		r.Use(customMW.Metrics(deps.Metrics))
	}

	healthH := NewHealthController(deps.HealthChecks...)
	webhookH := NewWebhookController(deps.ReconcileService, deps.Metrics, deps.Logger)
	returnH := NewReturnController(deps.ReconcileService, deps.AuthzService, deps.Store.HomeURL, deps.Logger)
	checkoutH := NewCheckoutController(deps.CheckoutService, deps.AuthzService, deps.Store.StoreURL, deps.Logger)
	paymentH := NewPaymentController(deps.PaymentService)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	r.Handle("/metrics", promhttp.Handler())

	requireAuth := customMW.RequireAuth(deps.Auth.JWTSecret, deps.Auth.SessionCookie)

	webhook := r.With()
	if deps.Webhook.RateLimit > 0 {
		webhook = r.With(customMW.RateLimit(deps.Webhook.RateLimit, deps.Webhook.RateWindow))
	}
	webhook.Post(service.NotificationPath, webhookH.Notify)

	r.Get(service.CancelPath, returnH.Cancel)
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/payment/mercadopago/pay/{productID}", checkoutH.Pay)
		r.Get(service.ReturnPath, returnH.Checker)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(requireAuth)

		r.Get("/payments", paymentH.ListPayments)
		r.Get("/payments/{id}", paymentH.GetPayment)
		r.Get("/payments/{id}/events", paymentH.GetPaymentEvents)
	})

	return r
}

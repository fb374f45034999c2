package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cassiomorais/creditshop/internal/bootstrap"
	"github.com/cassiomorais/creditshop/internal/controller"
	"github.com/cassiomorais/creditshop/internal/domain/payment"
	"github.com/cassiomorais/creditshop/internal/infrastructure/mercadopago"
	infraRedis "github.com/cassiomorais/creditshop/internal/infrastructure/redis"
	"github.com/cassiomorais/creditshop/internal/repository/postgres"
	"github.com/cassiomorais/creditshop/internal/service"
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	ctx := context.Background()

	app, err := bootstrap.New(ctx, "creditshop-api", "creditshop")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close(ctx)

	cfg := app.Config

	// --- Repositories ---
	userRepo := postgres.NewUserRepository(app.Pool)
	productRepo := postgres.NewProductRepository(app.Pool)
	paymentRepo := postgres.NewPaymentRepository(app.Pool)
	discountRepo := postgres.NewDiscountRepository(app.Pool)
	outboxRepo := postgres.NewOutboxRepository(app.Pool)
	txManager := postgres.NewTxManager(app.Pool)

	// --- Processor ---
	var processor service.Processor
	if cfg.MercadoPago.Mock {
		app.Logger.Warn().Msg("Using in-memory Mercado Pago processor")
		processor = mercadopago.NewMockProcessor("", app.Logger)
	} else {
		client, err := mercadopago.NewClient(cfg.MercadoPago, app.Metrics, app.Logger)
		if err != nil {
			app.Logger.Fatal().Err(err).Msg("Failed to create Mercado Pago client")
		}
		processor = client
	}

	tax, err := cfg.Store.SalesTax()
	if err != nil {
		app.Logger.Fatal().Err(err).Msg("Invalid sales tax")
	}

	// --- Services ---
	authz := service.NewAuthzService()
	checkoutSvc := service.NewCheckoutService(userRepo, productRepo, paymentRepo, discountRepo, processor,
		service.CheckoutConfig{BaseURL: cfg.App.BaseURL, TaxPercent: tax}, app.Metrics, app.Logger)
	policy := payment.Policy{
		ApproveCancelled: cfg.Reconcile.ApproveCancelled,
		KeepTerminal:     cfg.Reconcile.KeepTerminal,
	}
	reconcileSvc := service.NewReconcileService(paymentRepo, userRepo, productRepo, outboxRepo, txManager, processor,
		infraRedis.NewLocker(app.Redis, cfg.Reconcile.LockTTL),
		service.ReconcileConfig{
			LockWait:       cfg.Reconcile.LockWait,
			MaxCASAttempts: cfg.Reconcile.MaxCASAttempts,
			Policy:         policy,
		}, app.Metrics, app.Logger)
	paymentSvc := service.NewPaymentService(paymentRepo, authz)

	// --- Build router ---
	router := controller.NewRouter(controller.RouterDeps{
		CheckoutService:  checkoutSvc,
		ReconcileService: reconcileSvc,
		PaymentService:   paymentSvc,
		AuthzService:     authz,
		HealthChecks: []controller.HealthCheck{
			{Name: "database", Check: app.Pool.Ping},
			{Name: "redis", Check: func(ctx context.Context) error { return app.Redis.Ping(ctx).Err() }},
		},
		Metrics:    app.Metrics,
		Logger:     app.Logger,
		CORSConfig: cfg.Server.CORS,
		Auth:       cfg.Auth,
		Store:      cfg.Store,
		Webhook:    cfg.Webhook,
	})

	// --- HTTP server ---
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Logger.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	app.Logger.Info().Msg("Server exited")
}

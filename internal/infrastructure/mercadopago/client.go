// Package mercadopago adapts the Mercado Pago SDK to the processor port used
// by checkout and reconciliation.
package mercadopago

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	domainErrors "github.com/cassiomorais/creditshop/internal/domain/errors"
	"github.com/cassiomorais/creditshop/internal/domain/payment"
	appconfig "github.com/cassiomorais/creditshop/internal/infrastructure/config"
	"github.com/cassiomorais/creditshop/internal/infrastructure/observability"
	"github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/mperror"
	mppayment "github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/mercadopago/sdk-go/pkg/preference"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const breakerName = "mercadopago"

type preferenceCreator interface {
	Create(ctx context.Context, request preference.Request) (*preference.Response, error)
}

type paymentGetter interface {
	Get(ctx context.Context, id int) (*mppayment.Response, error)
}

// Client talks to Mercado Pago through a circuit breaker. Every call is
// bounded by the configured timeout and none is retried here.
type Client struct {
	preferences preferenceCreator
	payments    paymentGetter
	breaker     *gobreaker.CircuitBreaker[any]
	timeout     time.Duration
	sandbox     bool
	metrics     *observability.Metrics
	logger      zerolog.Logger
}

// NewClient builds the SDK clients from the access token.
func NewClient(cfg appconfig.MercadoPagoConfig, metrics *observability.Metrics, logger zerolog.Logger) (*Client, error) {
	if cfg.AccessToken == "" {
		return nil, domainErrors.Configuration("mercadopago.access_token", "is required")
	}

	sdkCfg, err := config.New(cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("create mercadopago sdk config: %w", err)
	}

	return newClient(preference.NewClient(sdkCfg), mppayment.NewClient(sdkCfg), cfg, metrics, logger), nil
}

func newClient(prefs preferenceCreator, pays paymentGetter, cfg appconfig.MercadoPagoConfig, metrics *observability.Metrics, logger zerolog.Logger) *Client {
	c := &Client{
		preferences: prefs,
		payments:    pays,
		timeout:     cfg.Timeout,
		sandbox:     cfg.Sandbox,
		metrics:     metrics,
		logger:      logger.With().Str("component", "mercadopago").Logger(),
	}
	if c.timeout <= 0 {
		c.timeout = 10 * time.Second
	}

	threshold := uint32(cfg.CircuitBreakerThreshold)
	if threshold == 0 {
		threshold = 5
	}
	c.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     cfg.CircuitBreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// 4xx answers mean the processor is up; unknown ids must not open the breaker
		IsSuccessful: func(err error) bool {
			return err == nil || clientStatus(err) != 0
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
			if c.metrics != nil {
				c.metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	return c
}

// CreateCheckout creates a checkout preference and returns where to send the payer.
func (c *Client) CreateCheckout(ctx context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	ctx, span := observability.Tracer().Start(ctx, "mercadopago.create_preference")
	defer span.End()
	span.SetAttributes(attribute.String("payment.id", req.PaymentID.String()))

	unitPrice, _ := req.UnitPrice.Float64()
	request := preference.Request{
		BackURLs: &preference.BackURLsRequest{
			Success: req.SuccessURL,
			Pending: req.PendingURL,
			Failure: req.FailureURL,
		},
		NotificationURL: req.NotificationURL,
		Payer: &preference.PayerRequest{
			Email: req.PayerEmail,
		},
		Items: []preference.ItemRequest{
			{
				ID:         req.PaymentID.String(),
				Title:      req.Title,
				Quantity:   1,
				UnitPrice:  unitPrice,
				CurrencyID: req.Currency,
			},
		},
		Metadata: req.Metadata,
	}

	res, err := c.call(ctx, "create_preference", func(ctx context.Context) (any, error) {
		return c.preferences.Create(ctx, request)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create preference failed")
		return nil, err
	}

	pref := res.(*preference.Response)
	redirect := pref.InitPoint
	if c.sandbox && pref.SandboxInitPoint != "" {
		redirect = pref.SandboxInitPoint
	}
	if redirect == "" {
		return nil, domainErrors.NewDomainError("processor_error", "preference "+pref.ID+" has no checkout url", domainErrors.ErrProviderRejected)
	}

	c.logger.Info().Str("payment_id", req.PaymentID.String()).Str("preference_id", pref.ID).Msg("Checkout preference created")
	return &payment.CheckoutSession{PreferenceID: pref.ID, RedirectURL: redirect}, nil
}

// GetPayment fetches the current state of a processor payment.
func (c *Client) GetPayment(ctx context.Context, externalID string) (*payment.ProcessorPayment, error) {
	id, err := strconv.Atoi(externalID)
	if err != nil || id <= 0 {
		return nil, domainErrors.NewDomainError("invalid_payment_id", "processor payment id must be a positive integer, got "+strconv.Quote(externalID), domainErrors.ErrInvalidInput)
	}

	ctx, span := observability.Tracer().Start(ctx, "mercadopago.get_payment")
	defer span.End()
	span.SetAttributes(attribute.String("processor.payment_id", externalID))

	res, err := c.call(ctx, "get_payment", func(ctx context.Context) (any, error) {
		return c.payments.Get(ctx, id)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "get payment failed")
		return nil, err
	}

	p := res.(*mppayment.Response)
	span.SetAttributes(attribute.String("processor.status", p.Status))
	return &payment.ProcessorPayment{
		ID:           strconv.Itoa(p.ID),
		Status:       p.Status,
		StatusDetail: p.StatusDetail,
		Metadata:     p.Metadata,
	}, nil
}

// call runs fn through the breaker with the client timeout. A 404 maps to
// ErrPaymentNotFound, other 4xx answers to ErrProviderRejected, and every
// remaining failure to ErrProviderUnavailable.
func (c *Client) call(ctx context.Context, operation string, fn func(ctx context.Context) (any, error)) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	res, err := c.breaker.Execute(func() (any, error) {
		res, err := fn(ctx)
		if err == nil && isNilResponse(res) {
			err = errors.New("empty response")
		}
		return res, err
	})
	c.observe(operation, start, err)

	if err == nil {
		return res, nil
	}
	switch status := clientStatus(err); {
	case status == http.StatusNotFound:
		c.logger.Warn().Err(err).Str("operation", operation).Msg("Mercado Pago resource not found")
		return nil, domainErrors.NewDomainError("payment_not_found", "mercadopago "+operation+" found nothing", errors.Join(domainErrors.ErrPaymentNotFound, err))
	case status != 0:
		c.logger.Warn().Err(err).Str("operation", operation).Int("status_code", status).Msg("Mercado Pago rejected request")
		return nil, domainErrors.NewDomainError("processor_rejected", "mercadopago "+operation+" rejected", errors.Join(domainErrors.ErrProviderRejected, err))
	}
	c.logger.Error().Err(err).Str("operation", operation).Msg("Mercado Pago request failed")
	return nil, domainErrors.NewDomainError("processor_unavailable", "mercadopago "+operation+" failed", errors.Join(domainErrors.ErrProviderUnavailable, err))
}

func (c *Client) observe(operation string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	result := "success"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		result = "rejected"
	case clientStatus(err) != 0:
		result = "client_error"
	case err != nil:
		result = "failure"
	}
	c.metrics.ProcessorRequestDuration.WithLabelValues(operation, result).Observe(time.Since(start).Seconds())
	c.metrics.CircuitBreakerRequests.WithLabelValues(breakerName, result).Inc()
}

// clientStatus returns the HTTP status of a 4xx SDK error, zero otherwise.
func clientStatus(err error) int {
	var respErr *mperror.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode >= 400 && respErr.StatusCode < 500 {
		return respErr.StatusCode
	}
	return 0
}

func isNilResponse(res any) bool {
	switch r := res.(type) {
	case nil:
		return true
	case *preference.Response:
		return r == nil
	case *mppayment.Response:
		return r == nil
	}
	return false
}

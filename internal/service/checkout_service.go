package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	domainErrors "github.com/cassiomorais/creditshop/internal/domain/errors"
	"github.com/cassiomorais/creditshop/internal/domain/payment"
	"github.com/cassiomorais/creditshop/internal/domain/product"
	"github.com/cassiomorais/creditshop/internal/domain/user"
	"github.com/cassiomorais/creditshop/internal/infrastructure/observability"
	"github.com/cassiomorais/creditshop/pkg/saga"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// CheckoutConfig carries the storefront settings checkout depends on.
type CheckoutConfig struct {
	BaseURL    string
	TaxPercent decimal.Decimal
}

// CheckoutService opens a local payment record and the matching hosted
// checkout session at the processor.
type CheckoutService struct {
	users     user.Repository
	products  product.Repository
	payments  payment.Repository
	discounts DiscountProvider
	processor Processor
	cfg       CheckoutConfig
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

func NewCheckoutService(
	users user.Repository,
	products product.Repository,
	payments payment.Repository,
	discounts DiscountProvider,
	processor Processor,
	cfg CheckoutConfig,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *CheckoutService {
	return &CheckoutService{
		users:     users,
		products:  products,
		payments:  payments,
		discounts: discounts,
		processor: processor,
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger.With().Str("component", "checkout").Logger(),
	}
}

type StartCheckoutRequest struct {
	UserID    uuid.UUID
	ProductID uuid.UUID
}

type CheckoutResult struct {
	Payment     *payment.Payment
	RedirectURL string
}

// Start creates the record and the checkout session. When the session cannot
// be created the record is deleted again and nothing is left behind.
func (s *CheckoutService) Start(ctx context.Context, req StartCheckoutRequest) (*CheckoutResult, error) {
	ctx, span := observability.Tracer().Start(ctx, "checkout.start")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", req.UserID.String()),
		attribute.String("product.id", req.ProductID.String()),
	)

	res, err := s.start(ctx, req)
	s.observe(err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "checkout failed")
		return nil, err
	}
	span.SetAttributes(attribute.String("payment.id", res.Payment.ID.String()))
	return res, nil
}

func (s *CheckoutService) start(ctx context.Context, req StartCheckoutRequest) (*CheckoutResult, error) {
	u, err := s.users.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	prod, err := s.products.GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("load product: %w", err)
	}
	if prod.Disabled {
		return nil, domainErrors.NewDomainError("product_not_found", "product "+prod.ID.String()+" is disabled", domainErrors.ErrProductNotFound)
	}

	discount, err := s.discounts.PartnerDiscount(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("load discount: %w", err)
	}

	quote, err := prod.Quote(discount, s.cfg.TaxPercent)
	if err != nil {
		return nil, err
	}

	p, err := payment.NewPayment(u.ID, prod.ID, prod.Type, prod.Quantity, payment.Charge{
		Price:      quote.Price,
		TaxValue:   quote.TaxValue,
		Total:      quote.Total,
		TaxPercent: quote.TaxPercent,
		Currency:   quote.Currency,
	})
	if err != nil {
		return nil, err
	}

	var session *payment.CheckoutSession
	sg := saga.New("checkout", s.logger.With().Str("payment_id", p.ID.String()).Logger()).
		AddStep(saga.Step{
			Name:       "create_record",
			Execute:    func(ctx context.Context) error { return s.payments.Create(ctx, p) },
			Compensate: func(ctx context.Context) error { return s.payments.Delete(ctx, p.ID) },
		}).
		AddStep(saga.Step{
			Name: "create_checkout_session",
			Execute: func(ctx context.Context) error {
				urls, err := s.callbackURLs()
				if err != nil {
					return err
				}
				session, err = s.processor.CreateCheckout(ctx, payment.CheckoutRequest{
					PaymentID:       p.ID,
					Title:           prod.ItemTitle(quote.Discount),
					UnitPrice:       p.Charge.TotalDecimal(),
					Currency:        p.Charge.Currency,
					PayerEmail:      u.Email,
					SuccessURL:      urls.ret,
					PendingURL:      urls.ret,
					FailureURL:      urls.cancel,
					NotificationURL: urls.notify,
					Metadata:        payment.CheckoutMetadata(p, u.Email),
				})
				return err
			},
		})

	if _, err := sg.Execute(ctx); err != nil {
		if errors.Is(err, domainErrors.ErrConfiguration) {
			return nil, err
		}
		if errors.Is(err, domainErrors.ErrProviderUnavailable) || errors.Is(err, domainErrors.ErrProviderRejected) {
			return nil, fmt.Errorf("%w: %w", domainErrors.ErrCheckoutFailed, err)
		}
		return nil, err
	}

	s.logger.Info().
		Str("payment_id", p.ID.String()).
		Str("user_id", u.ID.String()).
		Str("total", p.Charge.String()).
		Msg("Checkout session created")
	return &CheckoutResult{Payment: p, RedirectURL: session.RedirectURL}, nil
}

type callbackURLs struct {
	ret, cancel, notify string
}

// callbackURLs builds the URLs the processor calls back on. The processor
// only accepts https callbacks.
func (s *CheckoutService) callbackURLs() (callbackURLs, error) {
	base, err := url.Parse(s.cfg.BaseURL)
	if err != nil || base.Host == "" {
		return callbackURLs{}, domainErrors.Configuration("app.base_url", "must be an absolute URL")
	}
	if base.Scheme != "https" {
		return callbackURLs{}, domainErrors.Configuration("app.base_url", "must use https to receive processor callbacks")
	}
	return callbackURLs{
		ret:    base.JoinPath(ReturnPath).String(),
		cancel: base.JoinPath(CancelPath).String(),
		notify: base.JoinPath(NotificationPath).String(),
	}, nil
}

func (s *CheckoutService) observe(err error) {
	if s.metrics == nil {
		return
	}
	result := "success"
	switch {
	case err == nil:
	case errors.Is(err, domainErrors.ErrConfiguration):
		result = "configuration_error"
	case errors.Is(err, domainErrors.ErrCheckoutFailed):
		result = "processor_error"
	default:
		result = "error"
	}
	s.metrics.CheckoutSessions.WithLabelValues(result).Inc()
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	domainErrors "github.com/cassiomorais/creditshop/internal/domain/errors"
	"github.com/cassiomorais/creditshop/internal/domain/outbox"
	"github.com/cassiomorais/creditshop/internal/domain/payment"
	"github.com/cassiomorais/creditshop/internal/domain/product"
	"github.com/cassiomorais/creditshop/internal/domain/user"
	"github.com/cassiomorais/creditshop/internal/infrastructure/observability"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Source says which channel triggered a reconciliation.
type Source string

const (
	SourceWebhook Source = "webhook"
	SourceReturn  Source = "return"
)

const (
	eventReconciled = "payment.reconciled"
	eventCreated    = "payment.created"
)

type ReconcileConfig struct {
	LockWait       time.Duration
	MaxCASAttempts int
	Policy         payment.Policy
}

// ReconcileService applies processor payment states to local records.
type ReconcileService struct {
	payments  payment.Repository
	users     user.Repository
	products  product.Repository
	outbox    outbox.Repository
	txManager TransactionManager
	processor Processor
	locker    Locker
	cfg       ReconcileConfig
	metrics   *observability.Metrics
	logger    zerolog.Logger
	now       func() time.Time
}

// NewReconcileService creates a ReconcileService. locker may be nil.
func NewReconcileService(
	payments payment.Repository,
	users user.Repository,
	products product.Repository,
	outboxRepo outbox.Repository,
	txManager TransactionManager,
	processor Processor,
	locker Locker,
	cfg ReconcileConfig,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *ReconcileService {
	if cfg.MaxCASAttempts <= 0 {
		cfg.MaxCASAttempts = 3
	}
	return &ReconcileService{
		payments:  payments,
		users:     users,
		products:  products,
		outbox:    outboxRepo,
		txManager: txManager,
		processor: processor,
		locker:    locker,
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger.With().Str("component", "reconcile").Logger(),
		now:       time.Now,
	}
}

type ReconcileRequest struct {
	ExternalPaymentID string
	Source            Source
	// ViewerID is the signed-in user on the browser return path. When set it
	// must own the record.
	ViewerID *uuid.UUID
}

type ReconcileResult struct {
	Outcome  payment.Outcome
	Payment  *payment.Payment
	Conflict bool
}

// Reconcile fetches the processor payment, finds the local record it refers
// to and moves the record to the matching status.
func (s *ReconcileService) Reconcile(ctx context.Context, req ReconcileRequest) (*ReconcileResult, error) {
	ctx, span := observability.Tracer().Start(ctx, "reconcile.payment")
	defer span.End()
	span.SetAttributes(
		attribute.String("processor.payment_id", req.ExternalPaymentID),
		attribute.String("reconcile.source", string(req.Source)),
	)

	start := s.now()
	res, err := s.reconcile(ctx, req)

	outcome := string(payment.OutcomeUnknown)
	if res != nil {
		outcome = string(res.Outcome)
		span.SetAttributes(attribute.String("payment.id", res.Payment.ID.String()), attribute.String("reconcile.outcome", outcome))
	}
	if err != nil {
		outcome = errorLabel(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconcile failed")
	}
	if s.metrics != nil {
		s.metrics.Reconciliations.WithLabelValues(string(req.Source), outcome).Inc()
		s.metrics.ReconcileDuration.WithLabelValues(string(req.Source)).Observe(time.Since(start).Seconds())
	}
	return res, err
}

func (s *ReconcileService) reconcile(ctx context.Context, req ReconcileRequest) (*ReconcileResult, error) {
	pp, err := s.processor.GetPayment(ctx, req.ExternalPaymentID)
	if err != nil {
		return nil, err
	}

	current, err := s.resolve(ctx, pp)
	if err != nil {
		return nil, err
	}
	if req.ViewerID != nil && *req.ViewerID != current.OwnerUserID {
		return nil, domainErrors.NewDomainError("forbidden", "payment "+current.ID.String()+" belongs to another user", domainErrors.ErrForbidden)
	}

	if _, err := s.products.GetByID(ctx, current.ProductID); err != nil {
		return nil, fmt.Errorf("load product: %w", err)
	}

	release := s.lock(ctx, current.ID)
	defer release()

	for attempt := 1; ; attempt++ {
		d, next, err := s.apply(ctx, current, pp, req.Source)
		if err == nil {
			s.logDecision(current, next, d, pp, req.Source)
			return &ReconcileResult{Outcome: d.Outcome(), Payment: next, Conflict: d.Conflict}, nil
		}
		if !errors.Is(err, domainErrors.ErrOptimisticLockFailed) {
			return nil, err
		}

		if s.metrics != nil {
			s.metrics.ReconcileConflicts.WithLabelValues("cas").Inc()
		}
		if attempt >= s.cfg.MaxCASAttempts {
			return nil, domainErrors.NewDomainError("reconciliation_conflict",
				"payment "+current.ID.String()+" changed concurrently "+strconv.Itoa(attempt)+" times",
				errors.Join(domainErrors.ErrReconciliationConflict, err))
		}

		s.logger.Debug().Str("payment_id", current.ID.String()).Int("attempt", attempt).Msg("Record changed concurrently, reloading")
		if current, err = s.payments.GetByID(ctx, current.ID); err != nil {
			return nil, fmt.Errorf("reload payment: %w", err)
		}
	}
}

// RecordCreated stores the processor id announced by a payment.created
// notification. Only an open record moves to created.
func (s *ReconcileService) RecordCreated(ctx context.Context, externalID string) (*payment.Payment, error) {
	ctx, span := observability.Tracer().Start(ctx, "reconcile.record_created")
	defer span.End()
	span.SetAttributes(attribute.String("processor.payment_id", externalID))

	pp, err := s.processor.GetPayment(ctx, externalID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	current, err := s.resolve(ctx, pp)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		next := current.Clone()
		next.SetExternalID(pp.ID)
		if current.Status == payment.StatusOpen {
			if err := next.TransitionTo(payment.StatusCreated); err != nil {
				return nil, err
			}
		}
		if next.Status == current.Status && next.ExternalID() == current.ExternalID() {
			return next, nil
		}

		err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := s.payments.UpdateStatus(txCtx, next, current.Status); err != nil {
				return err
			}
			return s.payments.AddEvent(txCtx, payment.NewEvent(next.ID, eventCreated, map[string]any{
				"from":                string(current.Status),
				"to":                  string(next.Status),
				"external_payment_id": pp.ID,
			}))
		})
		if err == nil {
			s.logger.Info().Str("payment_id", next.ID.String()).Str("external_payment_id", pp.ID).Str("status", string(next.Status)).Msg("Processor payment created")
			return next, nil
		}
		if !errors.Is(err, domainErrors.ErrOptimisticLockFailed) {
			return nil, err
		}
		if attempt >= s.cfg.MaxCASAttempts {
			return nil, errors.Join(domainErrors.ErrReconciliationConflict, err)
		}
		if current, err = s.payments.GetByID(ctx, current.ID); err != nil {
			return nil, fmt.Errorf("reload payment: %w", err)
		}
	}
}

// resolve finds the record a processor payment refers to. Metadata that does
// not point at an existing record of the same owner is treated as unknown.
func (s *ReconcileService) resolve(ctx context.Context, pp *payment.ProcessorPayment) (*payment.Payment, error) {
	id, ok := pp.RecordID()
	if !ok {
		return nil, domainErrors.NewDomainError("payment_not_found", "processor payment "+pp.ID+" carries no record reference", domainErrors.ErrPaymentNotFound)
	}

	p, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if owner, ok := pp.OwnerID(); !ok || owner != p.OwnerUserID {
		s.logger.Warn().Str("payment_id", p.ID.String()).Str("external_payment_id", pp.ID).Msg("Processor metadata owner does not match record owner")
		return nil, domainErrors.NewDomainError("payment_not_found", "processor payment "+pp.ID+" does not match a record", domainErrors.ErrPaymentNotFound)
	}
	return p, nil
}

// apply decides and persists one attempt. All writes share one transaction so
// the status, the credit grant and the events commit together.
func (s *ReconcileService) apply(ctx context.Context, current *payment.Payment, pp *payment.ProcessorPayment, source Source) (payment.Decision, *payment.Payment, error) {
	d := payment.Decide(pp.Status, current, s.cfg.Policy)
	next := current.Clone()
	if err := d.Apply(next, pp.ID); err != nil {
		return d, nil, err
	}
	if len(d.Effects) == 0 && !d.Changed() && next.ExternalID() == current.ExternalID() {
		return d, next, nil
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if d.Has(payment.EffectGrantCredits) {
			if err := next.MarkCreditsGranted(s.now()); err != nil {
				return err
			}
		}
		if err := s.payments.UpdateStatus(txCtx, next, current.Status); err != nil {
			return err
		}

		var credited *user.User
		for _, e := range d.Effects {
			switch e.Kind {
			case payment.EffectGrantCredits:
				u, err := s.grantCredits(txCtx, next, e)
				if err != nil {
					return err
				}
				credited = u
			case payment.EffectCreditsUpdated:
				if credited == nil {
					u, err := s.users.GetByID(txCtx, e.UserID)
					if err != nil {
						return err
					}
					credited = u
				}
				if err := s.outbox.Insert(txCtx, outbox.NewEntry("user", e.UserID, outbox.EventCreditsUpdated, map[string]any{
					"user_id":    e.UserID.String(),
					"credits":    credited.Credits,
					"payment_id": next.ID.String(),
				})); err != nil {
					return err
				}
			case payment.EffectPaymentUpdated:
				if err := s.outbox.Insert(txCtx, outbox.NewEntry("payment", next.ID, outbox.EventPaymentUpdated, map[string]any{
					"payment_id":          next.ID.String(),
					"user_id":             e.UserID.String(),
					"status":              string(next.Status),
					"previous_status":     string(current.Status),
					"external_payment_id": next.ExternalID(),
				})); err != nil {
					return err
				}
			case payment.EffectNotifyConfirmation:
				if err := s.outbox.Insert(txCtx, outbox.NewEntry("payment", next.ID, outbox.EventPaymentConfirmation, map[string]any{
					"payment_id": next.ID.String(),
					"user_id":    e.UserID.String(),
					"credits":    e.Credits,
					"total":      next.Charge.TotalDecimal().StringFixed(2),
					"currency":   next.Charge.Currency,
				})); err != nil {
					return err
				}
			}
		}

		return s.payments.AddEvent(txCtx, payment.NewEvent(next.ID, eventReconciled, map[string]any{
			"from":                string(current.Status),
			"to":                  string(next.Status),
			"external_status":     pp.Status,
			"external_payment_id": pp.ID,
			"source":              string(source),
			"conflict":            d.Conflict,
		}))
	})
	if err != nil {
		return d, nil, err
	}

	if d.Has(payment.EffectGrantCredits) && s.metrics != nil {
		s.metrics.CreditsGranted.Add(float64(next.Amount))
	}
	return d, next, nil
}

func (s *ReconcileService) grantCredits(ctx context.Context, p *payment.Payment, e payment.Effect) (*user.User, error) {
	u, err := s.users.Lock(ctx, e.UserID)
	if err != nil {
		return nil, fmt.Errorf("lock user: %w", err)
	}
	if err := u.Credit(e.Credits); err != nil {
		return nil, err
	}
	if err := s.users.UpdateCredits(ctx, u); err != nil {
		return nil, err
	}
	if err := s.users.AddCreditTransaction(ctx, user.NewPurchaseTransaction(u, p.ID, e.Credits)); err != nil {
		return nil, err
	}
	return u, nil
}

// lock takes the per-record lock. Failing to lock only costs contention, the
// CAS write keeps the record consistent either way.
func (s *ReconcileService) lock(ctx context.Context, id uuid.UUID) func() {
	if s.locker == nil {
		return func() {}
	}
	release, err := s.locker.Lock(ctx, "payment:reconcile:"+id.String(), s.cfg.LockWait)
	if err != nil {
		s.logger.Warn().Err(err).Str("payment_id", id.String()).Msg("Reconcile lock not acquired, continuing without it")
		if s.metrics != nil {
			s.metrics.ReconcileConflicts.WithLabelValues("lock").Inc()
		}
		return func() {}
	}
	return func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn().Err(err).Str("payment_id", id.String()).Msg("Failed to release reconcile lock")
		}
	}
}

func (s *ReconcileService) logDecision(prev, next *payment.Payment, d payment.Decision, pp *payment.ProcessorPayment, source Source) {
	if d.Conflict {
		if s.metrics != nil {
			s.metrics.ReconcileConflicts.WithLabelValues("approved_after_cancelled").Inc()
		}
		s.logger.Warn().
			Str("payment_id", next.ID.String()).
			Str("external_payment_id", pp.ID).
			Str("source", string(source)).
			Msg("Processor approved a cancelled payment, record kept cancelled")
		return
	}
	s.logger.Info().
		Str("payment_id", next.ID.String()).
		Str("external_payment_id", pp.ID).
		Str("external_status", pp.Status).
		Str("from", string(prev.Status)).
		Str("to", string(next.Status)).
		Str("source", string(source)).
		Bool("credits_granted", d.Has(payment.EffectGrantCredits)).
		Msg("Payment reconciled")
}

func errorLabel(err error) string {
	switch {
	case errors.Is(err, domainErrors.ErrProviderUnavailable):
		return "processor_unavailable"
	case errors.Is(err, domainErrors.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, domainErrors.ErrPaymentNotFound):
		return "not_found"
	case errors.Is(err, domainErrors.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domainErrors.ErrReconciliationConflict):
		return "conflict"
	default:
		return "error"
	}
}

package service

import (
	"context"

	"github.com/cassiomorais/creditshop/internal/domain/payment"
	"github.com/google/uuid"
)

// PaymentService answers payment record queries for the signed-in user.
type PaymentService struct {
	paymentRepo payment.Repository
	authz       *AuthzService
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(paymentRepo payment.Repository, authz *AuthzService) *PaymentService {
	return &PaymentService{paymentRepo: paymentRepo, authz: authz}
}

type ListPaymentsRequest struct {
	Status *payment.Status
	Limit  int
	Offset int
}

// GetPayment returns a record owned by the current user.
func (s *PaymentService) GetPayment(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	p, err := s.paymentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authz.VerifyPaymentOwnership(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ListPayments lists the current user's records, newest first.
func (s *PaymentService) ListPayments(ctx context.Context, req ListPaymentsRequest) ([]*payment.Payment, error) {
	userID, err := s.authz.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 20
	}
	if req.Offset < 0 {
		req.Offset = 0
	}
	return s.paymentRepo.List(ctx, payment.ListFilter{
		OwnerUserID: &userID,
		Status:      req.Status,
		Limit:       req.Limit,
		Offset:      req.Offset,
	})
}

// GetPaymentEvents returns the audit trail of a record owned by the current user.
func (s *PaymentService) GetPaymentEvents(ctx context.Context, id uuid.UUID) ([]*payment.PaymentEvent, error) {
	if _, err := s.GetPayment(ctx, id); err != nil {
		return nil, err
	}
	return s.paymentRepo.GetEvents(ctx, id)
}

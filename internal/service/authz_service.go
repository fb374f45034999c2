package service

import (
	"context"

	"github.com/cassiomorais/creditshop/internal/domain/errors"
	"github.com/cassiomorais/creditshop/internal/domain/payment"
	"github.com/cassiomorais/creditshop/internal/middleware"
	"github.com/google/uuid"
)

type AuthzService struct{}

func NewAuthzService() *AuthzService {
	return &AuthzService{}
}

// CurrentUser returns the authenticated user from ctx.
func (s *AuthzService) CurrentUser(ctx context.Context) (uuid.UUID, error) {
	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		return uuid.Nil, errors.ErrUnauthorized
	}
	return userID, nil
}

func (s *AuthzService) VerifyPaymentOwnership(ctx context.Context, p *payment.Payment) error {
	userID, err := s.CurrentUser(ctx)
	if err != nil {
		return err
	}
	if p.OwnerUserID != userID {
		return errors.ErrForbidden
	}
	return nil
}

package user

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for user credit persistence
type Repository interface {
	// Create creates a new user
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)

	// Lock locks a user row for update (SELECT FOR UPDATE)
	Lock(ctx context.Context, id uuid.UUID) (*User, error)

	// UpdateCredits persists the credit balance with optimistic locking
	UpdateCredits(ctx context.Context, user *User) error

	// AddCreditTransaction records a ledger entry
	AddCreditTransaction(ctx context.Context, tx *CreditTransaction) error

	// GetCreditTransactions retrieves ledger entries for a user
	GetCreditTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*CreditTransaction, error)
}

// CreditTransaction is one ledger line of a credit balance change
type CreditTransaction struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	PaymentID    *uuid.UUID
	Amount       int64
	BalanceAfter int64
	Description  string
	CreatedAt    time.Time
}

// NewPurchaseTransaction records credits bought through paymentID.
func NewPurchaseTransaction(u *User, paymentID uuid.UUID, amount int64) *CreditTransaction {
	return &CreditTransaction{
		ID:           uuid.New(),
		UserID:       u.ID,
		PaymentID:    &paymentID,
		Amount:       amount,
		BalanceAfter: u.Credits,
		Description:  "credits purchase",
		CreatedAt:    time.Now(),
	}
}

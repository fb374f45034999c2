package user

import (
	"time"

	"github.com/cassiomorais/creditshop/internal/domain/errors"
	"github.com/google/uuid"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// User is a storefront customer holding a credit balance.
type User struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Credits   int64
	Version   int // Optimistic locking
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewUser(name, email string) (*User, error) {
	if email == "" {
		return nil, errors.NewValidationError("email", "cannot be empty")
	}

	now := time.Now()
	return &User{
		ID:        uuid.New(),
		Name:      name,
		Email:     email,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Credit adds purchased credits. Suspended users still receive what they paid for.
func (u *User) Credit(amount int64) error {
	if amount <= 0 {
		return errors.NewValidationError("amount", "must be greater than 0")
	}

	u.Credits += amount
	u.Version++
	u.UpdatedAt = time.Now()
	return nil
}

func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

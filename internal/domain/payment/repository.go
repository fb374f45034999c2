package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for payment record persistence
type Repository interface {
	// Create inserts a new payment record
	Create(ctx context.Context, payment *Payment) error

	// GetByID retrieves a payment record by ID
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)

	// Delete removes a record that never reached the processor
	Delete(ctx context.Context, id uuid.UUID) error

	// UpdateStatus writes status, external id and the credit marker only if the
	// stored status still equals expected. Returns ErrOptimisticLockFailed otherwise.
	UpdateStatus(ctx context.Context, payment *Payment, expected Status) error

	// List lists payment records with filters
	List(ctx context.Context, filter ListFilter) ([]*Payment, error)

	// AddEvent adds a payment event for audit trail
	AddEvent(ctx context.Context, event *PaymentEvent) error

	// GetEvents retrieves events for a payment
	GetEvents(ctx context.Context, paymentID uuid.UUID) ([]*PaymentEvent, error)
}

// ListFilter defines filters for listing payment records
type ListFilter struct {
	OwnerUserID *uuid.UUID
	Status      *Status
	Limit       int
	Offset      int
}

// PaymentEvent represents an event in the payment lifecycle
type PaymentEvent struct {
	ID        uuid.UUID
	PaymentID uuid.UUID
	EventType string
	EventData map[string]any
	CreatedAt time.Time
}

// NewEvent builds an audit event for p.
func NewEvent(paymentID uuid.UUID, eventType string, data map[string]any) *PaymentEvent {
	return &PaymentEvent{
		ID:        uuid.New(),
		PaymentID: paymentID,
		EventType: eventType,
		EventData: data,
		CreatedAt: time.Now(),
	}
}

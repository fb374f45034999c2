package service

import (
	"context"
	"time"

	"github.com/cassiomorais/creditshop/internal/domain/payment"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionManager defines the interface for transaction management.
// Services use this to wrap multiple repository operations in a single transaction.
type TransactionManager interface {
	// WithTransaction executes the given function within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	// Otherwise, it is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Processor is the payment processor as seen by checkout and reconciliation.
type Processor interface {
	CreateCheckout(ctx context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error)
	GetPayment(ctx context.Context, externalID string) (*payment.ProcessorPayment, error)
}

// DiscountProvider returns the discount percent a buyer is entitled to.
type DiscountProvider interface {
	PartnerDiscount(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
}

// Locker serializes work on one key across instances. The returned function
// releases the lock.
type Locker interface {
	Lock(ctx context.Context, key string, wait time.Duration) (func(context.Context) error, error)
}

// Paths served by the storefront and handed to the processor.
const (
	ReturnPath       = "/payment/mercadopago/checker"
	CancelPath       = "/payment/cancel"
	NotificationPath = "/payment/mercadopago/ipn"
)

package testutil

import (
	"time"

	"github.com/cassiomorais/creditshop/internal/domain/payment"
	"github.com/cassiomorais/creditshop/internal/domain/product"
	"github.com/cassiomorais/creditshop/internal/domain/user"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func NewTestUser(credits int64) *user.User {
	now := time.Now()
	return &user.User{
		ID:        uuid.New(),
		Name:      "Ana",
		Email:     "ana@example.com",
		Credits:   credits,
		Status:    user.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTestProduct returns a 1000 credit pack priced 10.00 BRL.
func NewTestProduct() *product.Product {
	now := time.Now()
	return &product.Product{
		ID:           uuid.New(),
		Type:         "credits",
		Display:      "1000 Credits",
		Price:        1000,
		Quantity:     1000,
		CurrencyCode: "BRL",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NewTestPayment returns a record of owner buying prod in the given status.
func NewTestPayment(owner *user.User, prod *product.Product, status payment.Status) *payment.Payment {
	now := time.Now()
	return &payment.Payment{
		ID:          uuid.New(),
		Method:      payment.MethodMercadoPago,
		Type:        prod.Type,
		Status:      status,
		Amount:      prod.Quantity,
		ProductID:   prod.ID,
		OwnerUserID: owner.ID,
		Charge: payment.Charge{
			Price:      prod.Price,
			Total:      prod.Price,
			TaxPercent: decimal.Zero,
			Currency:   prod.CurrencyCode,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewProcessorPayment returns the processor view of p with the given status.
func NewProcessorPayment(externalID string, p *payment.Payment, status string) *payment.ProcessorPayment {
	return &payment.ProcessorPayment{
		ID:       externalID,
		Status:   status,
		Metadata: payment.CheckoutMetadata(p, "ana@example.com"),
	}
}

func UUIDPtr(id uuid.UUID) *uuid.UUID {
	return &id
}

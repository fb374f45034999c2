package product

import (
	"context"
	"time"

	"github.com/cassiomorais/creditshop/internal/domain/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Product is a purchasable credit pack.
type Product struct {
	ID           uuid.UUID
	Type         string
	Display      string
	Description  string
	Price        int64 // in cents
	Quantity     int64 // credits granted
	CurrencyCode string
	Disabled     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Quote is the priced offer shown to one buyer.
type Quote struct {
	Discount   decimal.Decimal // percent
	TaxPercent decimal.Decimal
	Price      int64 // after discount, in cents
	TaxValue   int64
	Total      int64
	Currency   string
}

// Quote applies the buyer's discount and then the sales tax. Every amount is
// rounded half away from zero to whole cents.
func (p *Product) Quote(discountPercent, taxPercent decimal.Decimal) (Quote, error) {
	if discountPercent.IsNegative() || discountPercent.GreaterThan(hundred) {
		return Quote{}, errors.NewValidationError("discount", "must be between 0 and 100")
	}
	if taxPercent.IsNegative() {
		return Quote{}, errors.NewValidationError("tax_percent", "cannot be negative")
	}

	base := decimal.NewFromInt(p.Price)
	price := base.Sub(base.Mul(discountPercent).Div(hundred)).Round(0)
	tax := price.Mul(taxPercent).Div(hundred).Round(0)

	return Quote{
		Discount:   discountPercent,
		TaxPercent: taxPercent,
		Price:      price.IntPart(),
		TaxValue:   tax.IntPart(),
		Total:      price.Add(tax).IntPart(),
		Currency:   p.CurrencyCode,
	}, nil
}

// ItemTitle is the line item title sent to the processor.
func (p *Product) ItemTitle(discountPercent decimal.Decimal) string {
	if !discountPercent.IsPositive() {
		return p.Display
	}
	return p.Display + " (Discount " + discountPercent.String() + "%)"
}

// Repository defines read access to the catalog
type Repository interface {
	// GetByID retrieves a product by ID
	GetByID(ctx context.Context, id uuid.UUID) (*Product, error)
}

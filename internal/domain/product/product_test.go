package product

import (
	"testing"

	"github.com/cassiomorais/creditshop/internal/domain/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pack(priceCents int64) *Product {
	return &Product{Display: "1000 Credits", Price: priceCents, Quantity: 1000, CurrencyCode: "BRL"}
}

func TestQuote(t *testing.T) {
	tests := []struct {
		name     string
		price    int64
		discount int64
		tax      string
		wantP    int64
		wantTax  int64
		wantTot  int64
	}{
		{"no discount no tax", 1000, 0, "0", 1000, 0, 1000},
		{"tax only", 1000, 0, "19", 1000, 190, 1190},
		{"discount only", 1000, 10, "0", 900, 0, 900},
		{"discount and tax", 2000, 25, "10", 1500, 150, 1650},
		{"fractional tax rounds", 999, 0, "7.5", 999, 75, 1074},
		{"fractional discount rounds", 333, 15, "0", 283, 0, 283},
		{"full discount", 1000, 100, "19", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := pack(tt.price).Quote(decimal.NewFromInt(tt.discount), decimal.RequireFromString(tt.tax))
			require.NoError(t, err)
			assert.Equal(t, tt.wantP, q.Price)
			assert.Equal(t, tt.wantTax, q.TaxValue)
			assert.Equal(t, tt.wantTot, q.Total)
			assert.Equal(t, "BRL", q.Currency)
		})
	}
}

func TestQuote_InvalidInput(t *testing.T) {
	_, err := pack(1000).Quote(decimal.NewFromInt(101), decimal.Zero)
	assert.ErrorIs(t, err, errors.ErrValidationFailed)

	_, err = pack(1000).Quote(decimal.NewFromInt(-1), decimal.Zero)
	assert.ErrorIs(t, err, errors.ErrValidationFailed)

	_, err = pack(1000).Quote(decimal.Zero, decimal.NewFromInt(-3))
	assert.ErrorIs(t, err, errors.ErrValidationFailed)
}

func TestItemTitle(t *testing.T) {
	p := pack(1000)

	assert.Equal(t, "1000 Credits", p.ItemTitle(decimal.Zero))
	assert.Equal(t, "1000 Credits (Discount 15%)", p.ItemTitle(decimal.NewFromInt(15)))
	assert.Equal(t, "1000 Credits (Discount 12.5%)", p.ItemTitle(decimal.RequireFromString("12.5")))
}

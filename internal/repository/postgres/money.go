package postgres

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// NUMERIC(12,2) columns travel as text so no float rounding happens in transit.

func numericStringToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty numeric string")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse numeric %q: %w", s, err)
	}

	return d.Shift(2).Round(0).IntPart(), nil
}

func centsToNumericString(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

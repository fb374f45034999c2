package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// DiscountRepository resolves the partner discount a buyer is entitled to.
// A user referred by a partner gets that partner's discount percent.
type DiscountRepository struct {
	pool *pgxpool.Pool
}

func NewDiscountRepository(pool *pgxpool.Pool) *DiscountRepository {
	return &DiscountRepository{pool: pool}
}

// PartnerDiscount returns the discount percent for userID, zero when the user
// was not referred by a partner.
func (r *DiscountRepository) PartnerDiscount(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	var percent string
	err := ConnFromCtx(ctx, r.pool).QueryRow(ctx,
		`SELECT pd.partner_discount
		 FROM user_referrals ur
		 JOIN partner_discounts pd ON pd.user_id = ur.referral_id
		 WHERE ur.registered_user_id = $1
		 LIMIT 1`, userID,
	).Scan(&percent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("get partner discount: %w", err)
	}

	d, err := decimal.NewFromString(percent)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse partner discount %q: %w", percent, err)
	}
	return d, nil
}

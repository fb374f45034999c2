package postgres

import (
	"context"
	"errors"
	"fmt"

	domainErrors "github.com/cassiomorais/creditshop/internal/domain/errors"
	"github.com/cassiomorais/creditshop/internal/domain/product"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProductRepository reads the shop catalog.
type ProductRepository struct {
	pool *pgxpool.Pool
}

func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// GetByID returns the product, disabled ones included.
func (r *ProductRepository) GetByID(ctx context.Context, id uuid.UUID) (*product.Product, error) {
	p := &product.Product{}
	var price string
	err := ConnFromCtx(ctx, r.pool).QueryRow(ctx,
		`SELECT id, type, display, description, price, quantity, currency_code, disabled, created_at, updated_at
		 FROM shop_products WHERE id = $1`, id,
	).Scan(&p.ID, &p.Type, &p.Display, &p.Description, &price, &p.Quantity, &p.CurrencyCode, &p.Disabled, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	if p.Price, err = numericStringToCents(price); err != nil {
		return nil, fmt.Errorf("parse product price: %w", err)
	}
	return p, nil
}

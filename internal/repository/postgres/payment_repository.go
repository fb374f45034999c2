package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	domainErrors "github.com/cassiomorais/creditshop/internal/domain/errors"
	"github.com/cassiomorais/creditshop/internal/domain/payment"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const paymentColumns = `id, external_payment_id, method, type, status, amount,
	price, tax_value, total_price, tax_percent, currency_code,
	product_id, owner_user_id, credits_granted_at, created_at, updated_at`

// PaymentRepository implements payment.Repository using PostgreSQL.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository creates a new PaymentRepository.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

func (r *PaymentRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Create inserts a new payment record.
func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO payments (`+paymentColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		p.ID, p.ExternalPaymentID, p.Method, p.Type, string(p.Status), p.Amount,
		centsToNumericString(p.Charge.Price), centsToNumericString(p.Charge.TaxValue), centsToNumericString(p.Charge.Total),
		p.Charge.TaxPercent.String(), p.Charge.Currency,
		p.ProductID, p.OwnerUserID, p.CreditsGrantedAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// GetByID retrieves a payment record by its ID.
func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	return r.scanPayment(r.db(ctx).QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
}

// Delete removes a record together with its audit trail.
func (r *PaymentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db(ctx).Exec(ctx, `DELETE FROM payment_events WHERE payment_id = $1`, id); err != nil {
		return fmt.Errorf("delete payment events: %w", err)
	}
	tag, err := r.db(ctx).Exec(ctx, `DELETE FROM payments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrPaymentNotFound
	}
	return nil
}

// UpdateStatus is a compare-and-swap on the stored status. The external id is
// coalesced so a stored id is never overwritten with NULL. A grant timestamp
// that differs from an already stored one fails the swap, so a reader that
// missed a grant cannot grant again.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, p *payment.Payment, expected payment.Status) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE payments SET
		  status = $1,
		  external_payment_id = COALESCE($2, external_payment_id),
		  credits_granted_at = COALESCE(credits_granted_at, $3),
		  updated_at = $4
		 WHERE id = $5 AND status = $6
		   AND ($3::timestamptz IS NULL OR credits_granted_at IS NULL OR credits_granted_at = $3)`,
		string(p.Status), p.ExternalPaymentID, p.CreditsGrantedAt, p.UpdatedAt, p.ID, string(expected),
	)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payments WHERE id = $1)`, p.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check payment exists: %w", err)
		}
		if !exists {
			return domainErrors.ErrPaymentNotFound
		}
		return domainErrors.ErrOptimisticLockFailed
	}
	return nil
}

// List lists payment records newest first.
func (r *PaymentRepository) List(ctx context.Context, f payment.ListFilter) ([]*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE 1=1`
	args := []any{}
	argIdx := 1

	if f.OwnerUserID != nil {
		query += fmt.Sprintf(" AND owner_user_id = $%d", argIdx)
		args = append(args, *f.OwnerUserID)
		argIdx++
	}
	if f.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(*f.Status))
		argIdx++
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []*payment.Payment
	for rows.Next() {
		p, err := r.scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// AddEvent inserts a payment event.
func (r *PaymentRepository) AddEvent(ctx context.Context, event *payment.PaymentEvent) error {
	data, err := json.Marshal(event.EventData)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	_, err = r.db(ctx).Exec(ctx,
		`INSERT INTO payment_events (id, payment_id, event_type, event_data, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		event.ID, event.PaymentID, event.EventType, data, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment event: %w", err)
	}
	return nil
}

// GetEvents retrieves events for a payment.
func (r *PaymentRepository) GetEvents(ctx context.Context, paymentID uuid.UUID) ([]*payment.PaymentEvent, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT id, payment_id, event_type, event_data, created_at
		 FROM payment_events WHERE payment_id = $1 ORDER BY created_at ASC`, paymentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list payment events: %w", err)
	}
	defer rows.Close()

	var events []*payment.PaymentEvent
	for rows.Next() {
		e := &payment.PaymentEvent{}
		var data []byte
		if err := rows.Scan(&e.ID, &e.PaymentID, &e.EventType, &data, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &e.EventData); err != nil {
				return nil, fmt.Errorf("unmarshal event data: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *PaymentRepository) scanPayment(s scanner) (*payment.Payment, error) {
	p := &payment.Payment{}
	var status, price, taxValue, total, taxPercent string
	err := s.Scan(
		&p.ID, &p.ExternalPaymentID, &p.Method, &p.Type, &status, &p.Amount,
		&price, &taxValue, &total, &taxPercent, &p.Charge.Currency,
		&p.ProductID, &p.OwnerUserID, &p.CreditsGrantedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}

	p.Status = payment.Status(status)
	if p.Charge.Price, err = numericStringToCents(price); err != nil {
		return nil, fmt.Errorf("parse price: %w", err)
	}
	if p.Charge.TaxValue, err = numericStringToCents(taxValue); err != nil {
		return nil, fmt.Errorf("parse tax value: %w", err)
	}
	if p.Charge.Total, err = numericStringToCents(total); err != nil {
		return nil, fmt.Errorf("parse total price: %w", err)
	}
	if p.Charge.TaxPercent, err = decimal.NewFromString(taxPercent); err != nil {
		return nil, fmt.Errorf("parse tax percent: %w", err)
	}
	return p, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	domainErrors "github.com/cassiomorais/creditshop/internal/domain/errors"
	"github.com/cassiomorais/creditshop/internal/domain/user"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, name, email, credits, version, status, created_at, updated_at`

// UserRepository implements user.Repository using PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

func (r *UserRepository) scanUser(s scanner) (*user.User, error) {
	u := &user.User{}
	var status string
	err := s.Scan(&u.ID, &u.Name, &u.Email, &u.Credits, &u.Version, &status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Status = user.Status(status)
	return u, nil
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.Name, u.Email, u.Credits, u.Version, string(u.Status), u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by its ID.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	return r.scanUser(r.db(ctx).QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// Lock acquires a row-level lock on the user (SELECT FOR UPDATE).
func (r *UserRepository) Lock(ctx context.Context, id uuid.UUID) (*user.User, error) {
	return r.scanUser(r.db(ctx).QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
}

// UpdateCredits writes the balance with optimistic locking. The caller has
// already bumped Version.
func (r *UserRepository) UpdateCredits(ctx context.Context, u *user.User) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE users SET credits = $1, version = $2, updated_at = $3
		 WHERE id = $4 AND version = $5`,
		u.Credits, u.Version, u.UpdatedAt, u.ID, u.Version-1,
	)
	if err != nil {
		return fmt.Errorf("update user credits: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrOptimisticLockFailed
	}
	return nil
}

// AddCreditTransaction inserts a ledger line.
func (r *UserRepository) AddCreditTransaction(ctx context.Context, tx *user.CreditTransaction) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO credit_transactions (id, user_id, payment_id, amount, balance_after, description, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		tx.ID, tx.UserID, tx.PaymentID, tx.Amount, tx.BalanceAfter, tx.Description, tx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert credit transaction: %w", err)
	}
	return nil
}

// GetCreditTransactions retrieves ledger lines for a user, newest first.
func (r *UserRepository) GetCreditTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*user.CreditTransaction, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db(ctx).Query(ctx,
		`SELECT id, user_id, payment_id, amount, balance_after, description, created_at
		 FROM credit_transactions WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list credit transactions: %w", err)
	}
	defer rows.Close()

	var txns []*user.CreditTransaction
	for rows.Next() {
		tx := &user.CreditTransaction{}
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.PaymentID, &tx.Amount, &tx.BalanceAfter, &tx.Description, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan credit transaction: %w", err)
		}
		txns = append(txns, tx)
	}
	return txns, rows.Err()
}

//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	domainErrors "github.com/cassiomorais/creditshop/internal/domain/errors"
	"github.com/cassiomorais/creditshop/internal/domain/outbox"
	"github.com/cassiomorais/creditshop/internal/domain/payment"
	"github.com/cassiomorais/creditshop/internal/domain/product"
	"github.com/cassiomorais/creditshop/internal/domain/user"
	"github.com/cassiomorais/creditshop/internal/testutil"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("creditshop"),
		tcpostgres.WithUsername("creditshop"),
		tcpostgres.WithPassword("creditshop"),
		testcontainers.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	m, err := migrate.New("file://migrations", dsn)
	require.NoError(t, err)
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		require.NoError(t, err)
	}
	m.Close()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

type seed struct {
	user    *user.User
	product *product.Product
}

func seedStore(t *testing.T, pool *pgxpool.Pool) seed {
	t.Helper()
	ctx := context.Background()

	u := testutil.NewTestUser(0)
	u.Email = uuid.NewString() + "@example.com"
	require.NoError(t, NewUserRepository(pool).Create(ctx, u))

	p := testutil.NewTestProduct()
	_, err := pool.Exec(ctx,
		`INSERT INTO shop_products (id, type, display, price, quantity, currency_code) VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.Type, p.Display, centsToNumericString(p.Price), p.Quantity, p.CurrencyCode)
	require.NoError(t, err)
	return seed{user: u, product: p}
}

func TestIntegration_PaymentRepository(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	s := seedStore(t, pool)
	repo := NewPaymentRepository(pool)

	t.Run("create and load", func(t *testing.T) {
		p := testutil.NewTestPayment(s.user, s.product, payment.StatusOpen)
		p.Charge.TaxPercent = decimal.RequireFromString("19")
		require.NoError(t, repo.Create(ctx, p))

		got, err := repo.GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusOpen, got.Status)
		assert.Equal(t, p.Charge.Price, got.Charge.Price)
		assert.True(t, got.Charge.TaxPercent.Equal(p.Charge.TaxPercent))
		assert.Nil(t, got.ExternalPaymentID)
	})

	t.Run("product lookup", func(t *testing.T) {
		products := NewProductRepository(pool)
		got, err := products.GetByID(ctx, s.product.ID)
		require.NoError(t, err)
		assert.Equal(t, s.product.Price, got.Price)

		_, err = products.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, domainErrors.ErrProductNotFound)
	})

	t.Run("compare and swap", func(t *testing.T) {
		p := testutil.NewTestPayment(s.user, s.product, payment.StatusOpen)
		require.NoError(t, repo.Create(ctx, p))

		next := p.Clone()
		next.SetExternalID("1319567894")
		require.NoError(t, next.TransitionTo(payment.StatusPaid))
		require.NoError(t, next.MarkCreditsGranted(time.Now()))
		require.NoError(t, repo.UpdateStatus(ctx, next, payment.StatusOpen))

		stale := p.Clone()
		require.NoError(t, stale.TransitionTo(payment.StatusCancelled))
		err := repo.UpdateStatus(ctx, stale, payment.StatusOpen)
		assert.ErrorIs(t, err, domainErrors.ErrOptimisticLockFailed)

		got, err := repo.GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusPaid, got.Status)
		assert.Equal(t, "1319567894", got.ExternalID())
		assert.True(t, got.CreditsGranted())
	})

	t.Run("stale reader cannot grant twice", func(t *testing.T) {
		p := testutil.NewTestPayment(s.user, s.product, payment.StatusCancelled)
		require.NoError(t, repo.Create(ctx, p))
		stale := p.Clone()

		granted := p.Clone()
		require.NoError(t, granted.TransitionTo(payment.StatusPaid))
		require.NoError(t, granted.MarkCreditsGranted(time.Now()))
		require.NoError(t, repo.UpdateStatus(ctx, granted, payment.StatusCancelled))
		recancelled := granted.Clone()
		require.NoError(t, recancelled.TransitionTo(payment.StatusCancelled))
		require.NoError(t, repo.UpdateStatus(ctx, recancelled, payment.StatusPaid))

		require.NoError(t, stale.TransitionTo(payment.StatusPaid))
		require.NoError(t, stale.MarkCreditsGranted(time.Now().Add(time.Second)))
		err := repo.UpdateStatus(ctx, stale, payment.StatusCancelled)
		assert.ErrorIs(t, err, domainErrors.ErrOptimisticLockFailed)

		reloaded, err := repo.GetByID(ctx, p.ID)
		require.NoError(t, err)
		require.True(t, reloaded.CreditsGranted())
		require.NoError(t, reloaded.TransitionTo(payment.StatusPaid))
		require.NoError(t, repo.UpdateStatus(ctx, reloaded, payment.StatusCancelled))
	})

	t.Run("update missing record", func(t *testing.T) {
		p := testutil.NewTestPayment(s.user, s.product, payment.StatusCreated)
		err := repo.UpdateStatus(ctx, p, payment.StatusOpen)
		assert.ErrorIs(t, err, domainErrors.ErrPaymentNotFound)
	})

	t.Run("delete removes events", func(t *testing.T) {
		p := testutil.NewTestPayment(s.user, s.product, payment.StatusOpen)
		require.NoError(t, repo.Create(ctx, p))
		require.NoError(t, repo.AddEvent(ctx, payment.NewEvent(p.ID, "payment.created", map[string]any{"to": "open"})))

		require.NoError(t, repo.Delete(ctx, p.ID))

		_, err := repo.GetByID(ctx, p.ID)
		assert.ErrorIs(t, err, domainErrors.ErrPaymentNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, p.ID), domainErrors.ErrPaymentNotFound)
	})

	t.Run("list is owner scoped", func(t *testing.T) {
		other := seedStore(t, pool)
		require.NoError(t, repo.Create(ctx, testutil.NewTestPayment(other.user, other.product, payment.StatusOpen)))

		list, err := repo.List(ctx, payment.ListFilter{OwnerUserID: &other.user.ID})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, other.user.ID, list[0].OwnerUserID)
	})
}

func TestIntegration_UserCredits(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	s := seedStore(t, pool)
	users := NewUserRepository(pool)
	payments := NewPaymentRepository(pool)
	tx := NewTxManager(pool)

	p := testutil.NewTestPayment(s.user, s.product, payment.StatusOpen)
	require.NoError(t, payments.Create(ctx, p))

	err := tx.WithTransaction(ctx, func(txCtx context.Context) error {
		u, err := users.Lock(txCtx, s.user.ID)
		if err != nil {
			return err
		}
		if err := u.Credit(p.Amount); err != nil {
			return err
		}
		if err := users.UpdateCredits(txCtx, u); err != nil {
			return err
		}
		return users.AddCreditTransaction(txCtx, user.NewPurchaseTransaction(u, p.ID, p.Amount))
	})
	require.NoError(t, err)

	got, err := users.GetByID(ctx, s.user.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Amount, got.Credits)

	txns, err := users.GetCreditTransactions(ctx, s.user.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, p.Amount, txns[0].BalanceAfter)

	// A second grant for the same payment violates the unique index and rolls back.
	err = tx.WithTransaction(ctx, func(txCtx context.Context) error {
		u, err := users.Lock(txCtx, s.user.ID)
		if err != nil {
			return err
		}
		_ = u.Credit(p.Amount)
		if err := users.UpdateCredits(txCtx, u); err != nil {
			return err
		}
		return users.AddCreditTransaction(txCtx, user.NewPurchaseTransaction(u, p.ID, p.Amount))
	})
	require.Error(t, err)

	got, err = users.GetByID(ctx, s.user.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Amount, got.Credits)
}

func TestIntegration_PartnerDiscount(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	partner := seedStore(t, pool)
	buyer := seedStore(t, pool)
	repo := NewDiscountRepository(pool)

	d, err := repo.PartnerDiscount(ctx, buyer.user.ID)
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	_, err = pool.Exec(ctx, `INSERT INTO partner_discounts (user_id, partner_discount) VALUES ($1, 12.5)`, partner.user.ID)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO user_referrals (id, referral_id, registered_user_id) VALUES ($1, $2, $3)`,
		uuid.New(), partner.user.ID, buyer.user.ID)
	require.NoError(t, err)

	d, err = repo.PartnerDiscount(ctx, buyer.user.ID)
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("12.5")))
}

func TestIntegration_Outbox(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	repo := NewOutboxRepository(pool)
	tx := NewTxManager(pool)

	e := outbox.NewEntry("payment", uuid.New(), outbox.EventPaymentUpdated, map[string]any{"status": "paid"})
	e.MaxRetries = 2
	require.NoError(t, repo.Insert(ctx, e))

	err := tx.WithTransaction(ctx, func(txCtx context.Context) error {
		pending, err := repo.GetPending(txCtx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, "paid", pending[0].Payload["status"])
		return repo.MarkFailed(txCtx, e.ID, "stream unavailable")
	})
	require.NoError(t, err)

	pending, err := repo.GetPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].RetryCount)
	require.NotNil(t, pending[0].LastError)

	require.NoError(t, repo.MarkFailed(ctx, e.ID, "stream unavailable"))
	pending, err = repo.GetPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "exhausted entries leave the pending set")

	published := outbox.NewEntry("payment", uuid.New(), outbox.EventCreditsUpdated, nil)
	require.NoError(t, repo.Insert(ctx, published))
	require.NoError(t, repo.MarkPublished(ctx, published.ID))

	n, err := repo.PurgePublished(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

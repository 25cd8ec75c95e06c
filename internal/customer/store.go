package customer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atelier-doudou/backend-stickers/internal/common"
	"github.com/atelier-doudou/backend-stickers/internal/money"
)

// ErrNotFound is returned when no customer matches the given email.
var ErrNotFound = errors.New("customer: not found")

// Customer is the identity-store view of a shopper, including the aggregate
// counters the discount rules read.
type Customer struct {
	ID           string
	Email        string
	TotalOrders  int32
	TotalSpent   money.Cents
	TotalSavings money.Cents
	CreatedAt    time.Time
}

// Querier captures the database operations required by the customer store.
type Querier interface {
	FindByEmail(ctx context.Context, email string) (Customer, error)
	EnsureByEmail(ctx context.Context, email string) (Customer, error)
	IncrementTotals(ctx context.Context, id string, spent, saved money.Cents) error
}

// PGQuerier implements Querier against a pgx connection pool.
type PGQuerier struct {
	Pool *pgxpool.Pool
}

// FindByEmail resolves a customer by normalised email address.
func (q PGQuerier) FindByEmail(ctx context.Context, email string) (Customer, error) {
	const stmt = `
		SELECT id, email, total_orders, total_spent_cents, total_savings_cents, created_at
		FROM customers
		WHERE email = $1`
	var c Customer
	err := q.Pool.QueryRow(ctx, stmt, common.NormalizeEmail(email)).
		Scan(&c.ID, &c.Email, &c.TotalOrders, &c.TotalSpent, &c.TotalSavings, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, ErrNotFound
		}
		return Customer{}, fmt.Errorf("find customer: %w", err)
	}
	return c, nil
}

// EnsureByEmail returns the customer for the email, creating the row on
// first contact. The upsert keeps concurrent first checkouts safe.
func (q PGQuerier) EnsureByEmail(ctx context.Context, email string) (Customer, error) {
	const stmt = `
		INSERT INTO customers (email)
		VALUES ($1)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING id, email, total_orders, total_spent_cents, total_savings_cents, created_at`
	var c Customer
	err := q.Pool.QueryRow(ctx, stmt, common.NormalizeEmail(email)).
		Scan(&c.ID, &c.Email, &c.TotalOrders, &c.TotalSpent, &c.TotalSavings, &c.CreatedAt)
	if err != nil {
		return Customer{}, fmt.Errorf("ensure customer: %w", err)
	}
	return c, nil
}

// IncrementTotals bumps the aggregate counters after a completed order.
// The increment is a single statement so the store applies it atomically.
func (q PGQuerier) IncrementTotals(ctx context.Context, id string, spent, saved money.Cents) error {
	const stmt = `
		UPDATE customers
		SET total_orders = total_orders + 1,
		    total_spent_cents = total_spent_cents + $2,
		    total_savings_cents = total_savings_cents + $3
		WHERE id = $1`
	tag, err := q.Pool.Exec(ctx, stmt, id, spent, saved)
	if err != nil {
		return fmt.Errorf("increment customer totals: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

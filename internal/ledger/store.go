package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atelier-doudou/backend-stickers/internal/money"
)

// Entry is an immutable audit record of a discount actually granted on an
// order.
type Entry struct {
	ID              string      `json:"id"`
	OrderRef        string      `json:"orderRef"`
	CustomerID      string      `json:"customerId"`
	DiscountType    string      `json:"discountType"`
	Reason          string      `json:"reason"`
	OriginalPrice   money.Cents `json:"originalPrice"`
	DiscountedPrice money.Cents `json:"discountedPrice"`
	Savings         money.Cents `json:"savings"`
	Percent         int         `json:"percent"`
	DoudouHistoryID string      `json:"doudouHistoryId,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
}

// Querier captures the database operations required by the ledger store.
type Querier interface {
	Insert(ctx context.Context, e Entry) error
	ListByCustomer(ctx context.Context, customerID string) ([]Entry, error)
	TotalSavings(ctx context.Context, customerID string) (money.Cents, error)
}

// PGQuerier implements Querier against a pgx connection pool.
type PGQuerier struct {
	Pool *pgxpool.Pool
}

// Insert writes a ledger entry. Entries are append-only.
func (q PGQuerier) Insert(ctx context.Context, e Entry) error {
	const stmt = `
		INSERT INTO discount_ledger
			(order_ref, customer_id, discount_type, reason, original_price_cents,
			 discounted_price_cents, savings_cents, percent, doudou_history_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''))`
	_, err := q.Pool.Exec(ctx, stmt,
		e.OrderRef, e.CustomerID, e.DiscountType, e.Reason, e.OriginalPrice,
		e.DiscountedPrice, e.Savings, e.Percent, e.DoudouHistoryID)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// ListByCustomer returns all ledger entries for a customer, most recent
// first. A customer without entries yields an empty slice, never an error.
func (q PGQuerier) ListByCustomer(ctx context.Context, customerID string) ([]Entry, error) {
	const stmt = `
		SELECT id, order_ref, customer_id, discount_type, reason, original_price_cents,
		       discounted_price_cents, savings_cents, percent, COALESCE(doudou_history_id::text, ''), created_at
		FROM discount_ledger
		WHERE customer_id = $1
		ORDER BY created_at DESC`
	rows, err := q.Pool.Query(ctx, stmt, customerID)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.OrderRef, &e.CustomerID, &e.DiscountType, &e.Reason,
			&e.OriginalPrice, &e.DiscountedPrice, &e.Savings, &e.Percent, &e.DoudouHistoryID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}
	return entries, nil
}

// TotalSavings sums the savings across all entries for a customer. Zero when
// the customer has no entries.
func (q PGQuerier) TotalSavings(ctx context.Context, customerID string) (money.Cents, error) {
	const stmt = `
		SELECT COALESCE(SUM(savings_cents), 0)
		FROM discount_ledger
		WHERE customer_id = $1`
	var total money.Cents
	if err := q.Pool.QueryRow(ctx, stmt, customerID).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum ledger savings: %w", err)
	}
	return total, nil
}

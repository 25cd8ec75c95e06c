package ledger

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/atelier-doudou/backend-stickers/internal/money"
	"github.com/atelier-doudou/backend-stickers/internal/obs"
)

// Recorder persists ledger entries best-effort. A write failure is logged
// and surfaced as a boolean; it never propagates as an error because an
// unrecorded discount must not block the order that granted it.
type Recorder struct {
	Q      Querier
	Logger zerolog.Logger
}

// Record inserts the entry and reports whether the write succeeded.
func (r *Recorder) Record(ctx context.Context, e Entry) bool {
	if r == nil || r.Q == nil {
		return false
	}
	if err := r.Q.Insert(ctx, e); err != nil {
		r.Logger.Error().Err(err).
			Str("order_ref", e.OrderRef).
			Str("customer_id", e.CustomerID).
			Str("discount_type", e.DiscountType).
			Int64("savings_cents", e.Savings).
			Msg("discount ledger write failed")
		obs.CountLedgerWrite("error")
		return false
	}
	obs.CountLedgerWrite("ok")
	return true
}

// History bundles the two customer read queries into one payload.
type History struct {
	Entries      []Entry     `json:"entries"`
	TotalSavings money.Cents `json:"totalSavings"`
}

// CustomerHistory answers the ledger read queries for one customer. A
// customer without entries yields an empty history, never an error.
func (r *Recorder) CustomerHistory(ctx context.Context, customerID string) (History, error) {
	if r == nil || r.Q == nil {
		return History{Entries: []Entry{}}, nil
	}
	entries, err := r.Q.ListByCustomer(ctx, customerID)
	if err != nil {
		return History{}, err
	}
	total, err := r.Q.TotalSavings(ctx, customerID)
	if err != nil {
		return History{}, err
	}
	return History{Entries: entries, TotalSavings: total}, nil
}

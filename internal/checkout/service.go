package checkout

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/atelier-doudou/backend-stickers/internal/common"
	"github.com/atelier-doudou/backend-stickers/internal/customer"
	"github.com/atelier-doudou/backend-stickers/internal/doudou"
	"github.com/atelier-doudou/backend-stickers/internal/ledger"
	"github.com/atelier-doudou/backend-stickers/internal/money"
	"github.com/atelier-doudou/backend-stickers/internal/pricing"
)

// Input describes a finalized, already-paid order posted back by the
// storefront for bookkeeping.
type Input struct {
	OrderRef      string
	Email         string
	PetName       string
	AnimalType    string
	PhotoURL      string
	OriginalPrice money.Cents
	FinalPrice    money.Cents
	DiscountType  pricing.DiscountType
	DiscountPct   int
	Reason        string
}

// Recorded reports which best-effort writes succeeded. The order itself is
// already final; these flags exist for observability only.
type Recorded struct {
	Profile bool `json:"profile"`
	History bool `json:"history"`
	Ledger  bool `json:"ledger"`
}

// Service applies the post-order bookkeeping: customer counters, doudou
// history, and the discount ledger entry when a discount was granted.
type Service struct {
	Customers customer.Querier
	History   doudou.Querier
	Ledger    *ledger.Recorder
	Photos    pricing.Fingerprinter
	Logger    zerolog.Logger
}

// photoHash must agree with the hash the pricing surface computes, or a
// stored fingerprint would spuriously block the repeat-order discount.
func (s *Service) photoHash(ctx context.Context, rawURL string) string {
	if s.Photos != nil {
		return s.Photos.Fingerprint(ctx, rawURL)
	}
	return common.PhotoFingerprint(rawURL)
}

// Finalize records the order against the customer profile and history
// stores. Counter and ledger write failures are logged and reported through
// the Recorded flags; they never fail the call. Only a missing or invalid
// identity is an error, since nothing can be recorded without one.
func (s *Service) Finalize(ctx context.Context, in Input) (Recorded, error) {
	if s == nil || s.Customers == nil {
		return Recorded{}, errors.New("checkout service not configured")
	}
	email := common.NormalizeEmail(in.Email)
	if email == "" {
		return Recorded{}, errors.New("email is required")
	}

	cust, err := s.Customers.EnsureByEmail(ctx, email)
	if err != nil {
		return Recorded{}, err
	}

	var recorded Recorded
	savings := in.OriginalPrice - in.FinalPrice
	if savings < 0 {
		savings = 0
	}

	if err := s.Customers.IncrementTotals(ctx, cust.ID, in.FinalPrice, savings); err != nil {
		s.Logger.Error().Err(err).Str("customer_id", cust.ID).Msg("customer counter update failed")
	} else {
		recorded.Profile = true
	}

	var historyID string
	if s.History != nil && in.PetName != "" && in.AnimalType != "" {
		rec, err := s.History.RecordOrder(ctx, cust.ID, in.PetName, in.AnimalType, s.photoHash(ctx, in.PhotoURL))
		if err != nil {
			s.Logger.Error().Err(err).
				Str("customer_id", cust.ID).
				Str("pet_name", in.PetName).
				Msg("doudou history update failed")
		} else {
			recorded.History = true
			historyID = rec.ID
		}
	}

	if savings > 0 && in.DiscountType != "" && in.DiscountType != pricing.DiscountNone {
		recorded.Ledger = s.Ledger.Record(ctx, ledger.Entry{
			OrderRef:        in.OrderRef,
			CustomerID:      cust.ID,
			DiscountType:    string(in.DiscountType),
			Reason:          in.Reason,
			OriginalPrice:   in.OriginalPrice,
			DiscountedPrice: in.FinalPrice,
			Savings:         savings,
			Percent:         in.DiscountPct,
			DoudouHistoryID: historyID,
		})
	}
	return recorded, nil
}

package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/atelier-doudou/backend-stickers/internal/catalog"
	"github.com/atelier-doudou/backend-stickers/internal/customer"
	"github.com/atelier-doudou/backend-stickers/internal/doudou"
	"github.com/atelier-doudou/backend-stickers/internal/money"
	"github.com/atelier-doudou/backend-stickers/internal/obs"
)

// DiscountType tags which automatic discount rule produced the result.
type DiscountType string

// Discount type tags. DiscountLoyalty is reserved in the data model for a
// future loyalty programme and is not produced by the current rules.
const (
	DiscountNone         DiscountType = "none"
	DiscountRepeatDoudou DiscountType = "repeat_doudou"
	DiscountUpsell       DiscountType = "upsell"
	DiscountLoyalty      DiscountType = "loyalty"
)

const (
	repeatDoudouPercent = 30
	upsellPercent       = 60

	loyaltyMinOrders = 1
	loyaltyMinSpent  = money.Cents(2000)
)

// Input carries one pricing request.
type Input struct {
	Email        string
	PetName      string
	AnimalType   string
	SheetCount   int
	UpsellIDs    []string
	ShippingCost money.Cents
	PhotoHash    string
}

// Discount describes the single discount applied to a result, if any.
type Discount struct {
	Type    DiscountType `json:"type"`
	Percent int          `json:"percent"`
	Amount  money.Cents  `json:"amount"`
	Reason  string       `json:"reason"`
}

// Breakdown splits the final price into its components. Base and Upsell are
// post-discount values; the discount only ever lands on one of the two.
type Breakdown struct {
	Base     money.Cents `json:"base"`
	Upsell   money.Cents `json:"upsell"`
	Shipping money.Cents `json:"shipping"`
	Discount money.Cents `json:"discount"`
}

// Result is the authoritative price for a checkout.
type Result struct {
	OriginalPrice   money.Cents `json:"originalPrice"`
	FinalPrice      money.Cents `json:"finalPrice"`
	Discount        Discount    `json:"discount"`
	Savings         money.Cents `json:"savings"`
	Breakdown       Breakdown   `json:"breakdown"`
	DoudouHistoryID string      `json:"-"`
	Fallback        bool        `json:"fallback,omitempty"`
}

// CatalogSource resolves the active article snapshot.
type CatalogSource interface {
	Snapshot(ctx context.Context) (catalog.Snapshot, error)
}

// CustomerSource resolves customers by email.
type CustomerSource interface {
	FindByEmail(ctx context.Context, email string) (customer.Customer, error)
}

// HistorySource resolves doudou history records.
type HistorySource interface {
	Find(ctx context.Context, customerID, petName, animalType string) (doudou.Record, error)
}

// FallbackRates are the hard-coded flat rates used when the main calculation
// path fails unexpectedly. Deliberately conservative: never cheaper than the
// regular catalog prices.
type FallbackRates struct {
	PerSheet money.Cents
	PerAddOn money.Cents
}

// DefaultFallbackRates returns the stock fallback table.
func DefaultFallbackRates() FallbackRates {
	return FallbackRates{PerSheet: 1490, PerAddOn: 1190}
}

// Engine computes checkout prices, applying at most one automatic discount.
// It is stateless: every call reads fresh catalog and history state.
type Engine struct {
	Catalog   CatalogSource
	Customers CustomerSource
	History   HistorySource
	Fallback  FallbackRates
	Logger    zerolog.Logger
}

// Calculate prices a checkout. A missing base article aborts pricing; every
// identity or history failure degrades to "no discount"; an unexpected panic
// in the calculation degrades to flat fallback pricing so checkout is never
// blocked by an unpriced cart.
func (e *Engine) Calculate(ctx context.Context, in Input) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.Logger.Error().Interface("panic", r).
				Str("email", in.Email).
				Str("pet_name", in.PetName).
				Msg("pricing calculation failed, serving fallback rates")
			obs.CountPricingFallback()
			res = e.fallbackResult(in)
			err = nil
		}
	}()

	snap, err := e.Catalog.Snapshot(ctx)
	if err != nil {
		return Result{}, err
	}

	sheets := in.SheetCount
	if sheets < 1 {
		sheets = 1
	}
	base := money.Cents(sheets) * snap.Base.Price

	var upsell money.Cents
	selectedUpsells := 0
	for _, id := range in.UpsellIDs {
		article, ok := snap.Upsells[id]
		if !ok {
			// Stale or mistyped ids are skipped, never rejected.
			continue
		}
		upsell += article.Price
		selectedUpsells++
	}

	original := base + upsell + in.ShippingCost

	discount, historyID := e.evaluateDiscount(ctx, in, base, upsell, selectedUpsells)

	res = Result{
		OriginalPrice:   original,
		FinalPrice:      original,
		Discount:        discount,
		Breakdown:       Breakdown{Base: base, Upsell: upsell, Shipping: in.ShippingCost},
		DoudouHistoryID: historyID,
	}

	// The charm floor clamps upward, so a component already at or below
	// 0.90 would make the "discount" negative. Such a component is too
	// cheap to discount; the rule does not apply.
	switch discount.Type {
	case DiscountRepeatDoudou:
		rounded := money.CharmRound(base * (100 - money.Cents(discount.Percent)) / 100)
		if rounded >= base {
			res.Discount = Discount{Type: DiscountNone}
			res.DoudouHistoryID = ""
		} else {
			res.Discount.Amount = base - rounded
			res.Breakdown.Base = rounded
		}
	case DiscountUpsell:
		rounded := money.CharmRound(upsell * (100 - money.Cents(discount.Percent)) / 100)
		if rounded >= upsell {
			res.Discount = Discount{Type: DiscountNone}
		} else {
			res.Discount.Amount = upsell - rounded
			res.Breakdown.Upsell = rounded
		}
	}
	res.Breakdown.Discount = res.Discount.Amount
	res.FinalPrice = original - res.Discount.Amount
	res.Savings = res.Discount.Amount
	return res, nil
}

// evaluateDiscount applies the rule ladder: repeat-doudou first, then the
// upsell loyalty discount, first match wins. Lookup failures of any kind
// leave the customer at full price.
func (e *Engine) evaluateDiscount(ctx context.Context, in Input, base, upsell money.Cents, selectedUpsells int) (Discount, string) {
	none := Discount{Type: DiscountNone}
	if e.Customers == nil {
		return none, ""
	}

	cust, err := e.Customers.FindByEmail(ctx, in.Email)
	if err != nil {
		if !isNotFound(err) {
			e.Logger.Warn().Err(err).Str("email", in.Email).Msg("customer lookup failed, pricing without discount")
		}
		return none, ""
	}

	if d, historyID, ok := e.repeatDoudouDiscount(ctx, cust, in); ok {
		return d, historyID
	}

	if selectedUpsells > 0 && upsell > 0 {
		if cust.TotalOrders >= loyaltyMinOrders || cust.TotalSpent >= loyaltyMinSpent {
			return Discount{
				Type:    DiscountUpsell,
				Percent: upsellPercent,
				Reason:  fmt.Sprintf("returning customer (%d previous orders): %d%% off selected add-ons", cust.TotalOrders, upsellPercent),
			}, ""
		}
	}
	return none, ""
}

func (e *Engine) repeatDoudouDiscount(ctx context.Context, cust customer.Customer, in Input) (Discount, string, bool) {
	if e.History == nil || in.PetName == "" || in.AnimalType == "" {
		return Discount{}, "", false
	}
	rec, err := e.History.Find(ctx, cust.ID, in.PetName, in.AnimalType)
	if err != nil {
		if !isNotFound(err) {
			e.Logger.Warn().Err(err).
				Str("customer_id", cust.ID).
				Str("pet_name", in.PetName).
				Msg("doudou history lookup failed, pricing without discount")
		}
		return Discount{}, "", false
	}
	// A differing fingerprint means a different physical item is reusing the
	// declared name and type; no repeat discount for that.
	if in.PhotoHash != "" && rec.PhotoHash != "" && rec.PhotoHash != in.PhotoHash {
		return Discount{}, "", false
	}
	return Discount{
		Type:    DiscountRepeatDoudou,
		Percent: repeatDoudouPercent,
		Reason: fmt.Sprintf("this is order %d for %s (%s): %d%% off the sticker sheets",
			rec.OrderCount+1, in.PetName, in.AnimalType, repeatDoudouPercent),
	}, rec.ID, true
}

func (e *Engine) fallbackResult(in Input) Result {
	rates := e.Fallback
	if rates.PerSheet <= 0 {
		rates = DefaultFallbackRates()
	}
	sheets := in.SheetCount
	if sheets < 1 {
		sheets = 1
	}
	base := money.Cents(sheets) * rates.PerSheet
	upsell := money.Cents(len(in.UpsellIDs)) * rates.PerAddOn
	total := base + upsell + in.ShippingCost
	return Result{
		OriginalPrice: total,
		FinalPrice:    total,
		Discount: Discount{
			Type:   DiscountNone,
			Reason: "standard rates applied: the pricing service could not verify discounts",
		},
		Breakdown: Breakdown{Base: base, Upsell: upsell, Shipping: in.ShippingCost},
		Fallback:  true,
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, customer.ErrNotFound) || errors.Is(err, doudou.ErrNotFound)
}

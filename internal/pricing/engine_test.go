package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/atelier-doudou/backend-stickers/internal/catalog"
	"github.com/atelier-doudou/backend-stickers/internal/customer"
	"github.com/atelier-doudou/backend-stickers/internal/doudou"
	"github.com/atelier-doudou/backend-stickers/internal/money"
)

type stubCatalog struct {
	snap catalog.Snapshot
	err  error
}

func (s *stubCatalog) Snapshot(ctx context.Context) (catalog.Snapshot, error) {
	if s.err != nil {
		return catalog.Snapshot{}, s.err
	}
	return s.snap, nil
}

type stubCustomers struct {
	cust customer.Customer
	err  error
}

func (s *stubCustomers) FindByEmail(ctx context.Context, email string) (customer.Customer, error) {
	if s.err != nil {
		return customer.Customer{}, s.err
	}
	return s.cust, nil
}

type stubHistory struct {
	rec doudou.Record
	err error
}

func (s *stubHistory) Find(ctx context.Context, customerID, petName, animalType string) (doudou.Record, error) {
	if s.err != nil {
		return doudou.Record{}, s.err
	}
	return s.rec, nil
}

func testSnapshot() catalog.Snapshot {
	return catalog.Snapshot{
		Base: catalog.Article{ID: "sticker-sheet", Category: catalog.CategoryBase, Price: 1290, Active: true},
		Upsells: map[string]catalog.Article{
			"plush-keyring": {ID: "plush-keyring", Category: catalog.CategoryUpsell, Price: 990, Active: true},
		},
	}
}

func newEngine(cat CatalogSource, cust CustomerSource, hist HistorySource) *Engine {
	return &Engine{
		Catalog:   cat,
		Customers: cust,
		History:   hist,
		Fallback:  DefaultFallbackRates(),
		Logger:    zerolog.Nop(),
	}
}

func TestCalculateNewCustomerNoDiscount(t *testing.T) {
	engine := newEngine(
		&stubCatalog{snap: testSnapshot()},
		&stubCustomers{err: customer.ErrNotFound},
		&stubHistory{err: doudou.ErrNotFound},
	)
	res, err := engine.Calculate(context.Background(), Input{
		Email:        "new@example.com",
		PetName:      "Lapinou",
		AnimalType:   "rabbit",
		SheetCount:   1,
		ShippingCost: 350,
	})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if res.OriginalPrice != 1640 || res.FinalPrice != 1640 {
		t.Fatalf("expected 16.40 original and final, got %d / %d", res.OriginalPrice, res.FinalPrice)
	}
	if res.Discount.Type != DiscountNone || res.Discount.Amount != 0 {
		t.Fatalf("expected no discount, got %+v", res.Discount)
	}
}

func TestCalculateRepeatDoudouDiscount(t *testing.T) {
	engine := newEngine(
		&stubCatalog{snap: testSnapshot()},
		&stubCustomers{cust: customer.Customer{ID: "c1", TotalOrders: 2, TotalSpent: 3000}},
		&stubHistory{rec: doudou.Record{ID: "h1", CustomerID: "c1", PetName: "Lapinou", AnimalType: "rabbit", OrderCount: 2}},
	)
	res, err := engine.Calculate(context.Background(), Input{
		Email:        "loyal@example.com",
		PetName:      "Lapinou",
		AnimalType:   "rabbit",
		SheetCount:   1,
		ShippingCost: 350,
	})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if res.Discount.Type != DiscountRepeatDoudou {
		t.Fatalf("expected repeat_doudou discount, got %+v", res.Discount)
	}
	if res.Breakdown.Base != 890 {
		t.Fatalf("expected base rounded to 8.90, got %d", res.Breakdown.Base)
	}
	if res.FinalPrice != 1240 || res.Discount.Amount != 400 || res.Savings != 400 {
		t.Fatalf("expected final 12.40 saving 4.00, got final %d amount %d", res.FinalPrice, res.Discount.Amount)
	}
	if res.DoudouHistoryID != "h1" {
		t.Fatalf("expected history reference h1, got %q", res.DoudouHistoryID)
	}
}

func TestDiscountSkippedWhenComponentBelowCharmFloor(t *testing.T) {
	// A base article cheaper than the 0.90 charm floor: rounding the
	// discounted value clamps upward, so applying the rule would charge
	// more than full price. The rule must not apply.
	snap := catalog.Snapshot{
		Base: catalog.Article{ID: "sticker-sheet", Category: catalog.CategoryBase, Price: 50, Active: true},
		Upsells: map[string]catalog.Article{
			"plush-keyring": {ID: "plush-keyring", Category: catalog.CategoryUpsell, Price: 80, Active: true},
		},
	}
	engine := newEngine(
		&stubCatalog{snap: snap},
		&stubCustomers{cust: customer.Customer{ID: "c1", TotalOrders: 2, TotalSpent: 3000}},
		&stubHistory{rec: doudou.Record{ID: "h1", PetName: "Lapinou", AnimalType: "rabbit", OrderCount: 2}},
	)
	res, err := engine.Calculate(context.Background(), Input{
		Email:        "loyal@example.com",
		PetName:      "Lapinou",
		AnimalType:   "rabbit",
		SheetCount:   1,
		ShippingCost: 350,
	})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if res.Discount.Type != DiscountNone || res.Discount.Amount != 0 {
		t.Fatalf("sub-floor base must not be discounted, got %+v", res.Discount)
	}
	if res.FinalPrice != res.OriginalPrice {
		t.Fatalf("final %d != original %d", res.FinalPrice, res.OriginalPrice)
	}
	if res.DoudouHistoryID != "" {
		t.Fatalf("no discount granted, history reference must be empty, got %q", res.DoudouHistoryID)
	}

	// Same for a cheap upsell component under the loyalty rule.
	engine = newEngine(
		&stubCatalog{snap: snap},
		&stubCustomers{cust: customer.Customer{ID: "c1", TotalOrders: 2}},
		&stubHistory{err: doudou.ErrNotFound},
	)
	res, err = engine.Calculate(context.Background(), Input{
		Email:        "loyal@example.com",
		SheetCount:   1,
		UpsellIDs:    []string{"plush-keyring"},
		ShippingCost: 490,
	})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if res.Discount.Type != DiscountNone || res.Discount.Amount != 0 {
		t.Fatalf("sub-floor upsell must not be discounted, got %+v", res.Discount)
	}
	if res.FinalPrice > res.OriginalPrice {
		t.Fatalf("final %d exceeds original %d", res.FinalPrice, res.OriginalPrice)
	}
}

func TestCalculateUpsellDiscount(t *testing.T) {
	engine := newEngine(
		&stubCatalog{snap: testSnapshot()},
		&stubCustomers{cust: customer.Customer{ID: "c1", TotalOrders: 2}},
		&stubHistory{err: doudou.ErrNotFound},
	)
	res, err := engine.Calculate(context.Background(), Input{
		Email:        "loyal@example.com",
		PetName:      "Lapinou",
		AnimalType:   "rabbit",
		SheetCount:   1,
		UpsellIDs:    []string{"plush-keyring"},
		ShippingCost: 490,
	})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if res.Discount.Type != DiscountUpsell || res.Discount.Percent != 60 {
		t.Fatalf("expected 60%% upsell discount, got %+v", res.Discount)
	}
	if res.Breakdown.Upsell != 390 {
		t.Fatalf("expected upsell rounded to 3.90, got %d", res.Breakdown.Upsell)
	}
	if res.FinalPrice != 2170 || res.Discount.Amount != 600 {
		t.Fatalf("expected final 21.70 saving 6.00, got final %d amount %d", res.FinalPrice, res.Discount.Amount)
	}
}

func TestCalculateMissingBaseIsFatal(t *testing.T) {
	engine := newEngine(&stubCatalog{err: catalog.ErrNoBaseArticle}, &stubCustomers{}, &stubHistory{})
	_, err := engine.Calculate(context.Background(), Input{Email: "a@b.c", SheetCount: 1})
	if !errors.Is(err, catalog.ErrNoBaseArticle) {
		t.Fatalf("expected ErrNoBaseArticle, got %v", err)
	}
}

func TestCalculateHistoryErrorDegradesToNoDiscount(t *testing.T) {
	engine := newEngine(
		&stubCatalog{snap: testSnapshot()},
		&stubCustomers{cust: customer.Customer{ID: "c1", TotalOrders: 5}},
		&stubHistory{err: errors.New("store unavailable")},
	)
	res, err := engine.Calculate(context.Background(), Input{
		Email:        "loyal@example.com",
		PetName:      "Lapinou",
		AnimalType:   "rabbit",
		SheetCount:   1,
		ShippingCost: 350,
	})
	if err != nil {
		t.Fatalf("expected graceful degradation, got error %v", err)
	}
	if res.Discount.Type != DiscountNone {
		t.Fatalf("expected no discount after history error, got %+v", res.Discount)
	}
	if res.FinalPrice != res.OriginalPrice {
		t.Fatalf("final %d != original %d", res.FinalPrice, res.OriginalPrice)
	}
}

func TestCalculateUnknownUpsellIDsSkipped(t *testing.T) {
	engine := newEngine(
		&stubCatalog{snap: testSnapshot()},
		&stubCustomers{err: customer.ErrNotFound},
		&stubHistory{err: doudou.ErrNotFound},
	)
	res, err := engine.Calculate(context.Background(), Input{
		Email:        "new@example.com",
		SheetCount:   1,
		UpsellIDs:    []string{"plush-keyring", "does-not-exist"},
		ShippingCost: 490,
	})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if res.Breakdown.Upsell != 990 {
		t.Fatalf("expected only the valid upsell summed, got %d", res.Breakdown.Upsell)
	}
}

func TestRepeatDiscountBlockedByPhotoHashMismatch(t *testing.T) {
	engine := newEngine(
		&stubCatalog{snap: testSnapshot()},
		&stubCustomers{cust: customer.Customer{ID: "c1", TotalOrders: 2}},
		&stubHistory{rec: doudou.Record{ID: "h1", PetName: "Lapinou", AnimalType: "rabbit", OrderCount: 1, PhotoHash: "aaa"}},
	)
	res, err := engine.Calculate(context.Background(), Input{
		Email:      "loyal@example.com",
		PetName:    "Lapinou",
		AnimalType: "rabbit",
		SheetCount: 1,
		PhotoHash:  "bbb",
	})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if res.Discount.Type == DiscountRepeatDoudou {
		t.Fatal("hash mismatch must block the repeat discount")
	}
}

func TestRepeatDiscountAllowedWhenStoredHashEmpty(t *testing.T) {
	engine := newEngine(
		&stubCatalog{snap: testSnapshot()},
		&stubCustomers{cust: customer.Customer{ID: "c1", TotalOrders: 2}},
		&stubHistory{rec: doudou.Record{ID: "h1", PetName: "Lapinou", AnimalType: "rabbit", OrderCount: 1}},
	)
	res, err := engine.Calculate(context.Background(), Input{
		Email:      "loyal@example.com",
		PetName:    "Lapinou",
		AnimalType: "rabbit",
		SheetCount: 1,
		PhotoHash:  "bbb",
	})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if res.Discount.Type != DiscountRepeatDoudou {
		t.Fatalf("empty stored hash must not block the discount, got %+v", res.Discount)
	}
}

func TestRepeatDiscountShortCircuitsUpsellDiscount(t *testing.T) {
	engine := newEngine(
		&stubCatalog{snap: testSnapshot()},
		&stubCustomers{cust: customer.Customer{ID: "c1", TotalOrders: 9, TotalSpent: 90_000}},
		&stubHistory{rec: doudou.Record{ID: "h1", PetName: "Lapinou", AnimalType: "rabbit", OrderCount: 3}},
	)
	res, err := engine.Calculate(context.Background(), Input{
		Email:      "loyal@example.com",
		PetName:    "Lapinou",
		AnimalType: "rabbit",
		SheetCount: 2,
		UpsellIDs:  []string{"plush-keyring"},
	})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if res.Discount.Type != DiscountRepeatDoudou {
		t.Fatalf("repeat check must win over upsell check, got %+v", res.Discount)
	}
	if res.Breakdown.Upsell != 990 {
		t.Fatalf("upsell component must stay undiscounted, got %d", res.Breakdown.Upsell)
	}
}

func TestUpsellDiscountRequiresSelectionAndLoyalty(t *testing.T) {
	// Loyal customer, but nothing upsold: full price.
	engine := newEngine(
		&stubCatalog{snap: testSnapshot()},
		&stubCustomers{cust: customer.Customer{ID: "c1", TotalOrders: 3}},
		&stubHistory{err: doudou.ErrNotFound},
	)
	res, err := engine.Calculate(context.Background(), Input{Email: "a@b.c", SheetCount: 1})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if res.Discount.Type != DiscountNone {
		t.Fatalf("no upsell selected, expected no discount, got %+v", res.Discount)
	}

	// First-time customer below the spend threshold: full price too.
	engine = newEngine(
		&stubCatalog{snap: testSnapshot()},
		&stubCustomers{cust: customer.Customer{ID: "c2", TotalOrders: 0, TotalSpent: 1999}},
		&stubHistory{err: doudou.ErrNotFound},
	)
	res, err = engine.Calculate(context.Background(), Input{
		Email: "a@b.c", SheetCount: 1, UpsellIDs: []string{"plush-keyring"},
	})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if res.Discount.Type != DiscountNone {
		t.Fatalf("below both thresholds, expected no discount, got %+v", res.Discount)
	}

	// Spend threshold alone is enough.
	engine = newEngine(
		&stubCatalog{snap: testSnapshot()},
		&stubCustomers{cust: customer.Customer{ID: "c3", TotalOrders: 0, TotalSpent: 2000}},
		&stubHistory{err: doudou.ErrNotFound},
	)
	res, err = engine.Calculate(context.Background(), Input{
		Email: "a@b.c", SheetCount: 1, UpsellIDs: []string{"plush-keyring"},
	})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if res.Discount.Type != DiscountUpsell {
		t.Fatalf("spend threshold met, expected upsell discount, got %+v", res.Discount)
	}
}

func TestCalculateInvariants(t *testing.T) {
	engine := newEngine(
		&stubCatalog{snap: testSnapshot()},
		&stubCustomers{cust: customer.Customer{ID: "c1", TotalOrders: 4, TotalSpent: 12_000}},
		&stubHistory{rec: doudou.Record{ID: "h1", PetName: "Nounours", AnimalType: "bear", OrderCount: 5}},
	)
	inputs := []Input{
		{Email: "a@b.c", PetName: "Nounours", AnimalType: "bear", SheetCount: 1, ShippingCost: 350},
		{Email: "a@b.c", PetName: "Nounours", AnimalType: "bear", SheetCount: 3, UpsellIDs: []string{"plush-keyring"}, ShippingCost: 490},
		{Email: "a@b.c", PetName: "Other", AnimalType: "bear", SheetCount: 2, UpsellIDs: []string{"plush-keyring"}, ShippingCost: 690},
	}
	for _, in := range inputs {
		res, err := engine.Calculate(context.Background(), in)
		if err != nil {
			t.Fatalf("Calculate(%+v): %v", in, err)
		}
		if res.FinalPrice > res.OriginalPrice {
			t.Fatalf("final %d exceeds original %d", res.FinalPrice, res.OriginalPrice)
		}
		if res.FinalPrice != res.OriginalPrice-res.Discount.Amount {
			t.Fatalf("final %d != original %d - amount %d", res.FinalPrice, res.OriginalPrice, res.Discount.Amount)
		}
		if res.Discount.Type != DiscountNone {
			component := res.Breakdown.Base
			if res.Discount.Type == DiscountUpsell {
				component = res.Breakdown.Upsell
			}
			if component%100 != 90 {
				t.Fatalf("discounted component %d does not end in .90", component)
			}
		}
		again, err := engine.Calculate(context.Background(), in)
		if err != nil {
			t.Fatalf("Calculate repeat: %v", err)
		}
		if again != res {
			t.Fatalf("pricing is not idempotent: %+v vs %+v", res, again)
		}
	}
}

type panickingCustomers struct{}

func (panickingCustomers) FindByEmail(context.Context, string) (customer.Customer, error) {
	panic("identity store exploded")
}

func TestCalculatePanicFallsBackToFlatRates(t *testing.T) {
	engine := newEngine(&stubCatalog{snap: testSnapshot()}, panickingCustomers{}, &stubHistory{})
	res, err := engine.Calculate(context.Background(), Input{
		Email:        "a@b.c",
		SheetCount:   2,
		UpsellIDs:    []string{"plush-keyring"},
		ShippingCost: 490,
	})
	if err != nil {
		t.Fatalf("fallback path must not error, got %v", err)
	}
	if !res.Fallback {
		t.Fatal("expected fallback result")
	}
	want := money.Cents(2*1490 + 1190 + 490)
	if res.FinalPrice != want {
		t.Fatalf("expected flat fallback total %d, got %d", want, res.FinalPrice)
	}
	if res.Discount.Reason == "" {
		t.Fatal("fallback must explain itself in the discount reason")
	}
}

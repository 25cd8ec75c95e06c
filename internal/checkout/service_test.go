package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/atelier-doudou/backend-stickers/internal/customer"
	"github.com/atelier-doudou/backend-stickers/internal/doudou"
	"github.com/atelier-doudou/backend-stickers/internal/ledger"
	"github.com/atelier-doudou/backend-stickers/internal/money"
	"github.com/atelier-doudou/backend-stickers/internal/pricing"
)

type stubCustomers struct {
	cust         customer.Customer
	ensureErr    error
	incrementErr error
	increments   int
}

func (s *stubCustomers) FindByEmail(ctx context.Context, email string) (customer.Customer, error) {
	if s.cust.ID == "" {
		return customer.Customer{}, customer.ErrNotFound
	}
	return s.cust, nil
}

func (s *stubCustomers) EnsureByEmail(ctx context.Context, email string) (customer.Customer, error) {
	if s.ensureErr != nil {
		return customer.Customer{}, s.ensureErr
	}
	if s.cust.ID == "" {
		s.cust = customer.Customer{ID: "c-new", Email: email}
	}
	return s.cust, nil
}

func (s *stubCustomers) IncrementTotals(ctx context.Context, id string, spent, saved money.Cents) error {
	if s.incrementErr != nil {
		return s.incrementErr
	}
	s.increments++
	return nil
}

type stubHistory struct {
	rec       doudou.Record
	upsertErr error
	upserts   int
}

func (s *stubHistory) Find(ctx context.Context, customerID, petName, animalType string) (doudou.Record, error) {
	if s.rec.ID == "" {
		return doudou.Record{}, doudou.ErrNotFound
	}
	return s.rec, nil
}

func (s *stubHistory) RecordOrder(ctx context.Context, customerID, petName, animalType, photoHash string) (doudou.Record, error) {
	if s.upsertErr != nil {
		return doudou.Record{}, s.upsertErr
	}
	s.upserts++
	s.rec = doudou.Record{ID: "h1", CustomerID: customerID, PetName: petName, AnimalType: animalType, PhotoHash: photoHash, OrderCount: s.rec.OrderCount + 1}
	return s.rec, nil
}

type stubLedger struct {
	entries   []ledger.Entry
	insertErr error
}

func (s *stubLedger) Insert(ctx context.Context, e ledger.Entry) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.entries = append(s.entries, e)
	return nil
}

func (s *stubLedger) ListByCustomer(ctx context.Context, customerID string) ([]ledger.Entry, error) {
	return s.entries, nil
}

func (s *stubLedger) TotalSavings(ctx context.Context, customerID string) (money.Cents, error) {
	return 0, nil
}

func newService(customers *stubCustomers, history *stubHistory, led *stubLedger) *Service {
	return &Service{
		Customers: customers,
		History:   history,
		Ledger:    &ledger.Recorder{Q: led, Logger: zerolog.Nop()},
		Logger:    zerolog.Nop(),
	}
}

func TestFinalizeRecordsEverything(t *testing.T) {
	customers := &stubCustomers{}
	history := &stubHistory{}
	led := &stubLedger{}
	svc := newService(customers, history, led)

	recorded, err := svc.Finalize(context.Background(), Input{
		OrderRef:      "ord-1",
		Email:         "Loyal@Example.com",
		PetName:       "Lapinou",
		AnimalType:    "rabbit",
		PhotoURL:      "https://cdn.example.com/lapinou.jpg",
		OriginalPrice: 1640,
		FinalPrice:    1240,
		DiscountType:  pricing.DiscountRepeatDoudou,
		DiscountPct:   30,
		Reason:        "repeat order",
	})
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if !recorded.Profile || !recorded.History || !recorded.Ledger {
		t.Fatalf("expected all writes recorded, got %+v", recorded)
	}
	if customers.increments != 1 || history.upserts != 1 || len(led.entries) != 1 {
		t.Fatalf("unexpected write counts: %d %d %d", customers.increments, history.upserts, len(led.entries))
	}
	entry := led.entries[0]
	if entry.Savings != 400 || entry.DoudouHistoryID != "h1" {
		t.Fatalf("unexpected ledger entry %+v", entry)
	}
	if history.rec.PhotoHash == "" {
		t.Fatal("expected photo fingerprint stored on history record")
	}
}

func TestFinalizeNoDiscountSkipsLedger(t *testing.T) {
	led := &stubLedger{}
	svc := newService(&stubCustomers{}, &stubHistory{}, led)
	recorded, err := svc.Finalize(context.Background(), Input{
		OrderRef:      "ord-2",
		Email:         "new@example.com",
		PetName:       "Nounours",
		AnimalType:    "bear",
		OriginalPrice: 1640,
		FinalPrice:    1640,
		DiscountType:  pricing.DiscountNone,
	})
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if recorded.Ledger {
		t.Fatal("no discount: ledger must not be written")
	}
	if len(led.entries) != 0 {
		t.Fatalf("unexpected ledger entries %v", led.entries)
	}
}

func TestFinalizeBestEffortWrites(t *testing.T) {
	customers := &stubCustomers{incrementErr: errors.New("deadlock")}
	history := &stubHistory{upsertErr: errors.New("conflict")}
	led := &stubLedger{insertErr: errors.New("timeout")}
	svc := newService(customers, history, led)

	recorded, err := svc.Finalize(context.Background(), Input{
		OrderRef:      "ord-3",
		Email:         "loyal@example.com",
		PetName:       "Lapinou",
		AnimalType:    "rabbit",
		OriginalPrice: 1640,
		FinalPrice:    1240,
		DiscountType:  pricing.DiscountRepeatDoudou,
		DiscountPct:   30,
	})
	if err != nil {
		t.Fatalf("best-effort writes must not fail the call, got %v", err)
	}
	if recorded.Profile || recorded.History || recorded.Ledger {
		t.Fatalf("expected all flags false, got %+v", recorded)
	}
}

func TestFinalizeRequiresIdentity(t *testing.T) {
	svc := newService(&stubCustomers{ensureErr: errors.New("identity store down")}, &stubHistory{}, &stubLedger{})
	if _, err := svc.Finalize(context.Background(), Input{OrderRef: "ord-4", Email: "x@y.z"}); err == nil {
		t.Fatal("expected error when identity cannot be resolved")
	}
	if _, err := svc.Finalize(context.Background(), Input{OrderRef: "ord-5"}); err == nil {
		t.Fatal("expected error for missing email")
	}
}

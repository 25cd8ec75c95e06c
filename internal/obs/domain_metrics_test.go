package obs

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// Runs before registration: every helper must be a safe no-op.
func TestCountHelpersBeforeRegistration(t *testing.T) {
	if PricingRequestTotal != nil {
		t.Skip("domain metrics already registered in this binary")
	}
	CountPricingRequest("ok")
	CountDiscountApplied("none")
	CountPricingFallback()
	CountLedgerWrite("error")
}

func TestCountHelpersAfterRegistration(t *testing.T) {
	MustRegisterDomainMetrics("obstest", prometheus.NewRegistry())

	CountPricingRequest("ok")
	CountPricingRequest("ok")
	CountDiscountApplied("repeat_doudou")
	CountPricingFallback()
	CountLedgerWrite("error")

	if got := testutil.ToFloat64(PricingRequestTotal.WithLabelValues("ok")); got != 2 {
		t.Fatalf("expected 2 ok pricing requests, got %v", got)
	}
	if got := testutil.ToFloat64(DiscountAppliedTotal.WithLabelValues("repeat_doudou")); got != 1 {
		t.Fatalf("expected 1 repeat_doudou discount, got %v", got)
	}
	if got := testutil.ToFloat64(PricingFallbackTotal); got != 1 {
		t.Fatalf("expected 1 fallback, got %v", got)
	}
	if got := testutil.ToFloat64(LedgerWriteTotal.WithLabelValues("error")); got != 1 {
		t.Fatalf("expected 1 failed ledger write, got %v", got)
	}
}

package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PricingRequestTotal counts pricing calculations by outcome.
	PricingRequestTotal *prometheus.CounterVec
	// DiscountAppliedTotal counts discounts granted by type.
	DiscountAppliedTotal *prometheus.CounterVec
	// PricingFallbackTotal counts requests served by the flat fallback rates.
	PricingFallbackTotal prometheus.Counter
	// LedgerWriteTotal tracks discount ledger write outcomes.
	LedgerWriteTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PricingRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_requests_total",
			Help:      "Count of pricing calculations by outcome.",
		}, []string{"result"})
		DiscountAppliedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discounts_applied_total",
			Help:      "Count of automatic discounts granted by type.",
		}, []string{"type"})
		PricingFallbackTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_fallback_total",
			Help:      "Count of pricing requests served by the conservative fallback rates.",
		})
		LedgerWriteTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_writes_total",
			Help:      "Count of discount ledger write outcomes.",
		}, []string{"result"})
		reg.MustRegister(PricingRequestTotal, DiscountAppliedTotal, PricingFallbackTotal, LedgerWriteTotal)
	})
}

// The increment helpers below are no-ops until MustRegisterDomainMetrics has
// run, so callers never have to guard against an unregistered collector.

// CountPricingRequest records a pricing calculation outcome.
func CountPricingRequest(result string) {
	if PricingRequestTotal != nil {
		PricingRequestTotal.WithLabelValues(result).Inc()
	}
}

// CountDiscountApplied records a granted (or absent) discount by type.
func CountDiscountApplied(discountType string) {
	if DiscountAppliedTotal != nil {
		DiscountAppliedTotal.WithLabelValues(discountType).Inc()
	}
}

// CountPricingFallback records a request served by the flat fallback rates.
func CountPricingFallback() {
	if PricingFallbackTotal != nil {
		PricingFallbackTotal.Inc()
	}
}

// CountLedgerWrite records a discount ledger write outcome.
func CountLedgerWrite(result string) {
	if LedgerWriteTotal != nil {
		LedgerWriteTotal.WithLabelValues(result).Inc()
	}
}

package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// OrdersCreatedTotal counts persisted orders by currency.
	OrdersCreatedTotal *prometheus.CounterVec
	// OrdersSettledTotal counts orders transitioned to PAID.
	OrdersSettledTotal prometheus.Counter
	// CouponValidationTotal counts coupon validation outcomes by reason.
	CouponValidationTotal *prometheus.CounterVec
	// CouponCommitTotal counts coupon usage settlement outcomes.
	CouponCommitTotal *prometheus.CounterVec
	// RegionResolvedTotal counts resolved pricing regions by winning strategy.
	RegionResolvedTotal *prometheus.CounterVec
	// IntlFallbackTotal counts international lines priced from the home base
	// because no tier ladder was configured.
	IntlFallbackTotal prometheus.Counter
	// GeoIPLookupTotal counts upstream geo lookups by outcome.
	GeoIPLookupTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		OrdersCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Count of orders persisted by checkout, labelled by currency.",
		}, []string{"currency"})
		OrdersSettledTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_settled_total",
			Help:      "Count of orders marked paid by the payment webhook.",
		})
		CouponValidationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_validation_total",
			Help:      "Count of coupon validation outcomes by rejection reason.",
		}, []string{"result"})
		CouponCommitTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_commit_total",
			Help:      "Count of coupon usage settlement outcomes.",
		}, []string{"result"})
		RegionResolvedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "region_resolved_total",
			Help:      "Count of resolved pricing regions by winning signal.",
		}, []string{"strategy", "currency"})
		IntlFallbackTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intl_base_fallback_total",
			Help:      "International lines priced from the home base price for lack of a tier ladder.",
		})
		GeoIPLookupTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geoip_lookup_total",
			Help:      "Count of geo IP lookups by outcome.",
		}, []string{"result"})

		mustRegisterCollector(reg, OrdersCreatedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				OrdersCreatedTotal = v
			}
		})
		mustRegisterCollector(reg, OrdersSettledTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				OrdersSettledTotal = v
			}
		})
		mustRegisterCollector(reg, CouponValidationTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CouponValidationTotal = v
			}
		})
		mustRegisterCollector(reg, CouponCommitTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CouponCommitTotal = v
			}
		})
		mustRegisterCollector(reg, RegionResolvedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				RegionResolvedTotal = v
			}
		})
		mustRegisterCollector(reg, IntlFallbackTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				IntlFallbackTotal = v
			}
		})
		mustRegisterCollector(reg, GeoIPLookupTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				GeoIPLookupTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}

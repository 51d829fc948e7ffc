package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CartCalculationsTotal counts cart pricing calculations by outcome.
	CartCalculationsTotal *prometheus.CounterVec
	// DiscountsAppliedTotal counts discounts applied to carts.
	DiscountsAppliedTotal prometheus.Counter
	// PriceUpdatesTotal counts price history writes by mode (inserted or coalesced).
	PriceUpdatesTotal *prometheus.CounterVec
	// CheckoutTotal counts sale transaction attempts by result.
	CheckoutTotal *prometheus.CounterVec
	// ReservationsExpiredTotal counts cart reservations released by the sweeper.
	ReservationsExpiredTotal prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CartCalculationsTotal = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_calculations_total",
			Help:      "Count of cart pricing calculations by outcome.",
		}, []string{"result"}))
		DiscountsAppliedTotal = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discounts_applied_total",
			Help:      "Count of discounts applied to carts.",
		}))
		PriceUpdatesTotal = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_updates_total",
			Help:      "Count of price history writes by mode.",
		}, []string{"mode"}))
		CheckoutTotal = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Count of sale transaction attempts by result.",
		}, []string{"result"}))

		ReservationsExpiredTotal = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_expired_total",
			Help:      "Number of cart reservations released by the expiry sweeper.",
		}))
	})
}

func registerCounter(reg prometheus.Registerer, c prometheus.Counter) prometheus.Counter {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

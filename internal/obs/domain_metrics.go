package obs

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// RateLookupsTotal counts exchange rate lookups by outcome: hit, miss or error.
	RateLookupsTotal *prometheus.CounterVec
	// RateUpstreamLatency records upstream rate table fetches in milliseconds.
	RateUpstreamLatency *prometheus.HistogramVec
	// BillCalculationsTotal counts bill calculations by user type and outcome.
	BillCalculationsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics registers the exchange and discount collectors once.
// Until it runs the Observe helpers are no-ops.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		RateLookupsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exchange_rate_lookups_total",
			Help:      "Exchange rate lookups by outcome.",
		}, []string{"result"}))
		RateUpstreamLatency = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "exchange_rate_upstream_duration_ms",
			Help:      "Upstream exchange rate request latency in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"result"}))
		BillCalculationsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bill_calculations_total",
			Help:      "Bill calculations by user type and outcome.",
		}, []string{"user_type", "result"}))
	})
}

// ObserveRateLookup counts one rate lookup.
func ObserveRateLookup(result string) {
	if RateLookupsTotal != nil {
		RateLookupsTotal.WithLabelValues(result).Inc()
	}
}

// ObserveUpstream records the latency of one upstream call.
func ObserveUpstream(result string, d time.Duration) {
	if RateUpstreamLatency != nil {
		RateUpstreamLatency.WithLabelValues(result).Observe(DurationMillis(d))
	}
}

// ObserveCalculation counts one bill calculation.
func ObserveCalculation(userType, result string) {
	if BillCalculationsTotal != nil {
		BillCalculationsTotal.WithLabelValues(userType, result).Inc()
	}
}

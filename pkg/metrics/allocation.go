package metrics

import "github.com/prometheus/client_golang/prometheus"

// AllocationMetrics counts allocation outcomes per product.
type AllocationMetrics struct {
	attempts     *prometheus.CounterVec
	insufficient prometheus.Counter
	units        prometheus.Counter
}

// NewAllocationMetrics registers the allocation metrics on the provided registerer.
func NewAllocationMetrics(reg prometheus.Registerer) *AllocationMetrics {
	if reg == nil {
		return &AllocationMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "allocation",
		Name:      "attempts_total",
		Help:      "Allocation attempts by outcome.",
	}, []string{"outcome"})
	insufficient := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "allocation",
		Name:      "insufficient_stock_total",
		Help:      "Allocations that failed for lack of stock.",
	})
	units := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "allocation",
		Name:      "units_allocated_total",
		Help:      "Units successfully allocated to orders.",
	})
	reg.MustRegister(attempts, insufficient, units)
	return &AllocationMetrics{
		attempts:     attempts,
		insufficient: insufficient,
		units:        units,
	}
}

// IncAttempt records an allocation attempt with its outcome label.
func (a *AllocationMetrics) IncAttempt(outcome string) {
	if a == nil || a.attempts == nil {
		return
	}
	a.attempts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncInsufficient counts a failed allocation due to missing stock.
func (a *AllocationMetrics) IncInsufficient() {
	if a == nil || a.insufficient == nil {
		return
	}
	a.insufficient.Inc()
}

// AddUnits adds the number of units consumed by a successful allocation.
func (a *AllocationMetrics) AddUnits(n int) {
	if a == nil || a.units == nil || n <= 0 {
		return
	}
	a.units.Add(float64(n))
}

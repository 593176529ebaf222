package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
)

// Metrics counts cache operations per namespace. A nil *Metrics is a no-op.
type Metrics struct {
	ops     *prometheus.CounterVec
	breaker *prometheus.GaugeVec
}

// NewMetrics creates the cache collectors and registers them with reg when
// reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_operations_total",
				Help: "Total number of record cache operations",
			},
			[]string{"namespace", "op", "result"},
		),
		breaker: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cache_breaker_state",
				Help: "Cache backend circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"name"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.ops, m.breaker)
	}
	return m
}

func (m *Metrics) observe(namespace, op, result string) {
	if m == nil {
		return
	}
	m.ops.WithLabelValues(namespace, op, result).Inc()
}

func (m *Metrics) breakerState(name string, state gobreaker.State) {
	if m == nil {
		return
	}
	m.breaker.WithLabelValues(name).Set(float64(state))
}

// Ops exposes the operation counter, mainly for tests.
func (m *Metrics) Ops() *prometheus.CounterVec {
	return m.ops
}

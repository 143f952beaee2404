package metrics

import "github.com/prometheus/client_golang/prometheus"

var breakerStates = []string{"closed", "half-open", "open"}

// resilienceMetrics implements resilience.Observer on a process registry.
type resilienceMetrics struct {
	service      string
	retriesTotal *prometheus.CounterVec
	breakerState *prometheus.GaugeVec
}

func newResilienceMetrics(registry *prometheus.Registry, service string) *resilienceMetrics {
	retriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbound",
			Name:      "retries_total",
			Help:      "Retried outbound calls by operation.",
		},
		[]string{"service", "operation"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "outbound",
			Name:      "breaker_state",
			Help:      "Circuit breaker state by operation; 1 marks the current state.",
		},
		[]string{"service", "operation", "state"},
	)
	registry.MustRegister(retriesTotal, breakerState)
	return &resilienceMetrics{service: service, retriesTotal: retriesTotal, breakerState: breakerState}
}

func (m *resilienceMetrics) ObserveRetry(operation string) {
	m.retriesTotal.WithLabelValues(m.service, operation).Inc()
}

func (m *resilienceMetrics) ObserveBreakerState(operation string, state string) {
	for _, s := range breakerStates {
		value := 0.0
		if s == state {
			value = 1
		}
		m.breakerState.WithLabelValues(m.service, operation, s).Set(value)
	}
}

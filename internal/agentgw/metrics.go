package agentgw

import "github.com/prometheus/client_golang/prometheus"

// InvokeHooks receives invocation outcomes. Zero value is a no-op; the
// Lambda binaries run without a metrics registry.
type InvokeHooks struct {
	OnInvoke func(function, outcome string, seconds float64)
}

// Metrics holds Prometheus metrics for the action-group boundary.
type Metrics struct {
	InvocationsTotal   *prometheus.CounterVec
	InvocationDuration *prometheus.HistogramVec
}

// NewMetrics registers and returns boundary metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		InvocationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "costguard_invocations_total",
			Help: "Total action-group invocations by function and outcome.",
		}, []string{"function", "outcome"}),
		InvocationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "costguard_invocation_duration_seconds",
			Help:    "Duration of action-group invocations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms .. ~40s
		}, []string{"function"}),
	}

	reg.MustRegister(
		m.InvocationsTotal,
		m.InvocationDuration,
	)

	return m
}

// Hooks returns an InvokeHooks that increments the corresponding metrics.
func (m *Metrics) Hooks() InvokeHooks {
	return InvokeHooks{
		OnInvoke: func(function, outcome string, seconds float64) {
			m.InvocationsTotal.WithLabelValues(function, outcome).Inc()
			m.InvocationDuration.WithLabelValues(function).Observe(seconds)
		},
	}
}

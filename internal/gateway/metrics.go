package gateway

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for provider calls.
type Metrics struct {
	// Call outcomes by operation: ok or an error category
	Calls *prometheus.CounterVec

	// Per-attempt latency by operation
	Latency *prometheus.HistogramVec

	// Retries scheduled by operation
	Retries *prometheus.CounterVec

	// 1 while the breaker is open
	CircuitOpen prometheus.Gauge
}

// NewMetrics creates gateway metrics registered on the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		Calls: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scout_gateway_calls_total",
			Help: "Total provider calls by operation and outcome",
		}, []string{"op", "outcome"}),

		Latency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scout_gateway_attempt_duration_seconds",
			Help:    "Duration of individual provider call attempts",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"op"}),

		Retries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scout_gateway_retries_total",
			Help: "Total retries scheduled after retryable provider errors",
		}, []string{"op"}),

		CircuitOpen: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "scout_gateway_circuit_open",
			Help: "Whether the provider circuit breaker is open (1) or closed (0)",
		}),
	}
}

func (m *Metrics) IncrementCall(op, outcome string) {
	if m != nil {
		m.Calls.WithLabelValues(op, outcome).Inc()
	}
}

func (m *Metrics) ObserveAttempt(op string, d time.Duration) {
	if m != nil {
		m.Latency.WithLabelValues(op).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementRetry(op string) {
	if m != nil {
		m.Retries.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) SetCircuitOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.CircuitOpen.Set(1)
		return
	}
	m.CircuitOpen.Set(0)
}

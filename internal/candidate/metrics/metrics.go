package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the candidate record store.
type Metrics struct {
	// Store operation latency by backend and operation
	StoreLatency *prometheus.HistogramVec

	// Upsert outcomes: created, updated, conflict
	Upserts *prometheus.CounterVec

	// Rows returned per query
	QueryResults prometheus.Histogram
}

// New creates a new Metrics instance with all candidate metrics registered.
func New() *Metrics {
	return &Metrics{
		StoreLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scout_candidate_store_duration_seconds",
			Help:    "Duration of candidate store operations by backend and operation",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}, []string{"backend", "op"}), // op: "upsert", "find", "query", "count"

		Upserts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scout_candidate_upserts_total",
			Help: "Total candidate upserts by outcome",
		}, []string{"outcome"}),

		QueryResults: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "scout_candidate_query_results",
			Help:    "Number of candidates returned per query",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
}

// ObserveStore records the duration of a store operation.
func (m *Metrics) ObserveStore(backend, op string, start time.Time) {
	if m != nil {
		m.StoreLatency.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
	}
}

// IncrementUpsert records an upsert outcome.
func (m *Metrics) IncrementUpsert(outcome string) {
	if m != nil {
		m.Upserts.WithLabelValues(outcome).Inc()
	}
}

// ObserveQueryResults records how many candidates a query returned.
func (m *Metrics) ObserveQueryResults(n int) {
	if m != nil {
		m.QueryResults.Observe(float64(n))
	}
}

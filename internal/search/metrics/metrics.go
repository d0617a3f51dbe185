package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the search lifecycle.
type Metrics struct {
	// Searches created, by the status they ended creation in
	Created *prometheus.CounterVec

	// Terminal transitions by status and failure kind
	Finished *prometheus.CounterVec

	// Reconciliation latency by result
	ReconcileLatency *prometheus.HistogramVec

	// Provider items seen during reconciliation, by outcome
	Items *prometheus.CounterVec

	// Searches picked up by the last poller tick
	ActiveSearches prometheus.Gauge
}

// New creates a new Metrics instance with all search metrics registered.
func New() *Metrics {
	return &Metrics{
		Created: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scout_search_created_total",
			Help: "Total searches created by resulting status",
		}, []string{"status"}),

		Finished: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scout_search_finished_total",
			Help: "Total searches reaching a terminal state by status and failure kind",
		}, []string{"status", "kind"}),

		ReconcileLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scout_search_reconcile_duration_seconds",
			Help:    "Duration of search reconciliation including provider calls",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"result"}), // result: "ok", "failed", "error"

		Items: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scout_search_items_total",
			Help: "Provider items processed during reconciliation by outcome",
		}, []string{"outcome"}), // outcome: "created", "updated", "unchanged", "malformed", "conflict"

		ActiveSearches: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "scout_search_active",
			Help: "Non-terminal searches seen by the last poller tick",
		}),
	}
}

func (m *Metrics) IncrementCreated(status string) {
	if m != nil {
		m.Created.WithLabelValues(status).Inc()
	}
}

// IncrementFinished records a terminal transition. kind is empty for
// completed searches.
func (m *Metrics) IncrementFinished(status, kind string) {
	if m != nil {
		m.Finished.WithLabelValues(status, kind).Inc()
	}
}

func (m *Metrics) ObserveReconcile(result string, start time.Time) {
	if m != nil {
		m.ReconcileLatency.WithLabelValues(result).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) IncrementItem(outcome string) {
	if m != nil {
		m.Items.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) SetActive(n int) {
	if m != nil {
		m.ActiveSearches.Set(float64(n))
	}
}

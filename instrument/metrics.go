package instrument

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for repository operations.
type Metrics struct {
	// Operation outcomes by operation and outcome
	Operations *prometheus.CounterVec

	// Operation latencies by operation
	OperationLatency *prometheus.HistogramVec

	// Records returned per search page
	SearchPageSize prometheus.Histogram
}

// NewMetrics creates the repository metrics and registers them with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pointers_repository_operations_total",
			Help: "Total repository operations by operation and outcome",
		}, []string{"operation", "outcome"}), // outcome: "success", "failure", "error"

		OperationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pointers_repository_operation_duration_seconds",
			Help:    "Duration of repository operations including engine round trips",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),

		SearchPageSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pointers_search_page_records",
			Help:    "Number of records returned per search page",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		}),
	}
}

// ObserveOperation records the outcome and latency of one operation.
func (m *Metrics) ObserveOperation(op string, d time.Duration, err error) {
	if m != nil {
		m.Operations.WithLabelValues(op, Outcome(err)).Inc()
		m.OperationLatency.WithLabelValues(op).Observe(d.Seconds())
	}
}

// ObserveSearchPage records the size of a returned search page.
func (m *Metrics) ObserveSearchPage(records int) {
	if m != nil {
		m.SearchPageSize.Observe(float64(records))
	}
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for marker lifecycle operations.
type Metrics struct {
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	TokensBurned      prometheus.Counter
	DepositsReclaimed prometheus.Counter
}

// New creates a new Metrics instance with all marker metrics registered.
func New() *Metrics {
	return &Metrics{
		Operations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "markers_operations_total",
			Help: "Marker operations by operation and outcome (ok or rejection code)",
		}, []string{"operation", "outcome"}),
		OperationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "markers_operation_duration_seconds",
			Help:    "Duration of marker operations including the store transaction",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
		TokensBurned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "markers_tokens_burned_total",
			Help: "Possession tokens burned together with their marker",
		}),
		DepositsReclaimed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "markers_deposit_reclaimed_total",
			Help: "Sum of storage deposits returned to authorities on destruction",
		}),
	}
}

// ObserveOperation records outcome and duration of an operation started at start.
func (m *Metrics) ObserveOperation(operation, outcome string, start time.Time) {
	m.Operations.WithLabelValues(operation, outcome).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// IncrementTokensBurned records a successful custody burn.
func (m *Metrics) IncrementTokensBurned() {
	m.TokensBurned.Inc()
}

// AddReclaimed records a deposit returned on destruction.
func (m *Metrics) AddReclaimed(amount uint64) {
	m.DepositsReclaimed.Add(float64(amount))
}

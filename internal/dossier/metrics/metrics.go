package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the dossier workflow.
type Metrics struct {
	// Lifecycle events applied, by event kind
	Transitions *prometheus.CounterVec

	// Rejected operations, by error code
	Errors *prometheus.CounterVec

	// Orchestrator operation latency, by operation
	OperationLatency *prometheus.HistogramVec

	// Outbox entries dispatched, by sink
	OutboxDispatched *prometheus.CounterVec
}

// New creates a new Metrics instance with all workflow metrics registered.
func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dossierflow_transitions_total",
			Help: "Total lifecycle events applied, by event kind",
		}, []string{"kind"}),

		Errors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dossierflow_operation_errors_total",
			Help: "Total rejected workflow operations, by error code",
		}, []string{"code"}),

		OperationLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dossierflow_operation_duration_seconds",
			Help:    "Duration of orchestrator operations including store round trips",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),

		OutboxDispatched: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dossierflow_outbox_dispatched_total",
			Help: "Total outbox entries delivered, by sink",
		}, []string{"sink"}),
	}
}

// IncrementTransition records one applied lifecycle event.
func (m *Metrics) IncrementTransition(kind string) {
	if m != nil {
		m.Transitions.WithLabelValues(kind).Inc()
	}
}

// IncrementError records a rejected operation.
func (m *Metrics) IncrementError(code string) {
	if m != nil {
		m.Errors.WithLabelValues(code).Inc()
	}
}

// ObserveOperation records how long an orchestrator operation took.
func (m *Metrics) ObserveOperation(operation string, d time.Duration) {
	if m != nil {
		m.OperationLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}

// IncrementDispatched records outbox entries delivered to a sink.
func (m *Metrics) IncrementDispatched(sink string, n int) {
	if m != nil {
		m.OutboxDispatched.WithLabelValues(sink).Add(float64(n))
	}
}

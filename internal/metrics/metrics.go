// Package metrics defines the Prometheus instrumentation surface for the
// core runtime, grounded on language-operator's synthesis/metrics.go
// (package-level CounterVec/GaugeVec/HistogramVec declarations registered
// once in init, plus a Record*/Set* function per metric).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// DispatchedTasksTotal counts every Dispatcher.Dispatch call by
	// capability and outcome.
	DispatchedTasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_tasks_total",
			Help: "Total number of dispatched tasks by capability and outcome",
		},
		[]string{"capability", "outcome"}, // outcome: success, failed, no_agent
	)

	// ContractsByStatusTotal counts contract creations and status
	// updates, by contract type and the status the contract then holds.
	ContractsByStatusTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contracts_total",
			Help: "Total number of contracts by type and status",
		},
		[]string{"contract_type", "status"},
	)

	// GutMoodTransitionsTotal counts every mood change the valuation
	// engine records, by the mood transitioned into.
	GutMoodTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gut_mood_transitions_total",
			Help: "Total number of GutCritic mood transitions by resulting mood",
		},
		[]string{"mood"},
	)

	// TelemetryRowsWrittenTotal counts stroke rows appended to the
	// columnar telemetry store.
	TelemetryRowsWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telemetry_rows_written_total",
			Help: "Total number of telemetry stroke rows written",
		},
		[]string{"session_id"},
	)

	// CompressionRunsTotal counts compression pipeline runs by outcome.
	CompressionRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compression_runs_total",
			Help: "Total number of compression pipeline runs by outcome",
		},
		[]string{"outcome"}, // outcome: success, oracle_error (a degraded parse of a non-JSON reply counts as success)
	)

	// CompressionDuration tracks oracle round-trip latency for
	// compression calls.
	CompressionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "compression_duration_seconds",
			Help:    "Duration of compression pipeline oracle calls in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"outcome"},
	)

	// AgentsByStatus tracks the current count of registered agents per
	// status, refreshed from the registry each time /v1/status is served.
	AgentsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agents_by_status",
			Help: "Current number of registered agents by status",
		},
		[]string{"status"},
	)
)

// Registry is this runtime's own Prometheus registry rather than the
// global DefaultRegisterer, so multiple test instantiations never collide
// on double-registration.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		DispatchedTasksTotal,
		ContractsByStatusTotal,
		GutMoodTransitionsTotal,
		TelemetryRowsWrittenTotal,
		CompressionRunsTotal,
		CompressionDuration,
		AgentsByStatus,
	)
}

// RecordDispatch records one Dispatcher.Dispatch outcome.
func RecordDispatch(capability, outcome string) {
	DispatchedTasksTotal.WithLabelValues(capability, outcome).Inc()
}

// RecordContract records one contract creation or status update by type
// and status.
func RecordContract(contractType, status string) {
	ContractsByStatusTotal.WithLabelValues(contractType, status).Inc()
}

// RecordMoodTransition records one GutCritic mood transition.
func RecordMoodTransition(mood string) {
	GutMoodTransitionsTotal.WithLabelValues(mood).Inc()
}

// RecordTelemetryRows records rows appended to a session's telemetry
// store.
func RecordTelemetryRows(sessionID string, rows int) {
	TelemetryRowsWrittenTotal.WithLabelValues(sessionID).Add(float64(rows))
}

// RecordCompressionRun records one compression pipeline run and its
// oracle-call duration.
func RecordCompressionRun(outcome string, durationSeconds float64) {
	CompressionRunsTotal.WithLabelValues(outcome).Inc()
	CompressionDuration.WithLabelValues(outcome).Observe(durationSeconds)
}

// SetAgentsByStatus updates the current agent-count gauge for one status.
func SetAgentsByStatus(status string, count int) {
	AgentsByStatus.WithLabelValues(status).Set(float64(count))
}

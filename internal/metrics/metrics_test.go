package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordDispatchIncrementsCounter(t *testing.T) {
	DispatchedTasksTotal.Reset()
	RecordDispatch("sketch.generate", "success")
	RecordDispatch("sketch.generate", "success")
	RecordDispatch("sketch.generate", "failed")

	assert.Equal(t, float64(2), testutil.ToFloat64(DispatchedTasksTotal.WithLabelValues("sketch.generate", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(DispatchedTasksTotal.WithLabelValues("sketch.generate", "failed")))
}

func TestRecordMoodTransitionIncrementsCounter(t *testing.T) {
	GutMoodTransitionsTotal.Reset()
	RecordMoodTransition("Flow")
	RecordMoodTransition("Flow")

	assert.Equal(t, float64(2), testutil.ToFloat64(GutMoodTransitionsTotal.WithLabelValues("Flow")))
}

func TestSetAgentsByStatusSetsGauge(t *testing.T) {
	AgentsByStatus.Reset()
	SetAgentsByStatus("available", 3)
	SetAgentsByStatus("available", 5)

	assert.Equal(t, float64(5), testutil.ToFloat64(AgentsByStatus.WithLabelValues("available")))
}

func TestRecordCompressionRunRecordsCounterAndHistogram(t *testing.T) {
	CompressionRunsTotal.Reset()
	CompressionDuration.Reset()
	RecordCompressionRun("success", 0.42)

	assert.Equal(t, float64(1), testutil.ToFloat64(CompressionRunsTotal.WithLabelValues("success")))
	assert.Equal(t, 1, testutil.CollectAndCount(CompressionDuration))
}

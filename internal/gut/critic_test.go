package gut

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracerun/coreruntime/internal/domain"
)

func latency(ms int) *int { return &ms }

func TestNewCriticStartsCalm(t *testing.T) {
	c := New()
	state := c.State()
	assert.Equal(t, domain.MoodCalm, state.Mood)
	assert.Zero(t, state.FrustrationIndex)
	assert.Zero(t, state.FlowProbability)
}

func TestEmptyBatchIsNoOp(t *testing.T) {
	c := New()
	before := c.State()
	after := c.IngestBatch(nil)
	assert.Equal(t, before, after)
}

func TestRapidUndoIncreasesFrustration(t *testing.T) {
	c := New()
	state := c.IngestBatch([]domain.ResonanceEvent{
		{Type: domain.EventUndo, LatencyMs: latency(100)},
	})
	assert.InDelta(t, 0.10, state.FrustrationIndex, 1e-9)
}

func TestModerateUndoSmallerIncrease(t *testing.T) {
	c := New()
	state := c.IngestBatch([]domain.ResonanceEvent{
		{Type: domain.EventUndo, LatencyMs: latency(700)},
	})
	assert.InDelta(t, 0.05, state.FrustrationIndex, 1e-9)
}

func TestFastAcceptanceIncreasesFlow(t *testing.T) {
	c := New()
	state := c.IngestBatch([]domain.ResonanceEvent{
		{Type: domain.EventStrokeAccept, LatencyMs: latency(50)},
	})
	assert.InDelta(t, 0.12, state.FlowProbability, 1e-9)
}

func TestFrustrationDecaysBetweenBatches(t *testing.T) {
	c := New(WithMinDwell(0))
	c.IngestBatch([]domain.ResonanceEvent{{Type: domain.EventUndo, LatencyMs: latency(100)}})
	second := c.IngestBatch([]domain.ResonanceEvent{{Type: domain.EventPauseDetected}})
	assert.Less(t, second.FrustrationIndex, 0.10)
}

func TestSustainedFrustrationTransitionsMood(t *testing.T) {
	c := New(WithMinDwell(0))
	var state domain.GutState
	for i := 0; i < 10; i++ {
		state = c.IngestBatch([]domain.ResonanceEvent{{Type: domain.EventUndo, LatencyMs: latency(100)}})
	}
	require.Greater(t, state.FrustrationIndex, 0.7)
	assert.Equal(t, domain.MoodFrustration, state.Mood)
}

func TestSustainedFlowTransitionsMood(t *testing.T) {
	c := New(WithMinDwell(0))
	var state domain.GutState
	for i := 0; i < 10; i++ {
		state = c.IngestBatch([]domain.ResonanceEvent{{Type: domain.EventStrokeAccept, LatencyMs: latency(50)}})
	}
	require.Greater(t, state.FlowProbability, 0.8)
	assert.Equal(t, domain.MoodFlow, state.Mood)
}

func TestHysteresisBlocksRapidTransition(t *testing.T) {
	c := New(WithMinDwell(time.Hour))
	c.IngestBatch([]domain.ResonanceEvent{{Type: domain.EventStrokeAccept, LatencyMs: latency(50)}})
	state := c.IngestBatch([]domain.ResonanceEvent{{Type: domain.EventUndo, LatencyMs: latency(100)}})
	assert.Equal(t, domain.MoodCalm, state.Mood)
}

func TestChaosRequiresSustainedErraticHighFrustration(t *testing.T) {
	c := New(WithMinDwell(0))
	for i := 0; i < 12; i++ {
		c.IngestBatch([]domain.ResonanceEvent{
			{Type: domain.EventUndo, LatencyMs: latency(100), Erratic: true},
		})
	}
	state := c.State()
	require.Greater(t, state.FrustrationIndex, 0.8)
	assert.NotEqual(t, domain.MoodChaos, state.Mood, "chaos requires erratic+high-frustration sustained >10s, not just repeated batches")
}

func TestErraticWindowRequiresTenEventsWithinFiveSeconds(t *testing.T) {
	c := New(WithMinDwell(0))
	for i := 0; i < 9; i++ {
		c.IngestBatch([]domain.ResonanceEvent{{Type: domain.EventPauseDetected, Erratic: true}})
	}
	state := c.State()
	assert.NotEqual(t, domain.MoodChaos, state.Mood)
}

func TestClearResetsState(t *testing.T) {
	c := New(WithMinDwell(0))
	for i := 0; i < 10; i++ {
		c.IngestBatch([]domain.ResonanceEvent{{Type: domain.EventStrokeAccept, LatencyMs: latency(50)}})
	}
	c.Clear()
	state := c.State()
	assert.Equal(t, domain.MoodCalm, state.Mood)
	assert.Zero(t, state.FrustrationIndex)
	assert.Zero(t, state.FlowProbability)
}

func TestBoundedEventWindowDoesNotGrowUnbounded(t *testing.T) {
	c := New(WithMaxEvents(5), WithMinDwell(0))
	for i := 0; i < 50; i++ {
		c.IngestBatch([]domain.ResonanceEvent{{Type: domain.EventPauseDetected}})
	}
	assert.LessOrEqual(t, len(c.events), 5)
}

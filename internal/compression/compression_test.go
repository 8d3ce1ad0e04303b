package compression

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracerun/coreruntime/internal/oracle"
)

type fakeOracle struct {
	response string
	err      error
	lastReq  oracle.CompletionRequest
}

func (f *fakeOracle) Complete(ctx context.Context, req oracle.CompletionRequest) (oracle.CompletionResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return oracle.CompletionResponse{}, f.err
	}
	return oracle.CompletionResponse{Content: f.response}, nil
}

func sampleEvents() []Event {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return []Event{
		{Timestamp: base.Add(2 * time.Second), EventType: "variation.accepted", Actor: "user", Data: map[string]any{"modifier": "stroke_weight", "value": 0.7}},
		{Timestamp: base, EventType: "session.created", Actor: "user"},
		{Timestamp: base.Add(time.Second), EventType: "ui.click", Actor: "user"},
		{Timestamp: base.Add(3 * time.Second), EventType: "variation.applied", Actor: "system", Data: map[string]any{"text": "applied a very long description that exceeds fifty characters for sure"}},
	}
}

func TestCompressFullPipeline(t *testing.T) {
	fo := &fakeOracle{response: `{"summary":"did things","key_decisions":["chose organic style"],"active_modifiers":{"stroke_weight":0.7},"user_preferences":["muted palette"],"design_intent":"calm illustration"}`}
	e := New(fo)

	result, err := e.Compress(context.Background(), sampleEvents())
	require.NoError(t, err)

	assert.Equal(t, "did things", result.Summary)
	assert.Equal(t, []string{"chose organic style"}, result.KeyDecisions)
	assert.Equal(t, 0.7, result.ActiveModifiers["stroke_weight"])
	assert.Equal(t, "calm illustration", result.DesignIntent)
	assert.Equal(t, 3, result.EventsProcessed) // ui.click is LOW priority, dropped
	assert.InDelta(t, 0.0, fo.lastReq.Temperature, 1e-9)
}

func TestCompressStripsMarkdownFence(t *testing.T) {
	fo := &fakeOracle{response: "```json\n{\"summary\":\"fenced\"}\n```"}
	e := New(fo)

	result, err := e.Compress(context.Background(), sampleEvents())
	require.NoError(t, err)
	assert.Equal(t, "fenced", result.Summary)
}

func TestCompressDegradesGracefullyOnMalformedJSON(t *testing.T) {
	fo := &fakeOracle{response: "not json at all"}
	e := New(fo)

	result, err := e.Compress(context.Background(), sampleEvents())
	require.NoError(t, err)
	assert.Equal(t, "not json at all", result.Summary)
	assert.Empty(t, result.KeyDecisions)
}

func TestCompressPropagatesOracleError(t *testing.T) {
	fo := &fakeOracle{err: errors.New("boom")}
	e := New(fo)

	_, err := e.Compress(context.Background(), sampleEvents())
	require.Error(t, err)
}

func TestFilterImportantEventsCapsMediumAtBudget(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var events []Event
	for i := 0; i < MaxEventsPerCompression+10; i++ {
		events = append(events, Event{Timestamp: base.Add(time.Duration(i) * time.Second), EventType: "task.completed"})
	}

	filtered := filterImportantEvents(events)
	assert.Len(t, filtered, MaxEventsPerCompression)
}

func TestRenderEventsFormatsModifierLine(t *testing.T) {
	events := []Event{
		{Timestamp: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC), EventType: "variation.accepted", Actor: "user", Data: map[string]any{"modifier": "stroke_weight", "value": 0.7}},
	}
	rendered := renderEvents(events)
	assert.Contains(t, rendered, "variation.accepted by user")
	assert.Contains(t, rendered, "stroke_weight=0.7")
}

package eventstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracerun/coreruntime/internal/domain"
	"github.com/tracerun/coreruntime/internal/gut"
)

func newTestServer(t *testing.T, manager *gut.Manager) (*httptest.Server, string) {
	t.Helper()
	h := NewHandler(manager)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeSession(w, r, "session-stream-test")
	}))
	t.Cleanup(server.Close)
	return server, "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestResonanceBatchProducesGutStateFrame(t *testing.T) {
	manager := gut.NewManager(nil)
	server, wsURL := newTestServer(t, manager)
	_ = server

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	latency := 100
	batch := map[string]any{
		"type": "resonance_batch",
		"events": []domain.ResonanceEvent{
			{Type: domain.EventUndo, LatencyMs: &latency},
		},
	}
	require.NoError(t, wsjson.Write(ctx, conn, batch))

	var frame map[string]any
	require.NoError(t, wsjson.Read(ctx, conn, &frame))
	assert.Equal(t, "gut_state", frame["type"])
	assert.NotNil(t, frame["state"])
}

func TestMalformedFrameProducesErrorNotDisconnect(t *testing.T) {
	manager := gut.NewManager(nil)
	_, wsURL := newTestServer(t, manager)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.NoError(t, wsjson.Write(ctx, conn, map[string]any{"type": "unknown_type"}))

	var frame map[string]any
	require.NoError(t, wsjson.Read(ctx, conn, &frame))
	assert.Equal(t, "error", frame["type"])

	// connection must still be usable afterward
	latency := 50
	require.NoError(t, wsjson.Write(ctx, conn, map[string]any{
		"type": "resonance_batch",
		"events": []domain.ResonanceEvent{
			{Type: domain.EventStrokeAccept, LatencyMs: &latency},
		},
	}))
	var next map[string]any
	require.NoError(t, wsjson.Read(ctx, conn, &next))
	assert.Equal(t, "gut_state", next["type"])
}

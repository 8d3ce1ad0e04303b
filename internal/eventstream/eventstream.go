// Package eventstream implements the live resonance-event WebSocket
// session: the browser streams batches of interaction micro-events in,
// the runtime streams GutState snapshots back. Grounded on SPEC_FULL.md
// §4.11's wire contract (one JSON frame per message, resonance_batch
// inbound, gut_state/error outbound, tolerant decode, no session clear on
// disconnect) and transported over github.com/coder/websocket, the
// WebSocket library already present in the example pack.
package eventstream

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog/log"

	"github.com/tracerun/coreruntime/internal/domain"
	"github.com/tracerun/coreruntime/internal/gut"
)

const inboundFrameBuffer = 32

// inboundFrame is the tolerant envelope decoded off the wire before its
// Type dispatches further parsing — a malformed payload for a known type
// produces an error frame without dropping the connection.
type inboundFrame struct {
	Type   string          `json:"type"`
	Events json.RawMessage `json:"events,omitempty"`
}

type outboundGutState struct {
	Type  string          `json:"type"`
	State domain.GutState `json:"state"`
}

type outboundError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Handler upgrades HTTP requests to WebSocket sessions and routes decoded
// resonance batches into the valuation engine.
type Handler struct {
	manager *gut.Manager
}

func NewHandler(manager *gut.Manager) *Handler {
	return &Handler{manager: manager}
}

// ServeSession upgrades the connection and owns it for its lifetime: one
// goroutine reads frames off the wire into a bounded channel, a second
// drains that channel into the session's own GutCritic and writes back
// gut_state frames. Disconnect never clears the session's valuation
// state — only an explicit session-end control path does that.
func (h *Handler) ServeSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("websocket upgrade failed")
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	batches := make(chan []domain.ResonanceEvent, inboundFrameBuffer)

	go h.readLoop(ctx, conn, sessionID, batches)

	for events := range batches {
		state := h.manager.Ingest(ctx, sessionID, events)
		if err := wsjson.Write(ctx, conn, outboundGutState{Type: "gut_state", State: state}); err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).Msg("gut_state write failed")
			return
		}
	}
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, sessionID string, batches chan<- []domain.ResonanceEvent) {
	defer close(batches)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				return
			}
			log.Debug().Err(err).Str("session_id", sessionID).Msg("websocket read ended")
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			writeError(ctx, conn, "malformed frame: "+err.Error())
			continue
		}

		switch frame.Type {
		case "resonance_batch":
			var events []domain.ResonanceEvent
			if err := json.Unmarshal(frame.Events, &events); err != nil {
				writeError(ctx, conn, "malformed resonance_batch: "+err.Error())
				continue
			}
			for i := range events {
				events[i].SessionID = sessionID
			}
			select {
			case batches <- events:
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
				writeError(ctx, conn, "server busy, batch dropped")
			}
		default:
			writeError(ctx, conn, "unknown frame type: "+frame.Type)
		}
	}
}

func writeError(ctx context.Context, conn *websocket.Conn, message string) {
	if err := wsjson.Write(ctx, conn, outboundError{Type: "error", Message: message}); err != nil {
		log.Debug().Err(err).Msg("error frame write failed")
	}
}

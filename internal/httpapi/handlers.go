package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/tracerun/coreruntime/internal/agents"
	"github.com/tracerun/coreruntime/internal/compression"
	"github.com/tracerun/coreruntime/internal/contracts"
	"github.com/tracerun/coreruntime/internal/critique"
	"github.com/tracerun/coreruntime/internal/domain"
	"github.com/tracerun/coreruntime/internal/ingestion"
	"github.com/tracerun/coreruntime/internal/metrics"
)

type handlers struct {
	deps Deps
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	stats := h.deps.Contracts.StatsSnapshot()

	agentList := h.deps.Registry.List()
	byStatus := map[domain.AgentStatus]int{}
	for _, a := range agentList {
		byStatus[a.Status]++
	}
	for status, count := range byStatus {
		metrics.SetAgentsByStatus(string(status), count)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"registered_agents":  len(agentList),
		"agents_by_status":   byStatus,
		"total_contracts":    stats.TotalContracts,
		"total_sessions":     stats.TotalSessions,
		"contracts_by_status": stats.ByStatus,
	})
}

func (h *handlers) registerAgent(w http.ResponseWriter, r *http.Request) {
	var a domain.Agent
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Code: "BadRequest", Message: err.Error()})
		return
	}
	h.deps.Registry.Register(&a)
	writeJSON(w, http.StatusOK, a)
}

func (h *handlers) listAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"agents": h.deps.Registry.List()})
}

type orchestrateRequest struct {
	SessionID  string         `json:"session_id"`
	Capability string         `json:"capability"`
	Parameters map[string]any `json:"parameters"`
	Context    map[string]any `json:"context,omitempty"`
}

func (h *handlers) orchestrate(w http.ResponseWriter, r *http.Request) {
	var req orchestrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Code: "BadRequest", Message: err.Error()})
		return
	}

	result := h.deps.Dispatcher.Dispatch(r.Context(), req.SessionID, agents.Task{
		Capability: req.Capability,
		Parameters: req.Parameters,
		Context:    req.Context,
	}, "")

	outcome := "success"
	if !result.Success {
		outcome = "failed"
		if result.ContractID == "" {
			outcome = "no_agent"
		}
	}
	metrics.RecordDispatch(req.Capability, outcome)

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     result.Success,
		"data":        result.Data,
		"error":       result.Error,
		"contract_id": result.ContractID,
		"agent_id":    result.AgentID,
	})
}

func (h *handlers) listContracts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filtered := h.deps.Contracts.Get(contracts.Filter{
		SessionID: q.Get("session_id"),
		FromAgent: q.Get("from_agent"),
		ToAgent:   q.Get("to_agent"),
	})
	writeJSON(w, http.StatusOK, map[string]any{"contracts": filtered})
}

type ingestRequest struct {
	SessionID   string              `json:"session_id"`
	ArtifactID  string              `json:"artifact_id"`
	Strokes     []domain.StrokeRow  `json:"strokes,omitempty"`
	ImagePixels []float64           `json:"image_pixels,omitempty"`
	ImageWidth  int                 `json:"image_width,omitempty"`
	Intent      *domain.IntentProfile `json:"intent,omitempty"`
	Tags        []string            `json:"tags,omitempty"`
	Notes       string              `json:"notes,omitempty"`
}

func (h *handlers) ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Code: "BadRequest", Message: err.Error()})
		return
	}

	result, err := h.deps.Ingestion.Ingest(ingestion.Artifact{
		SessionID:   req.SessionID,
		ArtifactID:  req.ArtifactID,
		Strokes:     req.Strokes,
		ImagePixels: req.ImagePixels,
		ImageWidth:  req.ImageWidth,
		Intent:      req.Intent,
		Tags:        req.Tags,
		Notes:       req.Notes,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"block_id":          result.MemoryBlockID,
		"style_dna_id":      result.StyleDNAID,
		"intent_profile_id": result.IntentProfileID,
	})
}

type compressRequest struct {
	SessionID string `json:"session_id"`
	Intent    string `json:"intent,omitempty"`
}

func (h *handlers) compress(w http.ResponseWriter, r *http.Request) {
	var req compressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Code: "BadRequest", Message: err.Error()})
		return
	}

	events := contractsToEvents(h.deps.Contracts.Conversation(req.SessionID))

	start := time.Now()
	result, err := h.deps.Compression.Compress(r.Context(), events)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		metrics.RecordCompressionRun("oracle_error", elapsed)
		writeError(w, err)
		return
	}
	metrics.RecordCompressionRun("success", elapsed)

	writeJSON(w, http.StatusOK, result)
}

type critiqueRequest struct {
	SessionID      string   `json:"session_id"`
	SVG            string   `json:"svg,omitempty"`
	ImageBase64    string   `json:"image,omitempty"`
	ImageMimeType  string   `json:"image_mime_type,omitempty"`
	Intent         string   `json:"intent,omitempty"`
	StyleKeywords  []string `json:"style_keywords,omitempty"`
	TargetAudience string   `json:"target_audience,omitempty"`
}

func (h *handlers) critiqueArtifact(w http.ResponseWriter, r *http.Request) {
	var req critiqueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Code: "BadRequest", Message: err.Error()})
		return
	}

	c, err := h.runCritique(r, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handlers) critiqueAndIngest(w http.ResponseWriter, r *http.Request) {
	var req critiqueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Code: "BadRequest", Message: err.Error()})
		return
	}

	c, err := h.runCritique(r, req)
	if err != nil {
		writeError(w, err)
		return
	}

	// Ingestion is given only the request's session_id: no artifact id,
	// strokes, image pixels or intent are passed, and the critique itself
	// is not stored on the resulting block.
	result, err := h.deps.Ingestion.Ingest(ingestion.Artifact{
		SessionID: req.SessionID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"critique": c,
		"block_id": result.MemoryBlockID,
	})
}

func (h *handlers) runCritique(r *http.Request, req critiqueRequest) (critique.Critique, error) {
	ctx := critique.Context{
		Intent:         req.Intent,
		StyleKeywords:  req.StyleKeywords,
		TargetAudience: req.TargetAudience,
	}

	if req.SVG != "" {
		return h.deps.Critique.CritiqueSVG(r.Context(), req.SVG, ctx)
	}
	return h.deps.Critique.CritiqueImage(r.Context(), req.ImageBase64, req.ImageMimeType, ctx)
}

func (h *handlers) gutState(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	writeJSON(w, http.StatusOK, h.deps.GutManager.State(sessionID))
}

func (h *handlers) gutClear(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	h.deps.GutManager.ClearSession(sessionID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (h *handlers) gutWebsocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	h.deps.Stream.ServeSession(w, r, sessionID)
}


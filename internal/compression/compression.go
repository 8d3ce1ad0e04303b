// Package compression implements the session-memory compression pipeline:
// fetch → priority-filter → render → call oracle → parse → persist.
// Grounded line-by-line on
// original_source/tracememory/compression/engine.py's CompressionEngine.
package compression

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tracerun/coreruntime/internal/domain"
	"github.com/tracerun/coreruntime/internal/oracle"
	"github.com/tracerun/coreruntime/internal/runtimeerr"
)

// MaxEventsPerCompression caps the event count fed to the oracle in one
// call, matching settings.MAX_EVENTS_PER_COMPRESSION in the source.
const MaxEventsPerCompression = 500

// Event is one session trace event eligible for compression: a generic
// (event_type, actor, data) record independent of its origin (contract
// ledger, event bus, or any future session log).
type Event struct {
	Timestamp time.Time
	EventType string
	Actor     string
	Data      map[string]any
}

var highPriority = map[string]bool{
	"session.created":      true,
	"session.updated":      true,
	"provenance.stored":    true,
	"schema.updated":       true,
	"variation.accepted":   true,
	"variation.rejected":   true,
	"user_note.added":      true,
}

var mediumPriority = map[string]bool{
	"variation.applied": true,
	"task.completed":    true,
	"asset.created":     true,
}

// Result is a compressed memory summary, the output of one pipeline run.
type Result struct {
	Summary         string
	KeyDecisions    []string
	ActiveModifiers map[string]float64
	UserPreferences []string
	DesignIntent    string
	EventsProcessed int
	TokensIn        int
	TokensOut       int
	CompressionRatio float64
	CompressedAt    time.Time
}

// Engine compresses a session's trace events via an Oracle.
type Engine struct {
	oracle oracle.Oracle
}

// New constructs an Engine. A nil oracle makes Compress always fail with
// ErrOracleUnavailable-shaped errors, matching the source's "not
// configured" RuntimeError path.
func New(o oracle.Oracle) *Engine {
	return &Engine{oracle: o}
}

// Compress runs the filter, render, oracle and parse steps over events
// the caller has already fetched; persisting the Result is left to the
// caller (see ToMemoryBlockFields).
func (e *Engine) Compress(ctx context.Context, events []Event) (Result, error) {
	if e.oracle == nil {
		return Result{}, runtimeerr.New(runtimeerr.KindOracleUnavailable, "compression oracle not configured")
	}

	filtered := filterImportantEvents(events)
	rendered := renderEvents(filtered)

	log.Info().
		Int("filtered_count", len(filtered)).
		Int("total_count", len(events)).
		Msg("compressing trace events")

	tokensIn := len(strings.Fields(rendered))

	resp, err := e.oracle.Complete(ctx, oracle.CompletionRequest{
		Messages: []oracle.Message{
			{Role: "user", Content: buildPrompt(rendered)},
		},
		Temperature: 0,
		MaxTokens:   1000,
	})
	if err != nil {
		return Result{}, fmt.Errorf("compress events: %w", err)
	}

	result := parseCompressionResponse(resp.Content, len(filtered), tokensIn)

	log.Info().
		Int("events_processed", result.EventsProcessed).
		Int("tokens_out", result.TokensOut).
		Float64("ratio", result.CompressionRatio).
		Msg("compression complete")

	return result, nil
}

// filterImportantEvents keeps HIGH-priority events in full, samples the
// most recent MEDIUM-priority events to fit the remaining budget, drops
// LOW-priority events entirely, and returns the survivors sorted by
// timestamp.
func filterImportantEvents(events []Event) []Event {
	var high, medium []Event
	for _, ev := range events {
		switch {
		case highPriority[ev.EventType]:
			high = append(high, ev)
		case mediumPriority[ev.EventType]:
			medium = append(medium, ev)
		}
	}

	if len(high)+len(medium) > MaxEventsPerCompression {
		mediumLimit := MaxEventsPerCompression - len(high)
		if mediumLimit > 0 && mediumLimit < len(medium) {
			medium = medium[len(medium)-mediumLimit:]
		} else if mediumLimit <= 0 {
			medium = nil
		}
	}

	filtered := append(high, medium...)
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].Timestamp.Before(filtered[j].Timestamp)
	})
	return filtered
}

// renderEvents formats filtered events as "[TIME] EVENT_TYPE by ACTOR → details"
// lines, one per event (the " → details" part only when the event carries
// a modifier, text, schema_id or asset_type).
func renderEvents(events []Event) string {
	lines := make([]string, 0, len(events))
	for _, ev := range events {
		line := fmt.Sprintf("[%s] %s by %s", ev.Timestamp.UTC().Format("2006-01-02T15:04:05"), ev.EventType, actorOrSystem(ev.Actor))

		switch {
		case ev.Data["modifier"] != nil:
			line += fmt.Sprintf(" → %v=%v", ev.Data["modifier"], orUnknown(ev.Data["value"]))
		case ev.Data["text"] != nil:
			line += fmt.Sprintf(" → %q", truncate(fmt.Sprint(ev.Data["text"]), 50))
		case ev.Data["schema_id"] != nil:
			line += fmt.Sprintf(" → schema %v", ev.Data["schema_id"])
		case ev.Data["asset_type"] != nil:
			line += fmt.Sprintf(" → %v asset", ev.Data["asset_type"])
		}

		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func actorOrSystem(actor string) string {
	if actor == "" {
		return "system"
	}
	return actor
}

func orUnknown(v any) any {
	if v == nil {
		return "?"
	}
	return v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func buildPrompt(rendered string) string {
	return fmt.Sprintf(`You are compressing design session events into a memory summary for an AI system.

Events log:
%s

Task:
Analyze these events and create a compressed memory summary.

Extract:
1. Summary: 2-3 sentence narrative of what happened in the session
2. Key Decisions: list of important decisions made
3. Active Modifiers: final modifier values that were applied
4. User Preferences: any preferences or constraints mentioned
5. Design Intent: the overall goal or direction (1 sentence)

Format your response as JSON:
{"summary": "...", "key_decisions": ["..."], "active_modifiers": {"name": 0.7}, "user_preferences": ["..."], "design_intent": "..."}

Keep the summary concise - target ~400 tokens total.

Respond with ONLY the JSON object, no markdown formatting or extra text.`, rendered)
}

type rawCompressionResponse struct {
	Summary         string             `json:"summary"`
	KeyDecisions    []string           `json:"key_decisions"`
	ActiveModifiers map[string]float64 `json:"active_modifiers"`
	UserPreferences []string           `json:"user_preferences"`
	DesignIntent    string             `json:"design_intent"`
}

// parseCompressionResponse parses the oracle's JSON reply, stripping
// markdown code fences if present, and degrades gracefully to a
// best-effort Result (the raw text as the summary) on malformed JSON
// rather than failing the whole pipeline.
func parseCompressionResponse(text string, eventsProcessed, tokensIn int) Result {
	cleaned := stripMarkdownFence(text)

	var parsed rawCompressionResponse
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		log.Error().Err(err).Str("response", text).Msg("failed to parse compression response as json")
		return Result{
			Summary:          truncate(text, 500),
			EventsProcessed:  eventsProcessed,
			TokensIn:         tokensIn,
			TokensOut:        len(strings.Fields(text)),
			CompressionRatio: ratio(tokensIn, len(strings.Fields(text))),
			CompressedAt:     time.Now().UTC(),
		}
	}

	tokensOut := len(strings.Fields(parsed.Summary)) + len(strings.Fields(cleaned))

	return Result{
		Summary:          parsed.Summary,
		KeyDecisions:     parsed.KeyDecisions,
		ActiveModifiers:  parsed.ActiveModifiers,
		UserPreferences:  parsed.UserPreferences,
		DesignIntent:     parsed.DesignIntent,
		EventsProcessed:  eventsProcessed,
		TokensIn:         tokensIn,
		TokensOut:        tokensOut,
		CompressionRatio: ratio(tokensIn, tokensOut),
		CompressedAt:     time.Now().UTC(),
	}
}

func ratio(tokensIn, tokensOut int) float64 {
	if tokensOut <= 0 {
		return 1.0
	}
	return float64(tokensIn) / float64(tokensOut)
}

func stripMarkdownFence(s string) string {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}

// ToMemoryBlockFields copies a Result's compression-derived fields onto a
// CognitiveMemoryBlock, converting ActiveModifiers to the string-valued
// map the domain type stores (SPEC_FULL.md §3 data model is unchanged:
// modifiers are persisted as JSON-friendly scalar strings).
func ToMemoryBlockFields(block *domain.CognitiveMemoryBlock, r Result) {
	block.Summary = r.Summary
	block.KeyDecisions = r.KeyDecisions
	block.UserPreferences = r.UserPreferences
	block.DesignIntent = r.DesignIntent

	if len(r.ActiveModifiers) > 0 {
		block.ActiveModifiers = make(map[string]string, len(r.ActiveModifiers))
		for k, v := range r.ActiveModifiers {
			block.ActiveModifiers[k] = fmt.Sprintf("%v", v)
		}
	}
}

// Package critique implements oracle-backed aesthetic evaluation:
// §6's `POST /critique` / `POST /critique-and-ingest` structured JSON
// critique object. Grounded on
// original_source/tracememory/critic/gemini_critic.py's GeminiCritic,
// genericized the same way internal/oracle genericizes the compression
// engine's LLM call — no vendor SDK, no vendor-specific model string.
package critique

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tracerun/coreruntime/internal/oracle"
)

// DimensionScore is one scored aspect of a critique, each required by the
// schema (§6 Critique JSON schema).
type DimensionScore struct {
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale"`
}

// Critique is the structured aesthetic evaluation object returned to HTTP
// callers of /critique and /critique-and-ingest.
type Critique struct {
	OverallScore        float64        `json:"overall_score"`
	OverallFeedback     string         `json:"overall_feedback"`
	Composition         DimensionScore `json:"composition"`
	ColorHarmony        DimensionScore `json:"color_harmony"`
	Balance             DimensionScore `json:"balance"`
	VisualInterest       DimensionScore `json:"visual_interest"`
	TechnicalExecution  DimensionScore `json:"technical_execution"`
	Strengths            []string       `json:"strengths"`
	AreasForImprovement   []string       `json:"areas_for_improvement"`
	StyleTags             []string       `json:"style_tags"`
}

// Context carries the optional session context the critic factors into
// its evaluation (intent, style keywords, target audience).
type Context struct {
	Intent         string
	StyleKeywords  []string
	TargetAudience string
}

// Engine evaluates artifacts via an Oracle.
type Engine struct {
	oracle oracle.Oracle
}

func New(o oracle.Oracle) *Engine {
	return &Engine{oracle: o}
}

// CritiqueSVG evaluates an SVG artifact's markup directly as text.
func (e *Engine) CritiqueSVG(ctx context.Context, svg string, artifactCtx Context) (Critique, error) {
	prompt := buildPrompt(artifactCtx, true) + "\n\nSVG Content:\n```xml\n" + svg + "\n```"
	return e.complete(ctx, prompt)
}

// CritiqueImage evaluates a raster image, base64-encoded inline as the
// Python original does with its Gemini inline_data payload — this repo's
// Oracle contract is plain chat-completions text, so the encoded image is
// embedded directly in the prompt content rather than as a separate
// multimodal part.
func (e *Engine) CritiqueImage(ctx context.Context, imageBase64, mimeType string, artifactCtx Context) (Critique, error) {
	prompt := buildPrompt(artifactCtx, false)
	prompt += fmt.Sprintf("\n\nImage (%s, base64): %s", mimeType, imageBase64)
	return e.complete(ctx, prompt)
}

func (e *Engine) complete(ctx context.Context, prompt string) (Critique, error) {
	resp, err := e.oracle.Complete(ctx, oracle.CompletionRequest{
		Messages:    []oracle.Message{{Role: "user", Content: prompt}},
		Temperature: 0,
		MaxTokens:   1200,
	})
	if err != nil {
		return Critique{}, fmt.Errorf("critique call: %w", err)
	}

	cleaned := stripMarkdownFence(resp.Content)

	var c Critique
	if err := json.Unmarshal([]byte(cleaned), &c); err != nil {
		log.Error().Err(err).Str("response", resp.Content).Msg("failed to parse critique response as json")
		return Critique{}, fmt.Errorf("parse critique response: %w", err)
	}
	return c, nil
}

func buildPrompt(c Context, isSVG bool) string {
	var sb strings.Builder
	sb.WriteString("You are an expert design critic evaluating a generated artifact.\n\n")
	if c.Intent != "" {
		sb.WriteString("Stated intent: " + c.Intent + "\n")
	}
	if len(c.StyleKeywords) > 0 {
		sb.WriteString("Style keywords: " + strings.Join(c.StyleKeywords, ", ") + "\n")
	}
	if c.TargetAudience != "" {
		sb.WriteString("Target audience: " + c.TargetAudience + "\n")
	}
	if isSVG {
		sb.WriteString("\nYou will be given the artifact's SVG markup.\n")
	} else {
		sb.WriteString("\nYou will be given the artifact's raster image, base64-encoded.\n")
	}

	sb.WriteString(`
Evaluate composition, color harmony, balance, visual interest, and
technical execution, each scored 0.0-1.0 with a brief rationale, plus an
overall score and feedback.

Respond with ONLY a JSON object of this exact shape, no markdown formatting:
{
  "overall_score": 0.0,
  "overall_feedback": "...",
  "composition": {"score": 0.0, "rationale": "..."},
  "color_harmony": {"score": 0.0, "rationale": "..."},
  "balance": {"score": 0.0, "rationale": "..."},
  "visual_interest": {"score": 0.0, "rationale": "..."},
  "technical_execution": {"score": 0.0, "rationale": "..."},
  "strengths": ["..."],
  "areas_for_improvement": ["..."],
  "style_tags": ["..."]
}`)

	return sb.String()
}

func stripMarkdownFence(s string) string {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}

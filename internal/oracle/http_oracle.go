package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tracerun/coreruntime/internal/runtimeerr"
)

// HTTPOracle speaks an OpenAI-compatible chat-completions HTTP contract
// against a configurable endpoint. Grounded directly on the teacher's
// LMStudioEmbedding: a net/http.Client with a fixed timeout, json.Marshal
// for the request body, json.NewDecoder for the response, non-200 status
// surfaced with the response body text.
type HTTPOracle struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewHTTPOracle constructs an oracle client. baseURL and model are pure
// configuration — no vendor SDK and no vendor-specific model string
// appears anywhere in this package.
func NewHTTPOracle(baseURL, apiKey, model string, timeout time.Duration) *HTTPOracle {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPOracle{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Complete issues one chat-completions call and returns the first choice's
// message content.
func (o *HTTPOracle) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	body, err := json.Marshal(chatCompletionRequest{
		Model:       o.model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("marshal oracle request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("build oracle request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.client.Do(httpReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return CompletionResponse{}, runtimeerr.Wrap(runtimeerr.KindOracleTimeout, "oracle call timed out", err)
		}
		return CompletionResponse{}, runtimeerr.Wrap(runtimeerr.KindOracleUnavailable, "oracle call failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return CompletionResponse{}, runtimeerr.Wrap(runtimeerr.KindOracleUnavailable,
			fmt.Sprintf("oracle returned %s: %s", resp.Status, string(respBody)), nil)
	}

	var parsed chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return CompletionResponse{}, fmt.Errorf("decode oracle response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return CompletionResponse{}, runtimeerr.New(runtimeerr.KindOracleUnavailable, "oracle returned no choices")
	}

	return CompletionResponse{Content: parsed.Choices[0].Message.Content}, nil
}

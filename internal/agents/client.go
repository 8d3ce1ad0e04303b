package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// executionResult mirrors the contract an agent's HTTP endpoint is
// expected to return: {success, data, error}, matching the base Agent's
// execute() return shape in the original orchestrator.
type executionResult struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data"`
	Error   string         `json:"error"`
}

// callAgentEndpoint POSTs a task payload to an agent's HTTP endpoint and
// decodes its result, grounded on the teacher's LMStudioEmbedding client
// idiom (timeout-bound http.Client, json.Marshal request, non-200 status
// surfaced with body text).
func callAgentEndpoint(ctx context.Context, client *http.Client, endpoint string, payload map[string]any) (executionResult, error) {
	var result executionResult

	body, err := json.Marshal(payload)
	if err != nil {
		return result, fmt.Errorf("marshal task payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return result, fmt.Errorf("build agent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return result, fmt.Errorf("call agent endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return result, fmt.Errorf("agent endpoint error: %s - %s", resp.Status, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return result, fmt.Errorf("decode agent response: %w", err)
	}

	return result, nil
}

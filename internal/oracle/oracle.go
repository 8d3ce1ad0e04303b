// Package oracle defines the provider-agnostic contract this runtime uses
// for "the external LLM" — the compression pipeline's only outbound call.
// SPEC_FULL.md §4 deliberately treats the critic/compressor as a black-box
// request/response oracle; this package is the entire surface a vendor SDK
// would otherwise occupy.
package oracle

import "context"

// Message is one turn in a chat-completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is a provider-agnostic chat-completion request.
type CompletionRequest struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// CompletionResponse is the oracle's answer: the first completion's text.
type CompletionResponse struct {
	Content string
}

// Oracle is implemented by anything that can turn a CompletionRequest into
// a CompletionResponse over the wire. HTTPOracle is the only implementation
// in this repository.
type Oracle interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

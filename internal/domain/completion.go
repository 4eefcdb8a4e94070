package domain

import "context"

// KeyPrefix is the namespace for every key this service writes to a KV store.
const KeyPrefix = "bookrec:"

// Completer is the single-turn chat completion contract shared between layers.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)
}

// HealthChecker verifies language-model provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// CompletionRequest is one system instruction plus one user message.
// Stage names the pipeline step for logs and metrics ("extract", "rerank").
type CompletionRequest struct {
	Stage  string
	System string
	User   string
}

// CompletionResult carries the reply text and token usage through the decorator chain.
type CompletionResult struct {
	Text             string `json:"text"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
}

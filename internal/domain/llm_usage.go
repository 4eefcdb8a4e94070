package domain

import (
	"context"
	"sync"
)

type llmUsageKey struct{}

// LLMUsage collects token usage for a single HTTP request.
// The handler puts a pointer into the context, the completion chain adds to it,
// the handler reads it back for response headers.
type LLMUsage struct {
	mu          sync.Mutex
	totalTokens int
	calls       int
}

// NewContextWithLLMUsage returns a context with a usage collector.
func NewContextWithLLMUsage(ctx context.Context) (context.Context, *LLMUsage) {
	u := &LLMUsage{}
	return context.WithValue(ctx, llmUsageKey{}, u), u
}

// LLMUsageFromContext extracts the usage collector. Returns nil if not set.
func LLMUsageFromContext(ctx context.Context) *LLMUsage {
	u, _ := ctx.Value(llmUsageKey{}).(*LLMUsage)
	return u
}

// Add records one completion call and its tokens. Safe on a nil receiver.
func (u *LLMUsage) Add(tokens int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	u.totalTokens += tokens
	u.calls++
	u.mu.Unlock()
}

// TotalTokens returns the tokens recorded so far.
func (u *LLMUsage) TotalTokens() int {
	if u == nil {
		return 0
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.totalTokens
}

// Calls returns the number of completion calls recorded, cache hits included.
func (u *LLMUsage) Calls() int {
	if u == nil {
		return 0
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls
}

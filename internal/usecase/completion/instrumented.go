package completion

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/bookrec/internal/domain"
)

// InstrumentedCompleter wraps a Completer with logging and per-request token accounting.
// Transport metrics (requests, duration, tokens) are recorded in transport/openai.
type InstrumentedCompleter struct {
	inner  domain.Completer
	model  string
	logger *zap.Logger
}

// NewInstrumentedCompleter wraps a completer with observability.
func NewInstrumentedCompleter(inner domain.Completer, model string, logger *zap.Logger) *InstrumentedCompleter {
	return &InstrumentedCompleter{
		inner:  inner,
		model:  model,
		logger: logger,
	}
}

// Complete delegates to the inner completer and records usage in the request's LLMUsage.
func (p *InstrumentedCompleter) Complete(
	ctx context.Context, req domain.CompletionRequest,
) (domain.CompletionResult, error) {
	start := time.Now()

	result, err := p.inner.Complete(ctx, req)

	duration := time.Since(start)

	if err != nil {
		p.logger.Error("Completion request failed",
			zap.String("stage", req.Stage),
			zap.String("model", p.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.CompletionResult{}, fmt.Errorf("complete %s: %w", req.Stage, err)
	}

	domain.LLMUsageFromContext(ctx).Add(result.TotalTokens)

	p.logger.Debug("Completion request completed",
		zap.String("stage", req.Stage),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("completion_tokens", result.CompletionTokens),
		zap.Int("total_tokens", result.TotalTokens),
	)

	return result, nil
}

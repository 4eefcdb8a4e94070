package rerank

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/bookrec/internal/domain"
	"github.com/kailas-cloud/bookrec/internal/domain/candidate"
	"github.com/kailas-cloud/bookrec/internal/domain/ranking"
	"github.com/kailas-cloud/bookrec/internal/logger"
)

// Service asks the language model to reorder and explain the best candidates.
type Service struct {
	llm Completer
}

// New creates a reranking service.
func New(llm Completer) *Service {
	return &Service{llm: llm}
}

// Rerank sends the top TopK candidates by score to the model and returns its answer.
// An empty list still produces a valid prompt and a model call.
// The reply text is returned trimmed; Items are a best-effort parse of it.
func (s *Service) Rerank(ctx context.Context, candidates candidate.List, request string) (ranking.Ranking, error) {
	top := candidates.Top(TopK)
	prompt := buildPrompt(top, request)

	logger.FromContext(ctx).Debug("Reranking candidates",
		zap.Int("candidates", len(candidates)),
		zap.Int("in_prompt", len(top)),
	)

	res, err := s.llm.Complete(ctx, domain.CompletionRequest{
		Stage:  Stage,
		System: systemRole,
		User:   prompt,
	})
	if err != nil {
		return ranking.Ranking{}, fmt.Errorf("rerank candidates: %w", err)
	}

	return ranking.Parse(res.Text), nil
}

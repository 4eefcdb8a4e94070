package extract

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/bookrec/internal/domain"
	"github.com/kailas-cloud/bookrec/internal/domain/attribute"
	"github.com/kailas-cloud/bookrec/internal/logger"
)

// Service turns a free-text reading preference into filter attributes.
type Service struct {
	llm Completer
}

// New creates an extraction service.
func New(llm Completer) *Service {
	return &Service{llm: llm}
}

// Extract asks the model for relevant genres, themes, authors and tags and parses the reply.
// A reply that parses to no attributes is a valid empty set; a blank reply is a provider error.
func (s *Service) Extract(ctx context.Context, request string) (attribute.Set, error) {
	if strings.TrimSpace(request) == "" {
		return nil, domain.ErrInvalidRequest
	}

	res, err := s.llm.Complete(ctx, domain.CompletionRequest{
		Stage:  Stage,
		System: systemInstruction,
		User:   request,
	})
	if err != nil {
		return nil, fmt.Errorf("extract attributes: %w", err)
	}

	if strings.TrimSpace(res.Text) == "" {
		return nil, fmt.Errorf("extract attributes: empty reply: %w", domain.ErrLLMProviderError)
	}

	attrs := attribute.Parse(res.Text)

	logger.FromContext(ctx).Debug("Attributes extracted",
		zap.Strings("attributes", attrs),
		zap.Int("count", len(attrs)),
	)
	return attrs, nil
}

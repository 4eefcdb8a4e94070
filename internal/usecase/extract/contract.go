package extract

import (
	"context"

	"github.com/kailas-cloud/bookrec/internal/domain"
)

// Completer sends one chat completion to the language model.
type Completer interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (domain.CompletionResult, error)
}

package recommend

import (
	"context"

	"github.com/kailas-cloud/bookrec/internal/domain/attribute"
	"github.com/kailas-cloud/bookrec/internal/domain/candidate"
	"github.com/kailas-cloud/bookrec/internal/domain/catalog"
	"github.com/kailas-cloud/bookrec/internal/domain/ranking"
)

// Extractor turns a free-text request into attributes.
type Extractor interface {
	Extract(ctx context.Context, request string) (attribute.Set, error)
}

// CandidateFilter selects a user's books matching attributes.
type CandidateFilter interface {
	Filter(
		ctx context.Context, userID int,
		preds *catalog.Predictions, cat *catalog.Catalog, attrs attribute.Set,
	) candidate.List
}

// Reranker asks the model to reorder candidates.
type Reranker interface {
	Rerank(ctx context.Context, candidates candidate.List, request string) (ranking.Ranking, error)
}

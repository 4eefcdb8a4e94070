package recommend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/bookrec/internal/domain"
	"github.com/kailas-cloud/bookrec/internal/domain/attribute"
	"github.com/kailas-cloud/bookrec/internal/domain/candidate"
	"github.com/kailas-cloud/bookrec/internal/domain/catalog"
	"github.com/kailas-cloud/bookrec/internal/domain/ranking"
	"github.com/kailas-cloud/bookrec/internal/logger"
	"github.com/kailas-cloud/bookrec/internal/metrics"
)

const (
	defaultTopNLimit = 10
	defaultTopNMax   = 100
)

// Status describes how far a refinement got.
type Status string

const (
	// StatusRanked means the model reranked the candidates.
	StatusRanked Status = "ranked"
	// StatusUnranked means reranking failed and candidates are returned by score.
	StatusUnranked Status = "unranked"
	// StatusNoMatches means no book satisfied the extracted attributes.
	StatusNoMatches Status = "no_matches"
)

// Data is the static input loaded at startup.
// Universe is the prediction table refinement filters over; TopN backs the plain read path.
type Data struct {
	Catalog  *catalog.Catalog
	Universe *catalog.Predictions
	TopN     *catalog.Predictions
}

// Result is the outcome of one refinement request.
type Result struct {
	Status     Status
	Attributes attribute.Set
	Candidates candidate.List
	Ranking    *ranking.Ranking
	RerankErr  error
}

// Service composes extraction, filtering and reranking, and serves plain top-N lookups.
type Service struct {
	data         Data
	extractor    Extractor
	filter       CandidateFilter
	reranker     Reranker
	defaultLimit int
	maxLimit     int
	// Zero budgets leave the stage bounded only by the caller's context.
	extractBudget time.Duration
	rerankBudget  time.Duration
}

// New creates a recommendation service over static data.
func New(data Data, extractor Extractor, filter CandidateFilter, reranker Reranker) *Service {
	return &Service{
		data:         data,
		extractor:    extractor,
		filter:       filter,
		reranker:     reranker,
		defaultLimit: defaultTopNLimit,
		maxLimit:     defaultTopNMax,
	}
}

// WithLimits sets the default and maximum top-N size.
func (s *Service) WithLimits(defaultLimit, maxLimit int) *Service {
	if defaultLimit > 0 {
		s.defaultLimit = defaultLimit
	}
	if maxLimit > 0 {
		s.maxLimit = maxLimit
	}
	if s.defaultLimit > s.maxLimit {
		s.defaultLimit = s.maxLimit
	}
	return s
}

// WithStageBudgets bounds the wall time of extraction and reranking.
// A reranking that runs out of budget degrades to StatusUnranked, leaving the
// caller's remaining deadline for the response.
func (s *Service) WithStageBudgets(extract, rerank time.Duration) *Service {
	s.extractBudget = max(extract, 0)
	s.rerankBudget = max(rerank, 0)
	return s
}

// Refine runs extract -> filter -> rerank for one user request.
// Validation failures return before any model call. Extraction failures abort.
// Reranking failures degrade to the score-sorted candidate list with StatusUnranked.
func (s *Service) Refine(ctx context.Context, userID int, request string) (Result, error) {
	if userID <= 0 {
		return Result{}, domain.ErrInvalidUserID
	}
	request = strings.TrimSpace(request)
	if request == "" {
		return Result{}, domain.ErrInvalidRequest
	}

	log := logger.FromContext(ctx).With(zap.Int("user_id", userID))

	// No prediction rows means an empty result regardless of attributes; skip the model.
	if !s.data.Universe.HasUser(userID) {
		log.Info("User has no predictions")
		metrics.RefineResultsTotal.WithLabelValues(string(StatusNoMatches)).Inc()
		return Result{Status: StatusNoMatches, Attributes: attribute.Set{}, Candidates: candidate.List{}}, nil
	}

	ectx, cancel := withBudget(ctx, s.extractBudget)
	attrs, err := s.extractor.Extract(ectx, request)
	cancel()
	if err != nil {
		return Result{}, fmt.Errorf("refine: %w", err)
	}

	candidates := s.filter.Filter(ctx, userID, s.data.Universe, s.data.Catalog, attrs)
	if len(candidates) == 0 {
		log.Info("Refinement produced no matches", zap.Int("attributes", len(attrs)))
		metrics.RefineResultsTotal.WithLabelValues(string(StatusNoMatches)).Inc()
		return Result{
			Status:     StatusNoMatches,
			Attributes: attrs,
			Candidates: candidate.List{},
		}, nil
	}

	rctx, cancel := withBudget(ctx, s.rerankBudget)
	rk, err := s.reranker.Rerank(rctx, candidates, request)
	cancel()
	if err != nil {
		log.Warn("Reranking failed, returning unranked candidates",
			zap.Int("candidates", len(candidates)),
			zap.Error(err),
		)
		metrics.RefineResultsTotal.WithLabelValues(string(StatusUnranked)).Inc()
		return Result{
			Status:     StatusUnranked,
			Attributes: attrs,
			Candidates: candidates.SortedByScore(),
			RerankErr:  err,
		}, nil
	}

	log.Info("Refinement completed",
		zap.Int("attributes", len(attrs)),
		zap.Int("candidates", len(candidates)),
		zap.Int("ranked_items", len(rk.Items)),
	)
	metrics.RefineResultsTotal.WithLabelValues(string(StatusRanked)).Inc()
	return Result{
		Status:     StatusRanked,
		Attributes: attrs,
		Candidates: candidates.SortedByScore(),
		Ranking:    &rk,
	}, nil
}

func withBudget(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// TopN returns the user's precomputed recommendations sorted by score, joined to titles.
// limit <= 0 uses the default; larger than the maximum is capped. Unknown users yield an empty list.
func (s *Service) TopN(_ context.Context, userID, limit int) (candidate.List, error) {
	if userID <= 0 {
		return nil, domain.ErrInvalidUserID
	}
	if limit <= 0 {
		limit = s.defaultLimit
	}
	limit = min(limit, s.maxLimit)

	rows := s.data.TopN.ForUser(userID)
	out := make(candidate.List, 0, len(rows))
	for _, p := range rows {
		b, ok := s.data.Catalog.Book(p.ItemID, s.data.TopN.Scheme())
		if !ok {
			continue
		}
		out = append(out, candidate.Candidate{
			BookID:     b.ID,
			ExternalID: b.ExternalID,
			Title:      b.Title,
			Authors:    b.Authors,
			Score:      p.Score,
		})
	}
	return out.Top(limit), nil
}

// Users lists user ids that have top-N recommendations, in table order.
func (s *Service) Users() []int {
	return s.data.TopN.Users()
}

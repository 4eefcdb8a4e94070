package filter

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/bookrec/internal/domain/attribute"
	"github.com/kailas-cloud/bookrec/internal/domain/candidate"
	"github.com/kailas-cloud/bookrec/internal/domain/catalog"
	"github.com/kailas-cloud/bookrec/internal/domain/match"
	"github.com/kailas-cloud/bookrec/internal/logger"
)

// Service selects a user's predicted books that satisfy an attribute set.
// It holds no per-request state and is safe for concurrent use.
type Service struct {
	mode match.Mode
}

// New creates a filter service with the given attribute matching mode.
func New(mode match.Mode) *Service {
	if !mode.IsValid() {
		mode = match.Literal
	}
	return &Service{mode: mode}
}

// Filter returns the user's prediction rows whose book qualifies through any of:
// a tag matching an attribute, an author field match, or a title match.
// The result keeps prediction-table order. An empty attribute set, an unknown
// user or zero qualifying books all yield an empty, non-nil list.
func (s *Service) Filter(
	ctx context.Context, userID int,
	preds *catalog.Predictions, cat *catalog.Catalog, attrs attribute.Set,
) candidate.List {
	m := match.New(attrs, s.mode)
	if fb := m.Fallbacks(); len(fb) > 0 {
		logger.FromContext(ctx).Warn("Invalid attribute patterns matched literally", zap.Strings("attributes", fb))
	}
	if m.IsEmpty() {
		return candidate.List{}
	}

	rows := preds.ForUser(userID)
	if len(rows) == 0 {
		return candidate.List{}
	}

	tagged := taggedBooks(cat.BookTags(), relevantTags(cat.Tags(), m))

	out := make(candidate.List, 0, len(rows))
	for _, p := range rows {
		b, ok := cat.Book(p.ItemID, preds.Scheme())
		if !ok {
			continue
		}
		if !qualifies(b, tagged, m) {
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
	return out
}

// relevantTags returns ids of tags whose name matches any attribute.
func relevantTags(tags []catalog.Tag, m match.Matcher) map[int]struct{} {
	ids := make(map[int]struct{})
	for _, t := range tags {
		if m.Match(t.Name) {
			ids[t.ID] = struct{}{}
		}
	}
	return ids
}

// taggedBooks returns external ids of books carrying any of the tag ids.
func taggedBooks(bookTags []catalog.BookTag, tagIDs map[int]struct{}) map[int]struct{} {
	books := make(map[int]struct{})
	if len(tagIDs) == 0 {
		return books
	}
	for _, bt := range bookTags {
		if _, ok := tagIDs[bt.TagID]; ok {
			books[bt.ExternalBookID] = struct{}{}
		}
	}
	return books
}

func qualifies(b catalog.Book, tagged map[int]struct{}, m match.Matcher) bool {
	if _, ok := tagged[b.ExternalID]; ok {
		return true
	}
	return m.Match(b.Authors) || m.Match(b.Title)
}

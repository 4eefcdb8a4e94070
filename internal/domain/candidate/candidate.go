package candidate

import (
	"cmp"
	"slices"
)

// Candidate is a book that survived filtering, with the user's predicted score.
// BookID is the catalog id; ExternalID is the source id that predictions and prompts use.
type Candidate struct {
	BookID     int     `json:"book_id"`
	ExternalID int     `json:"external_id"`
	Title      string  `json:"title"`
	Authors    string  `json:"authors"`
	Score      float64 `json:"score"`
}

// List is an ordered sequence of candidates. Order is not meaningful until sorted.
type List []Candidate

// SortedByScore returns a copy sorted by score descending. Ties keep input order.
func (l List) SortedByScore() List {
	out := slices.Clone(l)
	slices.SortStableFunc(out, func(a, b Candidate) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return out
}

// Top returns the n highest-scored candidates (n <= 0 yields an empty list).
func (l List) Top(n int) List {
	sorted := l.SortedByScore()
	if n <= 0 {
		return List{}
	}
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// BookIDs returns the external ids in list order.
func (l List) BookIDs() []int {
	ids := make([]int, len(l))
	for i, c := range l {
		ids[i] = c.ExternalID
	}
	return ids
}

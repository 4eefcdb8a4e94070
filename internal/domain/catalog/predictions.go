package catalog

import (
	"fmt"
	"slices"
)

// Predictions is an immutable prediction table indexed by user.
type Predictions struct {
	scheme IDScheme
	rows   int
	byUser map[int][]Prediction
	users  []int
}

// NewPredictions indexes rows by user, keeping row order within each user.
func NewPredictions(rows []Prediction, scheme IDScheme) (*Predictions, error) {
	if !scheme.IsValid() {
		return nil, fmt.Errorf("unknown id scheme %q", scheme)
	}

	p := &Predictions{
		scheme: scheme,
		rows:   len(rows),
		byUser: make(map[int][]Prediction),
	}
	for _, r := range rows {
		if _, seen := p.byUser[r.UserID]; !seen {
			p.users = append(p.users, r.UserID)
		}
		p.byUser[r.UserID] = append(p.byUser[r.UserID], r)
	}
	return p, nil
}

// Scheme returns the id scheme of the item column.
func (p *Predictions) Scheme() IDScheme { return p.scheme }

// Len returns the total number of rows.
func (p *Predictions) Len() int { return p.rows }

// ForUser returns a copy of the user's rows in table order. Unknown users yield nil.
func (p *Predictions) ForUser(userID int) []Prediction {
	return slices.Clone(p.byUser[userID])
}

// HasUser reports whether the table has at least one row for the user.
func (p *Predictions) HasUser(userID int) bool {
	_, ok := p.byUser[userID]
	return ok
}

// Users returns distinct user ids in first-seen order.
func (p *Predictions) Users() []int {
	return slices.Clone(p.users)
}

func (p *Predictions) each(fn func(Prediction)) {
	for _, u := range p.users {
		for _, r := range p.byUser[u] {
			fn(r)
		}
	}
}

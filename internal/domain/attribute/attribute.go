// Package attribute parses language-model replies into filter attributes.
package attribute

import "strings"

// Set is an ordered list of free-text attributes (genres, themes, authors, tags).
// Duplicates are allowed; consumers match by membership.
type Set []string

// categoryHeaders are label tokens the model sometimes emits despite the instruction.
// Matched exactly and case-sensitively.
var categoryHeaders = map[string]struct{}{
	"Genres:":      {},
	"book genres:": {},
	"Themes:":      {},
	"themes:":      {},
	"Authors:":     {},
	"authors:":     {},
	"Tags:":        {},
	"tags:":        {},
}

// Parse converts a raw reply into a Set.
// Newlines count as commas, tokens are trimmed, empty tokens and bare category headers are dropped.
func Parse(reply string) Set {
	normalized := strings.ReplaceAll(reply, "\n", ",")
	normalized = strings.ReplaceAll(normalized, "  ", " ")

	parts := strings.Split(normalized, ",")
	set := make(Set, 0, len(parts))
	for _, p := range parts {
		token := strings.TrimSpace(p)
		if token == "" {
			continue
		}
		if IsCategoryHeader(token) {
			continue
		}
		set = append(set, token)
	}
	return set
}

// IsCategoryHeader reports whether token is one of the fixed header labels.
func IsCategoryHeader(token string) bool {
	_, ok := categoryHeaders[token]
	return ok
}

// IsEmpty reports whether the set has no attributes.
func (s Set) IsEmpty() bool { return len(s) == 0 }

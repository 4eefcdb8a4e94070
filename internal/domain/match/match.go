// Package match decides whether catalog text fields satisfy a set of attributes.
package match

import (
	"fmt"
	"regexp"
	"strings"
)

// Mode controls how attribute strings are interpreted.
type Mode string

const (
	// Literal escapes regex metacharacters; "C++" matches the text "C++".
	Literal Mode = "literal"
	// Pattern treats each attribute as a regular expression.
	Pattern Mode = "pattern"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Literal || m == Pattern
}

// ParseMode converts a config value to a Mode. Empty means Literal.
func ParseMode(s string) (Mode, error) {
	if s == "" {
		return Literal, nil
	}
	m := Mode(s)
	if !m.IsValid() {
		return "", fmt.Errorf("unknown match mode %q (want %q or %q)", s, Literal, Pattern)
	}
	return m, nil
}

// Matcher is a compiled, case-insensitive "any attribute occurs in text" predicate.
// The zero value matches nothing. Safe for concurrent use.
type Matcher struct {
	re        *regexp.Regexp
	fallbacks []string
}

// New compiles attributes into a single alternation.
// Blank attributes are skipped so they never select every field.
// In Pattern mode an attribute that fails to compile is matched literally instead
// and reported by Fallbacks.
func New(attrs []string, mode Mode) Matcher {
	var (
		alts      []string
		fallbacks []string
	)
	for _, a := range attrs {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		expr := regexp.QuoteMeta(a)
		if mode == Pattern {
			if _, err := regexp.Compile(a); err == nil {
				expr = a
			} else {
				fallbacks = append(fallbacks, a)
			}
		}
		alts = append(alts, "(?:"+expr+")")
	}
	if len(alts) == 0 {
		return Matcher{fallbacks: fallbacks}
	}
	return Matcher{
		re:        regexp.MustCompile("(?i)" + strings.Join(alts, "|")),
		fallbacks: fallbacks,
	}
}

// Match reports whether any attribute occurs anywhere in s.
func (m Matcher) Match(s string) bool {
	if m.re == nil {
		return false
	}
	return m.re.MatchString(s)
}

// IsEmpty reports whether the matcher has no usable attributes.
func (m Matcher) IsEmpty() bool { return m.re == nil }

// Fallbacks returns pattern-mode attributes that were matched literally.
func (m Matcher) Fallbacks() []string { return m.fallbacks }

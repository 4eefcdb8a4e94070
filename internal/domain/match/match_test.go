package match

import "testing"

func TestMatcher_Literal(t *testing.T) {
	m := New([]string{"fantasy", "C++", "Smith"}, Literal)

	tests := []struct {
		text string
		want bool
	}{
		{"Epic Fantasy", true},
		{"FANTASY-fiction", true},
		{"Programming in C++", true},
		{"Programming in C", false},
		{"A. Smith, J. Doe", true},
		{"smithereens", true},
		{"Romance", false},
		{"", false},
	}
	for _, tc := range tests {
		if got := m.Match(tc.text); got != tc.want {
			t.Errorf("Match(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestMatcher_MetacharactersAreLiteral(t *testing.T) {
	m := New([]string{"sci-fi (hard)", "a.b"}, Literal)
	if !m.Match("some sci-fi (hard) books") {
		t.Error("expected literal parenthesised match")
	}
	if m.Match("sci-fi hard") {
		t.Error("parentheses must not act as a group")
	}
	if m.Match("axb") {
		t.Error("dot must not match any character")
	}
}

func TestMatcher_Pattern(t *testing.T) {
	m := New([]string{"^dragon", "fire|ice"}, Pattern)
	if !m.Match("Dragon's Fire") {
		t.Error("expected anchored pattern match")
	}
	if !m.Match("A Song of Ice") {
		t.Error("expected alternation match")
	}
	if m.Match("The Dragon") {
		t.Error("anchor must be honoured")
	}
}

func TestMatcher_PatternFallback(t *testing.T) {
	m := New([]string{"C++", "(unclosed"}, Pattern)
	if len(m.Fallbacks()) != 2 {
		t.Fatalf("Fallbacks() = %q, want 2 entries", m.Fallbacks())
	}
	if !m.Match("Learning C++") {
		t.Error("fallback must match literally")
	}
	if !m.Match("an (unclosed paren") {
		t.Error("fallback must match literally")
	}
}

func TestMatcher_Empty(t *testing.T) {
	for _, attrs := range [][]string{nil, {}, {"", "   "}} {
		m := New(attrs, Literal)
		if !m.IsEmpty() {
			t.Errorf("New(%q) must be empty", attrs)
		}
		if m.Match("anything") {
			t.Errorf("empty matcher must not match")
		}
	}

	var zero Matcher
	if zero.Match("anything") {
		t.Error("zero matcher must not match")
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode(""); err != nil || m != Literal {
		t.Errorf("ParseMode(\"\") = %q, %v", m, err)
	}
	if m, err := ParseMode("pattern"); err != nil || m != Pattern {
		t.Errorf("ParseMode(pattern) = %q, %v", m, err)
	}
	if _, err := ParseMode("regex"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

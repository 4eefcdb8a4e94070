package rerank

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/bookrec/internal/domain"
	"github.com/kailas-cloud/bookrec/internal/domain/candidate"
)

// --- Mocks ---

type mockCompleter struct {
	reply   string
	err     error
	calls   int
	lastReq domain.CompletionRequest
}

func (m *mockCompleter) Complete(_ context.Context, req domain.CompletionRequest) (domain.CompletionResult, error) {
	m.calls++
	m.lastReq = req
	if m.err != nil {
		return domain.CompletionResult{}, m.err
	}
	return domain.CompletionResult{Text: m.reply}, nil
}

// candidateLines returns prompt lines that embed a candidate.
func candidateLines(prompt string) []string {
	var out []string
	for _, line := range strings.Split(prompt, "\n") {
		if strings.HasPrefix(line, candidateLinePrefix) {
			out = append(out, line)
		}
	}
	return out
}

func makeCandidates(n int) candidate.List {
	l := make(candidate.List, n)
	for i := range l {
		l[i] = candidate.Candidate{
			BookID:     i + 1,
			ExternalID: 1000 + i,
			Title:      "Book",
			Authors:    "Author",
			Score:      float64(i) / 100,
		}
	}
	return l
}

// --- Tests ---

func TestRerank_PromptFormat(t *testing.T) {
	llm := &mockCompleter{reply: "ok"}
	svc := New(llm)

	cands := candidate.List{
		{BookID: 3, ExternalID: 103, Title: "Dragon's Fire 2", Authors: "A. Smith", Score: 0.7},
		{BookID: 1, ExternalID: 101, Title: "Dragon's Fire", Authors: "A. Smith", Score: 0.9},
	}
	if _, err := svc.Rerank(context.Background(), cands, "more dragons"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if llm.lastReq.System != systemRole {
		t.Errorf("system = %q", llm.lastReq.System)
	}
	if llm.lastReq.Stage != Stage {
		t.Errorf("stage = %q", llm.lastReq.Stage)
	}

	prompt := llm.lastReq.User
	if !strings.HasPrefix(prompt, "Re-rank these books based on the user's preference, only return the top 10.") {
		t.Errorf("prompt must start with the instruction, got %q", prompt[:60])
	}
	lines := candidateLines(prompt)
	want := []string{
		"Book ID: 101, Title: Dragon's Fire, Authors: A. Smith, Prediction: 0.9",
		"Book ID: 103, Title: Dragon's Fire 2, Authors: A. Smith, Prediction: 0.7",
	}
	if len(lines) != len(want) {
		t.Fatalf("candidate lines = %q, want %q", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
	if !strings.HasSuffix(prompt, "User Preference: more dragons") {
		t.Errorf("prompt must end with the preference, got %q", prompt[len(prompt)-40:])
	}
}

func TestRerank_AtMostTopKLines(t *testing.T) {
	for _, n := range []int{0, 1, 9, 10, 11, 250} {
		llm := &mockCompleter{reply: "ok"}
		if _, err := New(llm).Rerank(context.Background(), makeCandidates(n), "x"); err != nil {
			t.Fatalf("n=%d: unexpected error: %v", n, err)
		}

		got := len(candidateLines(llm.lastReq.User))
		want := min(n, TopK)
		if got != want {
			t.Errorf("n=%d: %d candidate lines, want %d", n, got, want)
		}
	}
}

func TestRerank_TruncatesByScore(t *testing.T) {
	llm := &mockCompleter{reply: "ok"}
	cands := makeCandidates(15) // scores rise with index, so the last 10 win

	if _, err := New(llm).Rerank(context.Background(), cands, "x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := candidateLines(llm.lastReq.User)
	if !strings.HasPrefix(lines[0], "Book ID: 1014,") {
		t.Errorf("first line = %q, want highest score first", lines[0])
	}
	if !strings.HasPrefix(lines[len(lines)-1], "Book ID: 1005,") {
		t.Errorf("last line = %q, want 10th best", lines[len(lines)-1])
	}
}

func TestRerank_EmptyCandidatesStillCalls(t *testing.T) {
	llm := &mockCompleter{reply: "  Sorry, nothing to rank.\n"}

	r, err := New(llm).Rerank(context.Background(), nil, "anything")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if llm.calls != 1 {
		t.Fatalf("expected 1 call, got %d", llm.calls)
	}
	if n := len(candidateLines(llm.lastReq.User)); n != 0 {
		t.Errorf("expected zero candidate lines, got %d", n)
	}
	if !strings.Contains(llm.lastReq.User, "Filtered Recommendations with Details:\nUser Preference: anything") {
		t.Error("empty prompt must go straight from header to preference")
	}
	if r.Text != "Sorry, nothing to rank." {
		t.Errorf("text = %q", r.Text)
	}
}

func TestRerank_ParsesItems(t *testing.T) {
	llm := &mockCompleter{reply: "1. Book ID: 101, Title: Dragon's Fire, Authors: A. Smith, Prediction: 0.9 (Fantasy)\nReasoning: dragons."}

	r, err := New(llm).Rerank(context.Background(), makeCandidates(1), "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.Items) != 1 || r.Items[0].BookID != 101 || r.Items[0].Genre != "Fantasy" {
		t.Errorf("items = %+v", r.Items)
	}
	if r.Reasoning != "dragons." {
		t.Errorf("reasoning = %q", r.Reasoning)
	}
}

func TestRerank_ProviderError(t *testing.T) {
	llm := &mockCompleter{err: domain.ErrLLMProviderError}

	_, err := New(llm).Rerank(context.Background(), makeCandidates(3), "x")
	if !errors.Is(err, domain.ErrLLMProviderError) {
		t.Fatalf("expected ErrLLMProviderError, got %v", err)
	}
}

package replycache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/bookrec/internal/db"
	"github.com/kailas-cloud/bookrec/internal/domain"
)

var testReq = domain.CompletionRequest{Stage: "extract", System: "sys", User: "dragons"}

func TestComplete_CacheMiss(t *testing.T) {
	inner := &mockCompleter{result: domain.CompletionResult{Text: "Fantasy", TotalTokens: 10}}
	cc, ms := newTestCachedCompleter(t, inner)

	var stored []byte
	var storedTTL time.Duration
	ms.setFn = func(_ context.Context, key string, value []byte, ttl time.Duration) error {
		if !strings.HasPrefix(key, "bookrec:llm_cache:") {
			t.Errorf("unexpected key %q", key)
		}
		stored, storedTTL = value, ttl
		return nil
	}

	res, err := cc.Complete(context.Background(), testReq)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "Fantasy" || res.TotalTokens != 10 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !strings.Contains(string(stored), `"text":"Fantasy"`) || storedTTL != time.Hour {
		t.Errorf("stored %s with ttl %v", stored, storedTTL)
	}
}

func TestComplete_CacheHit(t *testing.T) {
	inner := &mockCompleter{result: domain.CompletionResult{Text: "fresh"}}
	cc, ms := newTestCachedCompleter(t, inner)

	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return []byte(`{"text":"Fantasy, Dragons","total_tokens":55}`), nil
	}

	res, err := cc.Complete(context.Background(), testReq)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "Fantasy, Dragons" {
		t.Errorf("expected cached text, got %q", res.Text)
	}
	if res.TotalTokens != 0 {
		t.Errorf("expected TotalTokens=0 on cache hit, got %d", res.TotalTokens)
	}
	if inner.calls != 0 {
		t.Errorf("inner must not be called on hit, calls=%d", inner.calls)
	}
}

func TestComplete_StoreErrorBypassed(t *testing.T) {
	inner := &mockCompleter{result: domain.CompletionResult{Text: "Fantasy"}}
	cc, ms := newTestCachedCompleter(t, inner)

	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return nil, errors.New("connection refused")
	}
	ms.setFn = func(_ context.Context, _ string, _ []byte, _ time.Duration) error {
		return errors.New("connection refused")
	}

	res, err := cc.Complete(context.Background(), testReq)
	if err != nil {
		t.Fatalf("store failures must not surface, got %v", err)
	}
	if res.Text != "Fantasy" || inner.calls != 1 {
		t.Errorf("res=%+v calls=%d", res, inner.calls)
	}
}

func TestComplete_CorruptEntryDropped(t *testing.T) {
	inner := &mockCompleter{result: domain.CompletionResult{Text: "Fantasy"}}
	cc, ms := newTestCachedCompleter(t, inner)

	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return []byte("not json"), nil
	}

	if _, err := cc.Complete(context.Background(), testReq); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ms.dels) != 1 || inner.calls != 1 {
		t.Errorf("dels=%v calls=%d", ms.dels, inner.calls)
	}
}

func TestComplete_BlankReplyNotCached(t *testing.T) {
	inner := &mockCompleter{result: domain.CompletionResult{Text: "  "}}
	cc, ms := newTestCachedCompleter(t, inner)

	ms.setFn = func(_ context.Context, _ string, _ []byte, _ time.Duration) error {
		t.Error("blank reply must not be cached")
		return nil
	}

	if _, err := cc.Complete(context.Background(), testReq); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestComplete_InnerError(t *testing.T) {
	inner := &mockCompleter{err: domain.ErrLLMProviderError}
	cc, ms := newTestCachedCompleter(t, inner)
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return nil, db.ErrKeyNotFound
	}

	_, err := cc.Complete(context.Background(), testReq)
	if !errors.Is(err, domain.ErrLLMProviderError) {
		t.Fatalf("expected ErrLLMProviderError, got %v", err)
	}
}

func TestCacheKey_DistinctPerInput(t *testing.T) {
	cc, _ := newTestCachedCompleter(t, &mockCompleter{})

	a := cc.cacheKey(domain.CompletionRequest{System: "ab", User: "c"})
	b := cc.cacheKey(domain.CompletionRequest{System: "a", User: "bc"})
	if a == b {
		t.Error("keys must differ when the system/user boundary moves")
	}
	if a != cc.cacheKey(domain.CompletionRequest{Stage: "other", System: "ab", User: "c"}) {
		t.Error("stage must not affect the key")
	}
}

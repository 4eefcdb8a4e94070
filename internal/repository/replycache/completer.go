package replycache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/bookrec/internal/db"
	"github.com/kailas-cloud/bookrec/internal/domain"
)

var cacheKeyPrefix = domain.KeyPrefix + "llm_cache:"

// store is the consumer interface for the reply cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// CachedCompleter caches completion replies in a key-value store.
// Identical (model, system, user) triples return the stored reply without a provider call.
type CachedCompleter struct {
	inner      domain.Completer
	store      store
	model      string
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner domain.Completer,
	s store,
	model string,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedCompleter {
	return &CachedCompleter{
		inner:      inner,
		store:      s,
		model:      model,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Complete returns a cached reply or calls the inner completer.
// Cache hit: token counts are zero (no real tokens consumed).
// Store failures are logged and bypassed.
func (c *CachedCompleter) Complete(
	ctx context.Context, req domain.CompletionRequest,
) (domain.CompletionResult, error) {
	key := c.cacheKey(req)

	if text, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return domain.CompletionResult{Text: text}, nil
	}

	c.incCache("miss")

	result, err := c.inner.Complete(ctx, req)
	if err != nil {
		return domain.CompletionResult{}, fmt.Errorf("complete: %w", err)
	}

	// Blank replies are provider failures upstream, never worth replaying.
	if strings.TrimSpace(result.Text) != "" {
		c.putToCache(ctx, key, result)
	}
	return result, nil
}

func (c *CachedCompleter) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedCompleter) cacheKey(req domain.CompletionRequest) string {
	h := sha256.New()
	for _, part := range []string{c.model, req.System, req.User} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return cacheKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

func (c *CachedCompleter) getFromCache(ctx context.Context, key string) (string, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached reply", zap.String("key", key), zap.Error(err))
		}
		return "", false
	}
	if len(data) == 0 {
		return "", false
	}

	var cached domain.CompletionResult
	if err := json.Unmarshal(data, &cached); err != nil || cached.Text == "" {
		c.logger.Warn("Dropping unreadable cached reply", zap.String("key", key), zap.Error(err))
		if err := c.store.Del(ctx, key); err != nil {
			c.logger.Warn("Failed to delete cached reply", zap.String("key", key), zap.Error(err))
		}
		return "", false
	}

	return cached.Text, true
}

func (c *CachedCompleter) putToCache(ctx context.Context, key string, res domain.CompletionResult) {
	data, err := json.Marshal(res)
	if err != nil {
		c.logger.Warn("Failed to encode reply for cache", zap.Error(err))
		return
	}
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache reply", zap.String("key", key), zap.Error(err))
	}
}

package completion

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/bookrec/internal/domain"
	"github.com/kailas-cloud/bookrec/internal/metrics"
)

const (
	defaultBaseBackoff     = 500 * time.Millisecond
	defaultMaxBackoff      = 8 * time.Second
	defaultAttemptTimeout  = 60 * time.Second
	defaultBreakerFailures = 5
	defaultBreakerOpen     = 30 * time.Second
)

// ResilienceConfig controls timeouts, rate limiting, retries and the circuit breaker.
// Zero values fall back to defaults; RateLimit <= 0 disables limiting.
type ResilienceConfig struct {
	StageTimeouts   map[string]time.Duration
	DefaultTimeout  time.Duration
	MaxRetries      int
	BaseBackoff     time.Duration
	MaxBackoff      time.Duration
	RateLimit       float64
	RateBurst       int
	BreakerFailures uint32
	BreakerOpen     time.Duration
	// Retryable classifies attempt errors. Nil retries everything except cancellation.
	Retryable func(error) bool
	// ClientError marks errors caused by the request itself. They do not count
	// as breaker failures. Nil treats every error as a provider failure.
	ClientError func(error) bool
}

// ResilientCompleter bounds every call to the provider: per-stage attempt timeout,
// token-bucket limiter, exponential backoff retry and a circuit breaker around each attempt.
type ResilientCompleter struct {
	inner          domain.Completer
	limiter        *rate.Limiter
	cb             *gobreaker.CircuitBreaker[domain.CompletionResult]
	retryable      func(error) bool
	timeouts       map[string]time.Duration
	defaultTimeout time.Duration
	maxRetries     int
	baseBackoff    time.Duration
	maxBackoff     time.Duration
	logger         *zap.Logger
}

// NewResilientCompleter wraps a completer with the given resilience policy.
func NewResilientCompleter(inner domain.Completer, cfg ResilienceConfig, logger *zap.Logger) *ResilientCompleter {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := max(cfg.RateBurst, 1)

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = defaultBreakerFailures
	}
	openFor := cfg.BreakerOpen
	if openFor <= 0 {
		openFor = defaultBreakerOpen
	}

	cb := gobreaker.NewCircuitBreaker[domain.CompletionResult](gobreaker.Settings{
		Name:        "llm",
		MaxRequests: 1,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Caller cancellation and rejected requests say nothing about provider health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) ||
				(cfg.ClientError != nil && cfg.ClientError(err))
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	retryable := cfg.Retryable
	if retryable == nil {
		retryable = func(err error) bool { return !errors.Is(err, context.Canceled) }
	}

	r := &ResilientCompleter{
		inner:          inner,
		limiter:        rate.NewLimiter(limit, burst),
		cb:             cb,
		retryable:      retryable,
		timeouts:       cfg.StageTimeouts,
		defaultTimeout: cfg.DefaultTimeout,
		maxRetries:     max(cfg.MaxRetries, 0),
		baseBackoff:    cfg.BaseBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         logger,
	}
	if r.defaultTimeout <= 0 {
		r.defaultTimeout = defaultAttemptTimeout
	}
	if r.baseBackoff <= 0 {
		r.baseBackoff = defaultBaseBackoff
	}
	if r.maxBackoff <= 0 {
		r.maxBackoff = defaultMaxBackoff
	}
	return r
}

// Complete runs up to MaxRetries+1 attempts. Cancellation of ctx stops immediately.
// Every returned error wraps domain.ErrLLMProviderError.
func (r *ResilientCompleter) Complete(
	ctx context.Context, req domain.CompletionRequest,
) (domain.CompletionResult, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			metrics.LLMRetriesTotal.WithLabelValues(req.Stage).Inc()
			backoff := r.backoff(attempt)
			r.logger.Warn("Retrying completion",
				zap.String("stage", req.Stage),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr),
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return domain.CompletionResult{}, fmt.Errorf("%w: %w", domain.ErrLLMProviderError, ctx.Err())
			}
		}

		res, err := r.attempt(ctx, req)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return domain.CompletionResult{}, asProviderError(err)
		}
		if errors.Is(err, domain.ErrCircuitOpen) || !r.retryable(err) {
			return domain.CompletionResult{}, asProviderError(err)
		}
	}

	return domain.CompletionResult{}, fmt.Errorf("max retries exceeded: %w", asProviderError(lastErr))
}

func (r *ResilientCompleter) attempt(
	ctx context.Context, req domain.CompletionRequest,
) (domain.CompletionResult, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return domain.CompletionResult{}, fmt.Errorf("rate limiter: %w: %w", domain.ErrLLMProviderError, err)
	}

	actx, cancel := context.WithTimeout(ctx, r.timeout(req.Stage))
	defer cancel()

	res, err := r.cb.Execute(func() (domain.CompletionResult, error) {
		return r.inner.Complete(actx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return domain.CompletionResult{}, fmt.Errorf("%w: %w", domain.ErrLLMProviderError, domain.ErrCircuitOpen)
	}
	if err != nil {
		return domain.CompletionResult{}, err //nolint:wrapcheck // inner errors already wrapped by transport
	}
	return res, nil
}

// asProviderError maps every failed call to ErrLLMProviderError, including
// attempts cut short by the caller's deadline.
func asProviderError(err error) error {
	if errors.Is(err, domain.ErrLLMProviderError) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrLLMProviderError, err)
}

// Budget returns the worst-case wall time of one call for stage:
// every attempt timing out plus the backoff between attempts.
func (r *ResilientCompleter) Budget(stage string) time.Duration {
	total := time.Duration(r.maxRetries+1) * r.timeout(stage)
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		total += r.backoff(attempt)
	}
	return total
}

func (r *ResilientCompleter) timeout(stage string) time.Duration {
	if d, ok := r.timeouts[stage]; ok && d > 0 {
		return d
	}
	return r.defaultTimeout
}

// backoff returns base * 2^(attempt-1), capped at maxBackoff.
func (r *ResilientCompleter) backoff(attempt int) time.Duration {
	d := r.baseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= r.maxBackoff {
			return r.maxBackoff
		}
	}
	return min(d, r.maxBackoff)
}

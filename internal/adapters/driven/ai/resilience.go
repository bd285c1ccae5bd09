package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/kbchat/internal/core/domain"
	"github.com/custodia-labs/kbchat/internal/core/ports/driven"
	"github.com/custodia-labs/kbchat/internal/logger"
)

// Ensure the decorators implement the interfaces.
var (
	_ driven.EmbeddingService = (*resilientEmbedding)(nil)
	_ driven.LLMService       = (*resilientLLM)(nil)
)

// baseBackoff is the wait before the first retry; it doubles per attempt.
const baseBackoff = 500 * time.Millisecond

// maxBackoff caps a single wait between attempts.
const maxBackoff = 8 * time.Second

// guard applies client-side rate limiting and bounded retry to provider calls.
type guard struct {
	name       string
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
}

func newGuard(name string, cfg domain.ResilienceSettings) *guard {
	g := &guard{name: name, maxRetries: cfg.MaxRetries, backoff: baseBackoff}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return g
}

// enabled reports whether the guard changes any behaviour.
func (g *guard) enabled() bool {
	return g.limiter != nil || g.maxRetries > 0
}

// do runs call, retrying transient failures with exponential backoff.
func (g *guard) do(ctx context.Context, call func(context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if g.limiter != nil {
			if werr := g.limiter.Wait(ctx); werr != nil {
				return fmt.Errorf("%s: %w: %w", g.name, domain.ErrRateLimited, werr)
			}
		}

		err = call(ctx)
		if err == nil || attempt >= g.maxRetries || !retryable(err) {
			return err
		}

		wait := g.backoff << attempt
		if wait > maxBackoff || wait <= 0 {
			wait = maxBackoff
		}
		logger.Warn("%s: attempt %d failed, retrying in %s: %v", g.name, attempt+1, wait, err)

		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(wait):
		}
	}
}

// retryable reports whether a provider error is transient.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, domain.ErrRateLimited) ||
		errors.Is(err, domain.ErrLLMUnavailable) ||
		errors.Is(err, domain.ErrEmbeddingUnavailable)
}

// resilientEmbedding wraps an embedding service with a guard.
type resilientEmbedding struct {
	driven.EmbeddingService
	guard *guard
}

// WithEmbeddingResilience wraps svc with rate limiting and retry.
// With zero retries and no rate limit svc is returned unchanged.
func WithEmbeddingResilience(svc driven.EmbeddingService, cfg domain.ResilienceSettings) driven.EmbeddingService {
	g := newGuard("embedding", cfg)
	if svc == nil || !g.enabled() {
		return svc
	}
	return &resilientEmbedding{EmbeddingService: svc, guard: g}
}

// Embed embeds text through the guard.
func (r *resilientEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := r.guard.do(ctx, func(ctx context.Context) error {
		var err error
		out, err = r.EmbeddingService.Embed(ctx, text)
		return err
	})
	return out, err
}

// resilientLLM wraps an LLM service with a guard.
type resilientLLM struct {
	driven.LLMService
	guard *guard
}

// WithLLMResilience wraps svc with rate limiting and retry.
// With zero retries and no rate limit svc is returned unchanged.
func WithLLMResilience(svc driven.LLMService, cfg domain.ResilienceSettings) driven.LLMService {
	g := newGuard("llm", cfg)
	if svc == nil || !g.enabled() {
		return svc
	}
	return &resilientLLM{LLMService: svc, guard: g}
}

// Chat calls the model through the guard.
func (r *resilientLLM) Chat(ctx context.Context, messages []domain.Message, opts driven.ChatOptions) (string, error) {
	var out string
	err := r.guard.do(ctx, func(ctx context.Context) error {
		var err error
		out, err = r.LLMService.Chat(ctx, messages, opts)
		return err
	})
	return out, err
}

// Package embedding holds provider-independent embedding service wrappers.
package embedding

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure RateLimited implements the interface.
var _ driven.EmbeddingService = (*RateLimited)(nil)

// RateLimitConfig holds throttling configuration.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained request rate.
	RequestsPerSecond float64
	// BurstSize is the maximum burst size.
	BurstSize int
}

// RateLimited throttles requests to an embedding service with a token bucket.
// One batch request costs one token regardless of its size.
type RateLimited struct {
	inner   driven.EmbeddingService
	limiter *rate.Limiter
}

// NewRateLimited wraps inner. A non-positive rate returns inner unchanged.
func NewRateLimited(inner driven.EmbeddingService, cfg RateLimitConfig) driven.EmbeddingService {
	if cfg.RequestsPerSecond <= 0 {
		return inner
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = 1
	}
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
	}
}

// Embed waits for a token, then embeds text.
func (r *RateLimited) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.Embed(ctx, text)
}

// EmbedBatch waits for a token, then embeds texts in one request.
func (r *RateLimited) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.EmbedBatch(ctx, texts)
}

// Dimensions returns the wrapped service's vector size.
func (r *RateLimited) Dimensions() int {
	return r.inner.Dimensions()
}

// ModelName returns the wrapped service's model.
func (r *RateLimited) ModelName() string {
	return r.inner.ModelName()
}

// Ping is not throttled.
func (r *RateLimited) Ping(ctx context.Context) error {
	return r.inner.Ping(ctx)
}

// Close closes the wrapped service.
func (r *RateLimited) Close() error {
	return r.inner.Close()
}

package llm

import (
	"context"
	"time"
)

// RateLimitedProvider decorates a Provider with a token bucket limiter,
// blocking Chat calls until a token is available or the context ends.
type RateLimitedProvider struct {
	inner   Provider
	limiter *TokenBucketRateLimiter
}

// NewRateLimitedProvider wraps the provider with a per-minute request cap.
func NewRateLimitedProvider(inner Provider, requestsPerMinute int) *RateLimitedProvider {
	return &RateLimitedProvider{
		inner:   inner,
		limiter: NewTokenBucketRateLimiter(requestsPerMinute, time.Minute, requestsPerMinute),
	}
}

// Chat implements the Provider interface.
func (p *RateLimitedProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	for {
		allowed, wait := p.limiter.TryAcquire()
		if allowed {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return p.inner.Chat(ctx, req)
}

// GetDefaultModel implements the Provider interface.
func (p *RateLimitedProvider) GetDefaultModel() string {
	return p.inner.GetDefaultModel()
}

// Metrics returns the limiter counters.
func (p *RateLimitedProvider) Metrics() RateLimitMetrics {
	return p.limiter.GetMetrics()
}

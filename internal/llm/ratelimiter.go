package llm

import (
	"sync"
	"time"
)

// RateLimitExceededError is returned when the request budget is exhausted.
type RateLimitExceededError struct {
	RetryAfter time.Duration
}

func (e *RateLimitExceededError) Error() string {
	return "rate limit exceeded"
}

// TokenBucketRateLimiter implements the token bucket algorithm for
// limiting LLM request rates.
type TokenBucketRateLimiter struct {
	capacity     int
	tokens       int
	refillRate   time.Duration // interval between refills
	refillAmount int           // tokens added per refill
	lastRefill   time.Time
	mu           sync.Mutex
	metrics      RateLimitMetrics
}

// RateLimitMetrics holds rate limiting counters.
type RateLimitMetrics struct {
	TotalRequests    int64
	AllowedRequests  int64
	RejectedRequests int64
}

// NewTokenBucketRateLimiter creates a rate limiter holding at most capacity
// tokens, adding refillAmount tokens every refillInterval.
func NewTokenBucketRateLimiter(capacity int, refillInterval time.Duration, refillAmount int) *TokenBucketRateLimiter {
	return &TokenBucketRateLimiter{
		capacity:     capacity,
		tokens:       capacity,
		refillRate:   refillInterval,
		refillAmount: refillAmount,
		lastRefill:   time.Now(),
	}
}

// TryAcquire attempts to take a token. When none is available it returns
// false together with the time until the next refill.
func (r *TokenBucketRateLimiter) TryAcquire() (bool, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.metrics.TotalRequests++

	now := time.Now()
	elapsed := now.Sub(r.lastRefill)

	if elapsed >= r.refillRate {
		intervals := int(elapsed / r.refillRate)

		tokensToAdd := intervals * r.refillAmount
		if r.tokens+tokensToAdd > r.capacity {
			r.tokens = r.capacity
		} else {
			r.tokens += tokensToAdd
		}

		// Keep the remainder so partial intervals are not lost.
		r.lastRefill = now.Add(-elapsed % r.refillRate)
	}

	if r.tokens > 0 {
		r.tokens--
		r.metrics.AllowedRequests++
		return true, 0
	}

	r.metrics.RejectedRequests++
	return false, r.refillRate - (now.Sub(r.lastRefill) % r.refillRate)
}

// Acquire blocks until a token becomes available.
func (r *TokenBucketRateLimiter) Acquire() {
	for {
		allowed, wait := r.TryAcquire()
		if allowed {
			return
		}
		time.Sleep(wait)
	}
}

// GetMetrics returns a copy of the current counters.
func (r *TokenBucketRateLimiter) GetMetrics() RateLimitMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metrics
}

// Reset restores the limiter to its initial state.
func (r *TokenBucketRateLimiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tokens = r.capacity
	r.lastRefill = time.Now()
	r.metrics = RateLimitMetrics{}
}

// GetAvailableTokens returns the current number of available tokens.
func (r *TokenBucketRateLimiter) GetAvailableTokens() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tokens
}

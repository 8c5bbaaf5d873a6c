package llm

import (
	"context"
	"sync"
	"time"
)

// TokenBucketRateLimiter реализует алгоритм token bucket для rate limiting
type TokenBucketRateLimiter struct {
	capacity     int           // Максимальное количество токенов
	tokens       int           // Текущее количество токенов
	refillRate   time.Duration // Интервал пополнения одного токена
	refillAmount int           // Количество токенов при пополнении
	lastRefill   time.Time     // Время последнего пополнения
	mu           sync.Mutex
	metrics      RateLimitMetrics
}

// RateLimitMetrics хранит метрики rate limiting
type RateLimitMetrics struct {
	TotalRequests    int64
	AllowedRequests  int64
	RejectedRequests int64
}

// NewTokenBucketRateLimiter создает новый rate limiter
// capacity: максимальное количество токенов
// refillInterval: интервал пополнения токенов
// refillAmount: количество токенов, добавляемых за каждый интервал
func NewTokenBucketRateLimiter(capacity int, refillInterval time.Duration, refillAmount int) *TokenBucketRateLimiter {
	if capacity < 1 {
		capacity = 1
	}
	if refillAmount < 1 {
		refillAmount = 1
	}
	if refillInterval <= 0 {
		refillInterval = time.Second
	}
	return &TokenBucketRateLimiter{
		capacity:     capacity,
		tokens:       capacity,
		refillRate:   refillInterval,
		refillAmount: refillAmount,
		lastRefill:   time.Now(),
	}
}

// TryAcquire пытается получить токен. Если токенов нет, возвращает false
// и время ожидания до следующего пополнения.
func (r *TokenBucketRateLimiter) TryAcquire() (bool, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.metrics.TotalRequests++

	now := time.Now()
	elapsed := now.Sub(r.lastRefill)
	if elapsed >= r.refillRate {
		intervals := int(elapsed / r.refillRate)
		r.tokens = min(r.capacity, r.tokens+intervals*r.refillAmount)
		// остаток времени сохраняется для точности
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

// Wait блокирует до получения токена или отмены контекста.
func (r *TokenBucketRateLimiter) Wait(ctx context.Context) error {
	for {
		allowed, waitTime := r.TryAcquire()
		if allowed {
			return nil
		}
		timer := time.NewTimer(waitTime)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// GetMetrics возвращает текущие метрики
func (r *TokenBucketRateLimiter) GetMetrics() RateLimitMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metrics
}

// GetAvailableTokens возвращает текущее количество доступных токенов
func (r *TokenBucketRateLimiter) GetAvailableTokens() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tokens
}

// RateLimitedProvider gates every Chat call on a token bucket.
type RateLimitedProvider struct {
	Provider
	limiter *TokenBucketRateLimiter
}

// WithRateLimit wraps p. A nil limiter returns p unchanged.
func WithRateLimit(p Provider, limiter *TokenBucketRateLimiter) Provider {
	if limiter == nil {
		return p
	}
	return &RateLimitedProvider{Provider: p, limiter: limiter}
}

// Chat waits for a token, then delegates.
func (p *RateLimitedProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return p.Provider.Chat(ctx, req)
}

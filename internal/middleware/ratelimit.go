package middleware

import (
	"net/http"
	"sync"
	"time"
)

// RateLimitConfig configures one token bucket shared by every client.
type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

const rateLimitedBody = `{"errors":[{"message":"rate limit exceeded"}]}`

// RateLimitMiddleware rejects requests with 429 once the bucket is empty.
// The body uses the GraphQL error shape so clients see a normal envelope.
func RateLimitMiddleware(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if !cfg.Enabled || cfg.RPS <= 0 || cfg.Burst <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	bucket := newTokenBucket(cfg.RPS, cfg.Burst, time.Now)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !bucket.take() {
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(rateLimitedBody))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type tokenBucket struct {
	mu       sync.Mutex
	now      func() time.Time
	rate     float64
	capacity float64
	tokens   float64
	last     time.Time
}

func newTokenBucket(rps float64, burst int, now func() time.Time) *tokenBucket {
	return &tokenBucket{
		now:      now,
		rate:     rps,
		capacity: float64(burst),
		tokens:   float64(burst),
		last:     now(),
	}
}

func (b *tokenBucket) take() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens = min(b.capacity, b.tokens+elapsed*b.rate)
		b.last = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

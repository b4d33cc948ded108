package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"mcp-food-resolver/internal/clock"
	"mcp-food-resolver/internal/models"
)

// TokenBucket smooths calls to MaxCalls per Window with a burst of MaxCalls,
// which avoids the boundary burst of FixedWindow.
type TokenBucket struct {
	mu       sync.Mutex
	clock    clock.Clock
	limiters map[string]*rate.Limiter
}

func NewTokenBucket(c clock.Clock) *TokenBucket {
	if c == nil {
		c = clock.Wall()
	}
	return &TokenBucket{clock: c, limiters: make(map[string]*rate.Limiter)}
}

func (l *TokenBucket) TryAcquire(_ context.Context, source string, limit *models.RateLimit) bool {
	if limit == nil {
		return true
	}
	if limit.MaxCalls <= 0 {
		return false
	}

	l.mu.Lock()
	lim, ok := l.limiters[source]
	if !ok {
		every := limit.Window / time.Duration(limit.MaxCalls)
		lim = rate.NewLimiter(rate.Every(every), limit.MaxCalls)
		l.limiters[source] = lim
	}
	l.mu.Unlock()

	return lim.AllowN(l.clock.Now(), 1)
}

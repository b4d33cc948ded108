// Package ratelimit enforces per-provider request quotas.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"mcp-food-resolver/internal/clock"
	"mcp-food-resolver/internal/models"
)

type Strategy string

const (
	StrategyFixed Strategy = "fixed"
	StrategyToken Strategy = "token"
	StrategyRedis Strategy = "redis"
)

// Limiter decides whether a provider may be called right now. A nil limit
// means the provider has no quota and the call is always allowed.
type Limiter interface {
	TryAcquire(ctx context.Context, source string, limit *models.RateLimit) bool
}

type window struct {
	count   int
	resetAt time.Time
}

// FixedWindow counts calls per provider in fixed windows that reset lazily
// on the first check after the window has elapsed. A burst of up to
// 2*MaxCalls can straddle a window boundary.
type FixedWindow struct {
	mu      sync.Mutex
	clock   clock.Clock
	windows map[string]*window
}

func NewFixedWindow(c clock.Clock) *FixedWindow {
	if c == nil {
		c = clock.Wall()
	}
	return &FixedWindow{clock: c, windows: make(map[string]*window)}
}

func (l *FixedWindow) TryAcquire(_ context.Context, source string, limit *models.RateLimit) bool {
	if limit == nil {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	w, ok := l.windows[source]
	if !ok {
		w = &window{}
		l.windows[source] = w
	}
	if !now.Before(w.resetAt) {
		w.count = 0
		w.resetAt = now.Add(limit.Window)
	}
	if w.count >= limit.MaxCalls {
		return false
	}
	w.count++
	return true
}

// Usage reports the current count and reset time for source.
func (l *FixedWindow) Usage(source string) (count int, resetAt time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if w, ok := l.windows[source]; ok {
		return w.count, w.resetAt
	}
	return 0, time.Time{}
}

// Package ratelimit implements fixed-window request limiters keyed by
// caller.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"sealtrail/internal/domain"
)

const defaultMaxKeys = 10000

var ErrCapacityExceeded = errors.New("rate limiter capacity exceeded")

type MemoryLimiterConfig struct {
	Now     func() time.Time
	MaxKeys int
}

// MemoryLimiter keeps one window per key in process. When MaxKeys live
// windows exist, expired ones are dropped; if none have expired the call
// fails with ErrCapacityExceeded.
type MemoryLimiter struct {
	mu      sync.Mutex
	cfg     MemoryLimiterConfig
	windows map[string]*window
}

type window struct {
	hits int
	ends time.Time
}

func NewMemoryLimiter(cfg MemoryLimiterConfig) *MemoryLimiter {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = defaultMaxKeys
	}
	return &MemoryLimiter{cfg: cfg, windows: map[string]*window{}}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string, limit int, span time.Duration) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return unlimited(limit), nil
	}
	now := m.cfg.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w := m.windows[key]
	if w == nil || now.After(w.ends) {
		if w == nil && len(m.windows) >= m.cfg.MaxKeys {
			m.dropExpired(now)
			if len(m.windows) >= m.cfg.MaxKeys {
				return domain.RateLimitDecision{}, ErrCapacityExceeded
			}
		}
		w = &window{ends: now.Add(span)}
		m.windows[key] = w
	}
	if w.hits < limit {
		w.hits++
		return decide(limit, w.hits, w.ends), nil
	}
	return decide(limit, limit+1, w.ends), nil
}

func (m *MemoryLimiter) dropExpired(now time.Time) {
	for key, w := range m.windows {
		if now.After(w.ends) {
			delete(m.windows, key)
		}
	}
}

func unlimited(limit int) domain.RateLimitDecision {
	return domain.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit}
}

// decide turns the n-th hit of a window into a decision.
func decide(limit, n int, resetAt time.Time) domain.RateLimitDecision {
	return domain.RateLimitDecision{
		Allowed:   n <= limit,
		Limit:     limit,
		Remaining: max(limit-n, 0),
		ResetAt:   resetAt,
	}
}

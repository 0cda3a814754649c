package resilience

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter throttles outbound calls with one global bucket and one bucket per key.
type RateLimiter struct {
	global *rate.Limiter

	mu       sync.Mutex
	perKey   map[string]*rate.Limiter
	keyRPS   float64
	keyBurst int
}

type RateLimiterConfig struct {
	GlobalRPS   float64
	GlobalBurst int
	KeyRPS      float64
	KeyBurst    int
}

// DefaultRateLimiterConfig follows the Bot API guidance of about 30 messages per
// second overall and one per second per chat.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GlobalRPS:   30,
		GlobalBurst: 10,
		KeyRPS:      1,
		KeyBurst:    3,
	}
}

func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	return &RateLimiter{
		global:   rate.NewLimiter(rate.Limit(cfg.GlobalRPS), cfg.GlobalBurst),
		perKey:   make(map[string]*rate.Limiter),
		keyRPS:   cfg.KeyRPS,
		keyBurst: cfg.KeyBurst,
	}
}

// Wait blocks until the global bucket and, for a non-empty key, the key's bucket allow
// one more call.
func (r *RateLimiter) Wait(ctx context.Context, key string) error {
	if err := r.global.Wait(ctx); err != nil {
		return err
	}
	if key == "" {
		return nil
	}
	return r.limiter(key).Wait(ctx)
}

// Allow reports whether a call may happen now without waiting.
func (r *RateLimiter) Allow(key string) bool {
	if !r.global.Allow() {
		return false
	}
	if key == "" {
		return true
	}
	return r.limiter(key).Allow()
}

func (r *RateLimiter) limiter(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.perKey[key]
	if !ok {
		l = rate.NewLimiter(rate.Limit(r.keyRPS), r.keyBurst)
		r.perKey[key] = l
	}
	return l
}

package resilience

import (
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

type BreakerConfig struct {
	Name        string
	MaxRequests uint32        // requests let through while half-open
	Interval    time.Duration // closed-state counting window
	Timeout     time.Duration // open-state duration before half-open
	Threshold   uint32        // consecutive failures that trip the breaker

	// IsSuccessful decides whether err counts against the breaker. Nil means only a
	// nil error is a success.
	IsSuccessful func(err error) bool
}

func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		Threshold:   5,
	}
}

func NewBreaker[T any](cfg BreakerConfig) *gobreaker.CircuitBreaker[T] {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: cfg.IsSuccessful,
	}
	return gobreaker.NewCircuitBreaker[T](settings)
}

package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterPerKeyBurst(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{GlobalRPS: 1000, GlobalBurst: 100, KeyRPS: 0.001, KeyBurst: 2})

	assert.True(t, rl.Allow("chat-1"))
	assert.True(t, rl.Allow("chat-1"))
	assert.False(t, rl.Allow("chat-1"))
	assert.True(t, rl.Allow("chat-2"))
	assert.True(t, rl.Allow(""))
}

func TestRateLimiterWaitHonorsContext(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{GlobalRPS: 1000, GlobalBurst: 100, KeyRPS: 0.001, KeyBurst: 1})
	require.NoError(t, rl.Wait(context.Background(), "chat"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, rl.Wait(ctx, "chat"))
}

func TestBreakerTripsAfterThreshold(t *testing.T) {
	cfg := DefaultBreakerConfig("test")
	cfg.Threshold = 2
	cb := NewBreaker[struct{}](cfg)

	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		_, err := cb.Execute(func() (struct{}, error) { return struct{}{}, boom })
		require.ErrorIs(t, err, boom)
	}

	_, err := cb.Execute(func() (struct{}, error) { return struct{}{}, nil })
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestBreakerIgnoresSuccessfulErrors(t *testing.T) {
	userErr := errors.New("bad input")
	cfg := DefaultBreakerConfig("test")
	cfg.Threshold = 1
	cfg.IsSuccessful = func(err error) bool { return err == nil || errors.Is(err, userErr) }
	cb := NewBreaker[struct{}](cfg)

	for i := 0; i < 3; i++ {
		_, err := cb.Execute(func() (struct{}, error) { return struct{}{}, userErr })
		require.ErrorIs(t, err, userErr)
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

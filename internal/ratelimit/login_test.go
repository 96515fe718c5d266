package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/authbridge/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

func TestDisabledLimiterAllows(t *testing.T) {
	l, err := NewLoginLimiter(fxtest.NewLifecycle(t), config.Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, l.Enabled())

	res, err := l.Allow(context.Background(), "a@x.com", "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	var nilLimiter *LoginLimiter
	res, err = nilLimiter.Allow(context.Background(), "a@x.com", "")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestLimiterRejectsBadConfig(t *testing.T) {
	cfg := config.Config{
		RedisAddr: "localhost:6379",
		RateLimit: config.RateLimitConfig{Enabled: true, LoginAttempts: 0, LoginWindow: time.Minute},
	}
	_, err := NewLoginLimiter(fxtest.NewLifecycle(t), cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestWindowValidation(t *testing.T) {
	var w *Window
	_, err := w.Hit(context.Background(), "k", 1, time.Second)
	assert.Error(t, err)

	w = NewWindow(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}))
	_, err = w.Hit(context.Background(), "", 1, time.Second)
	assert.Error(t, err)
	_, err = w.Hit(context.Background(), "k", 0, time.Second)
	assert.Error(t, err)
}

func TestLoginLimiterRedis(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })

	email := uuid.NewString() + "@x.com"
	l := NewLoginLimiterWithClient(client, 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := l.Allow(ctx, email, "")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
	res, err := l.Allow(ctx, email, "")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
	assert.Zero(t, res.Remaining)
}

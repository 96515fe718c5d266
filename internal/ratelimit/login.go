package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/authbridge/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	keyLoginEmail = "authbridge:login:email:%s"
	keyLoginIP    = "authbridge:login:ip:%s"
)

// LoginLimiter throttles password login attempts. A nil or disabled limiter
// allows everything.
type LoginLimiter struct {
	enabled  bool
	window   *Window
	attempts int
	period   time.Duration
}

func NewLoginLimiter(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*LoginLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return &LoginLimiter{}, nil
	}

	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, fmt.Errorf("login rate limit: redis addr is required")
	}
	if limitCfg.LoginAttempts <= 0 || limitCfg.LoginWindow <= 0 {
		return nil, fmt.Errorf("login rate limit: attempts and window must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	log.Info("login rate limit enabled",
		zap.Int("attempts", limitCfg.LoginAttempts),
		zap.Duration("window", limitCfg.LoginWindow),
	)
	return NewLoginLimiterWithClient(client, limitCfg.LoginAttempts, limitCfg.LoginWindow), nil
}

func NewLoginLimiterWithClient(client *redis.Client, attempts int, period time.Duration) *LoginLimiter {
	return &LoginLimiter{
		enabled:  true,
		window:   NewWindow(client),
		attempts: attempts,
		period:   period,
	}
}

func (l *LoginLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// Allow counts one attempt against both the email and the client IP and
// reports the stricter outcome.
func (l *LoginLimiter) Allow(ctx context.Context, email, clientIP string) (Result, error) {
	if !l.Enabled() {
		return Result{Allowed: true}, nil
	}

	keys := []string{fmt.Sprintf(keyLoginEmail, strings.ToLower(strings.TrimSpace(email)))}
	if ip := strings.TrimSpace(clientIP); ip != "" {
		keys = append(keys, fmt.Sprintf(keyLoginIP, ip))
	}

	out := Result{Allowed: true, Limit: l.attempts, Remaining: l.attempts}
	for _, key := range keys {
		res, err := l.window.Hit(ctx, key, l.attempts, l.period)
		if err != nil {
			return Result{}, err
		}
		if !res.Allowed {
			out.Allowed = false
			out.RetryAfter = max(out.RetryAfter, res.RetryAfter)
		}
		out.Remaining = min(out.Remaining, res.Remaining)
	}
	return out, nil
}

package ratelimit

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const fixedWindowScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {count, ttl}
`

// Window counts hits per key over a fixed window held in Redis.
type Window struct {
	client *redis.Client
	script *redis.Script
}

type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

func NewWindow(client *redis.Client) *Window {
	if client == nil {
		return nil
	}
	return &Window{
		client: client,
		script: redis.NewScript(fixedWindowScript),
	}
}

func (w *Window) Hit(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	if w == nil || w.client == nil {
		return Result{}, errors.New("rate limiter not configured")
	}
	if key == "" {
		return Result{}, errors.New("rate limiter key is empty")
	}
	if limit <= 0 || window <= 0 {
		return Result{}, errors.New("rate limit must be positive")
	}

	values, err := w.script.Run(ctx, w.client, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Result{}, err
	}
	if len(values) != 2 {
		return Result{}, errors.New("unexpected rate limiter reply")
	}

	count, ttl := int(values[0]), time.Duration(values[1])*time.Millisecond
	res := Result{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: max(limit-count, 0),
	}
	if !res.Allowed && ttl > 0 {
		res.RetryAfter = ttl
	}
	return res, nil
}

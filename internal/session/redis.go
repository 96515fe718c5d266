package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/authbridge/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keySession = "authbridge:session:%s"

const renameScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  redis.call("RENAME", KEYS[1], KEYS[2])
  return 1
end
return 0
`

type RedisStore struct {
	client *redis.Client
	rename *redis.Script
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		rename: redis.NewScript(renameScript),
	}
}

// NewRedisClient opens the client used by the session store and closes it
// on shutdown.
func NewRedisClient(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*redis.Client, error) {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("session redis addr is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("session redis: %w", err)
			}
			log.Info("session store connected", zap.String("addr", addr))
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func sessionKey(sid string) string {
	return fmt.Sprintf(keySession, sid)
}

func (s *RedisStore) Get(ctx context.Context, sid, field string) ([]byte, error) {
	raw, err := s.client.HGet(ctx, sessionKey(sid), field).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return raw, nil
}

func (s *RedisStore) Set(ctx context.Context, sid, field string, value []byte, ttl time.Duration) error {
	key := sessionKey(sid)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, field, value)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	return err
}

func (s *RedisStore) DeleteField(ctx context.Context, sid, field string) error {
	return s.client.HDel(ctx, sessionKey(sid), field).Err()
}

func (s *RedisStore) Rename(ctx context.Context, from, to string) error {
	if from == to {
		return nil
	}
	return s.rename.Run(ctx, s.client, []string{sessionKey(from), sessionKey(to)}).Err()
}

package session

import (
	"github.com/smallbiznis/authbridge/internal/clock"
	"github.com/smallbiznis/authbridge/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("session",
	fx.Provide(
		NewManager,
		NewCache,
		NewStore,
	),
)

// NewStore picks the backing store configured by SESSION_STORE.
func NewStore(lc fx.Lifecycle, cfg config.Config, clk clock.Clock, log *zap.Logger) (Store, error) {
	if cfg.SessionStore == config.SessionStoreMemory {
		log.Warn("using in-memory session store")
		return NewMemoryStore(clk), nil
	}
	client, err := NewRedisClient(lc, cfg, log)
	if err != nil {
		return nil, err
	}
	return NewRedisStore(client), nil
}

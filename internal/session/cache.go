package session

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/authbridge/internal/clock"
	"github.com/smallbiznis/authbridge/internal/config"
	"go.uber.org/zap"
)

// FieldName is the store field holding the bridge session.
const FieldName = "stytch"

type Cache struct {
	log     *zap.Logger
	store   Store
	clock   clock.Clock
	timeout time.Duration
}

func NewCache(log *zap.Logger, store Store, clk clock.Clock, cfg config.BridgeConfig) *Cache {
	return &Cache{
		log:     log.Named("session.cache"),
		store:   store,
		clock:   clk,
		timeout: cfg.SessionTimeout,
	}
}

// Read returns the stored session while it is younger than the session
// timeout. Expired and undecodable sessions read as absent.
func (c *Cache) Read(ctx context.Context, sid string) (Session, bool, error) {
	if sid == "" {
		return nil, false, nil
	}

	raw, err := c.store.Get(ctx, sid, FieldName)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	sess, err := Decode(raw)
	if err != nil {
		c.log.Warn("discarding unreadable session", zap.Error(err))
		return nil, false, nil
	}
	if !c.Fresh(sess) {
		return nil, false, nil
	}
	return sess, true, nil
}

// Fresh reports whether now - AuthenticatedAt < timeout.
func (c *Cache) Fresh(s Session) bool {
	return c.clock.Now().Sub(s.Base().AuthenticatedAt) < c.timeout
}

// Write replaces the stored session as a whole.
func (c *Cache) Write(ctx context.Context, sid string, s Session) error {
	if sid == "" {
		return ErrEmptyID
	}
	raw, err := Encode(s)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, sid, FieldName, raw, c.timeout)
}

// Clear removes the stored session. Clearing an absent session is a no-op.
func (c *Cache) Clear(ctx context.Context, sid string) error {
	if sid == "" {
		return nil
	}
	return c.store.DeleteField(ctx, sid, FieldName)
}

// Regenerate moves the record under sid to a fresh id and returns it, so a
// session id seen before authentication is never reused after it.
func (c *Cache) Regenerate(ctx context.Context, sid string) (string, error) {
	next := NewID()
	if sid == "" {
		return next, nil
	}
	if err := c.store.Rename(ctx, sid, next); err != nil {
		return "", err
	}
	return next, nil
}

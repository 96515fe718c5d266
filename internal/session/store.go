package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the persistent per-visitor session record. Each record is a set
// of named fields under one session id.
type Store interface {
	// Get returns ErrNotFound when the record or field is absent.
	Get(ctx context.Context, sid, field string) ([]byte, error)
	// Set writes one field and refreshes the record TTL.
	Set(ctx context.Context, sid, field string, value []byte, ttl time.Duration) error
	DeleteField(ctx context.Context, sid, field string) error
	// Rename moves every field from one id to another. A missing source is
	// not an error.
	Rename(ctx context.Context, from, to string) error
}

// NewID returns a fresh random session id.
func NewID() string {
	return uuid.NewString()
}

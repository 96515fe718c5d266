package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Repository is the user store adapter. Find methods return ErrUserNotFound
// when nothing matches.
type Repository interface {
	FindByID(ctx context.Context, id snowflake.ID) (*User, error)
	FindByExternalID(ctx context.Context, externalID string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, user *User) error
	// Save writes the mutable profile fields. It never touches the external id.
	Save(ctx context.Context, user *User) error
	// LinkExternalID binds externalID to user only while the stored row has no
	// external id. It returns ErrUserExists when the row was linked meanwhile
	// or the id is already bound to another user.
	LinkExternalID(ctx context.Context, user *User, externalID string) error
	// SupportsOrganizations reports whether the store persists organization refs.
	SupportsOrganizations() bool
	// Verify checks that the configured table and columns exist.
	Verify(ctx context.Context) error
}

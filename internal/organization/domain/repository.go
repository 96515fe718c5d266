package domain

import (
	"context"
)

type Repository interface {
	FindByExternalID(ctx context.Context, externalID string) (*Organization, error)
	Create(ctx context.Context, org *Organization) error
	Save(ctx context.Context, org *Organization) error
	// Verify checks that the configured table and columns exist.
	Verify(ctx context.Context) error
}

// Service resolves upstream organizations onto local records.
type Service interface {
	// Ensure finds the organization by external id, creating it when absent
	// and renaming it when the upstream name changed.
	Ensure(ctx context.Context, req EnsureRequest) (*Organization, error)
}

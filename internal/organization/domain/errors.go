package domain

import "errors"

var (
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrOrganizationExists   = errors.New("organization already exists")
	ErrInvalidExternalID    = errors.New("organization external id is required")
)

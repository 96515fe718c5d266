package service

import (
	"context"
	"errors"
	"strings"

	"github.com/gosimple/slug"
	"github.com/smallbiznis/authbridge/internal/organization/domain"
	"go.uber.org/zap"
)

type service struct {
	log  *zap.Logger
	repo domain.Repository
}

func NewService(log *zap.Logger, repo domain.Repository) domain.Service {
	return &service{
		log:  log.Named("organization.service"),
		repo: repo,
	}
}

func (s *service) Ensure(ctx context.Context, req domain.EnsureRequest) (*domain.Organization, error) {
	externalID := strings.TrimSpace(req.ExternalID)
	if externalID == "" {
		return nil, domain.ErrInvalidExternalID
	}
	name := strings.TrimSpace(req.Name)

	org, err := s.repo.FindByExternalID(ctx, externalID)
	switch {
	case err == nil:
		return s.rename(ctx, org, name)
	case !errors.Is(err, domain.ErrOrganizationNotFound):
		return nil, err
	}

	org = &domain.Organization{
		ExternalOrganizationID: externalID,
		Name:                   name,
		Slug:                   slugFor(req.Slug, name, externalID),
	}
	if err := s.repo.Create(ctx, org); err != nil {
		if !errors.Is(err, domain.ErrOrganizationExists) {
			return nil, err
		}
		// Lost a concurrent create; the winner's row is authoritative.
		existing, findErr := s.repo.FindByExternalID(ctx, externalID)
		if findErr != nil {
			return nil, findErr
		}
		return s.rename(ctx, existing, name)
	}

	s.log.Info("organization created",
		zap.String("organization_id", org.ID.String()),
		zap.String("external_organization_id", externalID),
	)
	return org, nil
}

func (s *service) rename(ctx context.Context, org *domain.Organization, name string) (*domain.Organization, error) {
	if name == "" || name == org.Name {
		return org, nil
	}
	org.Name = name
	if err := s.repo.Save(ctx, org); err != nil {
		return nil, err
	}
	return org, nil
}

func slugFor(upstream, name, externalID string) string {
	if s := strings.TrimSpace(upstream); s != "" {
		return s
	}
	if s := slug.Make(name); s != "" {
		return s
	}
	return slug.Make(externalID)
}

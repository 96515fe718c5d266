package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/authbridge/internal/config"
	"github.com/smallbiznis/authbridge/internal/organization/domain"
	"github.com/smallbiznis/authbridge/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct {
	db    *gorm.DB
	cols  config.OrgStoreConfig
	genID *snowflake.Node

	hasSlug       bool
	hasTimestamps bool
}

func NewRepository(conn *gorm.DB, cfg config.BridgeConfig, genID *snowflake.Node) domain.Repository {
	return &repository{
		db:      conn,
		cols:    cfg.OrgStore,
		genID:   genID,
		hasSlug: cfg.OrgStore.SlugColumn != "",
	}
}

func (r *repository) FindByExternalID(ctx context.Context, externalID string) (*domain.Organization, error) {
	var org domain.Organization
	err := r.db.WithContext(ctx).
		Table(r.cols.Table).
		Select(r.selectColumns()).
		Where(clause.Eq{Column: clause.Column{Name: r.cols.ExternalIDColumn}, Value: externalID}).
		Take(&org).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrganizationNotFound
		}
		return nil, err
	}
	return &org, nil
}

func (r *repository) selectColumns() string {
	q := r.db.Statement.Quote
	sel := fmt.Sprintf("%s AS id, %s AS stytch_organization_id, %s AS name",
		q(r.cols.IDColumn), q(r.cols.ExternalIDColumn), q(r.cols.NameColumn))
	if r.hasSlug {
		sel += fmt.Sprintf(", %s AS slug", q(r.cols.SlugColumn))
	}
	if r.hasTimestamps {
		sel += ", created_at, updated_at"
	}
	return sel
}

func (r *repository) Create(ctx context.Context, org *domain.Organization) error {
	if org.ID == 0 {
		org.ID = r.genID.Generate()
	}
	now := r.db.NowFunc()
	org.CreatedAt, org.UpdatedAt = now, now

	values := r.values(org)
	values[r.cols.IDColumn] = int64(org.ID)
	values[r.cols.ExternalIDColumn] = org.ExternalOrganizationID
	if r.hasTimestamps {
		values["created_at"] = now
	}

	if err := r.db.WithContext(ctx).Table(r.cols.Table).Create(values).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return fmt.Errorf("%w: %v", domain.ErrOrganizationExists, err)
		}
		return err
	}
	return nil
}

func (r *repository) Save(ctx context.Context, org *domain.Organization) error {
	org.UpdatedAt = r.db.NowFunc()

	res := r.db.WithContext(ctx).
		Table(r.cols.Table).
		Where(clause.Eq{Column: clause.Column{Name: r.cols.IDColumn}, Value: int64(org.ID)}).
		Updates(r.values(org))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrOrganizationNotFound
	}
	return nil
}

func (r *repository) values(org *domain.Organization) map[string]any {
	values := map[string]any{
		r.cols.NameColumn: org.Name,
	}
	if r.hasSlug {
		values[r.cols.SlugColumn] = org.Slug
	}
	if r.hasTimestamps {
		values["updated_at"] = org.UpdatedAt
	}
	return values
}

func (r *repository) Verify(ctx context.Context) error {
	m := r.db.WithContext(ctx).Migrator()
	if !m.HasTable(r.cols.Table) {
		return &config.ConfigurationError{Field: "org_store.table", Reason: fmt.Sprintf("table %q does not exist", r.cols.Table)}
	}

	required := []struct{ field, column string }{
		{"org_store.id_column", r.cols.IDColumn},
		{"org_store.external_id_column", r.cols.ExternalIDColumn},
		{"org_store.name_column", r.cols.NameColumn},
	}
	for _, c := range required {
		if !m.HasColumn(r.cols.Table, c.column) {
			return &config.ConfigurationError{Field: c.field, Reason: fmt.Sprintf("column %q does not exist on %q", c.column, r.cols.Table)}
		}
	}

	r.hasSlug = r.cols.SlugColumn != "" && m.HasColumn(r.cols.Table, r.cols.SlugColumn)
	r.hasTimestamps = m.HasColumn(r.cols.Table, "created_at") && m.HasColumn(r.cols.Table, "updated_at")
	return nil
}

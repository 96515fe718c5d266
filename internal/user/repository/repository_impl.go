package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/authbridge/internal/config"
	"github.com/smallbiznis/authbridge/internal/user/domain"
	"github.com/smallbiznis/authbridge/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// repo reads and writes users through the configured table and column names.
// Rows are scanned into domain.User by aliasing each configured column to
// the model's default column name.
type repo struct {
	db         *gorm.DB
	cols       config.UserStoreConfig
	genID      *snowflake.Node
	requireOrg bool

	hasOrg        bool
	hasTimestamps bool
}

func New(conn *gorm.DB, cfg config.BridgeConfig, genID *snowflake.Node) domain.Repository {
	return &repo{
		db:         conn,
		cols:       cfg.UserStore,
		genID:      genID,
		requireOrg: cfg.LinksOrganizations(cfg.DefaultMode),
		hasOrg:     cfg.UserStore.OrganizationColumn != "",
	}
}

func (r *repo) FindByID(ctx context.Context, id snowflake.ID) (*domain.User, error) {
	return r.findOne(ctx, r.cols.IDColumn, int64(id))
}

func (r *repo) FindByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	return r.findOne(ctx, r.cols.ExternalIDColumn, externalID)
}

func (r *repo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, r.cols.EmailColumn, email)
}

func (r *repo) findOne(ctx context.Context, column string, value any) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).
		Table(r.cols.Table).
		Select(r.selectColumns()).
		Where(clause.Eq{Column: clause.Column{Name: column}, Value: value}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: r.cols.IDColumn}}).
		Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *repo) selectColumns() string {
	q := r.db.Statement.Quote
	sel := fmt.Sprintf("%s AS id, %s AS stytch_user_id, %s AS email, %s AS name",
		q(r.cols.IDColumn), q(r.cols.ExternalIDColumn), q(r.cols.EmailColumn), q(r.cols.NameColumn))
	if r.hasOrg {
		sel += fmt.Sprintf(", %s AS stytch_organization_id", q(r.cols.OrganizationColumn))
	}
	if r.hasTimestamps {
		sel += ", created_at, updated_at"
	}
	return sel
}

func (r *repo) Create(ctx context.Context, user *domain.User) error {
	if user.ID == 0 {
		user.ID = r.genID.Generate()
	}
	now := r.db.NowFunc()
	user.CreatedAt, user.UpdatedAt = now, now

	values := r.values(user)
	values[r.cols.IDColumn] = int64(user.ID)
	values[r.cols.ExternalIDColumn] = user.ExternalUserID
	if r.hasTimestamps {
		values["created_at"] = now
	}

	err := r.db.WithContext(ctx).Table(r.cols.Table).Create(values).Error
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return fmt.Errorf("%w: %v", domain.ErrUserExists, err)
		}
		return err
	}
	return nil
}

func (r *repo) Save(ctx context.Context, user *domain.User) error {
	user.UpdatedAt = r.db.NowFunc()

	res := r.db.WithContext(ctx).
		Table(r.cols.Table).
		Where(clause.Eq{Column: clause.Column{Name: r.cols.IDColumn}, Value: int64(user.ID)}).
		Updates(r.values(user))
	if res.Error != nil {
		if db.IsDuplicateKeyErr(res.Error) {
			return fmt.Errorf("%w: %v", domain.ErrUserExists, res.Error)
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *repo) LinkExternalID(ctx context.Context, user *domain.User, externalID string) error {
	linked := *user
	if !linked.LinkExternalID(externalID) {
		return fmt.Errorf("%w: user %s already linked", domain.ErrUserExists, user.ID)
	}
	linked.UpdatedAt = r.db.NowFunc()

	values := map[string]any{r.cols.ExternalIDColumn: linked.ExternalUserID}
	if r.hasTimestamps {
		values["updated_at"] = linked.UpdatedAt
	}

	extCol := clause.Column{Name: r.cols.ExternalIDColumn}
	res := r.db.WithContext(ctx).
		Table(r.cols.Table).
		Where(clause.Eq{Column: clause.Column{Name: r.cols.IDColumn}, Value: int64(user.ID)}).
		Where(clause.Or(clause.Eq{Column: extCol, Value: nil}, clause.Eq{Column: extCol, Value: ""})).
		Updates(values)
	if res.Error != nil {
		if db.IsDuplicateKeyErr(res.Error) {
			return fmt.Errorf("%w: %v", domain.ErrUserExists, res.Error)
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: user %s was linked concurrently", domain.ErrUserExists, user.ID)
	}
	*user = linked
	return nil
}

func (r *repo) values(user *domain.User) map[string]any {
	values := map[string]any{
		r.cols.EmailColumn: user.Email,
		r.cols.NameColumn:  user.DisplayName,
	}
	if r.hasOrg {
		values[r.cols.OrganizationColumn] = user.OrganizationRef
	}
	if r.hasTimestamps {
		values["updated_at"] = user.UpdatedAt
	}
	return values
}

// Verify checks the configured table and columns and records which optional
// columns exist. It runs once at startup.
func (r *repo) Verify(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("user store: %w", err)
	}

	m := r.db.WithContext(ctx).Migrator()
	if !m.HasTable(r.cols.Table) {
		return &config.ConfigurationError{Field: "user_store.table", Reason: fmt.Sprintf("table %q does not exist", r.cols.Table)}
	}

	required := []struct{ field, column string }{
		{"user_store.id_column", r.cols.IDColumn},
		{"user_store.external_id_column", r.cols.ExternalIDColumn},
		{"user_store.email_column", r.cols.EmailColumn},
		{"user_store.name_column", r.cols.NameColumn},
	}
	for _, c := range required {
		if !m.HasColumn(r.cols.Table, c.column) {
			return &config.ConfigurationError{Field: c.field, Reason: fmt.Sprintf("column %q does not exist on %q", c.column, r.cols.Table)}
		}
	}

	r.hasOrg = r.cols.OrganizationColumn != "" && m.HasColumn(r.cols.Table, r.cols.OrganizationColumn)
	if r.requireOrg && !r.hasOrg {
		return &config.ConfigurationError{
			Field:  "user_store.organization_column",
			Reason: fmt.Sprintf("column %q is required when organization linking is enabled", r.cols.OrganizationColumn),
		}
	}
	r.hasTimestamps = m.HasColumn(r.cols.Table, "created_at") && m.HasColumn(r.cols.Table, "updated_at")
	return nil
}

// SupportsOrganizations reports whether organization refs are persisted.
func (r *repo) SupportsOrganizations() bool {
	return r.hasOrg
}

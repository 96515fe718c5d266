package repository

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/authbridge/internal/config"
	identitydomain "github.com/smallbiznis/authbridge/internal/identity/domain"
	"github.com/smallbiznis/authbridge/internal/user/domain"
	"github.com/smallbiznis/authbridge/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestRepo(t *testing.T, cfg config.BridgeConfig) (domain.Repository, *gorm.DB) {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return New(conn, cfg, node), conn
}

func strPtr(v string) *string { return &v }

func TestCreateAndFind(t *testing.T) {
	repo, conn := newTestRepo(t, config.DefaultBridge())
	require.NoError(t, conn.AutoMigrate(&domain.User{}))
	ctx := context.Background()
	require.NoError(t, repo.Verify(ctx))

	user := &domain.User{ExternalUserID: strPtr("user-test-1"), Email: strPtr("a@x.com"), DisplayName: "Ada"}
	require.NoError(t, repo.Create(ctx, user))
	assert.NotZero(t, user.ID)

	byExt, err := repo.FindByExternalID(ctx, "user-test-1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byExt.ID)
	assert.Equal(t, "Ada", byExt.DisplayName)

	byEmail, err := repo.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	byID, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	ext, _ := byID.ExternalID()
	assert.Equal(t, "user-test-1", ext)
	assert.False(t, byID.CreatedAt.IsZero())

	_, err = repo.FindByExternalID(ctx, "user-test-2")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestSaveUpdatesMutableFields(t *testing.T) {
	repo, conn := newTestRepo(t, config.DefaultBridge())
	require.NoError(t, conn.AutoMigrate(&domain.User{}))
	ctx := context.Background()
	require.NoError(t, repo.Verify(ctx))

	user := &domain.User{Email: strPtr("old@x.com")}
	require.NoError(t, repo.Create(ctx, user))

	require.NoError(t, repo.LinkExternalID(ctx, user, "ext123"))
	user.SetName("Grace Hopper")
	user.SetOrganization("org1")
	require.NoError(t, repo.Save(ctx, user))

	got, err := repo.FindByExternalID(ctx, "ext123")
	require.NoError(t, err)
	assert.Equal(t, "Grace Hopper", got.DisplayName)
	org, ok := got.Organization()
	assert.True(t, ok)
	assert.Equal(t, "org1", org)

	err = repo.Save(ctx, &domain.User{ID: 42})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestLinkExternalIDIsConditional(t *testing.T) {
	repo, conn := newTestRepo(t, config.DefaultBridge())
	require.NoError(t, conn.AutoMigrate(&domain.User{}))
	ctx := context.Background()
	require.NoError(t, repo.Verify(ctx))

	require.NoError(t, repo.Create(ctx, &domain.User{Email: strPtr("old@x.com")}))

	// Two requests read the same unlinked row.
	first, err := repo.FindByEmail(ctx, "old@x.com")
	require.NoError(t, err)
	second, err := repo.FindByEmail(ctx, "old@x.com")
	require.NoError(t, err)

	require.NoError(t, repo.LinkExternalID(ctx, first, "ext-A"))
	ext, ok := first.ExternalID()
	require.True(t, ok)
	assert.Equal(t, "ext-A", ext)

	err = repo.LinkExternalID(ctx, second, "ext-B")
	assert.ErrorIs(t, err, domain.ErrUserExists)
	_, ok = second.ExternalID()
	assert.False(t, ok, "a failed link leaves the in-memory copy untouched")

	// A later save from the stale copy does not clear or replace the link.
	second.SetName("Stale Writer")
	require.NoError(t, repo.Save(ctx, second))

	stored, err := repo.FindByEmail(ctx, "old@x.com")
	require.NoError(t, err)
	ext, _ = stored.ExternalID()
	assert.Equal(t, "ext-A", ext)
	assert.Equal(t, "Stale Writer", stored.DisplayName)

	_, err = repo.FindByExternalID(ctx, "ext-B")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestLinkExternalIDAlreadyOwnedElsewhere(t *testing.T) {
	repo, conn := newTestRepo(t, config.DefaultBridge())
	require.NoError(t, conn.AutoMigrate(&domain.User{}))
	ctx := context.Background()
	require.NoError(t, repo.Verify(ctx))

	require.NoError(t, repo.Create(ctx, &domain.User{ExternalUserID: strPtr("ext-A")}))
	unlinked := &domain.User{Email: strPtr("b@x.com")}
	require.NoError(t, repo.Create(ctx, unlinked))

	err := repo.LinkExternalID(ctx, unlinked, "ext-A")
	assert.ErrorIs(t, err, domain.ErrUserExists)
}

func TestCreateDuplicateExternalID(t *testing.T) {
	repo, conn := newTestRepo(t, config.DefaultBridge())
	require.NoError(t, conn.AutoMigrate(&domain.User{}))
	ctx := context.Background()
	require.NoError(t, repo.Verify(ctx))

	require.NoError(t, repo.Create(ctx, &domain.User{ExternalUserID: strPtr("dup")}))
	err := repo.Create(ctx, &domain.User{ExternalUserID: strPtr("dup")})
	assert.ErrorIs(t, err, domain.ErrUserExists)
}

func TestCustomColumns(t *testing.T) {
	cfg := config.DefaultBridge()
	cfg.UserStore = config.UserStoreConfig{
		Table:            "accounts",
		IDColumn:         "account_id",
		EmailColumn:      "mail",
		ExternalIDColumn: "provider_id",
		NameColumn:       "full_name",
	}
	repo, conn := newTestRepo(t, cfg)
	require.NoError(t, conn.Exec(`CREATE TABLE accounts (
		account_id INTEGER PRIMARY KEY,
		mail TEXT,
		provider_id TEXT UNIQUE,
		full_name TEXT NOT NULL DEFAULT ''
	)`).Error)

	ctx := context.Background()
	require.NoError(t, repo.Verify(ctx))
	assert.False(t, repo.SupportsOrganizations())

	user := &domain.User{ExternalUserID: strPtr("p-1"), Email: strPtr("c@x.com"), DisplayName: "Custom"}
	require.NoError(t, repo.Create(ctx, user))

	got, err := repo.FindByEmail(ctx, "c@x.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, "Custom", got.DisplayName)

	var mail string
	require.NoError(t, conn.Raw("SELECT mail FROM accounts WHERE provider_id = ?", "p-1").Scan(&mail).Error)
	assert.Equal(t, "c@x.com", mail)
}

func TestVerifyReportsMissingSchema(t *testing.T) {
	ctx := context.Background()

	repo, _ := newTestRepo(t, config.DefaultBridge())
	var cfgErr *config.ConfigurationError
	require.ErrorAs(t, repo.Verify(ctx), &cfgErr)
	assert.Equal(t, "user_store.table", cfgErr.Field)

	cfg := config.DefaultBridge()
	cfg.UserStore.ExternalIDColumn = "auth0_id"
	repo, conn := newTestRepo(t, cfg)
	require.NoError(t, conn.AutoMigrate(&domain.User{}))
	require.ErrorAs(t, repo.Verify(ctx), &cfgErr)
	assert.Equal(t, "user_store.external_id_column", cfgErr.Field)
}

func TestVerifyRequiresOrganizationColumnForBusinessLinking(t *testing.T) {
	cfg := config.DefaultBridge()
	cfg.DefaultMode = identitydomain.ModeBusiness
	cfg.UserStore.OrganizationColumn = "org_ref"

	repo, conn := newTestRepo(t, cfg)
	require.NoError(t, conn.AutoMigrate(&domain.User{}))

	var cfgErr *config.ConfigurationError
	require.ErrorAs(t, repo.Verify(context.Background()), &cfgErr)
	assert.Equal(t, "user_store.organization_column", cfgErr.Field)
}

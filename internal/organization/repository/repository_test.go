package repository

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/authbridge/internal/config"
	"github.com/smallbiznis/authbridge/internal/organization/domain"
	"github.com/smallbiznis/authbridge/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.Organization{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	repo := NewRepository(conn, config.DefaultBridge(), node)
	require.NoError(t, repo.Verify(context.Background()))
	return repo
}

func TestOrganizationCreateFindSave(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	org := &domain.Organization{ExternalOrganizationID: "org1", Name: "Acme", Slug: "acme"}
	require.NoError(t, repo.Create(ctx, org))
	assert.NotZero(t, org.ID)

	found, err := repo.FindByExternalID(ctx, "org1")
	require.NoError(t, err)
	assert.Equal(t, org.ID, found.ID)
	assert.Equal(t, "Acme", found.Name)
	assert.Equal(t, "acme", found.Slug)

	found.Name = "Acme Corp"
	require.NoError(t, repo.Save(ctx, found))

	again, err := repo.FindByExternalID(ctx, "org1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", again.Name)

	_, err = repo.FindByExternalID(ctx, "org2")
	assert.ErrorIs(t, err, domain.ErrOrganizationNotFound)
}

func TestOrganizationDuplicateExternalID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &domain.Organization{ExternalOrganizationID: "org1", Name: "Acme"}))
	err := repo.Create(ctx, &domain.Organization{ExternalOrganizationID: "org1", Name: "Other"})
	assert.ErrorIs(t, err, domain.ErrOrganizationExists)
}

func TestOrganizationSaveMissingRow(t *testing.T) {
	repo := newTestRepo(t)
	err := repo.Save(context.Background(), &domain.Organization{ID: 42, Name: "Ghost"})
	assert.ErrorIs(t, err, domain.ErrOrganizationNotFound)
}

func TestOrganizationVerifyMissingTable(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	err = NewRepository(conn, config.DefaultBridge(), node).Verify(context.Background())
	var cfgErr *config.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "org_store.table", cfgErr.Field)
}

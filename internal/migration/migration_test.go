package migration

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/smallbiznis/authbridge/internal/config"
	"github.com/smallbiznis/authbridge/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name()] = true
	}
	for name := range names {
		if strings.HasSuffix(name, ".up.sql") {
			assert.True(t, names[strings.TrimSuffix(name, ".up.sql")+".down.sql"], "missing down for %s", name)
		}
	}
}

func TestApplyAutoMigratesNonPostgres(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)

	cfg := config.Config{DBType: "sqlite", DBAutoMigrate: true, Bridge: config.DefaultBridge()}
	require.NoError(t, Apply(conn, cfg, zap.NewNop()))

	m := conn.Migrator()
	assert.True(t, m.HasTable("users"))
	assert.True(t, m.HasTable("organizations"))
	assert.True(t, m.HasColumn("users", "stytch_user_id"))
	assert.True(t, m.HasColumn("organizations", "stytch_organization_id"))
}

func TestApplySkipsCustomMapping(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)

	bridge := config.DefaultBridge()
	bridge.UserStore.Table = "accounts"
	cfg := config.Config{DBType: "sqlite", DBAutoMigrate: true, Bridge: bridge}
	require.NoError(t, Apply(conn, cfg, zap.NewNop()))
	assert.False(t, conn.Migrator().HasTable("users"))

	cfg = config.Config{DBType: "sqlite", DBAutoMigrate: false, Bridge: config.DefaultBridge()}
	require.NoError(t, Apply(conn, cfg, zap.NewNop()))
	assert.False(t, conn.Migrator().HasTable("users"))
}

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	identitydomain "github.com/smallbiznis/authbridge/internal/identity/domain"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBridgeDefaults(t *testing.T) {
	t.Setenv("STYTCH_PROJECT_ID", "project-test-123")
	t.Setenv("STYTCH_SECRET", "secret")

	cfg := LoadBridge()

	assert.Equal(t, "project-test-123", cfg.ProjectID)
	assert.Equal(t, 600*time.Second, cfg.Timeout)
	assert.Equal(t, "stytch_session", cfg.SessionCookieName)
	assert.Equal(t, "stytch_session_jwt", cfg.JWTCookieName)
	assert.Equal(t, identitydomain.ModeConsumer, cfg.DefaultMode)
	assert.Equal(t, time.Hour, cfg.SessionTimeout)
	assert.True(t, cfg.OrganizationEnabled)
	assert.Equal(t, "users", cfg.UserStore.Table)
	assert.Equal(t, "stytch_user_id", cfg.UserStore.ExternalIDColumn)
	assert.Equal(t, "organizations", cfg.OrgStore.Table)
	assert.NoError(t, cfg.Validate())
}

func TestLoadBridgeOverrides(t *testing.T) {
	t.Setenv("STYTCH_PROJECT_ID", "project-live-1")
	t.Setenv("STYTCH_SECRET", "secret")
	t.Setenv("STYTCH_DEFAULT_AUTH_METHOD", "business")
	t.Setenv("STYTCH_SESSION_TIMEOUT", "120")
	t.Setenv("STYTCH_ORGANIZATION_ENABLED", "false")
	t.Setenv("STYTCH_USER_EMAIL_COLUMN", "email_address")
	t.Setenv("STYTCH_CUSTOM_BASE_URL", "https://auth.example.com/")

	cfg := LoadBridge()

	assert.Equal(t, identitydomain.ModeBusiness, cfg.DefaultMode)
	assert.Equal(t, 2*time.Minute, cfg.SessionTimeout)
	assert.False(t, cfg.OrganizationEnabled)
	assert.Equal(t, "email_address", cfg.UserStore.EmailColumn)
	assert.Equal(t, "https://auth.example.com", cfg.CustomBaseURL)
	assert.False(t, cfg.LinksOrganizations(identitydomain.ModeBusiness))
}

func TestValidate(t *testing.T) {
	valid := DefaultBridge()
	valid.ProjectID = "project-test-1"
	valid.Secret = "secret"
	require.NoError(t, valid.Validate())

	cases := map[string]func(*BridgeConfig){
		"project_id":       func(c *BridgeConfig) { c.ProjectID = "" },
		"secret":           func(c *BridgeConfig) { c.Secret = " " },
		"default_mode":     func(c *BridgeConfig) { c.DefaultMode = "enterprise" },
		"timeout":          func(c *BridgeConfig) { c.Timeout = 0 },
		"session_timeout":  func(c *BridgeConfig) { c.SessionTimeout = -time.Second },
		"user_store.table": func(c *BridgeConfig) { c.UserStore.Table = "" },
		"org_store.table": func(c *BridgeConfig) {
			c.DefaultMode = identitydomain.ModeBusiness
			c.OrgStore.Table = ""
		},
	}

	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			cfg := valid
			mutate(&cfg)
			err := cfg.Validate()

			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "expected configuration error, got %v", err)
			assert.Equal(t, field, cfgErr.Field)
		})
	}
}

func TestApplyOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "authbridge.yml")
	content := []byte(`
stytch:
  project_id: project-test-file
  secret: file-secret
  timeout: 30
  default_auth_method: b2b
  user:
    table: accounts
  organization:
    enabled: false
    name_column: display_name
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg := DefaultBridge()
	applyOverlay(v, &cfg)

	assert.Equal(t, "project-test-file", cfg.ProjectID)
	assert.Equal(t, "file-secret", cfg.Secret)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, identitydomain.ModeBusiness, cfg.DefaultMode)
	assert.Equal(t, "accounts", cfg.UserStore.Table)
	assert.Equal(t, "email", cfg.UserStore.EmailColumn)
	assert.False(t, cfg.OrganizationEnabled)
	assert.Equal(t, "display_name", cfg.OrgStore.NameColumn)
}

func TestOverlayFileMissingIsIgnored(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AUTHBRIDGE_CONFIG_FILE", "")

	cfg := DefaultBridge()
	require.NoError(t, overlayFile(&cfg))
	assert.Equal(t, DefaultBridge(), cfg)
}

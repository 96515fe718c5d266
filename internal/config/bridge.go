package config

import (
	"strings"
	"time"

	identitydomain "github.com/smallbiznis/authbridge/internal/identity/domain"
)

const (
	DefaultTimeout           = 600 * time.Second
	DefaultSessionTimeout    = 3600 * time.Second
	DefaultRememberDuration  = 30 * 24 * time.Hour
	DefaultSessionCookieName = "stytch_session"
	DefaultJWTCookieName     = "stytch_session_jwt"
)

// BridgeConfig is built once at startup and handed to each bridge component.
type BridgeConfig struct {
	ProjectID     string
	Secret        string
	CustomBaseURL string
	Timeout       time.Duration

	SessionCookieName string
	JWTCookieName     string

	DefaultMode         identitydomain.Mode
	SessionTimeout      time.Duration
	RememberDuration    time.Duration
	OrganizationEnabled bool

	UserStore UserStoreConfig
	OrgStore  OrgStoreConfig
}

// UserStoreConfig locates the local user table and its columns.
type UserStoreConfig struct {
	Table              string
	IDColumn           string
	EmailColumn        string
	ExternalIDColumn   string
	NameColumn         string
	OrganizationColumn string
}

// OrgStoreConfig locates the local organization table and its columns.
type OrgStoreConfig struct {
	Table            string
	IDColumn         string
	ExternalIDColumn string
	NameColumn       string
	SlugColumn       string
}

func DefaultUserStore() UserStoreConfig {
	return UserStoreConfig{
		Table:              "users",
		IDColumn:           "id",
		EmailColumn:        "email",
		ExternalIDColumn:   "stytch_user_id",
		NameColumn:         "name",
		OrganizationColumn: "stytch_organization_id",
	}
}

func DefaultOrgStore() OrgStoreConfig {
	return OrgStoreConfig{
		Table:            "organizations",
		IDColumn:         "id",
		ExternalIDColumn: "stytch_organization_id",
		NameColumn:       "name",
		SlugColumn:       "slug",
	}
}

// DefaultBridge returns the documented defaults without credentials.
func DefaultBridge() BridgeConfig {
	return BridgeConfig{
		Timeout:             DefaultTimeout,
		SessionCookieName:   DefaultSessionCookieName,
		JWTCookieName:       DefaultJWTCookieName,
		DefaultMode:         identitydomain.ModeConsumer,
		SessionTimeout:      DefaultSessionTimeout,
		RememberDuration:    DefaultRememberDuration,
		OrganizationEnabled: true,
		UserStore:           DefaultUserStore(),
		OrgStore:            DefaultOrgStore(),
	}
}

// LoadBridge reads STYTCH_* environment variables over DefaultBridge.
// An unparseable mode is kept verbatim so Validate can report it.
func LoadBridge() BridgeConfig {
	def := DefaultBridge()

	mode := identitydomain.Mode(strings.TrimSpace(getenv("STYTCH_DEFAULT_AUTH_METHOD", def.DefaultMode.String())))
	if parsed, err := identitydomain.ParseMode(mode.String()); err == nil {
		mode = parsed
	}

	return BridgeConfig{
		ProjectID:           getenv("STYTCH_PROJECT_ID", ""),
		Secret:              getenv("STYTCH_SECRET", ""),
		CustomBaseURL:       strings.TrimRight(getenv("STYTCH_CUSTOM_BASE_URL", ""), "/"),
		Timeout:             getenvSeconds("STYTCH_TIMEOUT", def.Timeout),
		SessionCookieName:   getenv("STYTCH_SESSION_COOKIE_NAME", def.SessionCookieName),
		JWTCookieName:       getenv("STYTCH_JWT_COOKIE_NAME", def.JWTCookieName),
		DefaultMode:         mode,
		SessionTimeout:      getenvSeconds("STYTCH_SESSION_TIMEOUT", def.SessionTimeout),
		RememberDuration:    getenvSeconds("STYTCH_REMEMBER_DURATION", def.RememberDuration),
		OrganizationEnabled: getenvBool("STYTCH_ORGANIZATION_ENABLED", def.OrganizationEnabled),
		UserStore: UserStoreConfig{
			Table:              getenv("STYTCH_USER_TABLE", def.UserStore.Table),
			IDColumn:           getenv("STYTCH_USER_ID_COLUMN", def.UserStore.IDColumn),
			EmailColumn:        getenv("STYTCH_USER_EMAIL_COLUMN", def.UserStore.EmailColumn),
			ExternalIDColumn:   getenv("STYTCH_USER_EXTERNAL_ID_COLUMN", def.UserStore.ExternalIDColumn),
			NameColumn:         getenv("STYTCH_USER_NAME_COLUMN", def.UserStore.NameColumn),
			OrganizationColumn: getenv("STYTCH_USER_ORGANIZATION_COLUMN", def.UserStore.OrganizationColumn),
		},
		OrgStore: OrgStoreConfig{
			Table:            getenv("STYTCH_ORGANIZATION_TABLE", def.OrgStore.Table),
			IDColumn:         getenv("STYTCH_ORGANIZATION_ID_COLUMN", def.OrgStore.IDColumn),
			ExternalIDColumn: getenv("STYTCH_ORGANIZATION_EXTERNAL_ID_COLUMN", def.OrgStore.ExternalIDColumn),
			NameColumn:       getenv("STYTCH_ORGANIZATION_NAME_COLUMN", def.OrgStore.NameColumn),
			SlugColumn:       getenv("STYTCH_ORGANIZATION_SLUG_COLUMN", def.OrgStore.SlugColumn),
		},
	}
}

// Validate reports the first invalid setting as a *ConfigurationError.
func (c BridgeConfig) Validate() error {
	if strings.TrimSpace(c.ProjectID) == "" {
		return &ConfigurationError{Field: "project_id", Reason: "is required"}
	}
	if strings.TrimSpace(c.Secret) == "" {
		return &ConfigurationError{Field: "secret", Reason: "is required"}
	}
	if _, err := identitydomain.ParseMode(c.DefaultMode.String()); err != nil {
		return &ConfigurationError{Field: "default_mode", Reason: err.Error()}
	}
	if c.Timeout <= 0 {
		return &ConfigurationError{Field: "timeout", Reason: "must be positive"}
	}
	if c.SessionTimeout <= 0 {
		return &ConfigurationError{Field: "session_timeout", Reason: "must be positive"}
	}
	if strings.TrimSpace(c.SessionCookieName) == "" || strings.TrimSpace(c.JWTCookieName) == "" {
		return &ConfigurationError{Field: "cookie_name", Reason: "must not be empty"}
	}

	required := map[string]string{
		"user_store.table":              c.UserStore.Table,
		"user_store.id_column":          c.UserStore.IDColumn,
		"user_store.email_column":       c.UserStore.EmailColumn,
		"user_store.external_id_column": c.UserStore.ExternalIDColumn,
		"user_store.name_column":        c.UserStore.NameColumn,
	}
	if c.DefaultMode == identitydomain.ModeBusiness && c.OrganizationEnabled {
		required["user_store.organization_column"] = c.UserStore.OrganizationColumn
		required["org_store.table"] = c.OrgStore.Table
		required["org_store.id_column"] = c.OrgStore.IDColumn
		required["org_store.external_id_column"] = c.OrgStore.ExternalIDColumn
		required["org_store.name_column"] = c.OrgStore.NameColumn
	}
	for _, field := range sortedKeys(required) {
		if strings.TrimSpace(required[field]) == "" {
			return &ConfigurationError{Field: field, Reason: "must not be empty"}
		}
	}
	return nil
}

// LinksOrganizations reports whether business logins attach organizations.
func (c BridgeConfig) LinksOrganizations(mode identitydomain.Mode) bool {
	return mode == identitydomain.ModeBusiness && c.OrganizationEnabled
}

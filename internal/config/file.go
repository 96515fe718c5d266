package config

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	identitydomain "github.com/smallbiznis/authbridge/internal/identity/domain"
	"github.com/spf13/viper"
)

// overlayFile applies authbridge.yml (or AUTHBRIDGE_CONFIG_FILE) on top of the
// environment. A missing file leaves the bridge config untouched.
func overlayFile(b *BridgeConfig) error {
	v := viper.New()

	if path := strings.TrimSpace(os.Getenv("AUTHBRIDGE_CONFIG_FILE")); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("authbridge")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/authbridge")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("AUTHBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return &ConfigurationError{Field: "config_file", Reason: "could not be read", Err: err}
	}

	applyOverlay(v, b)
	log.Printf("[authbridge] config overlay loaded from %s", v.ConfigFileUsed())
	return nil
}

func applyOverlay(v *viper.Viper, b *BridgeConfig) {
	setString(v, "stytch.project_id", &b.ProjectID)
	setString(v, "stytch.secret", &b.Secret)
	setString(v, "stytch.custom_base_url", &b.CustomBaseURL)
	b.CustomBaseURL = strings.TrimRight(b.CustomBaseURL, "/")
	setSeconds(v, "stytch.timeout", &b.Timeout)
	setString(v, "stytch.session_cookie_name", &b.SessionCookieName)
	setString(v, "stytch.jwt_cookie_name", &b.JWTCookieName)
	setSeconds(v, "stytch.session_timeout", &b.SessionTimeout)
	setSeconds(v, "stytch.remember_duration", &b.RememberDuration)

	if v.IsSet("stytch.default_auth_method") {
		raw := v.GetString("stytch.default_auth_method")
		if mode, err := identitydomain.ParseMode(raw); err == nil {
			b.DefaultMode = mode
		} else {
			b.DefaultMode = identitydomain.Mode(raw)
		}
	}

	setString(v, "stytch.user.table", &b.UserStore.Table)
	setString(v, "stytch.user.id_column", &b.UserStore.IDColumn)
	setString(v, "stytch.user.email_column", &b.UserStore.EmailColumn)
	setString(v, "stytch.user.external_id_column", &b.UserStore.ExternalIDColumn)
	setString(v, "stytch.user.name_column", &b.UserStore.NameColumn)
	setString(v, "stytch.user.organization_column", &b.UserStore.OrganizationColumn)

	if v.IsSet("stytch.organization.enabled") {
		b.OrganizationEnabled = v.GetBool("stytch.organization.enabled")
	}
	setString(v, "stytch.organization.table", &b.OrgStore.Table)
	setString(v, "stytch.organization.id_column", &b.OrgStore.IDColumn)
	setString(v, "stytch.organization.external_id_column", &b.OrgStore.ExternalIDColumn)
	setString(v, "stytch.organization.name_column", &b.OrgStore.NameColumn)
	setString(v, "stytch.organization.slug_column", &b.OrgStore.SlugColumn)
}

func setString(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		*dst = strings.TrimSpace(v.GetString(key))
	}
}

func setSeconds(v *viper.Viper, key string, dst *time.Duration) {
	if v.IsSet(key) {
		*dst = time.Duration(v.GetInt64(key)) * time.Second
	}
}

package migration

import (
	"github.com/smallbiznis/authbridge/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(Apply),
)

// Apply creates the bridge tables when auto-migration is on. Hosts that map
// the bridge onto their own tables manage their schema themselves.
func Apply(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	if !cfg.DBAutoMigrate {
		return nil
	}
	if cfg.Bridge.UserStore != config.DefaultUserStore() || cfg.Bridge.OrgStore != config.DefaultOrgStore() {
		log.Info("custom store mapping configured, skipping migrations")
		return nil
	}

	if cfg.DBType != "postgres" {
		return AutoMigrate(conn)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}

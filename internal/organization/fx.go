package organization

import (
	"context"

	"github.com/smallbiznis/authbridge/internal/config"
	"github.com/smallbiznis/authbridge/internal/organization/domain"
	"github.com/smallbiznis/authbridge/internal/organization/repository"
	"github.com/smallbiznis/authbridge/internal/organization/service"
	"go.uber.org/fx"
)

var Module = fx.Module("organization.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
	fx.Invoke(func(lc fx.Lifecycle, cfg config.BridgeConfig, repo domain.Repository) {
		if !cfg.LinksOrganizations(cfg.DefaultMode) {
			return
		}
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return repo.Verify(ctx)
			},
		})
	}),
)

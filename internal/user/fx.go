package user

import (
	"context"

	"github.com/smallbiznis/authbridge/internal/user/domain"
	"github.com/smallbiznis/authbridge/internal/user/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("user",
	fx.Provide(repository.New),
	fx.Invoke(func(lc fx.Lifecycle, repo domain.Repository) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return repo.Verify(ctx)
			},
		})
	}),
)

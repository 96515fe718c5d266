package bridge

import (
	"github.com/smallbiznis/authbridge/internal/reconcile"
	"go.uber.org/fx"
)

var Module = fx.Module("bridge",
	fx.Provide(
		NewGuard,
		func(r *reconcile.Reconciler) Reconciler { return r },
	),
)

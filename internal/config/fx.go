package config

import "go.uber.org/fx"

var Module = fx.Module("config",
	fx.Provide(
		Load,
		func(cfg Config) BridgeConfig { return cfg.Bridge },
	),
)

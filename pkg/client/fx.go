package client

import (
	"context"

	"go.uber.org/fx"

	"tanjun/pkg/config"
	"tanjun/pkg/limiter"
	"tanjun/pkg/logger"
)

// Module provides the client for fx dependency injection.
var Module = fx.Module("client",
	fx.Provide(ProvideClient),
)

// ProvideClient builds the client from configuration, binds the gateway
// session and hooks the client lifecycle into the app lifecycle.
func ProvideClient(lc fx.Lifecycle, log *logger.Logger, cfg *config.Config, cooldowns *limiter.CooldownManager, concurrency *limiter.ConcurrencyLimiter) (*Client, error) {
	c := FromConfig(log, cfg, cooldowns, concurrency)
	if err := c.Connect(cfg.Discord.Token); err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return c.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return c.Close(ctx)
		},
	})
	return c, nil
}

package limiter

import (
	"context"

	"go.uber.org/fx"

	"tanjun/pkg/config"
	"tanjun/pkg/logger"
)

// Module provides the limiter managers for fx dependency injection.
var Module = fx.Module("limiter",
	fx.Provide(ProvideManagers),
)

// ProvideManagers builds the cooldown manager and concurrency limiter
// from configuration and binds the backend's lifetime to the app.
func ProvideManagers(lc fx.Lifecycle, log *logger.Logger, cfg *config.Config) (*CooldownManager, *ConcurrencyLimiter, error) {
	stores, err := NewStores(context.Background(), log, &StoreConfig{
		Backend: Backend(cfg.Limiter.Backend),
		Redis: RedisConfig{
			Addr:     cfg.Limiter.Redis.Addr,
			Password: cfg.Limiter.Redis.Password,
			DB:       cfg.Limiter.Redis.DB,
			Prefix:   cfg.Limiter.Redis.Prefix,
		},
	})
	if err != nil {
		return nil, nil, err
	}

	cooldowns := NewCooldownManager(stores.Cooldown)
	concurrency := NewConcurrencyLimiter(stores.Concurrency)
	ApplyBuckets(cooldowns, concurrency, &cfg.Limiter)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return stores.Close()
		},
	})

	return cooldowns, concurrency, nil
}

// ApplyBuckets applies configured buckets to the managers. It is also
// used by the config watcher to re-apply buckets at runtime.
func ApplyBuckets(cooldowns *CooldownManager, concurrency *ConcurrencyLimiter, cfg *config.LimiterConfig) {
	for name, b := range cfg.Cooldowns {
		resource, err := ParseResource(b.Resource)
		if err != nil {
			continue
		}
		if b.Limit == -1 {
			cooldowns.DisableBucket(name)
			continue
		}
		cooldowns.SetBucket(name, resource, b.Limit, b.Window())
	}
	for name, b := range cfg.Concurrency {
		resource, err := ParseResource(b.Resource)
		if err != nil {
			continue
		}
		if b.Limit == -1 {
			concurrency.DisableBucket(name)
			continue
		}
		concurrency.SetBucket(name, resource, b.Limit)
	}
}

package limiter

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tanjun/pkg/logger"
)

// Backend selects the limiter state backend.
type Backend string

const (
	BackendLocal Backend = "local"
	BackendRedis Backend = "redis"
)

// StoreConfig configures the limiter backend.
type StoreConfig struct {
	Backend Backend
	Redis   RedisConfig
}

// Stores bundles the cooldown and concurrency backends plus an optional
// closer for shared connections.
type Stores struct {
	Cooldown    CooldownStore
	Concurrency ConcurrencyStore
	closer      func() error
}

// Close releases any shared backend connections.
func (s *Stores) Close() error {
	if s.closer != nil {
		return s.closer()
	}
	return nil
}

// NewStores creates the limiter backends from configuration, defaulting
// to in-memory state.
func NewStores(ctx context.Context, log *logger.Logger, cfg *StoreConfig) (*Stores, error) {
	switch cfg.Backend {
	case BackendLocal, "":
		cooldowns := NewLocalCooldownStore()
		stopJanitor := cooldowns.StartJanitor(5 * time.Minute)
		return &Stores{
			Cooldown:    cooldowns,
			Concurrency: NewLocalConcurrencyStore(),
			closer: func() error {
				stopJanitor()
				return nil
			},
		}, nil

	case BackendRedis:
		if cfg.Redis.Addr == "" {
			return nil, fmt.Errorf("redis address is required for redis limiter backend")
		}
		shared, err := NewRedisStores(ctx, &cfg.Redis)
		if err != nil {
			return nil, err
		}
		log.Info("Using redis limiter backend", zap.String("addr", cfg.Redis.Addr))
		return &Stores{
			Cooldown:    shared.Cooldown(),
			Concurrency: shared.Concurrency(),
			closer:      shared.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown limiter backend: %s", cfg.Backend)
	}
}

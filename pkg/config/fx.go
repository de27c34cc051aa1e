package config

import (
	"go.uber.org/fx"

	"tanjun/pkg/logger"
)

// Module provides configuration for fx dependency injection, plus the
// logger built from the loaded logger section.
var Module = fx.Module("config",
	fx.Provide(ProvideLoader),
	fx.Provide(ProvideConfig),
	fx.Provide(ProvideLogger),
)

// ProvideLoader provides a configuration loader.
func ProvideLoader() *Loader {
	return NewLoader()
}

// ProvideConfig provides loaded and validated configuration.
func ProvideConfig(loader *Loader) (*Config, error) {
	cfg, err := loader.Load("")
	if err != nil {
		return nil, err
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ProvideLogger provides the logger configured by the logger section.
func ProvideLogger(cfg *Config, lc fx.Lifecycle) (*logger.Logger, error) {
	return logger.ProvideLoggerFromConfig(cfg.LoggerSettings(), lc)
}

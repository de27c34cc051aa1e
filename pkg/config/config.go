// Package config provides configuration loading for the framework:
// gateway credentials, message prefixes, execution defaults and limiter
// buckets, loaded with Viper from file and environment.
package config

import (
	"time"

	"tanjun/pkg/logger"
)

// Config is the root configuration.
type Config struct {
	Discord DiscordConfig `mapstructure:"discord"`
	Client  ClientConfig  `mapstructure:"client"`
	Limiter LimiterConfig `mapstructure:"limiter"`
	Logger  LoggerConfig  `mapstructure:"logger"`
	Locales LocalesConfig `mapstructure:"locales"`
}

// DiscordConfig configures the gateway connection.
type DiscordConfig struct {
	// Token is the bot token.
	Token string `mapstructure:"token"`
	// OwnerIDs are the bot owners, used by the stock owner check.
	OwnerIDs []string `mapstructure:"owner_ids"`
}

// ClientConfig configures dispatch behaviour.
type ClientConfig struct {
	// Prefixes are the message command prefixes tried in order.
	Prefixes []string `mapstructure:"prefixes"`
	// MentionPrefix also accepts a leading bot mention as prefix.
	MentionPrefix bool `mapstructure:"mention_prefix"`
	// AutoDeferMS is the auto-deferral timeout in milliseconds; 0
	// disables auto-deferral.
	AutoDeferMS int `mapstructure:"auto_defer_ms"`
	// DefaultEphemeral is the client-level ephemeral default.
	DefaultEphemeral bool `mapstructure:"default_ephemeral"`
	// DeclareGuildID registers slash commands against one guild
	// instead of globally; useful during development.
	DeclareGuildID string `mapstructure:"declare_guild_id"`
}

// AutoDefer returns the auto-deferral timeout as a duration.
func (c ClientConfig) AutoDefer() time.Duration {
	return time.Duration(c.AutoDeferMS) * time.Millisecond
}

// BucketConfig configures one named limiter bucket.
type BucketConfig struct {
	// Resource is the counted entity: user, member, channel,
	// parent_channel, top_role, guild or global.
	Resource string `mapstructure:"resource"`
	// Limit is the allowed count; -1 disables the bucket.
	Limit int `mapstructure:"limit"`
	// WindowSeconds is the sliding window length (cooldowns only).
	WindowSeconds int `mapstructure:"window_seconds"`
}

// Window returns the bucket window as a duration.
func (b BucketConfig) Window() time.Duration {
	return time.Duration(b.WindowSeconds) * time.Second
}

// LimiterConfig configures the limiter subsystem.
type LimiterConfig struct {
	// Backend selects the state backend: local or redis.
	Backend string `mapstructure:"backend"`
	// Redis configures the redis backend.
	Redis RedisConfig `mapstructure:"redis"`
	// Cooldowns are the named cooldown buckets.
	Cooldowns map[string]BucketConfig `mapstructure:"cooldowns"`
	// Concurrency are the named concurrency buckets.
	Concurrency map[string]BucketConfig `mapstructure:"concurrency"`
}

// RedisConfig configures the shared Redis connection.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// LoggerConfig configures logging.
type LoggerConfig struct {
	Level       string `mapstructure:"level"`
	OutputPath  string `mapstructure:"output_path"`
	MaxSize     int    `mapstructure:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAge      int    `mapstructure:"max_age"`
	Compress    bool   `mapstructure:"compress"`
	Development bool   `mapstructure:"development"`
}

// LocalesConfig configures the localisation store.
type LocalesConfig struct {
	// Dir holds per-locale YAML files ("en-US.yaml").
	Dir string `mapstructure:"dir"`
	// Default is the fallback locale.
	Default string `mapstructure:"default"`
}

// DefaultConfig returns the configuration defaults.
func DefaultConfig() *Config {
	return &Config{
		Client: ClientConfig{
			Prefixes:    []string{"!"},
			AutoDeferMS: 2500,
		},
		Limiter: LimiterConfig{
			Backend: "local",
		},
		Logger: LoggerConfig{
			Level:    "info",
			Compress: true,
		},
		Locales: LocalesConfig{
			Default: "en-US",
		},
	}
}

// LoggerSettings converts the logger section into logger.Config.
func (c *Config) LoggerSettings() *logger.Config {
	base := logger.DefaultConfig()
	if c.Logger.Level != "" {
		base.Level = logger.Level(c.Logger.Level)
	}
	if c.Logger.OutputPath != "" {
		base.OutputPath = c.Logger.OutputPath
	}
	if c.Logger.MaxSize > 0 {
		base.MaxSize = c.Logger.MaxSize
	}
	if c.Logger.MaxBackups > 0 {
		base.MaxBackups = c.Logger.MaxBackups
	}
	if c.Logger.MaxAge > 0 {
		base.MaxAge = c.Logger.MaxAge
	}
	base.Compress = c.Logger.Compress
	base.Development = c.Logger.Development
	return base
}

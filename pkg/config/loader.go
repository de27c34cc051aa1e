package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ConfigPathEnv overrides the config file location globally.
const ConfigPathEnv = "TANJUN_CONFIG_FILE"

// Loader handles configuration loading with Viper.
type Loader struct {
	viper *viper.Viper
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".tanjun"))
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("TANJUN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{viper: v}
}

// Load loads the configuration from file and environment variables.
// If configPath is empty, default paths are searched; a missing file is
// not an error, the defaults plus environment apply.
func (l *Loader) Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if strings.TrimSpace(configPath) == "" {
		configPath = strings.TrimSpace(os.Getenv(ConfigPathEnv))
	}
	if strings.TrimSpace(configPath) != "" {
		l.viper.SetConfigFile(configPath)
	}

	if err := l.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if err := l.viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// The token is secret-shaped: let the environment win even without
	// the config key being present in the file.
	if tok := os.Getenv("TANJUN_DISCORD_TOKEN"); tok != "" {
		cfg.Discord.Token = tok
	}

	return cfg, nil
}

// ConfigFileUsed returns the resolved config file path, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.viper.ConfigFileUsed()
}

const defaultConfigTemplate = `# tanjun configuration
discord:
  # token: ""            # or set TANJUN_DISCORD_TOKEN
  owner_ids: []

client:
  prefixes: ["!"]
  mention_prefix: false
  auto_defer_ms: 2500
  default_ephemeral: false
  # declare_guild_id: "" # declare slash commands against one guild

limiter:
  backend: local          # local or redis
  # redis:
  #   addr: localhost:6379
  cooldowns:
    default:
      resource: user
      limit: 2
      window_seconds: 5
  concurrency:
    default:
      resource: user
      limit: 1

logger:
  level: info

locales:
  default: en-US
  # dir: ./locales
`

// EnsureDefaultFile writes a commented starter config to
// ~/.tanjun/config.yaml when no config file exists anywhere in the
// search paths. It returns the created path, or "" when a config was
// already present.
func EnsureDefaultFile() (string, error) {
	if os.Getenv(ConfigPathEnv) != "" {
		return "", nil
	}
	if used := NewLoader().probeConfigFile(); used != "" {
		return "", nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	path := filepath.Join(home, ".tanjun", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0600); err != nil {
		return "", fmt.Errorf("writing default config: %w", err)
	}
	return path, nil
}

// probeConfigFile reports the config file the search paths resolve to,
// without keeping any loaded state.
func (l *Loader) probeConfigFile() string {
	if err := l.viper.ReadInConfig(); err != nil {
		return ""
	}
	return l.viper.ConfigFileUsed()
}

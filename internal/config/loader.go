package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "ROOMSYNC"

// Loader handles configuration loading with Viper.
type Loader struct {
	v          *viper.Viper
	configFile string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v: viper.New(),
	}
}

// SetConfigFile sets an explicit config file path.
func (l *Loader) SetConfigFile(path string) {
	l.configFile = path
}

// Load loads configuration with proper precedence:
// defaults < config file < env vars < CLI flags
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	l.setupViper(cfg)

	if err := l.loadConfigFile(); err != nil {
		// Config file is optional, only error if explicitly specified
		if l.configFile != "" {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Viper's Unmarshal doesn't always merge env vars into nested structs.
	l.applyEnvOverrides(cfg)

	cfg.Server.URL = strings.TrimRight(strings.TrimSpace(cfg.Server.URL), "/")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// ConfigDir returns the roomsync config directory, honoring XDG_CONFIG_HOME.
func ConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "roomsync")
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "roomsync")
}

// setupViper configures Viper with defaults and environment bindings.
func (l *Loader) setupViper(cfg *Config) {
	v := l.v

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath(ConfigDir())
	v.AddConfigPath(".")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	l.setDefaults(cfg)

	bindEnvVars(v)

	v.AutomaticEnv()
}

// setDefaults sets all default values in Viper.
func (l *Loader) setDefaults(cfg *Config) {
	v := l.v

	// Server
	v.SetDefault("server.url", cfg.Server.URL)
	v.SetDefault("server.timeout", cfg.Server.Timeout)

	// Auth
	v.SetDefault("auth.user_id", cfg.Auth.UserID)
	v.SetDefault("auth.token", cfg.Auth.Token)
	v.SetDefault("auth.username", cfg.Auth.Username)

	// Sync
	v.SetDefault("sync.history_count", cfg.Sync.HistoryCount)
	v.SetDefault("sync.poll_interval", cfg.Sync.PollInterval)
	v.SetDefault("sync.stream_retry_interval", cfg.Sync.StreamRetryInterval)
	v.SetDefault("sync.stream_retry_max", cfg.Sync.StreamRetryMax)

	// Search
	v.SetDefault("search.debounce", cfg.Search.Debounce)
	v.SetDefault("search.room_limit", cfg.Search.RoomLimit)
	v.SetDefault("search.global_limit", cfg.Search.GlobalLimit)

	// Navigation
	v.SetDefault("navigation.initial_delay", cfg.Navigation.InitialDelay)
	v.SetDefault("navigation.retry_interval", cfg.Navigation.RetryInterval)
	v.SetDefault("navigation.max_attempts", cfg.Navigation.MaxAttempts)

	// Messages
	v.SetDefault("messages.max_length", cfg.Messages.MaxLength)

	// Logging
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.enable_caller", cfg.Logging.EnableCaller)

	// TUI
	v.SetDefault("tui.show_timestamps", cfg.TUI.ShowTimestamps)
	v.SetDefault("tui.relative_time", cfg.TUI.RelativeTime)
}

// loadConfigFile attempts to load the configuration file.
func (l *Loader) loadConfigFile() error {
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	}

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return err
	}

	return nil
}

// ConfigFileUsed returns the config file that was loaded.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Set sets a Viper value by key. Used to apply CLI flag overrides before Load.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// Viper returns the underlying Viper instance for advanced use.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// LoadFromFile loads configuration from a specific file.
func LoadFromFile(path string) (*Config, error) {
	loader := NewLoader()
	loader.SetConfigFile(path)
	return loader.Load()
}

// LoadDefault loads configuration with default search paths.
func LoadDefault() (*Config, error) {
	return NewLoader().Load()
}

// envKeys lists every key that supports a ROOMSYNC_* override.
var envKeys = []string{
	"server.url",
	"server.timeout",
	"auth.user_id",
	"auth.token",
	"auth.username",
	"sync.history_count",
	"sync.poll_interval",
	"sync.stream_retry_interval",
	"sync.stream_retry_max",
	"search.debounce",
	"search.room_limit",
	"search.global_limit",
	"navigation.initial_delay",
	"navigation.retry_interval",
	"navigation.max_attempts",
	"messages.max_length",
	"logging.level",
	"logging.format",
	"logging.enable_caller",
	"tui.show_timestamps",
	"tui.relative_time",
}

// EnvVar returns the environment variable name for a config key:
// server.url -> ROOMSYNC_SERVER_URL.
func EnvVar(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// bindEnvVars binds environment variables for config keys.
// Viper's Unmarshal has issues with env vars on nested structs unless explicitly bound.
func bindEnvVars(v *viper.Viper) {
	for _, key := range envKeys {
		_ = v.BindEnv(key, EnvVar(key))
	}
}

// applyEnvOverrides copies string settings that Unmarshal may have missed
// when a config file is present.
func (l *Loader) applyEnvOverrides(cfg *Config) {
	v := l.v

	if url := v.GetString("server.url"); url != "" {
		cfg.Server.URL = url
	}
	if userID := v.GetString("auth.user_id"); userID != "" {
		cfg.Auth.UserID = userID
	}
	if token := v.GetString("auth.token"); token != "" {
		cfg.Auth.Token = token
	}
	if username := v.GetString("auth.username"); username != "" {
		cfg.Auth.Username = username
	}
	if level := v.GetString("logging.level"); level != "" && level != "info" {
		cfg.Logging.Level = level
	}
	if format := v.GetString("logging.format"); format != "" && format != "console" {
		cfg.Logging.Format = format
	}
}

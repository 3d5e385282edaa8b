// Package config handles roomsync configuration loading and validation.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the root configuration structure for roomsync.
type Config struct {
	// Server settings
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Auth carries the session credentials injected into every component.
	Auth AuthConfig `yaml:"auth" mapstructure:"auth"`

	// Sync settings for history, stream and poll fallback.
	Sync SyncConfig `yaml:"sync" mapstructure:"sync"`

	// Search settings
	Search SearchConfig `yaml:"search" mapstructure:"search"`

	// Navigation settings for deep links.
	Navigation NavigationConfig `yaml:"navigation" mapstructure:"navigation"`

	// Messages settings for outgoing mutations.
	Messages MessagesConfig `yaml:"messages" mapstructure:"messages"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// TUI settings
	TUI TUIConfig `yaml:"tui" mapstructure:"tui"`
}

// ServerConfig contains chat server settings.
type ServerConfig struct {
	// URL is the chat server base URL (e.g. https://chat.example.com).
	URL string `yaml:"url" mapstructure:"url"`

	// Timeout bounds each REST request.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// AuthConfig contains session credentials.
type AuthConfig struct {
	UserID   string `yaml:"user_id" mapstructure:"user_id"`
	Token    string `yaml:"token" mapstructure:"token"`
	Username string `yaml:"username" mapstructure:"username"`
}

// SyncConfig contains synchronization settings.
type SyncConfig struct {
	// HistoryCount is how many recent messages a history fetch requests.
	HistoryCount int `yaml:"history_count" mapstructure:"history_count"`

	// PollInterval is the fallback poll cadence while the stream is down.
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`

	// StreamRetryInterval re-opens a failed stream after this delay.
	// Zero disables automatic retry.
	StreamRetryInterval time.Duration `yaml:"stream_retry_interval" mapstructure:"stream_retry_interval"`

	// StreamRetryMax caps automatic retries per room. Zero means unbounded.
	StreamRetryMax int `yaml:"stream_retry_max" mapstructure:"stream_retry_max"`
}

// SearchConfig contains search settings.
type SearchConfig struct {
	// Debounce is the quiet period before a query runs.
	Debounce time.Duration `yaml:"debounce" mapstructure:"debounce"`

	// RoomLimit caps in-room results.
	RoomLimit int `yaml:"room_limit" mapstructure:"room_limit"`

	// GlobalLimit caps each global result category.
	GlobalLimit int `yaml:"global_limit" mapstructure:"global_limit"`
}

// NavigationConfig contains deep-link settings.
type NavigationConfig struct {
	// InitialDelay is waited before the first look for the target message.
	InitialDelay time.Duration `yaml:"initial_delay" mapstructure:"initial_delay"`

	// RetryInterval is the fixed backoff between looks.
	RetryInterval time.Duration `yaml:"retry_interval" mapstructure:"retry_interval"`

	// MaxAttempts bounds the number of looks before giving up silently.
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// MessagesConfig contains outgoing message settings.
type MessagesConfig struct {
	// MaxLength is the maximum body length in runes. Zero disables the check.
	MaxLength int `yaml:"max_length" mapstructure:"max_length"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format"`

	// EnableCaller adds caller information to logs.
	EnableCaller bool `yaml:"enable_caller" mapstructure:"enable_caller"`
}

// TUIConfig contains TUI settings.
type TUIConfig struct {
	// ShowTimestamps shows timestamps in the UI.
	ShowTimestamps bool `yaml:"show_timestamps" mapstructure:"show_timestamps"`

	// RelativeTime renders timestamps as "3 minutes ago".
	RelativeTime bool `yaml:"relative_time" mapstructure:"relative_time"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Timeout: 20 * time.Second,
		},
		Sync: SyncConfig{
			HistoryCount: 50,
			PollInterval: 30 * time.Second,
		},
		Search: SearchConfig{
			Debounce:    500 * time.Millisecond,
			RoomLimit:   20,
			GlobalLimit: 5,
		},
		Navigation: NavigationConfig{
			RetryInterval: 500 * time.Millisecond,
			MaxAttempts:   20,
		},
		Messages: MessagesConfig{
			MaxLength: 5000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		TUI: TUIConfig{
			ShowTimestamps: true,
			RelativeTime:   true,
		},
	}
}

// Validate checks if the configuration is valid. Credentials are checked
// separately by RequireSession so that commands like login can run without them.
func (c *Config) Validate() error {
	if c.Server.URL != "" {
		parsed, err := url.Parse(c.Server.URL)
		if err != nil {
			return fmt.Errorf("server.url is invalid: %w", err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("server.url must use http or https")
		}
	}
	if c.Server.Timeout < 0 {
		return fmt.Errorf("server.timeout must not be negative")
	}
	if c.Sync.HistoryCount < 1 {
		return fmt.Errorf("sync.history_count must be at least 1")
	}
	if c.Sync.PollInterval < 10*time.Millisecond {
		return fmt.Errorf("sync.poll_interval must be at least 10ms")
	}
	if c.Sync.StreamRetryInterval < 0 {
		return fmt.Errorf("sync.stream_retry_interval must not be negative")
	}
	if c.Sync.StreamRetryMax < 0 {
		return fmt.Errorf("sync.stream_retry_max must not be negative")
	}
	if c.Search.Debounce < 0 {
		return fmt.Errorf("search.debounce must not be negative")
	}
	if c.Navigation.RetryInterval <= 0 {
		return fmt.Errorf("navigation.retry_interval must be positive")
	}
	if c.Navigation.MaxAttempts < 1 {
		return fmt.Errorf("navigation.max_attempts must be at least 1")
	}
	if c.Messages.MaxLength < 0 {
		return fmt.Errorf("messages.max_length must not be negative")
	}
	return nil
}

// RequireSession checks that a server and credentials are configured.
func (c *Config) RequireSession() error {
	var missing []string
	if strings.TrimSpace(c.Server.URL) == "" {
		missing = append(missing, "server.url")
	}
	if strings.TrimSpace(c.Auth.UserID) == "" {
		missing = append(missing, "auth.user_id")
	}
	if strings.TrimSpace(c.Auth.Token) == "" {
		missing = append(missing, "auth.token")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing %s (set ROOMSYNC_* env vars or run `roomsync login`)", strings.Join(missing, ", "))
	}
	return nil
}

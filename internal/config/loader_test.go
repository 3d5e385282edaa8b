package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, 50, cfg.Sync.HistoryCount)
	require.Equal(t, 30*time.Second, cfg.Sync.PollInterval)
	require.Equal(t, 500*time.Millisecond, cfg.Search.Debounce)
	require.Equal(t, 500*time.Millisecond, cfg.Navigation.RetryInterval)
	require.Zero(t, cfg.Sync.StreamRetryInterval)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad scheme", func(c *Config) { c.Server.URL = "ftp://chat" }, "server.url"},
		{"history count", func(c *Config) { c.Sync.HistoryCount = 0 }, "sync.history_count"},
		{"poll interval", func(c *Config) { c.Sync.PollInterval = time.Millisecond }, "sync.poll_interval"},
		{"retry max", func(c *Config) { c.Sync.StreamRetryMax = -1 }, "sync.stream_retry_max"},
		{"nav attempts", func(c *Config) { c.Navigation.MaxAttempts = 0 }, "navigation.max_attempts"},
		{"nav interval", func(c *Config) { c.Navigation.RetryInterval = 0 }, "navigation.retry_interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRequireSession(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.RequireSession()
	require.Error(t, err)
	require.Contains(t, err.Error(), "server.url")
	require.Contains(t, err.Error(), "auth.token")

	cfg.Server.URL = "https://chat.example"
	cfg.Auth.UserID = "u1"
	cfg.Auth.Token = "tok"
	require.NoError(t, cfg.RequireSession())
}

func TestLoadFromFileWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte(`server:
  url: https://chat.example/
sync:
  poll_interval: 5s
  history_count: 25
search:
  debounce: 250ms
logging:
  level: debug
`)
	require.NoError(t, os.WriteFile(path, body, 0o600))

	t.Setenv("ROOMSYNC_AUTH_TOKEN", "env-token")
	t.Setenv("ROOMSYNC_AUTH_USER_ID", "env-user")
	t.Setenv("ROOMSYNC_LOGGING_FORMAT", "json")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.Equal(t, "https://chat.example", cfg.Server.URL)
	require.Equal(t, 5*time.Second, cfg.Sync.PollInterval)
	require.Equal(t, 25, cfg.Sync.HistoryCount)
	require.Equal(t, 250*time.Millisecond, cfg.Search.Debounce)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, "json", cfg.Logging.Format)
	require.Equal(t, "env-token", cfg.Auth.Token)
	require.Equal(t, "env-user", cfg.Auth.UserID)
}

func TestLoadFromMissingExplicitFileFails(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestEnvVar(t *testing.T) {
	require.Equal(t, "ROOMSYNC_SERVER_URL", EnvVar("server.url"))
	require.Equal(t, "ROOMSYNC_SYNC_STREAM_RETRY_INTERVAL", EnvVar("sync.stream_retry_interval"))
}

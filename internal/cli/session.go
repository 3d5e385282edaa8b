package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tOgg1/roomsync/internal/config"
	"github.com/tOgg1/roomsync/internal/rocketchat"
	"github.com/tOgg1/roomsync/internal/roomsync"
)

// commandContext is cancelled on Ctrl+C or SIGTERM.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// newAnonymousClient builds a client without credentials, for login.
func newAnonymousClient(cfg *config.Config) (*rocketchat.Client, error) {
	if cfg.Server.URL == "" {
		return nil, &PreflightError{
			Message:  "no chat server configured",
			Hint:     "pass --server or set " + config.EnvVar("server.url"),
			NextStep: "roomsync login --server https://chat.example.com",
		}
	}
	return rocketchat.NewClient(rocketchat.Options{
		BaseURL: cfg.Server.URL,
		Timeout: cfg.Server.Timeout,
	})
}

// requireClient builds an authenticated client from the loaded config and
// saved session.
func requireClient() (*rocketchat.Client, *config.Config, error) {
	cfg := GetConfig()
	if err := cfg.RequireSession(); err != nil {
		return nil, nil, &PreflightError{
			Message:  err.Error(),
			NextStep: "roomsync login",
		}
	}
	client, err := rocketchat.NewClient(rocketchat.Options{
		BaseURL: cfg.Server.URL,
		UserID:  cfg.Auth.UserID,
		Token:   cfg.Auth.Token,
		Timeout: cfg.Server.Timeout,
	})
	if err != nil {
		return nil, nil, err
	}
	return client, cfg, nil
}

// selfUsername returns the configured username, asking the server when the
// config does not carry one.
func selfUsername(ctx context.Context, client *rocketchat.Client, cfg *config.Config) string {
	if cfg.Auth.Username != "" {
		return cfg.Auth.Username
	}
	me, err := client.Me(ctx)
	if err != nil {
		return ""
	}
	cfg.Auth.Username = me.Username
	return me.Username
}

// openSession builds an engine session for the authenticated user.
func openSession(ctx context.Context) (*roomsync.Session, *rocketchat.Client, error) {
	client, cfg, err := requireClient()
	if err != nil {
		return nil, nil, err
	}
	opts := roomsync.OptionsFromConfig(cfg)
	opts.Self = selfUsername(ctx, client, cfg)
	return roomsync.New(roomsync.NewRocketChatAPI(client), opts), client, nil
}

// loadDirectory opens a session and loads its room list.
func loadDirectory(ctx context.Context) (*roomsync.Session, error) {
	session, _, err := openSession(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := session.Directory().Load(ctx); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to load rooms: %w", err)
	}
	return session, nil
}

// Package cli implements the roomsync command line.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tOgg1/roomsync/internal/config"
	"github.com/tOgg1/roomsync/internal/logging"
)

var (
	cfgFile        string
	serverFlag     string
	logLevel       string
	logFormat      string
	jsonOutput     bool
	jsonlOutput    bool
	verbose        bool
	nonInteractive bool

	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "roomsync",
	Short: "Realtime room and message sync for Rocket.Chat",
	Long: `roomsync keeps a local, ordered view of Rocket.Chat rooms in sync with the
server. It follows a room over the push stream, falls back to polling when the
stream is down, and exposes search, deep links and message mutations.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute runs the root command.
func Execute(version string) error {
	rootCmd.Version = version
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default $XDG_CONFIG_HOME/roomsync/config.yaml)")
	flags.StringVar(&serverFlag, "server", "", "chat server URL (overrides server.url)")
	flags.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&logFormat, "log-format", "", "log format: console, json")
	flags.BoolVar(&jsonOutput, "json", false, "output JSON")
	flags.BoolVar(&jsonlOutput, "jsonl", false, "output JSON lines")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVar(&nonInteractive, "non-interactive", false, "never prompt")
}

func initConfig() error {
	loader := config.NewLoader()
	if cfgFile != "" {
		loader.SetConfigFile(cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return err
	}

	if serverFlag != "" {
		cfg.Server.URL = strings.TrimRight(strings.TrimSpace(serverFlag), "/")
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}

	if stored, err := config.DefaultContextStore().Load(); err == nil {
		stored.ApplyTo(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		Output:       os.Stderr,
		EnableCaller: cfg.Logging.EnableCaller,
	})
	logger := logging.Component("cli")
	logger.Debug().
		Str("config", loader.ConfigFileUsed()).
		Str("server", cfg.Server.URL).
		Msg("configuration loaded")

	appConfig = cfg
	return nil
}

// GetConfig returns the loaded configuration.
func GetConfig() *config.Config {
	if appConfig == nil {
		return config.DefaultConfig()
	}
	return appConfig
}

// IsJSONOutput returns true if JSON output is enabled.
func IsJSONOutput() bool {
	return jsonOutput
}

// IsJSONLOutput returns true if JSON lines output is enabled.
func IsJSONLOutput() bool {
	return jsonlOutput
}

// IsVerbose returns true if verbose logging is enabled.
func IsVerbose() bool {
	return verbose
}

// IsNonInteractive returns true if prompts are disabled.
func IsNonInteractive() bool {
	return nonInteractive || !hasTTY()
}

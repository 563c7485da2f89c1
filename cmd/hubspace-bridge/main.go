// HubSpace Bridge
//
// This is the main entry point for the bridge. It polls a HubSpace (Afero)
// cloud account, exposes every supported device as a Home Assistant entity
// over MQTT discovery, and serves the same entities over a REST and
// WebSocket API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// configEnv overrides the default configuration path.
const configEnv = "HUBSPACE_CONFIG"

var flagConfig string

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. The root command runs the service.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "hubspace-bridge",
		Short: "Bridge HubSpace cloud devices to MQTT and a local API",
		Long: `hubspace-bridge polls a HubSpace account and exposes lights, fans,
outlets, water timers and door locks as Home Assistant entities over MQTT
discovery. State changes are also served over a REST API and WebSocket.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), resolveConfigPath())
		},
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (env: HUBSPACE_CONFIG, default: configs/config.yaml)")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the bridge service (default)",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd.Context(), resolveConfigPath())
			},
		},
		newCheckCmd(),
		newDumpCmd(),
		newTokenCmd(),
		newVersionCmd(),
	)
	return root
}

// resolveConfigPath returns the config path from flag, environment, or default.
func resolveConfigPath() string {
	if flagConfig != "" {
		return flagConfig
	}
	if path := os.Getenv(configEnv); path != "" {
		return path
	}
	return defaultConfigPath
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hubspace-bridge %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

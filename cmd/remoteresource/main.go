// Package main is the entry point for the remoteresource CLI.
//
// Resources can be used either as a library (SDK) or through this binary,
// which serves a YAML-configured hub or polls a single URL from the shell.
//
// Usage:
//
//	remoteresource serve -c resources.yaml     # Serve a hub of resources
//	remoteresource validate -c resources.yaml  # Validate configuration
//	remoteresource fetch https://example.com   # Poll once and print the body
//	remoteresource watch https://example.com   # Poll on an interval
//	remoteresource version                     # Show version info
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// newRootCmd assembles the command tree. Each call returns fresh flag state.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "remoteresource",
		Short: "Poll remote HTTP resources and serve their state",
		Long: `remoteresource keeps the latest value of remote HTTP resources.

Each resource is fetched on activation and, optionally, on a fixed
interval. Overlapping polls are resolved by issue order: the most recently
issued poll always wins, however the responses arrive.

Quick start:
  1. Create a config file (resources.yaml)
  2. Run: remoteresource serve -c resources.yaml
  3. Open http://localhost:8080 in your browser

Example config:
  port: 8080
  resources:
    - name: users
      url: https://api.example.com/users
      auto_poll_interval: 30s
      headers:
        Authorization: Bearer ${API_TOKEN}`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			if envFile == "" {
				return nil
			}
			// variables already set in the environment take precedence
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("failed to load env file: %w", err)
			}
			return nil
		},
	}

	root.PersistentFlags().String("env-file", "", "load environment variables from a dotenv file")

	root.AddCommand(
		newVersionCmd(),
		newServeCmd(),
		newValidateCmd(),
		newFetchCmd(),
		newWatchCmd(),
	)
	return root
}

// newVersionCmd prints version information.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print the version, commit hash, and build date of this remoteresource binary.`,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "remoteresource %s\n", version)
			fmt.Fprintf(out, "  commit: %s\n", commit)
			fmt.Fprintf(out, "  built:  %s\n", date)
		},
	}
}

// newLogger creates a JSON logger for CLI use.
func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

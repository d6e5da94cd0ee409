package main

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/remoteresource"
	"github.com/jpalmerr/remoteresource/config"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout = 10 * time.Second
)

// newServeCmd starts a hub serving every configured resource.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a hub of configured resources",
		Long: `Start a hub serving the resources defined in a YAML file.

The server will:
  - Load configuration from the specified YAML file
  - Activate every resource (poll on mount, recurring polls)
  - Serve the REST API, SSE and WebSocket streams, and the dashboard

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  remoteresource serve -c resources.yaml
  remoteresource serve -c resources.yaml --env-file .env`,
		RunE: runServe,
	}

	cmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger(slog.LevelInfo)

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	direct, fromGrids := cfg.ResourceCount()
	logger.Info("config loaded",
		"resources", direct,
		"grid_resources", fromGrids,
	)

	opts, err := config.BuildHubOptions(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build resources: %w", err)
	}

	hub, err := remoteresource.NewHub(opts...)
	if err != nil {
		return fmt.Errorf("failed to create hub: %w", err)
	}

	logger.Info("starting server", "port", hub.Port())

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// start server - blocks until context cancelled
	errChan := make(chan error, 1)
	go func() {
		errChan <- hub.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}

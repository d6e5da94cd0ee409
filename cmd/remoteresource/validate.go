package main

import (
	"fmt"

	"github.com/jpalmerr/remoteresource/config"
	"github.com/spf13/cobra"
)

// newValidateCmd validates a config file without starting the server.
func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a config file",
		Long: `Validate a resource configuration file without starting the server.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  remoteresource validate -c resources.yaml
  remoteresource validate -c resources.yaml --env-file .env`,
		RunE: runValidate,
	}

	cmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// grids only fail on template execution, which happens at build time
	if _, err := config.BuildResources(cfg, nil); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	direct, fromGrids := cfg.ResourceCount()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Port:      %d\n", cfg.Port)
	fmt.Fprintf(out, "  Resources: %d direct + %d from grids = %d total\n",
		direct, fromGrids, direct+fromGrids)

	return nil
}

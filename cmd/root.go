package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/drillcore/internal/config"
	"github.com/okian/drillcore/pkg/logger"
)

// newRootCommand creates the drillcore command tree. Without a subcommand
// it serves the HTTP API.
func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "drillcore",
		Short:        "Training progression core",
		Long:         "Runs drills, records authoritative progress, flags leaks and rotates daily content.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newSimulateCommand())
	return cmd
}

// loadConfig reads configuration (defaults -> optional file -> env) and
// initializes the global logger from it.
func loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := logger.InitWithWriter(os.Stdout, logger.Format(cfg.LogFormat)); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, nil
}

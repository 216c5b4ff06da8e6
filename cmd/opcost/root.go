package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/matthewbaird/opcost/internal/config"
	"github.com/matthewbaird/opcost/internal/logger"
)

var version = "0.1.0"

var (
	configPath string
	cfg        config.Config
)

var rootCmd = &cobra.Command{
	Use:   "opcost",
	Short: "Operating-cost statements for rental buildings",
	Long: `opcost allocates a building's operating costs to its units and tenants
for a statement period, nets them against advance payments and persists the
resulting statements.

Configuration is read from an optional CUE or JSON file (--config) and the
environment (PORT, DATABASE_URL, CURRENCY, DIRECT_TOLERANCE, MAX_PARALLEL,
LOG_LEVEL, LOG_FORMAT, LOG_OUTPUT). A .env file in the working directory is
loaded first.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = c
		if err := logger.Setup(cfg.Logger()); err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log := logger.WithComponent("cmd")
		log.Error().Err(err).Msg("command failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a CUE or JSON config file")
}

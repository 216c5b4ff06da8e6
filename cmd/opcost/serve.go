package main

import (
	"github.com/spf13/cobra"

	"github.com/matthewbaird/opcost/internal/logger"
	"github.com/matthewbaird/opcost/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Migrate the database and serve the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		return server.Run(ctx, server.Config{
			Port:    cfg.Port,
			Service: a.svc,
			Log:     logger.WithComponent("server"),
		})
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		log := logger.WithComponent("migrate")
		log.Info().Msg("database migrated successfully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

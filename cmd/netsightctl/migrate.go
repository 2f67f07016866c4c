package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/netsight-ai/netsight-engine/pkg/config"
	"github.com/netsight-ai/netsight-engine/pkg/database"
	"github.com/netsight-ai/netsight-engine/pkg/logging"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(Version)
			if err != nil {
				return err
			}
			logger, err := logging.NewLogger(cfg.Env)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			sqlDB, err := database.OpenSQL(cfg.Database.ConnectionString())
			if err != nil {
				return err
			}
			defer sqlDB.Close()

			if err := database.RunMigrations(sqlDB, cfg.MigrationsPath, logger); err != nil {
				return err
			}
			fmt.Println("Migrations applied.")
			return nil
		},
	}
}

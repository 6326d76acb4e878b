package main

import (
	"context"
	"fmt"
	"time"

	"storefront/config"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Long: `Apply the embedded schema to DATABASE_URL.

Every statement is idempotent, so running it against an existing
database only adds what is missing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := util.InitLogger(cfg.Server.Env); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer util.SyncLogger()

			db, err := store.NewStore(cfg.Database.URL)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			if err := db.Migrate(ctx); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			util.GetLogger().Info("Schema applied")
			return nil
		},
	}
}

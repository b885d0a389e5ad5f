package main

import (
	"github.com/spf13/cobra"

	"solana-share-vault/internal/backend"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending PostgreSQL and ClickHouse migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()
			return backend.Migrate(cmd.Context(), cfg, logger)
		},
	}
	cmd.Flags().String("postgres-dsn", "", "PostgreSQL connection string")
	cmd.Flags().String("clickhouse-dsn", "", "ClickHouse connection string")
	return cmd
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"solana-share-vault/internal/backend"
	"solana-share-vault/internal/config"
	"solana-share-vault/internal/reporting"
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write a vault statement from PostgreSQL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			vaultID, err := vaultFlag(cmd)
			if err != nil {
				return err
			}
			if cfg.PostgresDSN == "" {
				return fmt.Errorf("--postgres-dsn is required")
			}
			cfg.Storage = config.StoragePostgres

			ctx := cmd.Context()
			b, err := backend.Open(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer b.Close()

			statement, err := reporting.NewGenerator(b.Vaults, b.Receipts, b.Snapshots, b.Ledger).Generate(ctx, vaultID)
			if err != nil {
				return err
			}
			if err := reporting.WriteStatement(cfg.OutputDir, statement); err != nil {
				return err
			}

			logger.Info("statement written",
				zap.Stringer("vault", vaultID),
				zap.String("dir", cfg.OutputDir),
				zap.String("data_version", statement.DataVersion),
				zap.Int("receipts", len(statement.Receipts)),
			)
			return nil
		},
	}
	cmd.Flags().String("vault", "", "vault ID")
	cmd.Flags().String("postgres-dsn", "", "PostgreSQL connection string")
	cmd.Flags().String("clickhouse-dsn", "", "ClickHouse connection string for price snapshots")
	cmd.Flags().String("output-dir", "output", "output directory")
	return cmd
}

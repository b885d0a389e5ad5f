package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"solana-share-vault/internal/backend"
	"solana-share-vault/internal/onchain"
	"solana-share-vault/internal/solana"
	"solana-share-vault/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a deployed vault's pool, record prices and report donations",
		RunE:  runWatch,
	}
	cmd.Flags().String("vault", "", "vault account address")
	cmd.Flags().String("ws-endpoint", "", "Solana WebSocket endpoint")
	cmd.Flags().String("clickhouse-dsn", "", "ClickHouse connection string; snapshots are kept in memory when empty")
	cmd.Flags().Duration("watch-flush-interval", 2*time.Second, "pending slot and snapshot flush interval")
	cmd.Flags().Int("watch-batch-size", 100, "snapshot batch size")
	addRPCFlags(cmd)
	return cmd
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	vaultID, err := vaultFlag(cmd)
	if err != nil {
		return err
	}
	client, err := rpcClient(cfg)
	if err != nil {
		return err
	}
	if cfg.WSEndpoint == "" {
		return fmt.Errorf("--ws-endpoint is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reader := onchain.NewReader(client, logger)
	v, err := reader.LoadVault(ctx, vaultID, cfg.Program())
	if err != nil {
		return fmt.Errorf("load vault: %w", err)
	}

	snapshots, err := backend.OpenSnapshots(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer snapshots.Close()

	wsCfg := solana.DefaultWSConfig()
	wsCfg.Logger = logger
	ws, err := solana.NewWSClient(ctx, cfg.WSEndpoint, &wsCfg)
	if err != nil {
		return fmt.Errorf("connect ws: %w", err)
	}
	defer ws.Close()

	w := watcher.New(v, ws, reader, snapshots.Store(), watcher.Config{
		FlushInterval: cfg.WatchFlushInterval,
		BatchSize:     cfg.WatchBatchSize,
	},
		watcher.WithLogger(logger),
		watcher.WithDonationHandler(func(d watcher.Donation) {
			fmt.Fprintf(cmd.OutOrStdout(), "donation slot=%d amount=%d pooled=%d supply=%d\n",
				d.Slot, d.Amount, d.PooledBalance, d.ShareSupply)
		}),
	)

	logger.Info("watching vault",
		zap.Stringer("vault", v.ID),
		zap.Stringer("asset_account", v.AssetAccount),
		zap.Stringer("share_mint", v.ShareMint),
	)
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	pool := w.Current()
	logger.Info("watch stopped",
		zap.Uint64("pooled_balance", pool.PooledBalance),
		zap.Uint64("share_supply", pool.ShareSupply),
	)
	return nil
}

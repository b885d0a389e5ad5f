// Package main runs the vault HTTP server: vault operations, the development
// custody ledger, health, status and Prometheus metrics on one listener.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"solana-share-vault/internal/api"
	"solana-share-vault/internal/backend"
	"solana-share-vault/internal/config"
	"solana-share-vault/internal/logging"
	"solana-share-vault/internal/vault"
)

func main() {
	root := &cobra.Command{
		Use:          "server",
		Short:        "Share vault HTTP server",
		SilenceUsage: true,
		RunE:         runServer,
	}

	root.PersistentFlags().String("config", "", "config file path")

	root.Flags().String("storage", config.StorageMemory, "storage backend (memory, postgres)")
	root.Flags().String("postgres-dsn", "", "PostgreSQL connection string")
	root.Flags().String("clickhouse-dsn", "", "ClickHouse connection string for price snapshots")
	root.Flags().String("program-id", config.DefaultProgramID, "program ID vault authorities are derived under")
	root.Flags().String("http-addr", ":8080", "HTTP listen address")
	root.Flags().Duration("shutdown-timeout", 30*time.Second, "graceful shutdown timeout")
	root.Flags().Bool("ledger-api", true, "expose the development custody ledger endpoints")
	root.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	engine := vault.NewEngine(cfg.Program(), b.Ledger, b.Vaults, b.Receipts,
		vault.WithSnapshotStore(b.Snapshots),
		vault.WithLogger(logger),
	)

	opts := []api.Option{api.WithLogger(logger), api.WithStorageName(b.Name)}
	if ledgerAPI, _ := cmd.Flags().GetBool("ledger-api"); ledgerAPI {
		opts = append(opts, api.WithLedger(b.Ledger))
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.New(engine, opts...).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("storage", b.Name),
			zap.Stringer("program", cfg.Program()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// Restore default signal handling so a second signal kills the process.
	stop()
	logger.Info("shutting down", zap.Duration("timeout", cfg.ShutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// Package main is the vault operator CLI: authority derivation, on-chain
// quotes, pool watching, statements and schema migrations.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"solana-share-vault/internal/config"
	"solana-share-vault/internal/logging"
	"solana-share-vault/internal/solana"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "vaultctl",
		Short:        "Share vault operator tool",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("program-id", config.DefaultProgramID, "vault program ID")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(newDeriveCmd(), newQuoteCmd(), newWatchCmd(), newReportCmd(), newMigrateCmd())
	return root
}

// setup loads and validates configuration and builds the logger.
func setup(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func vaultFlag(cmd *cobra.Command) (solana.PublicKey, error) {
	raw, _ := cmd.Flags().GetString("vault")
	if raw == "" {
		return solana.PublicKey{}, fmt.Errorf("--vault is required")
	}
	id, err := solana.ParsePublicKey(raw)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("--vault: %w", err)
	}
	return id, nil
}

func rpcClient(cfg config.Config) (*solana.HTTPClient, error) {
	if cfg.RPCEndpoint == "" {
		return nil, fmt.Errorf("--rpc-endpoint is required")
	}
	return solana.NewHTTPClient(cfg.RPCEndpoint,
		solana.WithTimeout(cfg.RPCTimeout),
		solana.WithMaxRetries(cfg.RPCMaxRetries),
	), nil
}

func addRPCFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc-endpoint", "", "Solana RPC HTTP endpoint")
	cmd.Flags().Duration("rpc-timeout", 30*time.Second, "RPC request timeout")
	cmd.Flags().Int("rpc-max-retries", 3, "RPC retry attempts")
}

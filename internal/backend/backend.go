// Package backend opens the storage and custody implementations selected by
// configuration.
package backend

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"solana-share-vault/internal/config"
	"solana-share-vault/internal/custody"
	"solana-share-vault/internal/storage"
	chstore "solana-share-vault/internal/storage/clickhouse"
	"solana-share-vault/internal/storage/memory"
	"solana-share-vault/internal/storage/migrations"
	pgstore "solana-share-vault/internal/storage/postgres"
)

// Backend holds the stores a vault engine runs on.
type Backend struct {
	Name      string
	Ledger    custody.Ledger
	Vaults    storage.VaultStore
	Receipts  storage.ReceiptStore
	Snapshots storage.PriceSnapshotStore

	closers []func()
}

// Open creates the backend named by cfg.Storage. PostgreSQL and ClickHouse
// schemas are migrated before use. Snapshots go to ClickHouse when a DSN is
// set, otherwise they stay in memory.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &Backend{Name: cfg.Storage}
	switch cfg.Storage {
	case config.StorageMemory:
		b.Ledger = memory.NewLedger()
		b.Vaults = memory.NewVaultStore()
		b.Receipts = memory.NewReceiptStore()

	case config.StoragePostgres:
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN, pgstore.WithConnectTimeout(10*time.Second))
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.closers = append(b.closers, pool.Close)

		if err := migrations.RunPostgresMigrations(ctx, pool, logger); err != nil {
			b.Close()
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}

		b.Ledger = pgstore.NewLedger(pool)
		b.Vaults = pgstore.NewVaultStore(pool)
		b.Receipts = pgstore.NewReceiptStore(pool)

	default:
		return nil, fmt.Errorf("unknown storage %q", cfg.Storage)
	}

	snapshots, err := OpenSnapshots(ctx, cfg, logger)
	if err != nil {
		b.Close()
		return nil, err
	}
	if snapshots.close != nil {
		b.closers = append(b.closers, snapshots.close)
	}
	b.Snapshots = snapshots.store

	logger.Info("storage ready",
		zap.String("storage", b.Name),
		zap.Bool("clickhouse", cfg.ClickhouseDSN != ""),
	)
	return b, nil
}

// Close releases connections in reverse order of opening.
func (b *Backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

// SnapshotStore is a price snapshot store and its release function.
type SnapshotStore struct {
	store storage.PriceSnapshotStore
	close func()
}

// Store returns the underlying store.
func (s SnapshotStore) Store() storage.PriceSnapshotStore {
	return s.store
}

// Close releases the store's connection, if any.
func (s SnapshotStore) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenSnapshots returns the ClickHouse snapshot store when cfg.ClickhouseDSN
// is set and an in-memory one otherwise.
func OpenSnapshots(ctx context.Context, cfg config.Config, logger *zap.Logger) (SnapshotStore, error) {
	if cfg.ClickhouseDSN == "" {
		return SnapshotStore{store: memory.NewPriceSnapshotStore()}, nil
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN, logger)
	if err != nil {
		return SnapshotStore{}, fmt.Errorf("clickhouse migrations: %w", err)
	}
	return SnapshotStore{
		store: chstore.NewPriceSnapshotStore(conn),
		close: func() { _ = conn.Close() },
	}, nil
}

// Migrate applies pending migrations to every configured database.
func Migrate(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	if cfg.PostgresDSN == "" && cfg.ClickhouseDSN == "" {
		return fmt.Errorf("no database configured: set postgres-dsn or clickhouse-dsn")
	}

	if cfg.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN, pgstore.WithConnectTimeout(10*time.Second))
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool, logger); err != nil {
			return fmt.Errorf("postgres migrations: %w", err)
		}
	}

	if cfg.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN, logger)
		if err != nil {
			return fmt.Errorf("clickhouse migrations: %w", err)
		}
		_ = conn.Close()
	}
	return nil
}

package clickhouse

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"solana-share-vault/internal/domain"
	"solana-share-vault/internal/solana"
	"solana-share-vault/internal/storage"
)

// PriceSnapshotStore implements storage.PriceSnapshotStore using ClickHouse.
type PriceSnapshotStore struct {
	conn *Conn
}

// NewPriceSnapshotStore creates a new PriceSnapshotStore.
func NewPriceSnapshotStore(conn *Conn) *PriceSnapshotStore {
	return &PriceSnapshotStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceSnapshotStore = (*PriceSnapshotStore)(nil)

// InsertBulk adds multiple snapshots. Fails entire batch on duplicate
// (vault_id, timestamp_ms, source).
func (s *PriceSnapshotStore) InsertBulk(ctx context.Context, snapshots []*domain.PriceSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	type key struct {
		vaultID     solana.PublicKey
		timestampMs int64
		source      domain.SnapshotSource
	}
	seen := make(map[key]struct{}, len(snapshots))
	for _, p := range snapshots {
		if p == nil || p.VaultID.IsZero() || !p.Source.IsValid() {
			return storage.ErrInvalidInput
		}
		k := key{p.VaultID, p.TimestampMs, p.Source}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// MergeTree does not enforce uniqueness
	for _, p := range snapshots {
		exists, err := s.exists(ctx, p)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO vault_price_snapshots (
			vault_id, timestamp_ms, slot, pooled_balance, share_supply, share_price, source
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range snapshots {
		err = batch.Append(
			p.VaultID.String(), p.TimestampMs, p.Slot,
			p.PooledBalance, p.ShareSupply, p.SharePrice, string(p.Source),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByVault retrieves all snapshots for a vault, ordered by timestamp ASC.
func (s *PriceSnapshotStore) GetByVault(ctx context.Context, vaultID solana.PublicKey) ([]*domain.PriceSnapshot, error) {
	query := `
		SELECT vault_id, timestamp_ms, slot, pooled_balance, share_supply, share_price, source
		FROM vault_price_snapshots
		WHERE vault_id = ?
		ORDER BY timestamp_ms ASC, source ASC
	`

	rows, err := s.conn.Query(ctx, query, vaultID.String())
	if err != nil {
		return nil, fmt.Errorf("query by vault: %w", err)
	}
	defer rows.Close()

	return scanPriceSnapshots(rows)
}

// GetByTimeRange retrieves snapshots for a vault within [start, end] (inclusive).
func (s *PriceSnapshotStore) GetByTimeRange(ctx context.Context, vaultID solana.PublicKey, start, end int64) ([]*domain.PriceSnapshot, error) {
	query := `
		SELECT vault_id, timestamp_ms, slot, pooled_balance, share_supply, share_price, source
		FROM vault_price_snapshots
		WHERE vault_id = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC, source ASC
	`

	rows, err := s.conn.Query(ctx, query, vaultID.String(), start, end)
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanPriceSnapshots(rows)
}

// exists checks if a snapshot with the same key exists.
func (s *PriceSnapshotStore) exists(ctx context.Context, p *domain.PriceSnapshot) (bool, error) {
	query := `
		SELECT count(*) FROM vault_price_snapshots
		WHERE vault_id = ? AND timestamp_ms = ? AND source = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, p.VaultID.String(), p.TimestampMs, string(p.Source)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanPriceSnapshots scans multiple rows.
func scanPriceSnapshots(rows chRows) ([]*domain.PriceSnapshot, error) {
	var snapshots []*domain.PriceSnapshot

	for rows.Next() {
		var (
			p       domain.PriceSnapshot
			vaultID string
			price   decimal.Decimal
			source  string
		)

		err := rows.Scan(
			&vaultID, &p.TimestampMs, &p.Slot,
			&p.PooledBalance, &p.ShareSupply, &price, &source,
		)
		if err != nil {
			return nil, fmt.Errorf("scan price snapshot row: %w", err)
		}

		p.VaultID, err = solana.ParsePublicKey(vaultID)
		if err != nil {
			return nil, fmt.Errorf("scan price snapshot row: %w", err)
		}
		p.SharePrice = price
		p.Source = domain.SnapshotSource(source)
		snapshots = append(snapshots, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price snapshot rows: %w", err)
	}

	return snapshots, nil
}

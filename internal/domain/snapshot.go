package domain

import (
	"github.com/shopspring/decimal"

	"solana-share-vault/internal/solana"
)

// SnapshotSource identifies how a price snapshot was observed.
type SnapshotSource string

const (
	SnapshotSourceOperation SnapshotSource = "OPERATION"
	SnapshotSourceWatch     SnapshotSource = "WATCH"
)

// String returns the string representation of SnapshotSource.
func (s SnapshotSource) String() string {
	return string(s)
}

// IsValid checks if the source is a valid value.
func (s SnapshotSource) IsValid() bool {
	return s == SnapshotSourceOperation || s == SnapshotSourceWatch
}

// PriceSnapshot is one observation of a vault's share price.
// Corresponds to vault_price_snapshots table in ClickHouse.
type PriceSnapshot struct {
	VaultID       solana.PublicKey
	TimestampMs   int64           // Unix timestamp in milliseconds
	Slot          int64           // Solana slot number, 0 when off-chain
	PooledBalance uint64          // pool balance at this point
	ShareSupply   uint64          // share supply at this point
	SharePrice    decimal.Decimal // PooledBalance / ShareSupply
	Source        SnapshotSource  // OPERATION | WATCH
}

// NewPriceSnapshot builds a snapshot from pool readings.
func NewPriceSnapshot(pool PoolState, timestampMs, slot int64, source SnapshotSource) *PriceSnapshot {
	return &PriceSnapshot{
		VaultID:       pool.VaultID,
		TimestampMs:   timestampMs,
		Slot:          slot,
		PooledBalance: pool.PooledBalance,
		ShareSupply:   pool.ShareSupply,
		SharePrice:    pool.Price(),
		Source:        source,
	}
}

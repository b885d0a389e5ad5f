package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"solana-share-vault/internal/domain"
	"solana-share-vault/internal/storage"
)

func TestPriceSnapshotStore_InsertBulkAndRange(t *testing.T) {
	store := NewPriceSnapshotStore()
	ctx := context.Background()
	vaultID := newKey(t)

	snapshots := []*domain.PriceSnapshot{
		{VaultID: vaultID, TimestampMs: 3000, PooledBalance: 3000, ShareSupply: 1500, SharePrice: decimal.NewFromInt(2), Source: domain.SnapshotSourceWatch},
		{VaultID: vaultID, TimestampMs: 1000, PooledBalance: 1000, ShareSupply: 1000, SharePrice: decimal.NewFromInt(1), Source: domain.SnapshotSourceOperation},
		{VaultID: vaultID, TimestampMs: 2000, PooledBalance: 1500, ShareSupply: 1500, SharePrice: decimal.NewFromInt(1), Source: domain.SnapshotSourceOperation},
	}

	if err := store.InsertBulk(ctx, snapshots); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	all, err := store.GetByVault(ctx, vaultID)
	if err != nil {
		t.Fatalf("GetByVault failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 snapshots, got %d", len(all))
	}
	if all[0].TimestampMs != 1000 || all[2].TimestampMs != 3000 {
		t.Errorf("snapshots not ordered by timestamp")
	}
	if !all[2].SharePrice.Equal(decimal.NewFromInt(2)) {
		t.Errorf("SharePrice = %s, want 2", all[2].SharePrice)
	}

	ranged, err := store.GetByTimeRange(ctx, vaultID, 2000, 3000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(ranged) != 2 {
		t.Errorf("Expected 2 snapshots in range, got %d", len(ranged))
	}
}

func TestPriceSnapshotStore_DuplicateFailsBatch(t *testing.T) {
	store := NewPriceSnapshotStore()
	ctx := context.Background()
	vaultID := newKey(t)

	first := &domain.PriceSnapshot{VaultID: vaultID, TimestampMs: 1000, Source: domain.SnapshotSourceOperation}
	if err := store.InsertBulk(ctx, []*domain.PriceSnapshot{first}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	batch := []*domain.PriceSnapshot{
		{VaultID: vaultID, TimestampMs: 2000, Source: domain.SnapshotSourceOperation},
		first,
	}
	if err := store.InsertBulk(ctx, batch); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	all, _ := store.GetByVault(ctx, vaultID)
	if len(all) != 1 {
		t.Errorf("batch must fail entirely, got %d snapshots", len(all))
	}

	// Same timestamp from a different source is a distinct point
	watch := &domain.PriceSnapshot{VaultID: vaultID, TimestampMs: 1000, Source: domain.SnapshotSourceWatch}
	if err := store.InsertBulk(ctx, []*domain.PriceSnapshot{watch}); err != nil {
		t.Errorf("InsertBulk with other source failed: %v", err)
	}
}

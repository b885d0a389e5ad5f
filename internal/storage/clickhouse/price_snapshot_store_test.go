package clickhouse

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-share-vault/internal/domain"
	"solana-share-vault/internal/solana"
	"solana-share-vault/internal/storage"
)

func testVaultID(t *testing.T) solana.PublicKey {
	t.Helper()
	pk, err := solana.NewRandomPublicKey()
	require.NoError(t, err)
	return pk
}

func TestPriceSnapshotStore_InsertBulkAndGetByVault(t *testing.T) {
	conn := setupTestDB(t)

	ctx := context.Background()
	store := NewPriceSnapshotStore(conn)
	vaultID := testVaultID(t)

	snapshots := []*domain.PriceSnapshot{
		{VaultID: vaultID, TimestampMs: 2000, Slot: 11, PooledBalance: 3000, ShareSupply: 1500,
			SharePrice: decimal.RequireFromString("2"), Source: domain.SnapshotSourceWatch},
		{VaultID: vaultID, TimestampMs: 1000, Slot: 10, PooledBalance: 1, ShareSupply: 3,
			SharePrice: decimal.RequireFromString("0.333333333333"), Source: domain.SnapshotSourceOperation},
		{VaultID: vaultID, TimestampMs: 3000, Slot: 12, PooledBalance: 18446744073709551615, ShareSupply: 1,
			SharePrice: decimal.RequireFromString("18446744073709551615"), Source: domain.SnapshotSourceOperation},
	}

	err := store.InsertBulk(ctx, snapshots)
	require.NoError(t, err)

	got, err := store.GetByVault(ctx, vaultID)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, int64(1000), got[0].TimestampMs)
	assert.Equal(t, vaultID, got[0].VaultID)
	assert.True(t, got[0].SharePrice.Equal(decimal.RequireFromString("0.333333333333")), "price %s", got[0].SharePrice)
	assert.Equal(t, domain.SnapshotSourceOperation, got[0].Source)
	assert.Equal(t, uint64(18446744073709551615), got[2].PooledBalance)
	assert.Equal(t, int64(12), got[2].Slot)
}

func TestPriceSnapshotStore_GetByTimeRange(t *testing.T) {
	conn := setupTestDB(t)

	ctx := context.Background()
	store := NewPriceSnapshotStore(conn)
	vaultID := testVaultID(t)

	var snapshots []*domain.PriceSnapshot
	for i := int64(1); i <= 5; i++ {
		snapshots = append(snapshots, &domain.PriceSnapshot{
			VaultID:     vaultID,
			TimestampMs: i * 1000,
			SharePrice:  decimal.NewFromInt(i),
			Source:      domain.SnapshotSourceWatch,
		})
	}
	require.NoError(t, store.InsertBulk(ctx, snapshots))

	got, err := store.GetByTimeRange(ctx, vaultID, 2000, 4000)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(2000), got[0].TimestampMs)
	assert.Equal(t, int64(4000), got[2].TimestampMs)
}

func TestPriceSnapshotStore_Duplicate(t *testing.T) {
	conn := setupTestDB(t)

	ctx := context.Background()
	store := NewPriceSnapshotStore(conn)
	vaultID := testVaultID(t)

	p := &domain.PriceSnapshot{VaultID: vaultID, TimestampMs: 1000, SharePrice: decimal.NewFromInt(1), Source: domain.SnapshotSourceWatch}
	require.NoError(t, store.InsertBulk(ctx, []*domain.PriceSnapshot{p}))

	err := store.InsertBulk(ctx, []*domain.PriceSnapshot{p})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Intra-batch duplicate
	q := &domain.PriceSnapshot{VaultID: vaultID, TimestampMs: 5000, SharePrice: decimal.NewFromInt(1), Source: domain.SnapshotSourceWatch}
	err = store.InsertBulk(ctx, []*domain.PriceSnapshot{q, q})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := store.GetByVault(ctx, vaultID)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

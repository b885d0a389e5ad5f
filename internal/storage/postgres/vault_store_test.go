package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-share-vault/internal/domain"
	"solana-share-vault/internal/storage"
)

func newTestVault(t *testing.T, createdAt int64) *domain.Vault {
	t.Helper()
	return &domain.Vault{
		ID:           newKey(t),
		ProgramID:    newKey(t),
		AssetMint:    newKey(t),
		AssetAccount: newKey(t),
		ShareMint:    newKey(t),
		Nonce:        254,
		CreatedAt:    createdAt,
	}
}

func TestVaultStore_InsertAndGetByID(t *testing.T) {
	pool := setupTestDB(t)

	store := NewVaultStore(pool)
	ctx := context.Background()

	v := newTestVault(t, 1700000000000)
	require.NoError(t, store.Insert(ctx, v))

	got, err := store.GetByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, v, got)
}

func TestVaultStore_InsertDuplicate(t *testing.T) {
	pool := setupTestDB(t)

	store := NewVaultStore(pool)
	ctx := context.Background()

	v := newTestVault(t, 1700000000000)
	require.NoError(t, store.Insert(ctx, v))

	err := store.Insert(ctx, v)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestVaultStore_GetByIDNotFound(t *testing.T) {
	pool := setupTestDB(t)

	store := NewVaultStore(pool)

	_, err := store.GetByID(context.Background(), newKey(t))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestVaultStore_List(t *testing.T) {
	pool := setupTestDB(t)

	store := NewVaultStore(pool)
	ctx := context.Background()

	later := newTestVault(t, 2000)
	earlier := newTestVault(t, 1000)
	require.NoError(t, store.Insert(ctx, later))
	require.NoError(t, store.Insert(ctx, earlier))

	vaults, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, vaults, 2)
	assert.Equal(t, earlier.ID, vaults[0].ID)
	assert.Equal(t, later.ID, vaults[1].ID)
}

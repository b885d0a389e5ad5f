package storage

import (
	"context"

	"solana-share-vault/internal/domain"
	"solana-share-vault/internal/solana"
)

// VaultStore provides access to vaults storage.
type VaultStore interface {
	// Insert adds a new vault. Returns ErrDuplicateKey if the vault ID exists.
	Insert(ctx context.Context, v *domain.Vault) error

	// GetByID retrieves a vault by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id solana.PublicKey) (*domain.Vault, error)

	// List retrieves all vaults, ordered by created_at ASC.
	List(ctx context.Context) ([]*domain.Vault, error)
}

// ReceiptStore provides access to receipts storage.
// Inside a custody unit of work, Insert joins the ledger transaction when
// the backend shares one.
type ReceiptStore interface {
	// Insert adds a new receipt. Returns ErrDuplicateKey if receipt_id exists.
	Insert(ctx context.Context, r *domain.Receipt) error

	// GetByID retrieves a receipt by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, receiptID string) (*domain.Receipt, error)

	// GetByVault retrieves all receipts for a vault, ordered by timestamp ASC.
	GetByVault(ctx context.Context, vaultID solana.PublicKey) ([]*domain.Receipt, error)

	// GetByUser retrieves receipts of one user in a vault, ordered by timestamp ASC.
	GetByUser(ctx context.Context, vaultID, user solana.PublicKey) ([]*domain.Receipt, error)
}

// PriceSnapshotStore provides access to vault_price_snapshots storage.
type PriceSnapshotStore interface {
	// InsertBulk adds multiple snapshots. Fails entire batch on duplicate
	// (vault_id, timestamp_ms, source).
	InsertBulk(ctx context.Context, snapshots []*domain.PriceSnapshot) error

	// GetByVault retrieves all snapshots for a vault, ordered by timestamp ASC.
	GetByVault(ctx context.Context, vaultID solana.PublicKey) ([]*domain.PriceSnapshot, error)

	// GetByTimeRange retrieves snapshots for a vault within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, vaultID solana.PublicKey, start, end int64) ([]*domain.PriceSnapshot, error)
}

package domain

import (
	"github.com/shopspring/decimal"

	"solana-share-vault/internal/shares"
	"solana-share-vault/internal/solana"
)

// Vault is the persisted configuration of one share vault.
// Corresponds to vaults table in PostgreSQL.
type Vault struct {
	ID           solana.PublicKey // vault account address, PDA seed
	ProgramID    solana.PublicKey // owning program, PDA derivation domain
	AssetMint    solana.PublicKey // underlying fungible asset
	AssetAccount solana.PublicKey // token account holding pooled assets
	ShareMint    solana.PublicKey // derivative share token
	Nonce        uint8            // bump seed for the authority address
	CreatedAt    int64            // Unix timestamp in milliseconds
}

// PoolState holds live readings of a vault's pooled balance and share supply.
// It is read at the start of every operation and never cached.
type PoolState struct {
	VaultID       solana.PublicKey
	PooledBalance uint64 // balance of the vault asset account
	ShareSupply   uint64 // total supply of the share mint
}

// Price returns asset units per share.
func (p PoolState) Price() decimal.Decimal {
	return shares.Price(p.PooledBalance, p.ShareSupply)
}

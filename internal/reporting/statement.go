// Package reporting renders vault statements as Markdown and CSV.
package reporting

import (
	"time"

	"solana-share-vault/internal/domain"
	"solana-share-vault/internal/solana"
)

// Statement is the state and history of one vault.
type Statement struct {
	GeneratedAt time.Time
	DataVersion string // short hash of the receipts the statement covers

	Vault     domain.Vault
	Authority solana.PublicKey
	Pool      domain.PoolState

	// Receipts in timestamp order.
	Receipts []*domain.Receipt
	// Snapshots in timestamp order. Empty when no snapshot store is configured.
	Snapshots []*domain.PriceSnapshot

	Totals Totals
	Users  []UserRow // sorted by user key
}

// Totals sums the committed operations of a vault.
type Totals struct {
	Enters       int
	Leaves       int
	AssetsIn     uint64
	AssetsOut    uint64
	SharesMinted uint64
	SharesBurned uint64
}

// UserRow sums the operations of one user. Share transfers between users
// are not visible in receipts, so these are flows, not holdings.
type UserRow struct {
	User         solana.PublicKey
	Enters       int
	Leaves       int
	AssetsIn     uint64
	AssetsOut    uint64
	SharesMinted uint64
	SharesBurned uint64
}

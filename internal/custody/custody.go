// Package custody defines the token ledger the vault delegates asset and
// share movements to.
package custody

import (
	"context"

	"solana-share-vault/internal/solana"
)

// Reader exposes token account and mint state.
type Reader interface {
	// TokenAccount returns the account at addr. Returns ErrAccountNotFound if absent.
	TokenAccount(ctx context.Context, addr solana.PublicKey) (*solana.TokenAccount, error)

	// Mint returns the mint at addr. Returns ErrMintNotFound if absent.
	Mint(ctx context.Context, addr solana.PublicKey) (*solana.Mint, error)

	// BalanceOf returns the amount held by a token account.
	BalanceOf(ctx context.Context, account solana.PublicKey) (uint64, error)

	// SupplyOf returns the total supply of a mint.
	SupplyOf(ctx context.Context, mint solana.PublicKey) (uint64, error)
}

// Service mutates token state. Every mutating call checks authority and
// fails without partial effect.
type Service interface {
	Reader

	// InitializeMint creates a mint controlled by authority.
	InitializeMint(ctx context.Context, mint, authority solana.PublicKey, decimals uint8) error

	// InitializeAccount creates an empty token account for mint owned by owner.
	InitializeAccount(ctx context.Context, account, mint, owner solana.PublicKey) error

	// Transfer moves amount between two accounts of the same mint.
	// authority must own from.
	Transfer(ctx context.Context, from, to, authority solana.PublicKey, amount uint64) error

	// MintTo issues amount new tokens into to. authority must be the mint authority.
	MintTo(ctx context.Context, mint, to, authority solana.PublicKey, amount uint64) error

	// Burn destroys amount tokens held by from. authority must own from.
	Burn(ctx context.Context, mint, from, authority solana.PublicKey, amount uint64) error
}

// Ledger is a Service whose mutations are grouped into units of work.
type Ledger interface {
	Reader

	// Atomic runs fn in a unit of work. All Service calls made through tx
	// commit together when fn returns nil and are discarded otherwise.
	// Concurrent units of work touching the same accounts are serialized.
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Service) error) error
}

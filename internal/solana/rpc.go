package solana

import "context"

// RPCClient defines the subset of the Solana JSON-RPC HTTP interface used to
// read vault, token account and mint state.
type RPCClient interface {
	// GetAccountInfo retrieves raw account data. Returns nil if the account does not exist.
	GetAccountInfo(ctx context.Context, pubkey PublicKey) (*AccountInfo, error)

	// GetTokenAccountBalance retrieves the raw amount held by a token account.
	GetTokenAccountBalance(ctx context.Context, account PublicKey) (*TokenAmount, error)

	// GetTokenSupply retrieves the total supply of a mint.
	GetTokenSupply(ctx context.Context, mint PublicKey) (*TokenAmount, error)

	// GetSlot retrieves the current slot.
	GetSlot(ctx context.Context) (int64, error)
}

// AccountInfo represents Solana account information with decoded data.
type AccountInfo struct {
	Slot       int64
	Lamports   uint64
	Owner      PublicKey
	Data       []byte
	Executable bool
	RentEpoch  uint64
}

// TokenAmount is a raw token quantity observed at a slot.
type TokenAmount struct {
	Slot     int64
	Amount   uint64
	Decimals uint8
}

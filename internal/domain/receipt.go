package domain

import "solana-share-vault/internal/solana"

// ReceiptKind identifies the vault operation that produced a receipt.
type ReceiptKind string

const (
	ReceiptKindEnter ReceiptKind = "ENTER"
	ReceiptKindLeave ReceiptKind = "LEAVE"
)

// String returns the string representation of ReceiptKind.
func (k ReceiptKind) String() string {
	return string(k)
}

// IsValid checks if the kind is a valid value.
func (k ReceiptKind) IsValid() bool {
	return k == ReceiptKindEnter || k == ReceiptKindLeave
}

// Receipt records one committed deposit or withdrawal.
// Corresponds to receipts table in PostgreSQL.
type Receipt struct {
	ReceiptID           string           // PRIMARY KEY, uuid
	VaultID             solana.PublicKey // vault the operation ran against
	Kind                ReceiptKind      // ENTER | LEAVE
	User                solana.PublicKey // signing depositor / redeemer
	SourceAccount       solana.PublicKey // asset source (enter) or share source (leave)
	DestinationAccount  solana.PublicKey // share destination (enter) or asset destination (leave)
	AssetAmount         uint64           // assets moved into or out of the pool
	ShareAmount         uint64           // shares minted or burned
	PooledBalanceBefore uint64           // pool balance read before the operation
	ShareSupplyBefore   uint64           // share supply read before the operation
	Timestamp           int64            // Unix timestamp in milliseconds
}

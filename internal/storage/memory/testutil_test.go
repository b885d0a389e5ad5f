package memory

import (
	"testing"

	"solana-share-vault/internal/solana"
)

func newKey(t *testing.T) solana.PublicKey {
	t.Helper()
	pk, err := solana.NewRandomPublicKey()
	if err != nil {
		t.Fatalf("NewRandomPublicKey failed: %v", err)
	}
	return pk
}

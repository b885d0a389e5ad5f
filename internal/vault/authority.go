package vault

import (
	"fmt"

	"solana-share-vault/internal/solana"
)

// DeriveAuthority returns the program address that holds the pooled assets
// and mints shares for a vault. The address is recomputed on every call.
func DeriveAuthority(programID, vaultID solana.PublicKey, nonce uint8) (solana.PublicKey, error) {
	addr, err := solana.CreateProgramAddress([][]byte{vaultID[:], {nonce}}, programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %v", ErrInvalidNonce, err)
	}
	return addr, nil
}

// FindAuthority returns the authority for the canonical bump of a vault.
func FindAuthority(programID, vaultID solana.PublicKey) (solana.PublicKey, uint8, error) {
	addr, bump, err := solana.FindProgramAddress([][]byte{vaultID[:]}, programID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("find authority: %w", err)
	}
	return addr, bump, nil
}

// Package onchain reads deployed vault programs over Solana RPC.
package onchain

import (
	"encoding/binary"
	"errors"
	"fmt"

	"solana-share-vault/internal/domain"
	"solana-share-vault/internal/idhash"
)

// VaultAccountName is the account type name of the vault state.
const VaultAccountName = "TokenBar"

// VaultAccountSize is discriminator(8) | asset_mint(32) | asset_account(32) | share_mint(32) | nonce(1).
const VaultAccountSize = idhash.DiscriminatorSize + 3*32 + 1

var vaultDiscriminator = idhash.AccountDiscriminator(VaultAccountName)

// Errors returned when an account is not a vault.
var (
	ErrNotVaultAccount = errors.New("account is not a vault")
	ErrWrongOwner      = errors.New("account not owned by program")
)

// DecodeVaultAccount parses vault state data. The returned vault has only
// the stored fields set.
func DecodeVaultAccount(data []byte) (*domain.Vault, error) {
	if len(data) < VaultAccountSize {
		return nil, fmt.Errorf("%w: data too short: %d", ErrNotVaultAccount, len(data))
	}
	if !vaultDiscriminator.Matches(data) {
		return nil, fmt.Errorf("%w: discriminator mismatch", ErrNotVaultAccount)
	}

	body := data[idhash.DiscriminatorSize:]
	v := &domain.Vault{Nonce: body[96]}
	copy(v.AssetMint[:], body[0:32])
	copy(v.AssetAccount[:], body[32:64])
	copy(v.ShareMint[:], body[64:96])
	return v, nil
}

// EncodeVaultAccount is the inverse of DecodeVaultAccount.
func EncodeVaultAccount(v *domain.Vault) []byte {
	data := make([]byte, VaultAccountSize)
	copy(data, vaultDiscriminator[:])
	body := data[idhash.DiscriminatorSize:]
	copy(body[0:32], v.AssetMint[:])
	copy(body[32:64], v.AssetAccount[:])
	copy(body[64:96], v.ShareMint[:])
	body[96] = v.Nonce
	return data
}

// Instruction data for the vault program: discriminator followed by the
// little-endian argument.

// EncodeInitialize returns the data of an initialize instruction.
func EncodeInitialize(nonce uint8) []byte {
	d := idhash.InstructionDiscriminator("initialize")
	return append(d[:], nonce)
}

// EncodeEnter returns the data of an enter instruction.
func EncodeEnter(amount uint64) []byte {
	d := idhash.InstructionDiscriminator("enter")
	return binary.LittleEndian.AppendUint64(d[:], amount)
}

// EncodeLeave returns the data of a leave instruction.
func EncodeLeave(shares uint64) []byte {
	d := idhash.InstructionDiscriminator("leave")
	return binary.LittleEndian.AppendUint64(d[:], shares)
}

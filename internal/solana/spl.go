package solana

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// SPL Token program account sizes.
const (
	TokenAccountSize = 165
	MintSize         = 82
)

// TokenProgramID is the SPL Token program.
var TokenProgramID = MustPublicKey("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")

// ErrInvalidAccountData is returned when account data does not match an SPL layout.
var ErrInvalidAccountData = errors.New("invalid account data")

// TokenAccount is the decoded subset of an SPL token account.
// Layout: mint(32) | owner(32) | amount(8) | delegate(36) | state(1) | ...
type TokenAccount struct {
	Address PublicKey
	Mint    PublicKey
	Owner   PublicKey
	Amount  uint64
	State   uint8
}

// Mint is the decoded SPL mint.
// Layout: mint_authority COption(36) | supply(8) | decimals(1) | is_initialized(1) | freeze_authority COption(36)
type Mint struct {
	Address         PublicKey
	MintAuthority   *PublicKey
	Supply          uint64
	Decimals        uint8
	IsInitialized   bool
	FreezeAuthority *PublicKey
}

// Token account states.
const (
	AccountStateUninitialized uint8 = 0
	AccountStateInitialized   uint8 = 1
	AccountStateFrozen        uint8 = 2
)

// DecodeTokenAccount parses raw SPL token account data.
func DecodeTokenAccount(data []byte) (*TokenAccount, error) {
	if len(data) < TokenAccountSize {
		return nil, fmt.Errorf("%w: token account data too short: %d", ErrInvalidAccountData, len(data))
	}

	acct := &TokenAccount{
		Amount: binary.LittleEndian.Uint64(data[64:72]),
		State:  data[108],
	}
	copy(acct.Mint[:], data[0:32])
	copy(acct.Owner[:], data[32:64])

	if acct.State == AccountStateUninitialized {
		return nil, fmt.Errorf("%w: token account not initialized", ErrInvalidAccountData)
	}
	return acct, nil
}

// MarshalBinary encodes the account in the SPL token account layout.
// Fields not tracked by TokenAccount are zeroed.
func (a *TokenAccount) MarshalBinary() ([]byte, error) {
	data := make([]byte, TokenAccountSize)
	copy(data[0:32], a.Mint[:])
	copy(data[32:64], a.Owner[:])
	binary.LittleEndian.PutUint64(data[64:72], a.Amount)
	data[108] = a.State
	return data, nil
}

// DecodeMint parses raw SPL mint data.
func DecodeMint(data []byte) (*Mint, error) {
	if len(data) < MintSize {
		return nil, fmt.Errorf("%w: mint data too short: %d", ErrInvalidAccountData, len(data))
	}

	m := &Mint{
		MintAuthority:   decodeCOptionKey(data[0:36]),
		Supply:          binary.LittleEndian.Uint64(data[36:44]),
		Decimals:        data[44],
		IsInitialized:   data[45] == 1,
		FreezeAuthority: decodeCOptionKey(data[46:82]),
	}
	if !m.IsInitialized {
		return nil, fmt.Errorf("%w: mint not initialized", ErrInvalidAccountData)
	}
	return m, nil
}

// MarshalBinary encodes the mint in the SPL mint layout.
func (m *Mint) MarshalBinary() ([]byte, error) {
	data := make([]byte, MintSize)
	encodeCOptionKey(data[0:36], m.MintAuthority)
	binary.LittleEndian.PutUint64(data[36:44], m.Supply)
	data[44] = m.Decimals
	if m.IsInitialized {
		data[45] = 1
	}
	encodeCOptionKey(data[46:82], m.FreezeAuthority)
	return data, nil
}

// COption<Pubkey>: u32 tag (0 = None, 1 = Some) followed by 32 key bytes.
func decodeCOptionKey(b []byte) *PublicKey {
	if binary.LittleEndian.Uint32(b[0:4]) == 0 {
		return nil
	}
	var pk PublicKey
	copy(pk[:], b[4:36])
	return &pk
}

func encodeCOptionKey(dst []byte, key *PublicKey) {
	if key == nil {
		return
	}
	binary.LittleEndian.PutUint32(dst[0:4], 1)
	copy(dst[4:36], key[:])
}

package solana

import (
	"errors"
	"math"
	"testing"
)

func TestTokenAccount_RoundTrip(t *testing.T) {
	acct := &TokenAccount{
		Mint:   MustPublicKey("BPFLoaderUpgradeab1e11111111111111111111111"),
		Owner:  TokenProgramID,
		Amount: math.MaxUint64,
		State:  AccountStateInitialized,
	}

	data, err := acct.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary failed: %v", err)
	}
	if len(data) != TokenAccountSize {
		t.Fatalf("len = %d, want %d", len(data), TokenAccountSize)
	}

	decoded, err := DecodeTokenAccount(data)
	if err != nil {
		t.Fatalf("DecodeTokenAccount failed: %v", err)
	}
	if decoded.Mint != acct.Mint || decoded.Owner != acct.Owner || decoded.Amount != acct.Amount {
		t.Errorf("decoded mismatch: %+v", decoded)
	}
}

func TestDecodeTokenAccount_Invalid(t *testing.T) {
	if _, err := DecodeTokenAccount(make([]byte, 10)); !errors.Is(err, ErrInvalidAccountData) {
		t.Errorf("expected ErrInvalidAccountData for short data, got %v", err)
	}
	if _, err := DecodeTokenAccount(make([]byte, TokenAccountSize)); !errors.Is(err, ErrInvalidAccountData) {
		t.Errorf("expected ErrInvalidAccountData for uninitialized account, got %v", err)
	}
}

func TestMint_RoundTrip(t *testing.T) {
	authority := MustPublicKey("SeedPubey1111111111111111111111111111111111")
	m := &Mint{
		MintAuthority: &authority,
		Supply:        1_000_000,
		Decimals:      6,
		IsInitialized: true,
	}

	data, err := m.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary failed: %v", err)
	}

	decoded, err := DecodeMint(data)
	if err != nil {
		t.Fatalf("DecodeMint failed: %v", err)
	}
	if decoded.MintAuthority == nil || *decoded.MintAuthority != authority {
		t.Errorf("mint authority mismatch: %v", decoded.MintAuthority)
	}
	if decoded.FreezeAuthority != nil {
		t.Errorf("freeze authority should be None")
	}
	if decoded.Supply != 1_000_000 || decoded.Decimals != 6 {
		t.Errorf("decoded mismatch: %+v", decoded)
	}
}

func TestDecodeMint_Uninitialized(t *testing.T) {
	if _, err := DecodeMint(make([]byte, MintSize)); !errors.Is(err, ErrInvalidAccountData) {
		t.Errorf("expected ErrInvalidAccountData, got %v", err)
	}
}

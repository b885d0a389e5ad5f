package custody

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-share-vault/internal/solana"
)

var (
	testMint  = solana.MustPublicKey("So11111111111111111111111111111111111111112")
	testOther = solana.MustPublicKey("BPFLoaderUpgradeab1e11111111111111111111111")
	testAlice = solana.MustPublicKey("SeedPubey1111111111111111111111111111111111")
	testBob   = solana.TokenProgramID
)

func account(addr, mint, owner solana.PublicKey, amount uint64) *solana.TokenAccount {
	return &solana.TokenAccount{Address: addr, Mint: mint, Owner: owner, Amount: amount, State: solana.AccountStateInitialized}
}

func TestApplyTransfer(t *testing.T) {
	from := account(testAlice, testMint, testAlice, 100)
	to := account(testBob, testMint, testBob, 5)

	require.NoError(t, ApplyTransfer(from, to, testAlice, 40))
	assert.Equal(t, uint64(60), from.Amount)
	assert.Equal(t, uint64(45), to.Amount)

	err := ApplyTransfer(from, to, testBob, 1)
	assert.ErrorIs(t, err, ErrOwnerMismatch)

	err = ApplyTransfer(from, to, testAlice, 61)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, uint64(60), from.Amount)
	assert.Equal(t, uint64(45), to.Amount)

	other := account(testOther, testOther, testBob, 0)
	assert.ErrorIs(t, ApplyTransfer(from, other, testAlice, 1), ErrMintMismatch)

	full := account(testOther, testMint, testBob, math.MaxUint64)
	assert.ErrorIs(t, ApplyTransfer(from, full, testAlice, 1), ErrOverflow)
	assert.Equal(t, uint64(60), from.Amount)
}

func TestApplyMintToAndBurn(t *testing.T) {
	authority := testBob
	mint := &solana.Mint{Address: testMint, MintAuthority: &authority, IsInitialized: true}
	to := account(testAlice, testMint, testAlice, 0)

	assert.ErrorIs(t, ApplyMintTo(mint, to, testAlice, 10), ErrAuthorityMismatch)

	require.NoError(t, ApplyMintTo(mint, to, authority, 10))
	assert.Equal(t, uint64(10), mint.Supply)
	assert.Equal(t, uint64(10), to.Amount)

	assert.ErrorIs(t, ApplyBurn(mint, to, authority, 1), ErrOwnerMismatch)
	assert.ErrorIs(t, ApplyBurn(mint, to, testAlice, 11), ErrInsufficientFunds)

	require.NoError(t, ApplyBurn(mint, to, testAlice, 4))
	assert.Equal(t, uint64(6), mint.Supply)
	assert.Equal(t, uint64(6), to.Amount)

	mint.Supply = math.MaxUint64
	assert.ErrorIs(t, ApplyMintTo(mint, to, authority, 1), ErrOverflow)
	assert.Equal(t, uint64(6), to.Amount)
}

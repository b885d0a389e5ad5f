package custody

import (
	"math/bits"

	"solana-share-vault/internal/solana"
)

// Operation names carried in *Error.
const (
	OpInitializeMint    = "initialize_mint"
	OpInitializeAccount = "initialize_account"
	OpTransfer          = "transfer"
	OpMintTo            = "mint_to"
	OpBurn              = "burn"
)

// ApplyTransfer validates a transfer and updates both balances in place.
// Nothing is modified when an error is returned.
func ApplyTransfer(from, to *solana.TokenAccount, authority solana.PublicKey, amount uint64) error {
	if from.Mint != to.Mint {
		return NewError(OpTransfer, to.Address, ErrMintMismatch)
	}
	if from.Owner != authority {
		return NewError(OpTransfer, from.Address, ErrOwnerMismatch)
	}
	if from.Amount < amount {
		return NewError(OpTransfer, from.Address, ErrInsufficientFunds)
	}
	if from.Address == to.Address {
		return nil
	}
	sum, carry := bits.Add64(to.Amount, amount, 0)
	if carry != 0 {
		return NewError(OpTransfer, to.Address, ErrOverflow)
	}
	from.Amount -= amount
	to.Amount = sum
	return nil
}

// ApplyMintTo validates a mint-to and updates supply and balance in place.
func ApplyMintTo(mint *solana.Mint, to *solana.TokenAccount, authority solana.PublicKey, amount uint64) error {
	if to.Mint != mint.Address {
		return NewError(OpMintTo, to.Address, ErrMintMismatch)
	}
	if mint.MintAuthority == nil || *mint.MintAuthority != authority {
		return NewError(OpMintTo, mint.Address, ErrAuthorityMismatch)
	}
	supply, carry := bits.Add64(mint.Supply, amount, 0)
	if carry != 0 {
		return NewError(OpMintTo, mint.Address, ErrOverflow)
	}
	balance, carry := bits.Add64(to.Amount, amount, 0)
	if carry != 0 {
		return NewError(OpMintTo, to.Address, ErrOverflow)
	}
	mint.Supply = supply
	to.Amount = balance
	return nil
}

// ApplyBurn validates a burn and updates supply and balance in place.
func ApplyBurn(mint *solana.Mint, from *solana.TokenAccount, authority solana.PublicKey, amount uint64) error {
	if from.Mint != mint.Address {
		return NewError(OpBurn, from.Address, ErrMintMismatch)
	}
	if from.Owner != authority {
		return NewError(OpBurn, from.Address, ErrOwnerMismatch)
	}
	if from.Amount < amount || mint.Supply < amount {
		return NewError(OpBurn, from.Address, ErrInsufficientFunds)
	}
	from.Amount -= amount
	mint.Supply -= amount
	return nil
}

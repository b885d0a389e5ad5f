package vault

import "errors"

// Operation errors.
var (
	// ErrAmountMustBeGreaterThanZero is returned for a zero deposit or withdrawal.
	ErrAmountMustBeGreaterThanZero = errors.New("amount must be greater than zero")

	// ErrInsufficientFundUnstake is returned when the share source cannot
	// cover the shares being burned.
	ErrInsufficientFundUnstake = errors.New("insufficient funds to unstake")

	// ErrVaultNotFound is returned when no vault is registered under an ID.
	ErrVaultNotFound = errors.New("vault not found")

	// ErrInvalidShareAccount is returned when the share account is not a
	// share mint account owned by the acting user.
	ErrInvalidShareAccount = errors.New("invalid share account")
)

// Initialization errors.
var (
	ErrVaultExists        = errors.New("vault already exists")
	ErrInvalidNonce       = errors.New("nonce does not derive a valid authority")
	ErrAssetAccountMint   = errors.New("asset account does not hold the asset mint")
	ErrAssetAccountOwner  = errors.New("asset account is not owned by the vault authority")
	ErrShareMintAuthority = errors.New("share mint authority is not the vault authority")
	ErrSameMint           = errors.New("share mint must differ from asset mint")
)

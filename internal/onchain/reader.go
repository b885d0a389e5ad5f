package onchain

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"solana-share-vault/internal/custody"
	"solana-share-vault/internal/domain"
	"solana-share-vault/internal/solana"
)

// Reader implements custody.Reader over Solana RPC. It never mutates state.
type Reader struct {
	rpc    solana.RPCClient
	logger *zap.Logger
}

// NewReader creates a Reader. A nil logger is replaced by a no-op logger.
func NewReader(rpc solana.RPCClient, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{rpc: rpc, logger: logger.Named("onchain")}
}

var _ custody.Reader = (*Reader)(nil)

// TokenAccount fetches and decodes an SPL token account.
func (r *Reader) TokenAccount(ctx context.Context, addr solana.PublicKey) (*solana.TokenAccount, error) {
	return r.tokenAccount(ctx, addr)
}

// Mint fetches and decodes an SPL mint.
func (r *Reader) Mint(ctx context.Context, addr solana.PublicKey) (*solana.Mint, error) {
	return r.mint(ctx, addr)
}

// BalanceOf returns the amount held by a token account.
func (r *Reader) BalanceOf(ctx context.Context, account solana.PublicKey) (uint64, error) {
	amt, err := r.balance(ctx, account)
	if err != nil {
		return 0, err
	}
	return amt.Amount, nil
}

// SupplyOf returns the supply of a mint.
func (r *Reader) SupplyOf(ctx context.Context, mint solana.PublicKey) (uint64, error) {
	amt, err := r.supply(ctx, mint)
	if err != nil {
		return 0, err
	}
	return amt.Amount, nil
}

// Slot returns the slot the RPC node has reached.
func (r *Reader) Slot(ctx context.Context) (int64, error) {
	slot, err := r.rpc.GetSlot(ctx)
	if err != nil {
		return 0, fmt.Errorf("get slot: %w", err)
	}
	return slot, nil
}

func (r *Reader) balance(ctx context.Context, account solana.PublicKey) (*solana.TokenAmount, error) {
	amt, err := r.rpc.GetTokenAccountBalance(ctx, account)
	if err != nil {
		return nil, r.explain(ctx, "get_account", account, custody.ErrAccountNotFound, err)
	}
	return amt, nil
}

func (r *Reader) supply(ctx context.Context, mint solana.PublicKey) (*solana.TokenAmount, error) {
	amt, err := r.rpc.GetTokenSupply(ctx, mint)
	if err != nil {
		return nil, r.explain(ctx, "get_mint", mint, custody.ErrMintNotFound, err)
	}
	return amt, nil
}

// explain turns a failed token read into a custody error when the account
// is missing or not a token program account. Other failures are wrapped as is.
func (r *Reader) explain(ctx context.Context, op string, addr solana.PublicKey, notFound, cause error) error {
	if _, err := r.tokenProgramAccount(ctx, op, addr, notFound); err != nil {
		return err
	}
	return fmt.Errorf("%s %s: %w", op, addr, cause)
}

// LoadVault fetches the vault state account and checks that programID owns it.
func (r *Reader) LoadVault(ctx context.Context, vaultID, programID solana.PublicKey) (*domain.Vault, error) {
	info, err := r.rpc.GetAccountInfo(ctx, vaultID)
	if err != nil {
		return nil, fmt.Errorf("get vault account %s: %w", vaultID, err)
	}
	if info == nil {
		return nil, fmt.Errorf("vault account %s: %w", vaultID, custody.ErrAccountNotFound)
	}
	if info.Owner != programID {
		return nil, fmt.Errorf("vault account %s owner %s: %w", vaultID, info.Owner, ErrWrongOwner)
	}

	v, err := DecodeVaultAccount(info.Data)
	if err != nil {
		return nil, fmt.Errorf("vault account %s: %w", vaultID, err)
	}
	v.ID = vaultID
	v.ProgramID = programID

	r.logger.Debug("loaded vault",
		zap.Stringer("vault", vaultID),
		zap.Stringer("asset_account", v.AssetAccount),
		zap.Stringer("share_mint", v.ShareMint),
		zap.Uint8("nonce", v.Nonce),
	)
	return v, nil
}

// Pool reads the vault's pooled balance and share supply. The returned slot
// is the lower of the two observations.
func (r *Reader) Pool(ctx context.Context, v *domain.Vault) (domain.PoolState, int64, error) {
	pooled, err := r.balance(ctx, v.AssetAccount)
	if err != nil {
		return domain.PoolState{}, 0, err
	}
	supply, err := r.supply(ctx, v.ShareMint)
	if err != nil {
		return domain.PoolState{}, 0, err
	}

	return domain.PoolState{
		VaultID:       v.ID,
		PooledBalance: pooled.Amount,
		ShareSupply:   supply.Amount,
	}, min(pooled.Slot, supply.Slot), nil
}

func (r *Reader) tokenAccount(ctx context.Context, addr solana.PublicKey) (*solana.TokenAccount, error) {
	info, err := r.tokenProgramAccount(ctx, "get_account", addr, custody.ErrAccountNotFound)
	if err != nil {
		return nil, err
	}
	acct, err := solana.DecodeTokenAccount(info.Data)
	if err != nil {
		return nil, fmt.Errorf("decode token account %s: %w", addr, err)
	}
	acct.Address = addr
	return acct, nil
}

func (r *Reader) mint(ctx context.Context, addr solana.PublicKey) (*solana.Mint, error) {
	info, err := r.tokenProgramAccount(ctx, "get_mint", addr, custody.ErrMintNotFound)
	if err != nil {
		return nil, err
	}
	m, err := solana.DecodeMint(info.Data)
	if err != nil {
		return nil, fmt.Errorf("decode mint %s: %w", addr, err)
	}
	m.Address = addr
	return m, nil
}

func (r *Reader) tokenProgramAccount(ctx context.Context, op string, addr solana.PublicKey, notFound error) (*solana.AccountInfo, error) {
	info, err := r.rpc.GetAccountInfo(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", addr, err)
	}
	if info == nil {
		return nil, custody.NewError(op, addr, notFound)
	}
	if info.Owner != solana.TokenProgramID {
		return nil, fmt.Errorf("account %s owner %s: %w", addr, info.Owner, ErrWrongOwner)
	}
	return info, nil
}

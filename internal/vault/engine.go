// Package vault implements initialization, deposit and withdrawal for
// proportional-share vaults on top of a custody ledger.
package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"solana-share-vault/internal/custody"
	"solana-share-vault/internal/domain"
	"solana-share-vault/internal/observability"
	"solana-share-vault/internal/shares"
	"solana-share-vault/internal/solana"
	"solana-share-vault/internal/storage"
)

// Engine runs vault operations.
type Engine struct {
	programID solana.PublicKey
	ledger    custody.Ledger
	vaults    storage.VaultStore
	receipts  storage.ReceiptStore
	snapshots storage.PriceSnapshotStore
	logger    *zap.Logger
	now       func() time.Time
	locks     *keyedMutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithSnapshotStore records a price snapshot after every committed operation.
func WithSnapshotStore(s storage.PriceSnapshotStore) Option {
	return func(e *Engine) {
		e.snapshots = s
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock sets the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine for vaults owned by programID.
func NewEngine(programID solana.PublicKey, ledger custody.Ledger, vaults storage.VaultStore, receipts storage.ReceiptStore, opts ...Option) *Engine {
	e := &Engine{
		programID: programID,
		ledger:    ledger,
		vaults:    vaults,
		receipts:  receipts,
		logger:    zap.NewNop(),
		now:       time.Now,
		locks:     newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("vault")
	return e
}

// ProgramID returns the program the engine derives authorities under.
func (e *Engine) ProgramID() solana.PublicKey {
	return e.programID
}

// InitializeRequest describes a new vault.
type InitializeRequest struct {
	VaultID      solana.PublicKey // generated when zero
	AssetMint    solana.PublicKey
	AssetAccount solana.PublicKey
	ShareMint    solana.PublicKey
	Nonce        *uint8 // canonical bump when nil
}

// EnterRequest deposits Amount assets from SourceAccount and mints shares
// into ShareAccount.
type EnterRequest struct {
	VaultID       solana.PublicKey
	User          solana.PublicKey
	SourceAccount solana.PublicKey
	ShareAccount  solana.PublicKey
	Amount        uint64
}

// LeaveRequest burns Shares from ShareAccount and releases the matching
// assets into DestinationAccount.
type LeaveRequest struct {
	VaultID            solana.PublicKey
	User               solana.PublicKey
	ShareAccount       solana.PublicKey
	DestinationAccount solana.PublicKey
	Shares             uint64
}

// Quote is the result of a preview.
type Quote struct {
	Pool   domain.PoolState
	Amount uint64 // assets in (enter) or out (leave)
	Shares uint64 // shares minted (enter) or burned (leave)
}

// Initialize validates and registers a vault. The asset account must hold
// the asset mint and be owned by the derived authority, and the share mint
// must be controlled by the same authority.
func (e *Engine) Initialize(ctx context.Context, req InitializeRequest) (*domain.Vault, error) {
	if req.VaultID.IsZero() {
		id, err := solana.NewRandomPublicKey()
		if err != nil {
			return nil, fmt.Errorf("generate vault id: %w", err)
		}
		req.VaultID = id
	}

	unlock := e.locks.Lock(req.VaultID)
	defer unlock()

	var (
		authority solana.PublicKey
		nonce     uint8
		err       error
	)
	if req.Nonce == nil {
		authority, nonce, err = FindAuthority(e.programID, req.VaultID)
	} else {
		nonce = *req.Nonce
		authority, err = DeriveAuthority(e.programID, req.VaultID, nonce)
	}
	if err != nil {
		return nil, err
	}

	if req.ShareMint == req.AssetMint {
		return nil, ErrSameMint
	}

	if _, err := e.vaults.GetByID(ctx, req.VaultID); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrVaultExists, req.VaultID)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("get vault: %w", err)
	}

	if _, err := e.ledger.Mint(ctx, req.AssetMint); err != nil {
		return nil, fmt.Errorf("asset mint: %w", err)
	}

	assetAccount, err := e.ledger.TokenAccount(ctx, req.AssetAccount)
	if err != nil {
		return nil, fmt.Errorf("asset account: %w", err)
	}
	if assetAccount.Mint != req.AssetMint {
		return nil, ErrAssetAccountMint
	}
	if assetAccount.Owner != authority {
		return nil, ErrAssetAccountOwner
	}

	shareMint, err := e.ledger.Mint(ctx, req.ShareMint)
	if err != nil {
		return nil, fmt.Errorf("share mint: %w", err)
	}
	if shareMint.MintAuthority == nil || *shareMint.MintAuthority != authority {
		return nil, ErrShareMintAuthority
	}

	v := &domain.Vault{
		ID:           req.VaultID,
		ProgramID:    e.programID,
		AssetMint:    req.AssetMint,
		AssetAccount: req.AssetAccount,
		ShareMint:    req.ShareMint,
		Nonce:        nonce,
		CreatedAt:    e.now().UnixMilli(),
	}
	if err := e.vaults.Insert(ctx, v); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: %s", ErrVaultExists, req.VaultID)
		}
		return nil, fmt.Errorf("insert vault: %w", err)
	}

	observability.RecordVaultInitialized()
	e.logger.Info("vault initialized",
		zap.Stringer("vault", v.ID),
		zap.Stringer("authority", authority),
		zap.Uint8("nonce", nonce),
	)
	return v, nil
}

// Enter deposits assets and mints shares at the current pool rate.
func (e *Engine) Enter(ctx context.Context, req EnterRequest) (receipt *domain.Receipt, err error) {
	start := time.Now()
	defer func() { e.observe(domain.ReceiptKindEnter, start, err) }()

	if req.Amount == 0 {
		return nil, ErrAmountMustBeGreaterThanZero
	}

	unlock := e.locks.Lock(req.VaultID)
	defer unlock()

	v, authority, err := e.load(ctx, req.VaultID)
	if err != nil {
		return nil, err
	}

	var after domain.PoolState
	err = e.ledger.Atomic(ctx, func(ctx context.Context, tx custody.Service) error {
		if err := checkShareAccount(ctx, tx, req.ShareAccount, v.ShareMint, req.User); err != nil {
			return err
		}

		pool, err := readPool(ctx, tx, v)
		if err != nil {
			return err
		}

		minted, err := shares.AssetToShares(req.Amount, pool.PooledBalance, pool.ShareSupply)
		if err != nil {
			return err
		}

		if err := tx.MintTo(ctx, v.ShareMint, req.ShareAccount, authority, minted); err != nil {
			return err
		}
		if err := tx.Transfer(ctx, req.SourceAccount, v.AssetAccount, req.User, req.Amount); err != nil {
			return err
		}
		if after, err = readPool(ctx, tx, v); err != nil {
			return err
		}

		receipt = &domain.Receipt{
			ReceiptID:           uuid.NewString(),
			VaultID:             v.ID,
			Kind:                domain.ReceiptKindEnter,
			User:                req.User,
			SourceAccount:       req.SourceAccount,
			DestinationAccount:  req.ShareAccount,
			AssetAmount:         req.Amount,
			ShareAmount:         minted,
			PooledBalanceBefore: pool.PooledBalance,
			ShareSupplyBefore:   pool.ShareSupply,
			Timestamp:           e.now().UnixMilli(),
		}
		// Last step: a memory receipt store is not rolled back with the ledger.
		if err := e.receipts.Insert(ctx, receipt); err != nil {
			return fmt.Errorf("insert receipt: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enter: %w", err)
	}

	observability.RecordEnter(v.ID.String(), receipt.AssetAmount, receipt.ShareAmount)
	e.afterCommit(ctx, receipt, after)
	return receipt, nil
}

// Leave burns shares and releases assets at the current pool rate.
func (e *Engine) Leave(ctx context.Context, req LeaveRequest) (receipt *domain.Receipt, err error) {
	start := time.Now()
	defer func() { e.observe(domain.ReceiptKindLeave, start, err) }()

	if req.Shares == 0 {
		return nil, ErrAmountMustBeGreaterThanZero
	}

	unlock := e.locks.Lock(req.VaultID)
	defer unlock()

	v, authority, err := e.load(ctx, req.VaultID)
	if err != nil {
		return nil, err
	}

	var after domain.PoolState
	err = e.ledger.Atomic(ctx, func(ctx context.Context, tx custody.Service) error {
		if err := checkShareAccount(ctx, tx, req.ShareAccount, v.ShareMint, req.User); err != nil {
			return err
		}

		pool, err := readPool(ctx, tx, v)
		if err != nil {
			return err
		}

		out, err := shares.SharesToAsset(req.Shares, pool.PooledBalance, pool.ShareSupply)
		if err != nil {
			return err
		}

		if err := tx.Burn(ctx, v.ShareMint, req.ShareAccount, req.User, req.Shares); err != nil {
			if errors.Is(err, custody.ErrInsufficientFunds) {
				return fmt.Errorf("%w: %w", ErrInsufficientFundUnstake, err)
			}
			return err
		}
		if err := tx.Transfer(ctx, v.AssetAccount, req.DestinationAccount, authority, out); err != nil {
			return err
		}
		if after, err = readPool(ctx, tx, v); err != nil {
			return err
		}

		receipt = &domain.Receipt{
			ReceiptID:           uuid.NewString(),
			VaultID:             v.ID,
			Kind:                domain.ReceiptKindLeave,
			User:                req.User,
			SourceAccount:       req.ShareAccount,
			DestinationAccount:  req.DestinationAccount,
			AssetAmount:         out,
			ShareAmount:         req.Shares,
			PooledBalanceBefore: pool.PooledBalance,
			ShareSupplyBefore:   pool.ShareSupply,
			Timestamp:           e.now().UnixMilli(),
		}
		if err := e.receipts.Insert(ctx, receipt); err != nil {
			return fmt.Errorf("insert receipt: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("leave: %w", err)
	}

	observability.RecordLeave(v.ID.String(), receipt.AssetAmount, receipt.ShareAmount)
	e.afterCommit(ctx, receipt, after)
	return receipt, nil
}

// Pool returns live pool readings for a vault.
func (e *Engine) Pool(ctx context.Context, vaultID solana.PublicKey) (domain.PoolState, error) {
	v, err := e.Vault(ctx, vaultID)
	if err != nil {
		return domain.PoolState{}, err
	}
	return readPool(ctx, e.ledger, v)
}

// PreviewEnter returns the shares a deposit of amount would mint now.
func (e *Engine) PreviewEnter(ctx context.Context, vaultID solana.PublicKey, amount uint64) (*Quote, error) {
	if amount == 0 {
		return nil, ErrAmountMustBeGreaterThanZero
	}
	pool, err := e.Pool(ctx, vaultID)
	if err != nil {
		return nil, err
	}
	minted, err := shares.AssetToShares(amount, pool.PooledBalance, pool.ShareSupply)
	if err != nil {
		return nil, err
	}
	return &Quote{Pool: pool, Amount: amount, Shares: minted}, nil
}

// PreviewLeave returns the assets burning n shares would release now.
func (e *Engine) PreviewLeave(ctx context.Context, vaultID solana.PublicKey, n uint64) (*Quote, error) {
	if n == 0 {
		return nil, ErrAmountMustBeGreaterThanZero
	}
	pool, err := e.Pool(ctx, vaultID)
	if err != nil {
		return nil, err
	}
	out, err := shares.SharesToAsset(n, pool.PooledBalance, pool.ShareSupply)
	if err != nil {
		return nil, err
	}
	return &Quote{Pool: pool, Amount: out, Shares: n}, nil
}

// Vault returns a registered vault.
func (e *Engine) Vault(ctx context.Context, id solana.PublicKey) (*domain.Vault, error) {
	v, err := e.vaults.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrVaultNotFound, id)
		}
		return nil, fmt.Errorf("get vault: %w", err)
	}
	return v, nil
}

// Vaults lists registered vaults.
func (e *Engine) Vaults(ctx context.Context) ([]*domain.Vault, error) {
	return e.vaults.List(ctx)
}

// Receipts lists committed operations of a vault.
func (e *Engine) Receipts(ctx context.Context, vaultID solana.PublicKey) ([]*domain.Receipt, error) {
	if _, err := e.Vault(ctx, vaultID); err != nil {
		return nil, err
	}
	return e.receipts.GetByVault(ctx, vaultID)
}

// UserReceipts lists committed operations of one user in a vault.
func (e *Engine) UserReceipts(ctx context.Context, vaultID, user solana.PublicKey) ([]*domain.Receipt, error) {
	if _, err := e.Vault(ctx, vaultID); err != nil {
		return nil, err
	}
	return e.receipts.GetByUser(ctx, vaultID, user)
}

// Snapshots lists price snapshots of a vault between from and to (unix ms,
// inclusive). Returns nil when no snapshot store is configured.
func (e *Engine) Snapshots(ctx context.Context, vaultID solana.PublicKey, from, to int64) ([]*domain.PriceSnapshot, error) {
	if _, err := e.Vault(ctx, vaultID); err != nil {
		return nil, err
	}
	if e.snapshots == nil {
		return nil, nil
	}
	return e.snapshots.GetByTimeRange(ctx, vaultID, from, to)
}

// Authority returns the derived authority of a registered vault.
func (e *Engine) Authority(v *domain.Vault) (solana.PublicKey, error) {
	return DeriveAuthority(v.ProgramID, v.ID, v.Nonce)
}

func (e *Engine) load(ctx context.Context, vaultID solana.PublicKey) (*domain.Vault, solana.PublicKey, error) {
	v, err := e.Vault(ctx, vaultID)
	if err != nil {
		return nil, solana.PublicKey{}, err
	}
	authority, err := e.Authority(v)
	if err != nil {
		return nil, solana.PublicKey{}, err
	}
	return v, authority, nil
}

func readPool(ctx context.Context, r custody.Reader, v *domain.Vault) (domain.PoolState, error) {
	pooled, err := r.BalanceOf(ctx, v.AssetAccount)
	if err != nil {
		return domain.PoolState{}, fmt.Errorf("pooled balance: %w", err)
	}
	supply, err := r.SupplyOf(ctx, v.ShareMint)
	if err != nil {
		return domain.PoolState{}, fmt.Errorf("share supply: %w", err)
	}
	return domain.PoolState{VaultID: v.ID, PooledBalance: pooled, ShareSupply: supply}, nil
}

func checkShareAccount(ctx context.Context, r custody.Reader, account, shareMint, user solana.PublicKey) error {
	acct, err := r.TokenAccount(ctx, account)
	if err != nil {
		return err
	}
	if acct.Mint != shareMint || acct.Owner != user {
		return fmt.Errorf("%w: %s", ErrInvalidShareAccount, account)
	}
	return nil
}

func (e *Engine) afterCommit(ctx context.Context, r *domain.Receipt, pool domain.PoolState) {
	price := pool.Price()
	observability.UpdatePool(pool.VaultID.String(), pool.PooledBalance, pool.ShareSupply, price.InexactFloat64())

	e.logger.Info("operation committed",
		zap.String("receipt", r.ReceiptID),
		zap.Stringer("vault", r.VaultID),
		zap.String("kind", r.Kind.String()),
		zap.Stringer("user", r.User),
		zap.Uint64("assets", r.AssetAmount),
		zap.Uint64("shares", r.ShareAmount),
		zap.Stringer("price", price),
	)

	if e.snapshots == nil {
		return
	}
	snap := domain.NewPriceSnapshot(pool, r.Timestamp, 0, domain.SnapshotSourceOperation)
	if err := e.snapshots.InsertBulk(ctx, []*domain.PriceSnapshot{snap}); err != nil {
		e.logger.Warn("record price snapshot", zap.Stringer("vault", r.VaultID), zap.Error(err))
		return
	}
	observability.RecordSnapshots(string(domain.SnapshotSourceOperation), 1)
}

func (e *Engine) observe(kind domain.ReceiptKind, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		e.logger.Debug("operation failed", zap.String("kind", kind.String()), zap.Error(err))
	}
	observability.RecordOperation(kind.String(), status, time.Since(start).Seconds())
}

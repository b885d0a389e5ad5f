package memory

import (
	"context"
	"sync"

	"solana-share-vault/internal/custody"
	"solana-share-vault/internal/solana"
)

// Ledger is an in-memory implementation of custody.Ledger.
// Units of work are staged on copies and applied on success; one
// ledger-wide lock serializes them.
type Ledger struct {
	mu       sync.RWMutex
	accounts map[solana.PublicKey]*solana.TokenAccount
	mints    map[solana.PublicKey]*solana.Mint
}

// NewLedger creates an empty in-memory ledger.
func NewLedger() *Ledger {
	return &Ledger{
		accounts: make(map[solana.PublicKey]*solana.TokenAccount),
		mints:    make(map[solana.PublicKey]*solana.Mint),
	}
}

// TokenAccount returns a copy of the account at addr.
func (l *Ledger) TokenAccount(_ context.Context, addr solana.PublicKey) (*solana.TokenAccount, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	acct, ok := l.accounts[addr]
	if !ok {
		return nil, custody.NewError("get_account", addr, custody.ErrAccountNotFound)
	}
	acctCopy := *acct
	return &acctCopy, nil
}

// Mint returns a copy of the mint at addr.
func (l *Ledger) Mint(_ context.Context, addr solana.PublicKey) (*solana.Mint, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	m, ok := l.mints[addr]
	if !ok {
		return nil, custody.NewError("get_mint", addr, custody.ErrMintNotFound)
	}
	return copyMint(m), nil
}

// BalanceOf returns the amount held by account.
func (l *Ledger) BalanceOf(ctx context.Context, account solana.PublicKey) (uint64, error) {
	acct, err := l.TokenAccount(ctx, account)
	if err != nil {
		return 0, err
	}
	return acct.Amount, nil
}

// SupplyOf returns the supply of mint.
func (l *Ledger) SupplyOf(ctx context.Context, mint solana.PublicKey) (uint64, error) {
	m, err := l.Mint(ctx, mint)
	if err != nil {
		return 0, err
	}
	return m.Supply, nil
}

// Atomic runs fn against a staged view of the ledger and applies the staged
// changes only when fn succeeds. Once fn has returned nil the changes are
// applied even if ctx is canceled meanwhile, since fn may already have written
// records that belong to the unit of work. Calls on l itself from inside fn
// deadlock; use tx.
func (l *Ledger) Atomic(ctx context.Context, fn func(ctx context.Context, tx custody.Service) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &ledgerTx{
		base:     l,
		accounts: make(map[solana.PublicKey]*solana.TokenAccount),
		mints:    make(map[solana.PublicKey]*solana.Mint),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	for addr, acct := range tx.accounts {
		l.accounts[addr] = acct
	}
	for addr, m := range tx.mints {
		l.mints[addr] = m
	}
	return nil
}

// ledgerTx stages writes for one unit of work. The ledger lock is held by
// Atomic for the lifetime of the tx.
type ledgerTx struct {
	base     *Ledger
	accounts map[solana.PublicKey]*solana.TokenAccount
	mints    map[solana.PublicKey]*solana.Mint
}

// stagedAccount returns the staged copy of addr, staging it on first use.
func (tx *ledgerTx) stagedAccount(op string, addr solana.PublicKey) (*solana.TokenAccount, error) {
	if acct, ok := tx.accounts[addr]; ok {
		return acct, nil
	}
	acct, ok := tx.base.accounts[addr]
	if !ok {
		return nil, custody.NewError(op, addr, custody.ErrAccountNotFound)
	}
	acctCopy := *acct
	tx.accounts[addr] = &acctCopy
	return &acctCopy, nil
}

func (tx *ledgerTx) stagedMint(op string, addr solana.PublicKey) (*solana.Mint, error) {
	if m, ok := tx.mints[addr]; ok {
		return m, nil
	}
	m, ok := tx.base.mints[addr]
	if !ok {
		return nil, custody.NewError(op, addr, custody.ErrMintNotFound)
	}
	staged := copyMint(m)
	tx.mints[addr] = staged
	return staged, nil
}

func (tx *ledgerTx) exists(addr solana.PublicKey) bool {
	if _, ok := tx.accounts[addr]; ok {
		return true
	}
	if _, ok := tx.mints[addr]; ok {
		return true
	}
	if _, ok := tx.base.accounts[addr]; ok {
		return true
	}
	_, ok := tx.base.mints[addr]
	return ok
}

func (tx *ledgerTx) TokenAccount(_ context.Context, addr solana.PublicKey) (*solana.TokenAccount, error) {
	acct, err := tx.stagedAccount("get_account", addr)
	if err != nil {
		return nil, err
	}
	acctCopy := *acct
	return &acctCopy, nil
}

func (tx *ledgerTx) Mint(_ context.Context, addr solana.PublicKey) (*solana.Mint, error) {
	m, err := tx.stagedMint("get_mint", addr)
	if err != nil {
		return nil, err
	}
	return copyMint(m), nil
}

func (tx *ledgerTx) BalanceOf(ctx context.Context, account solana.PublicKey) (uint64, error) {
	acct, err := tx.TokenAccount(ctx, account)
	if err != nil {
		return 0, err
	}
	return acct.Amount, nil
}

func (tx *ledgerTx) SupplyOf(ctx context.Context, mint solana.PublicKey) (uint64, error) {
	m, err := tx.Mint(ctx, mint)
	if err != nil {
		return 0, err
	}
	return m.Supply, nil
}

func (tx *ledgerTx) InitializeMint(_ context.Context, mint, authority solana.PublicKey, decimals uint8) error {
	if tx.exists(mint) {
		return custody.NewError(custody.OpInitializeMint, mint, custody.ErrAccountExists)
	}
	auth := authority
	tx.mints[mint] = &solana.Mint{
		Address:       mint,
		MintAuthority: &auth,
		Decimals:      decimals,
		IsInitialized: true,
	}
	return nil
}

func (tx *ledgerTx) InitializeAccount(_ context.Context, account, mint, owner solana.PublicKey) error {
	if tx.exists(account) {
		return custody.NewError(custody.OpInitializeAccount, account, custody.ErrAccountExists)
	}
	if _, err := tx.stagedMint(custody.OpInitializeAccount, mint); err != nil {
		return err
	}
	tx.accounts[account] = &solana.TokenAccount{
		Address: account,
		Mint:    mint,
		Owner:   owner,
		State:   solana.AccountStateInitialized,
	}
	return nil
}

func (tx *ledgerTx) Transfer(_ context.Context, from, to, authority solana.PublicKey, amount uint64) error {
	src, err := tx.stagedAccount(custody.OpTransfer, from)
	if err != nil {
		return err
	}
	dst, err := tx.stagedAccount(custody.OpTransfer, to)
	if err != nil {
		return err
	}
	return custody.ApplyTransfer(src, dst, authority, amount)
}

func (tx *ledgerTx) MintTo(_ context.Context, mint, to, authority solana.PublicKey, amount uint64) error {
	m, err := tx.stagedMint(custody.OpMintTo, mint)
	if err != nil {
		return err
	}
	dst, err := tx.stagedAccount(custody.OpMintTo, to)
	if err != nil {
		return err
	}
	return custody.ApplyMintTo(m, dst, authority, amount)
}

func (tx *ledgerTx) Burn(_ context.Context, mint, from, authority solana.PublicKey, amount uint64) error {
	m, err := tx.stagedMint(custody.OpBurn, mint)
	if err != nil {
		return err
	}
	src, err := tx.stagedAccount(custody.OpBurn, from)
	if err != nil {
		return err
	}
	return custody.ApplyBurn(m, src, authority, amount)
}

func copyMint(m *solana.Mint) *solana.Mint {
	mintCopy := *m
	if m.MintAuthority != nil {
		auth := *m.MintAuthority
		mintCopy.MintAuthority = &auth
	}
	if m.FreezeAuthority != nil {
		freeze := *m.FreezeAuthority
		mintCopy.FreezeAuthority = &freeze
	}
	return &mintCopy
}

var (
	_ custody.Ledger  = (*Ledger)(nil)
	_ custody.Service = (*ledgerTx)(nil)
)

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"solana-share-vault/internal/custody"
	"solana-share-vault/internal/solana"
)

// Ledger implements custody.Ledger on PostgreSQL.
// Each unit of work runs in one transaction; the rows it mutates are
// locked with SELECT ... FOR UPDATE, so concurrent units touching the same
// accounts are serialized by the database.
type Ledger struct {
	pool *Pool
	now  func() time.Time
}

// NewLedger creates a new Ledger.
func NewLedger(pool *Pool) *Ledger {
	return &Ledger{pool: pool, now: time.Now}
}

// Compile-time interface checks.
var (
	_ custody.Ledger  = (*Ledger)(nil)
	_ custody.Service = (*ledgerTx)(nil)
)

const (
	accountColumns = `address, mint, owner, amount, state`
	mintColumns    = `address, mint_authority, supply, decimals, freeze_authority`
)

// TokenAccount returns the account at addr.
func (l *Ledger) TokenAccount(ctx context.Context, addr solana.PublicKey) (*solana.TokenAccount, error) {
	return getAccount(ctx, l.pool.conn(ctx), "get_account", addr, "")
}

// Mint returns the mint at addr.
func (l *Ledger) Mint(ctx context.Context, addr solana.PublicKey) (*solana.Mint, error) {
	return getMint(ctx, l.pool.conn(ctx), "get_mint", addr, "")
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

// Atomic runs fn inside one transaction. The context passed to fn carries
// the transaction; stores of this package called with it join the same
// commit.
func (l *Ledger) Atomic(ctx context.Context, fn func(ctx context.Context, tx custody.Service) error) (err error) {
	defer observeQuery("ledger_atomic", time.Now(), &err)

	pgTx, err := l.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer pgTx.Rollback(ctx)

	tx := &ledgerTx{tx: pgTx, now: l.now}
	if err := fn(withTx(ctx, pgTx), tx); err != nil {
		return err
	}

	if err := pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ledgerTx is the custody.Service handed to a unit of work.
type ledgerTx struct {
	tx  pgx.Tx
	now func() time.Time
}

func (t *ledgerTx) TokenAccount(ctx context.Context, addr solana.PublicKey) (*solana.TokenAccount, error) {
	return getAccount(ctx, t.tx, "get_account", addr, " FOR UPDATE")
}

func (t *ledgerTx) Mint(ctx context.Context, addr solana.PublicKey) (*solana.Mint, error) {
	return getMint(ctx, t.tx, "get_mint", addr, " FOR UPDATE")
}

func (t *ledgerTx) BalanceOf(ctx context.Context, account solana.PublicKey) (uint64, error) {
	acct, err := t.TokenAccount(ctx, account)
	if err != nil {
		return 0, err
	}
	return acct.Amount, nil
}

func (t *ledgerTx) SupplyOf(ctx context.Context, mint solana.PublicKey) (uint64, error) {
	m, err := t.Mint(ctx, mint)
	if err != nil {
		return 0, err
	}
	return m.Supply, nil
}

func (t *ledgerTx) InitializeMint(ctx context.Context, mint, authority solana.PublicKey, decimals uint8) error {
	exists, err := t.exists(ctx, mint)
	if err != nil {
		return err
	}
	if exists {
		return custody.NewError(custody.OpInitializeMint, mint, custody.ErrAccountExists)
	}

	query := `
		INSERT INTO ledger_mints (address, mint_authority, supply, decimals, created_at)
		VALUES ($1, $2, 0, $3, $4)
	`
	_, err = t.tx.Exec(ctx, query, mint.String(), authority.String(), int16(decimals), t.now().UnixMilli())
	if err != nil {
		if isDuplicateKeyError(err) {
			return custody.NewError(custody.OpInitializeMint, mint, custody.ErrAccountExists)
		}
		return fmt.Errorf("insert mint: %w", err)
	}
	return nil
}

func (t *ledgerTx) InitializeAccount(ctx context.Context, account, mint, owner solana.PublicKey) error {
	exists, err := t.exists(ctx, account)
	if err != nil {
		return err
	}
	if exists {
		return custody.NewError(custody.OpInitializeAccount, account, custody.ErrAccountExists)
	}
	if _, err := getMint(ctx, t.tx, custody.OpInitializeAccount, mint, " FOR SHARE"); err != nil {
		return err
	}

	query := `
		INSERT INTO ledger_accounts (address, mint, owner, amount, state, created_at)
		VALUES ($1, $2, $3, 0, $4, $5)
	`
	_, err = t.tx.Exec(ctx, query,
		account.String(), mint.String(), owner.String(),
		int16(solana.AccountStateInitialized), t.now().UnixMilli(),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return custody.NewError(custody.OpInitializeAccount, account, custody.ErrAccountExists)
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (t *ledgerTx) Transfer(ctx context.Context, from, to, authority solana.PublicKey, amount uint64) error {
	accounts, err := t.lockAccounts(ctx, custody.OpTransfer, from, to)
	if err != nil {
		return err
	}
	src, dst := accounts[from], accounts[to]

	if err := custody.ApplyTransfer(src, dst, authority, amount); err != nil {
		return err
	}
	if from == to {
		return nil
	}
	if err := t.saveAccount(ctx, src); err != nil {
		return err
	}
	return t.saveAccount(ctx, dst)
}

func (t *ledgerTx) MintTo(ctx context.Context, mint, to, authority solana.PublicKey, amount uint64) error {
	m, err := getMint(ctx, t.tx, custody.OpMintTo, mint, " FOR UPDATE")
	if err != nil {
		return err
	}
	accounts, err := t.lockAccounts(ctx, custody.OpMintTo, to)
	if err != nil {
		return err
	}
	dst := accounts[to]

	if err := custody.ApplyMintTo(m, dst, authority, amount); err != nil {
		return err
	}
	if err := t.saveMint(ctx, m); err != nil {
		return err
	}
	return t.saveAccount(ctx, dst)
}

func (t *ledgerTx) Burn(ctx context.Context, mint, from, authority solana.PublicKey, amount uint64) error {
	m, err := getMint(ctx, t.tx, custody.OpBurn, mint, " FOR UPDATE")
	if err != nil {
		return err
	}
	accounts, err := t.lockAccounts(ctx, custody.OpBurn, from)
	if err != nil {
		return err
	}
	src := accounts[from]

	if err := custody.ApplyBurn(m, src, authority, amount); err != nil {
		return err
	}
	if err := t.saveMint(ctx, m); err != nil {
		return err
	}
	return t.saveAccount(ctx, src)
}

// lockAccounts reads and row-locks addrs in address order.
func (t *ledgerTx) lockAccounts(ctx context.Context, op string, addrs ...solana.PublicKey) (map[solana.PublicKey]*solana.TokenAccount, error) {
	keys := make([]string, 0, len(addrs))
	for _, a := range addrs {
		keys = append(keys, a.String())
	}

	query := `
		SELECT ` + accountColumns + `
		FROM ledger_accounts
		WHERE address = ANY($1)
		ORDER BY address
		FOR UPDATE
	`
	rows, err := t.tx.Query(ctx, query, keys)
	if err != nil {
		return nil, fmt.Errorf("lock accounts: %w", err)
	}
	defer rows.Close()

	accounts := make(map[solana.PublicKey]*solana.TokenAccount, len(addrs))
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts[acct.Address] = acct
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}

	for _, a := range addrs {
		if _, ok := accounts[a]; !ok {
			return nil, custody.NewError(op, a, custody.ErrAccountNotFound)
		}
	}
	return accounts, nil
}

func (t *ledgerTx) saveAccount(ctx context.Context, acct *solana.TokenAccount) error {
	_, err := t.tx.Exec(ctx, `UPDATE ledger_accounts SET amount = $2 WHERE address = $1`,
		acct.Address.String(), numericFromUint64(acct.Amount))
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return nil
}

func (t *ledgerTx) saveMint(ctx context.Context, m *solana.Mint) error {
	_, err := t.tx.Exec(ctx, `UPDATE ledger_mints SET supply = $2 WHERE address = $1`,
		m.Address.String(), numericFromUint64(m.Supply))
	if err != nil {
		return fmt.Errorf("update mint: %w", err)
	}
	return nil
}

// exists reports whether addr is taken by a mint or a token account.
func (t *ledgerTx) exists(ctx context.Context, addr solana.PublicKey) (bool, error) {
	query := `
		SELECT EXISTS (SELECT 1 FROM ledger_mints WHERE address = $1)
		    OR EXISTS (SELECT 1 FROM ledger_accounts WHERE address = $1)
	`
	var exists bool
	if err := t.tx.QueryRow(ctx, query, addr.String()).Scan(&exists); err != nil {
		return false, fmt.Errorf("check address: %w", err)
	}
	return exists, nil
}

func getAccount(ctx context.Context, q querier, op string, addr solana.PublicKey, lock string) (*solana.TokenAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM ledger_accounts WHERE address = $1` + lock

	acct, err := scanAccount(q.QueryRow(ctx, query, addr.String()))
	if err != nil {
		if isNotFoundError(err) {
			return nil, custody.NewError(op, addr, custody.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return acct, nil
}

func getMint(ctx context.Context, q querier, op string, addr solana.PublicKey, lock string) (*solana.Mint, error) {
	query := `SELECT ` + mintColumns + ` FROM ledger_mints WHERE address = $1` + lock

	m, err := scanMint(q.QueryRow(ctx, query, addr.String()))
	if err != nil {
		if isNotFoundError(err) {
			return nil, custody.NewError(op, addr, custody.ErrMintNotFound)
		}
		return nil, fmt.Errorf("get mint: %w", err)
	}
	return m, nil
}

func scanAccount(row pgx.Row) (*solana.TokenAccount, error) {
	var (
		address, mint, owner string
		amount               pgtype.Numeric
		state                int16
	)
	if err := row.Scan(&address, &mint, &owner, &amount, &state); err != nil {
		return nil, err
	}

	acct := &solana.TokenAccount{State: uint8(state)}
	var err error
	if acct.Address, err = parseKey("address", address); err != nil {
		return nil, err
	}
	if acct.Mint, err = parseKey("mint", mint); err != nil {
		return nil, err
	}
	if acct.Owner, err = parseKey("owner", owner); err != nil {
		return nil, err
	}
	if acct.Amount, err = uint64FromNumeric(amount); err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	return acct, nil
}

func scanMint(row pgx.Row) (*solana.Mint, error) {
	var (
		address           string
		authority, freeze *string
		supply            pgtype.Numeric
		decimals          int16
	)
	if err := row.Scan(&address, &authority, &supply, &decimals, &freeze); err != nil {
		return nil, err
	}

	m := &solana.Mint{Decimals: uint8(decimals), IsInitialized: true}
	var err error
	if m.Address, err = parseKey("address", address); err != nil {
		return nil, err
	}
	if m.MintAuthority, err = parseOptionalKey("mint_authority", authority); err != nil {
		return nil, err
	}
	if m.FreezeAuthority, err = parseOptionalKey("freeze_authority", freeze); err != nil {
		return nil, err
	}
	if m.Supply, err = uint64FromNumeric(supply); err != nil {
		return nil, fmt.Errorf("supply: %w", err)
	}
	return m, nil
}

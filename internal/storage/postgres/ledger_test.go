package postgres

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-share-vault/internal/custody"
	"solana-share-vault/internal/domain"
	"solana-share-vault/internal/solana"
	"solana-share-vault/internal/storage"
)

type ledgerFixture struct {
	pool      *Pool
	ledger    *Ledger
	mint      solana.PublicKey
	authority solana.PublicKey
	alice     solana.PublicKey
	aliceAcct solana.PublicKey
	bobAcct   solana.PublicKey
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	pool := setupTestDB(t)

	f := &ledgerFixture{
		pool:      pool,
		ledger:    NewLedger(pool),
		mint:      newKey(t),
		authority: newKey(t),
		alice:     newKey(t),
		aliceAcct: newKey(t),
		bobAcct:   newKey(t),
	}

	err := f.ledger.Atomic(context.Background(), func(ctx context.Context, tx custody.Service) error {
		if err := tx.InitializeMint(ctx, f.mint, f.authority, 6); err != nil {
			return err
		}
		if err := tx.InitializeAccount(ctx, f.aliceAcct, f.mint, f.alice); err != nil {
			return err
		}
		if err := tx.InitializeAccount(ctx, f.bobAcct, f.mint, newKey(t)); err != nil {
			return err
		}
		return tx.MintTo(ctx, f.mint, f.aliceAcct, f.authority, 1000)
	})
	require.NoError(t, err)
	return f
}

func TestLedger_CommitOnSuccess(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	err := f.ledger.Atomic(ctx, func(ctx context.Context, tx custody.Service) error {
		if err := tx.Transfer(ctx, f.aliceAcct, f.bobAcct, f.alice, 300); err != nil {
			return err
		}
		bal, err := tx.BalanceOf(ctx, f.bobAcct)
		require.NoError(t, err)
		assert.Equal(t, uint64(300), bal)
		return nil
	})
	require.NoError(t, err)

	alice, err := f.ledger.BalanceOf(ctx, f.aliceAcct)
	require.NoError(t, err)
	bob, err := f.ledger.BalanceOf(ctx, f.bobAcct)
	require.NoError(t, err)
	supply, err := f.ledger.SupplyOf(ctx, f.mint)
	require.NoError(t, err)

	assert.Equal(t, uint64(700), alice)
	assert.Equal(t, uint64(300), bob)
	assert.Equal(t, uint64(1000), supply)
}

func TestLedger_RollbackOnError(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	err := f.ledger.Atomic(ctx, func(ctx context.Context, tx custody.Service) error {
		if err := tx.MintTo(ctx, f.mint, f.aliceAcct, f.authority, 500); err != nil {
			return err
		}
		// Fails: alice holds 1500, not 2000
		return tx.Transfer(ctx, f.aliceAcct, f.bobAcct, f.alice, 2000)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, custody.ErrInsufficientFunds)
	assert.True(t, custody.IsCustodyError(err))

	supply, err := f.ledger.SupplyOf(ctx, f.mint)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), supply)

	alice, err := f.ledger.BalanceOf(ctx, f.aliceAcct)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), alice)
}

func TestLedger_ReceiptJoinsUnitOfWork(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	vault := newTestVault(t, 1000)
	require.NoError(t, NewVaultStore(f.pool).Insert(ctx, vault))
	receipts := NewReceiptStore(f.pool)

	committed := newTestReceipt(vault, f.alice, domain.ReceiptKindEnter, 1)
	err := f.ledger.Atomic(ctx, func(ctx context.Context, tx custody.Service) error {
		return receipts.Insert(ctx, committed)
	})
	require.NoError(t, err)

	discarded := newTestReceipt(vault, f.alice, domain.ReceiptKindEnter, 2)
	errAbort := errors.New("abort")
	err = f.ledger.Atomic(ctx, func(ctx context.Context, tx custody.Service) error {
		if err := receipts.Insert(ctx, discarded); err != nil {
			return err
		}
		return errAbort
	})
	assert.ErrorIs(t, err, errAbort)

	_, err = receipts.GetByID(ctx, committed.ReceiptID)
	assert.NoError(t, err)
	_, err = receipts.GetByID(ctx, discarded.ReceiptID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLedger_InitializeErrors(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		fn      func(ctx context.Context, tx custody.Service) error
		wantErr error
	}{
		{
			name: "mint address taken by account",
			fn: func(ctx context.Context, tx custody.Service) error {
				return tx.InitializeMint(ctx, f.aliceAcct, f.authority, 0)
			},
			wantErr: custody.ErrAccountExists,
		},
		{
			name: "account exists",
			fn: func(ctx context.Context, tx custody.Service) error {
				return tx.InitializeAccount(ctx, f.bobAcct, f.mint, f.alice)
			},
			wantErr: custody.ErrAccountExists,
		},
		{
			name: "unknown mint",
			fn: func(ctx context.Context, tx custody.Service) error {
				return tx.InitializeAccount(ctx, newKey(t), newKey(t), f.alice)
			},
			wantErr: custody.ErrMintNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.ledger.Atomic(ctx, tt.fn)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLedger_AuthorityChecks(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	err := f.ledger.Atomic(ctx, func(ctx context.Context, tx custody.Service) error {
		return tx.MintTo(ctx, f.mint, f.aliceAcct, f.alice, 1)
	})
	assert.ErrorIs(t, err, custody.ErrAuthorityMismatch)

	err = f.ledger.Atomic(ctx, func(ctx context.Context, tx custody.Service) error {
		return tx.Burn(ctx, f.mint, f.aliceAcct, f.authority, 1)
	})
	assert.ErrorIs(t, err, custody.ErrOwnerMismatch)

	err = f.ledger.Atomic(ctx, func(ctx context.Context, tx custody.Service) error {
		return tx.Transfer(ctx, f.aliceAcct, newKey(t), f.alice, 1)
	})
	assert.ErrorIs(t, err, custody.ErrAccountNotFound)
}

func TestLedger_MaxSupply(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	err := f.ledger.Atomic(ctx, func(ctx context.Context, tx custody.Service) error {
		return tx.MintTo(ctx, f.mint, f.bobAcct, f.authority, math.MaxUint64-1000)
	})
	require.NoError(t, err)

	supply, err := f.ledger.SupplyOf(ctx, f.mint)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), supply)

	err = f.ledger.Atomic(ctx, func(ctx context.Context, tx custody.Service) error {
		return tx.MintTo(ctx, f.mint, f.bobAcct, f.authority, 1)
	})
	assert.ErrorIs(t, err, custody.ErrOverflow)
}

func TestLedger_ConcurrentTransfers(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := f.ledger.Atomic(ctx, func(ctx context.Context, tx custody.Service) error {
				return tx.Transfer(ctx, f.aliceAcct, f.bobAcct, f.alice, 10)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	alice, err := f.ledger.BalanceOf(ctx, f.aliceAcct)
	require.NoError(t, err)
	bob, err := f.ledger.BalanceOf(ctx, f.bobAcct)
	require.NoError(t, err)
	assert.Equal(t, uint64(900), alice)
	assert.Equal(t, uint64(100), bob)
}

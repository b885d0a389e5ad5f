package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"solana-share-vault/internal/custody"
	"solana-share-vault/internal/solana"
)

type ledgerFixture struct {
	ledger    *Ledger
	mint      solana.PublicKey
	authority solana.PublicKey
	alice     solana.PublicKey
	aliceAcct solana.PublicKey
	bobAcct   solana.PublicKey
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	f := &ledgerFixture{
		ledger:    NewLedger(),
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
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	return f
}

func TestLedger_CommitOnSuccess(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	err := f.ledger.Atomic(ctx, func(ctx context.Context, tx custody.Service) error {
		if err := tx.Transfer(ctx, f.aliceAcct, f.bobAcct, f.alice, 300); err != nil {
			return err
		}
		// Reads inside the unit of work see staged state
		bal, err := tx.BalanceOf(ctx, f.bobAcct)
		if err != nil {
			return err
		}
		if bal != 300 {
			t.Errorf("staged balance = %d, want 300", bal)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Atomic failed: %v", err)
	}

	alice, _ := f.ledger.BalanceOf(ctx, f.aliceAcct)
	bob, _ := f.ledger.BalanceOf(ctx, f.bobAcct)
	supply, _ := f.ledger.SupplyOf(ctx, f.mint)
	if alice != 700 || bob != 300 || supply != 1000 {
		t.Errorf("balances = (%d, %d, supply %d), want (700, 300, 1000)", alice, bob, supply)
	}
}

func TestLedger_RollbackOnError(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	err := f.ledger.Atomic(ctx, func(ctx context.Context, tx custody.Service) error {
		if err := tx.MintTo(ctx, f.mint, f.aliceAcct, f.authority, 500); err != nil {
			return err
		}
		return tx.Transfer(ctx, f.aliceAcct, f.bobAcct, f.alice, 5000)
	})
	if !errors.Is(err, custody.ErrInsufficientFunds) {
		t.Fatalf("Expected ErrInsufficientFunds, got %v", err)
	}
	if !custody.IsCustodyError(err) {
		t.Errorf("Expected *custody.Error, got %T", err)
	}

	supply, _ := f.ledger.SupplyOf(ctx, f.mint)
	alice, _ := f.ledger.BalanceOf(ctx, f.aliceAcct)
	if supply != 1000 || alice != 1000 {
		t.Errorf("state changed after rollback: supply %d, alice %d", supply, alice)
	}
}

func TestLedger_InitializeErrors(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	err := f.ledger.Atomic(ctx, func(ctx context.Context, tx custody.Service) error {
		return tx.InitializeAccount(ctx, f.aliceAcct, f.mint, f.alice)
	})
	if !errors.Is(err, custody.ErrAccountExists) {
		t.Errorf("Expected ErrAccountExists, got %v", err)
	}

	err = f.ledger.Atomic(ctx, func(ctx context.Context, tx custody.Service) error {
		return tx.InitializeMint(ctx, f.aliceAcct, f.authority, 0)
	})
	if !errors.Is(err, custody.ErrAccountExists) {
		t.Errorf("Expected ErrAccountExists for mint over account, got %v", err)
	}

	err = f.ledger.Atomic(ctx, func(ctx context.Context, tx custody.Service) error {
		return tx.InitializeAccount(ctx, newKey(t), newKey(t), f.alice)
	})
	if !errors.Is(err, custody.ErrMintNotFound) {
		t.Errorf("Expected ErrMintNotFound, got %v", err)
	}

	if _, err := f.ledger.TokenAccount(ctx, newKey(t)); !errors.Is(err, custody.ErrAccountNotFound) {
		t.Errorf("Expected ErrAccountNotFound, got %v", err)
	}
}

func TestLedger_AuthorityChecks(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	err := f.ledger.Atomic(ctx, func(ctx context.Context, tx custody.Service) error {
		return tx.MintTo(ctx, f.mint, f.aliceAcct, f.alice, 1)
	})
	if !errors.Is(err, custody.ErrAuthorityMismatch) {
		t.Errorf("Expected ErrAuthorityMismatch, got %v", err)
	}

	err = f.ledger.Atomic(ctx, func(ctx context.Context, tx custody.Service) error {
		return tx.Burn(ctx, f.mint, f.aliceAcct, f.authority, 1)
	})
	if !errors.Is(err, custody.ErrOwnerMismatch) {
		t.Errorf("Expected ErrOwnerMismatch, got %v", err)
	}
}

func TestLedger_CanceledContext(t *testing.T) {
	f := newLedgerFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := f.ledger.Atomic(ctx, func(ctx context.Context, tx custody.Service) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if called {
		t.Errorf("fn ran for a canceled context")
	}
}

func TestLedger_CommitsWhenCanceledAfterSuccess(t *testing.T) {
	f := newLedgerFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := f.ledger.Atomic(ctx, func(ctx context.Context, tx custody.Service) error {
		if err := tx.Transfer(ctx, f.aliceAcct, f.bobAcct, f.alice, 1); err != nil {
			return err
		}
		cancel()
		return nil
	})
	if err != nil {
		t.Fatalf("Atomic: %v", err)
	}

	bob, _ := f.ledger.BalanceOf(context.Background(), f.bobAcct)
	if bob != 1 {
		t.Errorf("bob = %d, want 1", bob)
	}
}

func TestLedger_ConcurrentTransfers(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.ledger.Atomic(ctx, func(ctx context.Context, tx custody.Service) error {
				return tx.Transfer(ctx, f.aliceAcct, f.bobAcct, f.alice, 10)
			})
		}()
	}
	wg.Wait()

	alice, _ := f.ledger.BalanceOf(ctx, f.aliceAcct)
	bob, _ := f.ledger.BalanceOf(ctx, f.bobAcct)
	if alice != 0 || bob != 1000 {
		t.Errorf("balances = (%d, %d), want (0, 1000)", alice, bob)
	}
}

package reporting

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-share-vault/internal/custody"
	"solana-share-vault/internal/solana"
	"solana-share-vault/internal/storage/memory"
	"solana-share-vault/internal/vault"
)

var (
	testProgramID = solana.MustPublicKey("Fg6PaFpoGXkYsidMpWTK6W2BeZ7FEfcYkg476zPFsLnS")
	testVaultID   = solana.MustPublicKey("SeedPubey1111111111111111111111111111111111")
	fixedTime     = time.Date(2025, 1, 4, 12, 0, 0, 0, time.UTC)
)

type testData struct {
	ledger    *memory.Ledger
	vaults    *memory.VaultStore
	receipts  *memory.ReceiptStore
	snapshots *memory.PriceSnapshotStore
	alice     solana.PublicKey
	bob       solana.PublicKey
}

func key(t *testing.T) solana.PublicKey {
	t.Helper()
	pk, err := solana.NewRandomPublicKey()
	require.NoError(t, err)
	return pk
}

// setupTestData runs the donation scenario: alice enters 1000, bob enters
// 500, 1500 is donated to the pool and alice leaves with 500 shares.
func setupTestData(t *testing.T) *testData {
	t.Helper()
	ctx := context.Background()

	d := &testData{
		ledger:    memory.NewLedger(),
		vaults:    memory.NewVaultStore(),
		receipts:  memory.NewReceiptStore(),
		snapshots: memory.NewPriceSnapshotStore(),
		alice:     key(t),
		bob:       key(t),
	}

	authority, _, err := vault.FindAuthority(testProgramID, testVaultID)
	require.NoError(t, err)

	treasury, assetMint, shareMint, pool := key(t), key(t), key(t), key(t)
	treasuryAcct := key(t)
	accounts := map[solana.PublicKey][2]solana.PublicKey{} // owner -> asset, share account
	for _, u := range []solana.PublicKey{d.alice, d.bob} {
		accounts[u] = [2]solana.PublicKey{key(t), key(t)}
	}

	err = d.ledger.Atomic(ctx, func(ctx context.Context, tx custody.Service) error {
		require.NoError(t, tx.InitializeMint(ctx, assetMint, treasury, 6))
		require.NoError(t, tx.InitializeMint(ctx, shareMint, authority, 6))
		require.NoError(t, tx.InitializeAccount(ctx, pool, assetMint, authority))
		require.NoError(t, tx.InitializeAccount(ctx, treasuryAcct, assetMint, treasury))
		require.NoError(t, tx.MintTo(ctx, assetMint, treasuryAcct, treasury, 1500))
		for u, accts := range accounts {
			require.NoError(t, tx.InitializeAccount(ctx, accts[0], assetMint, u))
			require.NoError(t, tx.InitializeAccount(ctx, accts[1], shareMint, u))
			require.NoError(t, tx.MintTo(ctx, assetMint, accts[0], treasury, 1000))
		}
		return nil
	})
	require.NoError(t, err)

	var tick int64
	engine := vault.NewEngine(testProgramID, d.ledger, d.vaults, d.receipts,
		vault.WithSnapshotStore(d.snapshots),
		vault.WithClock(func() time.Time {
			tick++
			return time.UnixMilli(1_700_000_000_000 + tick)
		}),
	)

	_, err = engine.Initialize(ctx, vault.InitializeRequest{
		VaultID: testVaultID, AssetMint: assetMint, AssetAccount: pool, ShareMint: shareMint,
	})
	require.NoError(t, err)

	enter := func(u solana.PublicKey, amount uint64) {
		_, err := engine.Enter(ctx, vault.EnterRequest{
			VaultID: testVaultID, User: u, SourceAccount: accounts[u][0], ShareAccount: accounts[u][1], Amount: amount,
		})
		require.NoError(t, err)
	}
	enter(d.alice, 1000)
	enter(d.bob, 500)

	err = d.ledger.Atomic(ctx, func(ctx context.Context, tx custody.Service) error {
		return tx.Transfer(ctx, treasuryAcct, pool, treasury, 1500)
	})
	require.NoError(t, err)

	_, err = engine.Leave(ctx, vault.LeaveRequest{
		VaultID: testVaultID, User: d.alice, ShareAccount: accounts[d.alice][1], DestinationAccount: accounts[d.alice][0], Shares: 500,
	})
	require.NoError(t, err)

	return d
}

func (d *testData) generator() *Generator {
	return NewGenerator(d.vaults, d.receipts, d.snapshots, d.ledger).
		WithClock(func() time.Time { return fixedTime })
}

func TestGenerator_Generate(t *testing.T) {
	d := setupTestData(t)

	s, err := d.generator().Generate(context.Background(), testVaultID)
	require.NoError(t, err)

	assert.Equal(t, fixedTime, s.GeneratedAt)
	assert.Len(t, s.DataVersion, 12)
	assert.Equal(t, testVaultID, s.Vault.ID)

	wantAuthority, err := vault.DeriveAuthority(testProgramID, testVaultID, s.Vault.Nonce)
	require.NoError(t, err)
	assert.Equal(t, wantAuthority, s.Authority)

	assert.Equal(t, uint64(2000), s.Pool.PooledBalance)
	assert.Equal(t, uint64(1000), s.Pool.ShareSupply)

	assert.Equal(t, Totals{
		Enters: 2, Leaves: 1,
		AssetsIn: 1500, AssetsOut: 1000,
		SharesMinted: 1500, SharesBurned: 500,
	}, s.Totals)

	require.Len(t, s.Receipts, 3)
	require.Len(t, s.Snapshots, 3)
	require.Len(t, s.Users, 2)

	for _, u := range s.Users {
		switch u.User {
		case d.alice:
			assert.Equal(t, 1, u.Enters)
			assert.Equal(t, 1, u.Leaves)
			assert.Equal(t, uint64(1000), u.AssetsOut)
		case d.bob:
			assert.Equal(t, 1, u.Enters)
			assert.Zero(t, u.Leaves)
			assert.Equal(t, uint64(500), u.SharesMinted)
		default:
			t.Errorf("unexpected user %s", u.User)
		}
	}
}

func TestGenerator_Deterministic(t *testing.T) {
	d := setupTestData(t)
	g := d.generator()

	s1, err := g.Generate(context.Background(), testVaultID)
	require.NoError(t, err)
	s2, err := g.Generate(context.Background(), testVaultID)
	require.NoError(t, err)

	assert.Equal(t, s1.DataVersion, s2.DataVersion)
	assert.Equal(t, RenderStatementMarkdown(s1), RenderStatementMarkdown(s2))
}

func TestGenerator_UnknownVault(t *testing.T) {
	d := setupTestData(t)

	_, err := d.generator().Generate(context.Background(), key(t))
	assert.Error(t, err)
}

func TestRenderStatementMarkdown(t *testing.T) {
	d := setupTestData(t)
	s, err := d.generator().Generate(context.Background(), testVaultID)
	require.NoError(t, err)

	md := RenderStatementMarkdown(s)

	for _, want := range []string{
		"# Vault Statement " + testVaultID.String(),
		"Generated: 2025-01-04T12:00:00Z",
		"| Authority | " + s.Authority.String() + " |",
		"| 2000 | 1000 | 2.000000 |",
		"| 2 | 1 | 1500 | 1000 | 1500 | 500 |",
		"Pool holds 1500 units more than net deposits",
		"3 snapshots from",
	} {
		assert.Contains(t, md, want)
	}
}

func TestRenderStatementMarkdown_Empty(t *testing.T) {
	md := RenderStatementMarkdown(&Statement{GeneratedAt: fixedTime})

	assert.Contains(t, md, "No operations recorded.")
	assert.Contains(t, md, "No receipts.")
	assert.Contains(t, md, "No price snapshots available.")
	assert.NotContains(t, md, "Pool holds")
}

func TestRenderCSV(t *testing.T) {
	d := setupTestData(t)
	s, err := d.generator().Generate(context.Background(), testVaultID)
	require.NoError(t, err)

	receipts := strings.Split(strings.TrimSpace(RenderReceiptsCSV(s.Receipts)), "\n")
	require.Len(t, receipts, 4)
	assert.True(t, strings.HasPrefix(receipts[0], "receipt_id,vault_id,kind,"))
	assert.Contains(t, receipts[1], ",ENTER,"+d.alice.String()+",")
	assert.True(t, strings.HasSuffix(receipts[3], ",1000,500,3000,1500,1700000000004"), receipts[3])

	snapshots := strings.Split(strings.TrimSpace(RenderSnapshotsCSV(s.Snapshots)), "\n")
	require.Len(t, snapshots, 4)
	assert.Equal(t, "vault_id,timestamp_ms,slot,pooled_balance,share_supply,share_price,source", snapshots[0])
	assert.True(t, strings.HasSuffix(snapshots[3], ",2000,1000,2.000000000000,OPERATION"), snapshots[3])
}

func TestWriteStatement(t *testing.T) {
	d := setupTestData(t)
	s, err := d.generator().Generate(context.Background(), testVaultID)
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, WriteStatement(dir, s))

	for _, name := range []string{StatementFile, ReceiptsFile, SnapshotsFile} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.NotEmpty(t, data, name)
	}
}

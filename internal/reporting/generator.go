package reporting

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"solana-share-vault/internal/custody"
	"solana-share-vault/internal/domain"
	"solana-share-vault/internal/solana"
	"solana-share-vault/internal/storage"
	"solana-share-vault/internal/vault"
)

// Generator builds statements from stored data and live ledger readings.
type Generator struct {
	vaults    storage.VaultStore
	receipts  storage.ReceiptStore
	snapshots storage.PriceSnapshotStore
	ledger    custody.Reader
	now       func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new statement generator. snapshots may be nil.
func NewGenerator(
	vaults storage.VaultStore,
	receipts storage.ReceiptStore,
	snapshots storage.PriceSnapshotStore,
	ledger custody.Reader,
) *Generator {
	return &Generator{
		vaults:    vaults,
		receipts:  receipts,
		snapshots: snapshots,
		ledger:    ledger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces the statement of one vault.
func (g *Generator) Generate(ctx context.Context, vaultID solana.PublicKey) (*Statement, error) {
	v, err := g.vaults.GetByID(ctx, vaultID)
	if err != nil {
		return nil, fmt.Errorf("load vault %s: %w", vaultID, err)
	}

	authority, err := vault.DeriveAuthority(v.ProgramID, v.ID, v.Nonce)
	if err != nil {
		return nil, err
	}

	pooled, err := g.ledger.BalanceOf(ctx, v.AssetAccount)
	if err != nil {
		return nil, fmt.Errorf("read pooled balance: %w", err)
	}
	supply, err := g.ledger.SupplyOf(ctx, v.ShareMint)
	if err != nil {
		return nil, fmt.Errorf("read share supply: %w", err)
	}

	receipts, err := g.receipts.GetByVault(ctx, v.ID)
	if err != nil {
		return nil, fmt.Errorf("load receipts: %w", err)
	}

	var snapshots []*domain.PriceSnapshot
	if g.snapshots != nil {
		snapshots, err = g.snapshots.GetByVault(ctx, v.ID)
		if err != nil {
			return nil, fmt.Errorf("load snapshots: %w", err)
		}
	}

	totals, users := summarize(receipts)

	return &Statement{
		GeneratedAt: g.now(),
		DataVersion: dataVersion(receipts),
		Vault:       *v,
		Authority:   authority,
		Pool:        domain.PoolState{VaultID: v.ID, PooledBalance: pooled, ShareSupply: supply},
		Receipts:    receipts,
		Snapshots:   snapshots,
		Totals:      totals,
		Users:       users,
	}, nil
}

func summarize(receipts []*domain.Receipt) (Totals, []UserRow) {
	var totals Totals
	byUser := make(map[solana.PublicKey]*UserRow)

	for _, r := range receipts {
		row, ok := byUser[r.User]
		if !ok {
			row = &UserRow{User: r.User}
			byUser[r.User] = row
		}
		switch r.Kind {
		case domain.ReceiptKindEnter:
			totals.Enters++
			totals.AssetsIn += r.AssetAmount
			totals.SharesMinted += r.ShareAmount
			row.Enters++
			row.AssetsIn += r.AssetAmount
			row.SharesMinted += r.ShareAmount
		case domain.ReceiptKindLeave:
			totals.Leaves++
			totals.AssetsOut += r.AssetAmount
			totals.SharesBurned += r.ShareAmount
			row.Leaves++
			row.AssetsOut += r.AssetAmount
			row.SharesBurned += r.ShareAmount
		}
	}

	users := make([]UserRow, 0, len(byUser))
	for _, row := range byUser {
		users = append(users, *row)
	}
	sort.Slice(users, func(i, j int) bool {
		return bytes.Compare(users[i].User[:], users[j].User[:]) < 0
	})
	return totals, users
}

// dataVersion hashes receipt IDs and amounts so two statements over the
// same history share a version.
func dataVersion(receipts []*domain.Receipt) string {
	parts := make([]string, 0, len(receipts))
	for _, r := range receipts {
		parts = append(parts, fmt.Sprintf("%s|%s|%d|%d", r.ReceiptID, r.Kind, r.AssetAmount, r.ShareAmount))
	}
	sort.Strings(parts)

	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))[:12]
}

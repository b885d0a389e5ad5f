package reporting

import (
	"encoding/csv"
	"strconv"
	"strings"

	"solana-share-vault/internal/domain"
)

// RenderReceiptsCSV renders receipts as CSV with a header row.
func RenderReceiptsCSV(receipts []*domain.Receipt) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	w.Write([]string{
		"receipt_id", "vault_id", "kind", "user", "source_account", "destination_account",
		"asset_amount", "share_amount", "pooled_balance_before", "share_supply_before", "timestamp",
	})
	for _, r := range receipts {
		w.Write([]string{
			r.ReceiptID,
			r.VaultID.String(),
			r.Kind.String(),
			r.User.String(),
			r.SourceAccount.String(),
			r.DestinationAccount.String(),
			strconv.FormatUint(r.AssetAmount, 10),
			strconv.FormatUint(r.ShareAmount, 10),
			strconv.FormatUint(r.PooledBalanceBefore, 10),
			strconv.FormatUint(r.ShareSupplyBefore, 10),
			strconv.FormatInt(r.Timestamp, 10),
		})
	}

	w.Flush()
	return sb.String()
}

// RenderSnapshotsCSV renders price snapshots as CSV with a header row.
// Prices carry 12 decimal places.
func RenderSnapshotsCSV(snapshots []*domain.PriceSnapshot) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	w.Write([]string{"vault_id", "timestamp_ms", "slot", "pooled_balance", "share_supply", "share_price", "source"})
	for _, s := range snapshots {
		w.Write([]string{
			s.VaultID.String(),
			strconv.FormatInt(s.TimestampMs, 10),
			strconv.FormatInt(s.Slot, 10),
			strconv.FormatUint(s.PooledBalance, 10),
			strconv.FormatUint(s.ShareSupply, 10),
			s.SharePrice.StringFixed(12),
			s.Source.String(),
		})
	}

	w.Flush()
	return sb.String()
}

package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderStatementMarkdown renders a statement as Markdown.
func RenderStatementMarkdown(s *Statement) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Vault Statement %s\n\n", s.Vault.ID))
	sb.WriteString(fmt.Sprintf("Generated: %s | Data version: %s\n\n", s.GeneratedAt.Format(time.RFC3339), s.DataVersion))

	// Configuration
	sb.WriteString("## Configuration\n\n")
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|-------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Program | %s |\n", s.Vault.ProgramID))
	sb.WriteString(fmt.Sprintf("| Asset Mint | %s |\n", s.Vault.AssetMint))
	sb.WriteString(fmt.Sprintf("| Asset Account | %s |\n", s.Vault.AssetAccount))
	sb.WriteString(fmt.Sprintf("| Share Mint | %s |\n", s.Vault.ShareMint))
	sb.WriteString(fmt.Sprintf("| Authority | %s |\n", s.Authority))
	sb.WriteString(fmt.Sprintf("| Nonce | %d |\n", s.Vault.Nonce))
	sb.WriteString("\n")

	// Pool
	sb.WriteString("## Pool\n\n")
	sb.WriteString("| Pooled Balance | Share Supply | Share Price |\n")
	sb.WriteString("|----------------|--------------|-------------|\n")
	sb.WriteString(fmt.Sprintf("| %d | %d | %s |\n\n",
		s.Pool.PooledBalance, s.Pool.ShareSupply, s.Pool.Price().StringFixed(6)))

	if donated := donatedEstimate(s); donated > 0 {
		sb.WriteString(fmt.Sprintf("Pool holds %d units more than net deposits (donations or external transfers).\n\n", donated))
	}

	// Totals
	sb.WriteString("## Totals\n\n")
	sb.WriteString("| Enters | Leaves | Assets In | Assets Out | Shares Minted | Shares Burned |\n")
	sb.WriteString("|--------|--------|-----------|------------|---------------|---------------|\n")
	t := s.Totals
	sb.WriteString(fmt.Sprintf("| %d | %d | %d | %d | %d | %d |\n\n",
		t.Enters, t.Leaves, t.AssetsIn, t.AssetsOut, t.SharesMinted, t.SharesBurned))

	// Users
	sb.WriteString("## Users\n\n")
	if len(s.Users) > 0 {
		sb.WriteString("| User | Enters | Leaves | Assets In | Assets Out | Shares Minted | Shares Burned |\n")
		sb.WriteString("|------|--------|--------|-----------|------------|---------------|---------------|\n")
		for _, u := range s.Users {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %d | %d | %d |\n",
				u.User, u.Enters, u.Leaves, u.AssetsIn, u.AssetsOut, u.SharesMinted, u.SharesBurned))
		}
	} else {
		sb.WriteString("No operations recorded.\n")
	}
	sb.WriteString("\n")

	// Receipts
	sb.WriteString("## Receipts\n\n")
	if len(s.Receipts) > 0 {
		sb.WriteString("| Time (ms) | Kind | User | Assets | Shares | Pool Before | Supply Before |\n")
		sb.WriteString("|-----------|------|------|--------|--------|-------------|---------------|\n")
		for _, r := range s.Receipts {
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %d | %d | %d | %d |\n",
				r.Timestamp, r.Kind, r.User, r.AssetAmount, r.ShareAmount,
				r.PooledBalanceBefore, r.ShareSupplyBefore))
		}
	} else {
		sb.WriteString("No receipts.\n")
	}
	sb.WriteString("\n")

	// Price history
	sb.WriteString("## Price History\n\n")
	if len(s.Snapshots) > 0 {
		first, last := s.Snapshots[0], s.Snapshots[len(s.Snapshots)-1]
		sb.WriteString(fmt.Sprintf("%d snapshots from %d to %d ms. Price %s -> %s.\n",
			len(s.Snapshots), first.TimestampMs, last.TimestampMs,
			first.SharePrice.StringFixed(6), last.SharePrice.StringFixed(6)))
	} else {
		sb.WriteString("No price snapshots available.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

// donatedEstimate returns how much the pool exceeds assets in minus assets
// out, or 0.
func donatedEstimate(s *Statement) uint64 {
	if s.Totals.AssetsOut > s.Totals.AssetsIn {
		return 0
	}
	net := s.Totals.AssetsIn - s.Totals.AssetsOut
	if s.Pool.PooledBalance <= net {
		return 0
	}
	return s.Pool.PooledBalance - net
}

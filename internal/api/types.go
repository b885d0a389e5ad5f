package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"solana-share-vault/internal/domain"
	"solana-share-vault/internal/solana"
	"solana-share-vault/internal/vault"
)

const maxBodyBytes = 1 << 20

// Amount is a u64 token quantity encoded as a JSON decimal string.
// Bare JSON numbers are accepted on input.
type Amount uint64

// MarshalJSON implements json.Marshaler.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(strconv.FormatUint(uint64(a), 10))), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if strings.HasPrefix(s, `"`) {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return fmt.Errorf("amount %s: %w", data, err)
		}
		s = unquoted
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("amount %s: %w", data, err)
	}
	*a = Amount(v)
	return nil
}

// VaultResponse describes a registered vault.
type VaultResponse struct {
	ID           string `json:"id"`
	ProgramID    string `json:"program_id"`
	Authority    string `json:"authority"`
	AssetMint    string `json:"asset_mint"`
	AssetAccount string `json:"asset_account"`
	ShareMint    string `json:"share_mint"`
	Nonce        uint8  `json:"nonce"`
	CreatedAt    int64  `json:"created_at"`
}

// PoolResponse holds live pool readings.
type PoolResponse struct {
	VaultID       string `json:"vault_id"`
	PooledBalance Amount `json:"pooled_balance"`
	ShareSupply   Amount `json:"share_supply"`
	SharePrice    string `json:"share_price"`
}

// QuoteResponse is the result of a preview.
type QuoteResponse struct {
	Pool   PoolResponse `json:"pool"`
	Amount Amount       `json:"amount"`
	Shares Amount       `json:"shares"`
}

// ReceiptResponse describes a committed operation.
type ReceiptResponse struct {
	ReceiptID           string `json:"receipt_id"`
	VaultID             string `json:"vault_id"`
	Kind                string `json:"kind"`
	User                string `json:"user"`
	SourceAccount       string `json:"source_account"`
	DestinationAccount  string `json:"destination_account"`
	AssetAmount         Amount `json:"asset_amount"`
	ShareAmount         Amount `json:"share_amount"`
	PooledBalanceBefore Amount `json:"pooled_balance_before"`
	ShareSupplyBefore   Amount `json:"share_supply_before"`
	Timestamp           int64  `json:"timestamp"`
}

// SnapshotResponse is one price observation.
type SnapshotResponse struct {
	TimestampMs   int64  `json:"timestamp_ms"`
	Slot          int64  `json:"slot"`
	PooledBalance Amount `json:"pooled_balance"`
	ShareSupply   Amount `json:"share_supply"`
	SharePrice    string `json:"share_price"`
	Source        string `json:"source"`
}

// InitializeRequest is the body of POST /v1/vaults.
type InitializeRequest struct {
	VaultID      string `json:"vault_id,omitempty"`
	AssetMint    string `json:"asset_mint"`
	AssetAccount string `json:"asset_account"`
	ShareMint    string `json:"share_mint"`
	Nonce        *uint8 `json:"nonce,omitempty"`
}

// EnterRequest is the body of POST /v1/vaults/{id}/enter.
type EnterRequest struct {
	User          string `json:"user"`
	SourceAccount string `json:"source_account"`
	ShareAccount  string `json:"share_account"`
	Amount        Amount `json:"amount"`
}

// LeaveRequest is the body of POST /v1/vaults/{id}/leave.
type LeaveRequest struct {
	User               string `json:"user"`
	ShareAccount       string `json:"share_account"`
	DestinationAccount string `json:"destination_account"`
	Shares             Amount `json:"shares"`
}

func newVaultResponse(v *domain.Vault, authority solana.PublicKey) VaultResponse {
	return VaultResponse{
		ID:           v.ID.String(),
		ProgramID:    v.ProgramID.String(),
		Authority:    authority.String(),
		AssetMint:    v.AssetMint.String(),
		AssetAccount: v.AssetAccount.String(),
		ShareMint:    v.ShareMint.String(),
		Nonce:        v.Nonce,
		CreatedAt:    v.CreatedAt,
	}
}

func newPoolResponse(p domain.PoolState) PoolResponse {
	return PoolResponse{
		VaultID:       p.VaultID.String(),
		PooledBalance: Amount(p.PooledBalance),
		ShareSupply:   Amount(p.ShareSupply),
		SharePrice:    p.Price().String(),
	}
}

func newQuoteResponse(q *vault.Quote) QuoteResponse {
	return QuoteResponse{
		Pool:   newPoolResponse(q.Pool),
		Amount: Amount(q.Amount),
		Shares: Amount(q.Shares),
	}
}

func newReceiptResponse(r *domain.Receipt) ReceiptResponse {
	return ReceiptResponse{
		ReceiptID:           r.ReceiptID,
		VaultID:             r.VaultID.String(),
		Kind:                r.Kind.String(),
		User:                r.User.String(),
		SourceAccount:       r.SourceAccount.String(),
		DestinationAccount:  r.DestinationAccount.String(),
		AssetAmount:         Amount(r.AssetAmount),
		ShareAmount:         Amount(r.ShareAmount),
		PooledBalanceBefore: Amount(r.PooledBalanceBefore),
		ShareSupplyBefore:   Amount(r.ShareSupplyBefore),
		Timestamp:           r.Timestamp,
	}
}

func newSnapshotResponse(s *domain.PriceSnapshot) SnapshotResponse {
	return SnapshotResponse{
		TimestampMs:   s.TimestampMs,
		Slot:          s.Slot,
		PooledBalance: Amount(s.PooledBalance),
		ShareSupply:   Amount(s.ShareSupply),
		SharePrice:    s.SharePrice.String(),
		Source:        s.Source.String(),
	}
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: decode body: %v", errBadRequest, err)
	}
	return nil
}

// keyParser collects the first parse failure so handlers can parse several
// keys and check once.
type keyParser struct {
	err error
}

func (p *keyParser) key(field, s string) solana.PublicKey {
	if p.err != nil {
		return solana.PublicKey{}
	}
	pk, err := solana.ParsePublicKey(s)
	if err != nil {
		p.err = fmt.Errorf("%w: %s: %v", errBadRequest, field, err)
	}
	return pk
}

// optional returns the zero key for an empty string.
func (p *keyParser) optional(field, s string) solana.PublicKey {
	if s == "" {
		return solana.PublicKey{}
	}
	return p.key(field, s)
}

func queryAmount(r *http.Request, name string) (uint64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, fmt.Errorf("%w: missing %s", errBadRequest, name)
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", errBadRequest, name, err)
	}
	return v, nil
}

func queryInt(r *http.Request, name string, def int64) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", errBadRequest, name, err)
	}
	return v, nil
}

package api

import (
	"math"
	"net/http"

	"solana-share-vault/internal/domain"
	"solana-share-vault/internal/solana"
	"solana-share-vault/internal/vault"
)

func (s *Server) vaultID(r *http.Request) (solana.PublicKey, error) {
	var p keyParser
	id := p.key("vault id", r.PathValue("id"))
	return id, p.err
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	var body InitializeRequest
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	var p keyParser
	req := vault.InitializeRequest{
		VaultID:      p.optional("vault_id", body.VaultID),
		AssetMint:    p.key("asset_mint", body.AssetMint),
		AssetAccount: p.key("asset_account", body.AssetAccount),
		ShareMint:    p.key("share_mint", body.ShareMint),
		Nonce:        body.Nonce,
	}
	if p.err != nil {
		s.writeError(w, r, p.err)
		return
	}

	v, err := s.engine.Initialize(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	authority, err := s.engine.Authority(v)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newVaultResponse(v, authority))
}

func (s *Server) handleListVaults(w http.ResponseWriter, r *http.Request) {
	vaults, err := s.engine.Vaults(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := make([]VaultResponse, 0, len(vaults))
	for _, v := range vaults {
		authority, err := s.engine.Authority(v)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		resp = append(resp, newVaultResponse(v, authority))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetVault(w http.ResponseWriter, r *http.Request) {
	id, err := s.vaultID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	v, err := s.engine.Vault(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	authority, err := s.engine.Authority(v)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newVaultResponse(v, authority))
}

func (s *Server) handlePool(w http.ResponseWriter, r *http.Request) {
	id, err := s.vaultID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	pool, err := s.engine.Pool(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPoolResponse(pool))
}

func (s *Server) handlePreviewEnter(w http.ResponseWriter, r *http.Request) {
	id, err := s.vaultID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	amount, err := queryAmount(r, "amount")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	q, err := s.engine.PreviewEnter(r.Context(), id, amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newQuoteResponse(q))
}

func (s *Server) handlePreviewLeave(w http.ResponseWriter, r *http.Request) {
	id, err := s.vaultID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := queryAmount(r, "shares")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	q, err := s.engine.PreviewLeave(r.Context(), id, n)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newQuoteResponse(q))
}

func (s *Server) handleEnter(w http.ResponseWriter, r *http.Request) {
	id, err := s.vaultID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body EnterRequest
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	var p keyParser
	req := vault.EnterRequest{
		VaultID:       id,
		User:          p.key("user", body.User),
		SourceAccount: p.key("source_account", body.SourceAccount),
		ShareAccount:  p.key("share_account", body.ShareAccount),
		Amount:        uint64(body.Amount),
	}
	if p.err != nil {
		s.writeError(w, r, p.err)
		return
	}

	receipt, err := s.engine.Enter(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newReceiptResponse(receipt))
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	id, err := s.vaultID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body LeaveRequest
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	var p keyParser
	req := vault.LeaveRequest{
		VaultID:            id,
		User:               p.key("user", body.User),
		ShareAccount:       p.key("share_account", body.ShareAccount),
		DestinationAccount: p.key("destination_account", body.DestinationAccount),
		Shares:             uint64(body.Shares),
	}
	if p.err != nil {
		s.writeError(w, r, p.err)
		return
	}

	receipt, err := s.engine.Leave(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newReceiptResponse(receipt))
}

// handleReceipts accepts an optional user query parameter.
func (s *Server) handleReceipts(w http.ResponseWriter, r *http.Request) {
	var p keyParser
	id := p.key("vault id", r.PathValue("id"))
	user := p.optional("user", r.URL.Query().Get("user"))
	if p.err != nil {
		s.writeError(w, r, p.err)
		return
	}

	var (
		receipts []*domain.Receipt
		err      error
	)
	if user.IsZero() {
		receipts, err = s.engine.Receipts(r.Context(), id)
	} else {
		receipts, err = s.engine.UserReceipts(r.Context(), id, user)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := make([]ReceiptResponse, 0, len(receipts))
	for _, rc := range receipts {
		resp = append(resp, newReceiptResponse(rc))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSnapshots accepts optional from and to query parameters in unix ms.
func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	id, err := s.vaultID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	from, err := queryInt(r, "from", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	to, err := queryInt(r, "to", math.MaxInt64)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	snapshots, err := s.engine.Snapshots(r.Context(), id, from, to)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := make([]SnapshotResponse, 0, len(snapshots))
	for _, snap := range snapshots {
		resp = append(resp, newSnapshotResponse(snap))
	}
	writeJSON(w, http.StatusOK, resp)
}

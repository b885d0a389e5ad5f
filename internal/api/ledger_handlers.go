package api

import (
	"context"
	"fmt"
	"net/http"

	"solana-share-vault/internal/custody"
	"solana-share-vault/internal/solana"
)

// The ledger endpoints trust the authority named in the request body.
// They exist to fund and inspect accounts on a development ledger.

// MintResponse describes a mint.
type MintResponse struct {
	Address       string `json:"address"`
	MintAuthority string `json:"mint_authority,omitempty"`
	Supply        Amount `json:"supply"`
	Decimals      uint8  `json:"decimals"`
}

// AccountResponse describes a token account.
type AccountResponse struct {
	Address string `json:"address"`
	Mint    string `json:"mint"`
	Owner   string `json:"owner"`
	Amount  Amount `json:"amount"`
}

// CreateMintRequest is the body of POST /v1/ledger/mints.
type CreateMintRequest struct {
	Address   string `json:"address,omitempty"`
	Authority string `json:"authority"`
	Decimals  uint8  `json:"decimals"`
}

// CreateAccountRequest is the body of POST /v1/ledger/accounts.
type CreateAccountRequest struct {
	Address string `json:"address,omitempty"`
	Mint    string `json:"mint"`
	Owner   string `json:"owner"`
}

// MintToRequest is the body of POST /v1/ledger/mint-to.
type MintToRequest struct {
	Mint      string `json:"mint"`
	To        string `json:"to"`
	Authority string `json:"authority"`
	Amount    Amount `json:"amount"`
}

// TransferRequest is the body of POST /v1/ledger/transfer.
type TransferRequest struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Authority string `json:"authority"`
	Amount    Amount `json:"amount"`
}

func newMintResponse(m *solana.Mint) MintResponse {
	resp := MintResponse{
		Address:  m.Address.String(),
		Supply:   Amount(m.Supply),
		Decimals: m.Decimals,
	}
	if m.MintAuthority != nil {
		resp.MintAuthority = m.MintAuthority.String()
	}
	return resp
}

func newAccountResponse(a *solana.TokenAccount) AccountResponse {
	return AccountResponse{
		Address: a.Address.String(),
		Mint:    a.Mint.String(),
		Owner:   a.Owner.String(),
		Amount:  Amount(a.Amount),
	}
}

// addressOrNew parses s, or generates a fresh address when s is empty.
func addressOrNew(p *keyParser, field, s string) solana.PublicKey {
	if s != "" {
		return p.key(field, s)
	}
	pk, err := solana.NewRandomPublicKey()
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("generate %s: %w", field, err)
	}
	return pk
}

func (s *Server) handleCreateMint(w http.ResponseWriter, r *http.Request) {
	var body CreateMintRequest
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	var p keyParser
	addr := addressOrNew(&p, "address", body.Address)
	authority := p.key("authority", body.Authority)
	if p.err != nil {
		s.writeError(w, r, p.err)
		return
	}

	var mint *solana.Mint
	err := s.ledger.Atomic(r.Context(), func(ctx context.Context, tx custody.Service) error {
		if err := tx.InitializeMint(ctx, addr, authority, body.Decimals); err != nil {
			return err
		}
		var err error
		mint, err = tx.Mint(ctx, addr)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newMintResponse(mint))
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var body CreateAccountRequest
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	var p keyParser
	addr := addressOrNew(&p, "address", body.Address)
	mintAddr := p.key("mint", body.Mint)
	owner := p.key("owner", body.Owner)
	if p.err != nil {
		s.writeError(w, r, p.err)
		return
	}

	var acct *solana.TokenAccount
	err := s.ledger.Atomic(r.Context(), func(ctx context.Context, tx custody.Service) error {
		if err := tx.InitializeAccount(ctx, addr, mintAddr, owner); err != nil {
			return err
		}
		var err error
		acct, err = tx.TokenAccount(ctx, addr)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newAccountResponse(acct))
}

func (s *Server) handleMintTo(w http.ResponseWriter, r *http.Request) {
	var body MintToRequest
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	var p keyParser
	mintAddr := p.key("mint", body.Mint)
	to := p.key("to", body.To)
	authority := p.key("authority", body.Authority)
	if p.err != nil {
		s.writeError(w, r, p.err)
		return
	}

	var acct *solana.TokenAccount
	err := s.ledger.Atomic(r.Context(), func(ctx context.Context, tx custody.Service) error {
		if err := tx.MintTo(ctx, mintAddr, to, authority, uint64(body.Amount)); err != nil {
			return err
		}
		var err error
		acct, err = tx.TokenAccount(ctx, to)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountResponse(acct))
}

// handleTransfer moves tokens between accounts. Transferring straight into a
// vault's asset account is a donation: it raises the share price.
func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var body TransferRequest
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	var p keyParser
	from := p.key("from", body.From)
	to := p.key("to", body.To)
	authority := p.key("authority", body.Authority)
	if p.err != nil {
		s.writeError(w, r, p.err)
		return
	}

	var acct *solana.TokenAccount
	err := s.ledger.Atomic(r.Context(), func(ctx context.Context, tx custody.Service) error {
		if err := tx.Transfer(ctx, from, to, authority, uint64(body.Amount)); err != nil {
			return err
		}
		var err error
		acct, err = tx.TokenAccount(ctx, from)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountResponse(acct))
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	var p keyParser
	addr := p.key("address", r.PathValue("address"))
	if p.err != nil {
		s.writeError(w, r, p.err)
		return
	}
	acct, err := s.ledger.TokenAccount(r.Context(), addr)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountResponse(acct))
}

func (s *Server) handleGetMint(w http.ResponseWriter, r *http.Request) {
	var p keyParser
	addr := p.key("address", r.PathValue("address"))
	if p.err != nil {
		s.writeError(w, r, p.err)
		return
	}
	mint, err := s.ledger.Mint(r.Context(), addr)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newMintResponse(mint))
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"solana-share-vault/internal/custody"
	"solana-share-vault/internal/shares"
	"solana-share-vault/internal/storage"
	"solana-share-vault/internal/vault"
)

// errBadRequest marks malformed input caught before reaching the engine.
var errBadRequest = errors.New("bad request")

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type errorMapping struct {
	err    error
	status int
	code   string
}

// Checked in order; the first match wins.
var errorMappings = []errorMapping{
	{errBadRequest, http.StatusBadRequest, "invalid_request"},
	{vault.ErrAmountMustBeGreaterThanZero, http.StatusBadRequest, "amount_must_be_greater_than_zero"},
	{shares.ErrArithmeticOverflow, http.StatusBadRequest, "arithmetic_overflow"},
	{shares.ErrDivisionByZero, http.StatusBadRequest, "division_by_zero"},
	{vault.ErrInvalidShareAccount, http.StatusBadRequest, "invalid_share_account"},
	{vault.ErrInvalidNonce, http.StatusBadRequest, "invalid_nonce"},
	{vault.ErrAssetAccountMint, http.StatusBadRequest, "asset_account_mint"},
	{vault.ErrAssetAccountOwner, http.StatusBadRequest, "asset_account_owner"},
	{vault.ErrShareMintAuthority, http.StatusBadRequest, "share_mint_authority"},
	{vault.ErrSameMint, http.StatusBadRequest, "same_mint"},
	{storage.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},

	{vault.ErrVaultNotFound, http.StatusNotFound, "vault_not_found"},
	{custody.ErrAccountNotFound, http.StatusNotFound, "account_not_found"},
	{custody.ErrMintNotFound, http.StatusNotFound, "mint_not_found"},

	{vault.ErrVaultExists, http.StatusConflict, "vault_exists"},
	{custody.ErrAccountExists, http.StatusConflict, "account_exists"},

	{vault.ErrInsufficientFundUnstake, http.StatusUnprocessableEntity, "insufficient_fund_unstake"},
	{custody.ErrOwnerMismatch, http.StatusForbidden, "owner_mismatch"},
	{custody.ErrAuthorityMismatch, http.StatusForbidden, "authority_mismatch"},
	{custody.ErrInsufficientFunds, http.StatusUnprocessableEntity, "insufficient_funds"},
	{custody.ErrMintMismatch, http.StatusUnprocessableEntity, "mint_mismatch"},
	{custody.ErrOverflow, http.StatusUnprocessableEntity, "custody_overflow"},
}

// classify maps err to an HTTP status and a stable error code.
func classify(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	if custody.IsCustodyError(err) {
		return http.StatusUnprocessableEntity, "custody_error"
	}
	return http.StatusInternalServerError, "internal"
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("request_id", w.Header().Get(RequestIDHeader)),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		msg = http.StatusText(status)
	}
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

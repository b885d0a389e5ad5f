// Package api serves vault operations and the development custody ledger
// over HTTP. Amounts travel as decimal strings so u64 values survive JSON.
package api

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"solana-share-vault/internal/custody"
	"solana-share-vault/internal/observability"
	"solana-share-vault/internal/vault"
)

// RequestIDHeader carries the request ID in requests and responses.
const RequestIDHeader = "X-Request-ID"

// Server routes HTTP requests to a vault engine.
type Server struct {
	engine  *vault.Engine
	ledger  custody.Ledger
	logger  *zap.Logger
	storage string
	started time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the access and error logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLedger exposes the custody ledger under /v1/ledger.
func WithLedger(l custody.Ledger) Option {
	return func(s *Server) {
		s.ledger = l
	}
}

// WithStorageName sets the backend name reported by /status.
func WithStorageName(name string) Option {
	return func(s *Server) {
		s.storage = name
	}
}

// New creates a Server.
func New(engine *vault.Engine, opts ...Option) *Server {
	s := &Server{
		engine:  engine,
		logger:  zap.NewNop(),
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("api")
	return s
}

// Handler returns the routed handler wrapped in request ID, access log and
// metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.Handle("GET /metrics", observability.Handler())

	mux.HandleFunc("POST /v1/vaults", s.handleInitialize)
	mux.HandleFunc("GET /v1/vaults", s.handleListVaults)
	mux.HandleFunc("GET /v1/vaults/{id}", s.handleGetVault)
	mux.HandleFunc("GET /v1/vaults/{id}/pool", s.handlePool)
	mux.HandleFunc("GET /v1/vaults/{id}/preview/enter", s.handlePreviewEnter)
	mux.HandleFunc("GET /v1/vaults/{id}/preview/leave", s.handlePreviewLeave)
	mux.HandleFunc("POST /v1/vaults/{id}/enter", s.handleEnter)
	mux.HandleFunc("POST /v1/vaults/{id}/leave", s.handleLeave)
	mux.HandleFunc("GET /v1/vaults/{id}/receipts", s.handleReceipts)
	mux.HandleFunc("GET /v1/vaults/{id}/snapshots", s.handleSnapshots)

	if s.ledger != nil {
		mux.HandleFunc("POST /v1/ledger/mints", s.handleCreateMint)
		mux.HandleFunc("POST /v1/ledger/accounts", s.handleCreateAccount)
		mux.HandleFunc("POST /v1/ledger/mint-to", s.handleMintTo)
		mux.HandleFunc("POST /v1/ledger/transfer", s.handleTransfer)
		mux.HandleFunc("GET /v1/ledger/accounts/{address}", s.handleGetAccount)
		mux.HandleFunc("GET /v1/ledger/mints/{address}", s.handleGetMint)
	}

	return s.middleware(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status    string    `json:"status"`
	Uptime    string    `json:"uptime"`
	StartedAt time.Time `json:"started_at"`
	Storage   string    `json:"storage,omitempty"`
	ProgramID string    `json:"program_id"`
	Vaults    int       `json:"vaults"`
	Ledger    bool      `json:"ledger_endpoints"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	vaults, err := s.engine.Vaults(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		Status:    "running",
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		StartedAt: s.started,
		Storage:   s.storage,
		ProgramID: s.engine.ProgramID().String(),
		Vaults:    len(vaults),
		Ledger:    s.ledger != nil,
	})
}

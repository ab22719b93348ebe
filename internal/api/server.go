// Package api is the public HTTP surface: health, advisory quotes, swap
// creation, status lookups, Prometheus exposition, and a WebSocket status
// feed. Handlers validate and translate; all swap state lives behind the
// injected store and the lifecycle engine.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vaultswap/vaultswapd/internal/metrics"
	"github.com/vaultswap/vaultswapd/internal/orderbook"
	"github.com/vaultswap/vaultswapd/internal/storage"
	"github.com/vaultswap/vaultswapd/pkg/logging"
)

// Store is the persistence surface the handlers need.
type Store interface {
	CreateSwap(rec *storage.SwapRecord) error
	GetSwap(id string) (*storage.SwapRecord, error)
}

// Quoter prices sell orders on one chain.
type Quoter interface {
	Quote(ctx context.Context, req *orderbook.QuoteRequest) (*orderbook.Quote, error)
}

// Minter mints fresh deposit vaults.
type Minter interface {
	Mint() (common.Address, []byte, error)
}

// Config wires the server's collaborators.
type Config struct {
	Store      Store
	Vault      Minter
	Orderbooks map[uint64]Quoter
	Metrics    *metrics.Metrics

	// DepositTTL is how long a new vault waits for its deposit.
	DepositTTL time.Duration

	// RequestTimeout bounds each request.
	RequestTimeout time.Duration
}

// Server is the public HTTP API server.
type Server struct {
	cfg *Config
	log *logging.Logger
	hub *Hub

	server   *http.Server
	listener net.Listener
}

// NewServer creates the API server and its WebSocket hub.
func NewServer(cfg *Config) *Server {
	return &Server{
		cfg: cfg,
		log: logging.Component("api"),
		hub: NewHub(),
	}
}

// Hub returns the WebSocket hub for lifecycle event broadcasting.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start binds the listener and begins serving.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	go s.hub.Run()

	s.server = &http.Server{
		Handler:      s.routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("API server error", "error", err)
		}
	}()

	s.log.Info("API server started", "addr", addr, "ws", "ws://"+addr+"/ws")
	return nil
}

// routes builds the request handler: method-routed mux, CORS, and the
// per-request budget.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /quote", s.handleQuote)
	mux.HandleFunc("POST /swap", s.handleCreateSwap)
	mux.HandleFunc("GET /swap/{id}", s.handleGetSwap)
	mux.Handle("GET /metrics", s.cfg.Metrics.Handler())
	mux.HandleFunc("GET /ws", s.handleWS)

	handler := corsMiddleware(mux)
	if s.cfg.RequestTimeout > 0 {
		// /ws is exempt; the hub manages its own deadlines.
		handler = timeoutExceptWS(handler, s.cfg.RequestTimeout)
	}
	return handler
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// timeoutExceptWS applies a per-request budget to everything but the
// WebSocket upgrade.
func timeoutExceptWS(next http.Handler, timeout time.Duration) http.Handler {
	limited := http.TimeoutHandler(next, timeout, `{"error":"request timed out"}`)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}
		limited.ServeHTTP(w, r)
	})
}

// corsMiddleware adds CORS headers to all responses.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

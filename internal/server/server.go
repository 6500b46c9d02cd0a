// Package server exposes the governance API over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Mardiprk/Mini-MetaDAO/internal/domain"
	"github.com/Mardiprk/Mini-MetaDAO/internal/server/handler"
	"github.com/Mardiprk/Mini-MetaDAO/internal/server/middleware"
	"github.com/Mardiprk/Mini-MetaDAO/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // empty disables authentication

	// RateLimit/RateWindow throttle per client IP; a nil Limiter disables
	// throttling entirely.
	Limiter    domain.RateLimiter
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health    *handler.HealthHandler
	Dao       *handler.DaoHandler
	Proposals *handler.ProposalHandler
	Markets   *handler.MarketHandler
	Positions *handler.PositionHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer registers all routes on a ServeMux, wraps it in the middleware
// chain, and attaches the WebSocket hub.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check, no auth required on the route itself; the auth
	// middleware wraps everything uniformly and monitoring callers carry
	// the key like everyone else.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Dao lifecycle.
	mux.HandleFunc("POST /api/dao", handlers.Dao.InitDao)
	mux.HandleFunc("GET /api/dao", handlers.Dao.GetDao)

	// Proposals and gated execution.
	mux.HandleFunc("POST /api/proposals", handlers.Proposals.CreateProposal)
	mux.HandleFunc("GET /api/proposals", handlers.Proposals.ListProposals)
	mux.HandleFunc("GET /api/proposals/{id}", handlers.Proposals.GetProposal)
	mux.HandleFunc("POST /api/proposals/{id}/market", handlers.Markets.OpenMarket)
	mux.HandleFunc("POST /api/proposals/{id}/execute", handlers.Proposals.ExecuteProposal)

	// Markets and staking.
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("POST /api/markets/{id}/stake", handlers.Markets.Stake)
	mux.HandleFunc("POST /api/markets/{id}/resolve", handlers.Markets.Resolve)

	// Positions and redemption.
	mux.HandleFunc("POST /api/markets/{id}/redeem", handlers.Positions.Redeem)
	mux.HandleFunc("GET /api/markets/{id}/positions", handlers.Positions.ListMarketPositions)
	mux.HandleFunc("GET /api/positions", handlers.Positions.ListBettorPositions)

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Middleware chain, innermost first: caller identity, rate limit,
	// auth, request logging, CORS outermost so preflights never hit auth.
	var h http.Handler = mux
	h = middleware.Caller()(h)
	if cfg.Limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(cfg.Limiter, cfg.RateLimit, cfg.RateWindow)(h)
	}
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start listens for HTTP requests and blocks until the server errors or is
// shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

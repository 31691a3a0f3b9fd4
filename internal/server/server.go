// Package server exposes the query projections over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alejandrodnm/betgpt/internal/application/query"
)

// Queries is the read side the handlers serve.
type Queries interface {
	Markets() (query.MarketsView, error)
	Analytics(ctx context.Context) (query.AnalyticsView, error)
	Arbitrage() (query.ArbitrageView, error)
	Backtest() (query.BacktestView, error)
	Portfolio() (query.PortfolioView, error)
	Health() query.HealthView
}

// HTTPMetrics records request latencies and exposes the scrape endpoint.
type HTTPMetrics interface {
	ObserveHTTP(route, method string, status int, d time.Duration)
	Handler() http.Handler
}

// Config holds the HTTP server settings.
type Config struct {
	Addr        string
	CORSOrigins []string
}

// Server is the Query API HTTP server.
type Server struct {
	httpServer *http.Server
}

// New builds the server with every route and middleware registered.
// rec may be nil, which disables /metrics.
func New(cfg Config, q Queries, rec HTTPMetrics) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           NewHandler(cfg, q, rec),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// NewHandler returns the routed handler wrapped in the middleware chain.
func NewHandler(cfg Config, q Queries, rec HTTPMetrics) http.Handler {
	h := &handlers{q: q}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/markets", h.markets)
	mux.HandleFunc("GET /api/analytics", h.analytics)
	mux.HandleFunc("GET /api/arbitrage", h.arbitrage)
	mux.HandleFunc("GET /api/backtest", h.backtest)
	mux.HandleFunc("GET /api/portfolio", h.portfolio)
	mux.HandleFunc("GET /api/health", h.health)
	if rec != nil {
		mux.Handle("GET /metrics", rec.Handler())
	}

	var handler http.Handler = mux
	if rec != nil {
		handler = instrument(rec)(handler)
	}
	handler = logging(handler)
	handler = cors(cfg.CORSOrigins)(handler)
	return handler
}

// Start listens until the server is shut down.
func (s *Server) Start() error {
	slog.Info("server: starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight requests within the ctx deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// Package query projects the engine's published state into the read shapes
// served by the HTTP API. It never mutates engine state.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/betgpt/internal/application/scanner"
	"github.com/alejandrodnm/betgpt/internal/domain"
	"github.com/alejandrodnm/betgpt/internal/ports"
)

// ArbitrageSource publishes arbitrage reports.
type ArbitrageSource interface {
	Latest() (domain.Published[domain.ArbitrageReport], bool)
}

// BacktestSource publishes backtest runs.
type BacktestSource interface {
	Latest() (domain.Published[domain.BacktestResult], bool)
}

// PortfolioSource publishes the live ledger.
type PortfolioSource interface {
	State() (domain.PortfolioState, bool)
}

// InefficiencyHistory reads the per-cycle average inefficiency.
type InefficiencyHistory interface {
	GetInefficiencyHistory(ctx context.Context, limit int) ([]domain.InefficiencyPoint, error)
}

// Sources are the committed results the projections read from.
type Sources struct {
	Markets   ports.MarketFeed
	Arbitrage ArbitrageSource
	Backtest  BacktestSource
	Portfolio PortfolioSource
	History   InefficiencyHistory
}

// Config sets the expected cadence of each producer. A result older than
// twice its interval is reported stale.
type Config struct {
	Scorer            domain.Scorer
	PollInterval      time.Duration
	ArbitrageInterval time.Duration
	BacktestInterval  time.Duration
	AgentInterval     time.Duration
	HistoryPoints     int
}

// Meta is carried by every envelope.
type Meta struct {
	Success    bool      `json:"success"`
	Stale      bool      `json:"stale"`
	LastUpdate time.Time `json:"last_update"`
}

// MarketsView is the /api/markets payload.
type MarketsView struct {
	Meta
	Markets []domain.ScoredMarket `json:"markets"`
	Partial bool                  `json:"partial"`
	Skipped int                   `json:"skipped"`
}

// AnalyticsView is the /api/analytics payload.
type AnalyticsView struct {
	Meta
	domain.Analytics
}

// ArbitrageView is the /api/arbitrage payload.
type ArbitrageView struct {
	Meta
	Opportunities []domain.ArbitrageOpportunity `json:"opportunities"`
	Summary       domain.ArbitrageSummary       `json:"summary"`
}

// BacktestView is the /api/backtest payload.
type BacktestView struct {
	Meta
	Results domain.BacktestResult `json:"results"`
}

// PortfolioView is the /api/portfolio payload.
type PortfolioView struct {
	Meta
	Stats  domain.PortfolioStats `json:"stats"`
	Trades []domain.Trade        `json:"trades"`
}

// HealthView is the /api/health payload.
type HealthView struct {
	Status string          `json:"status"`
	Ready  map[string]bool `json:"ready"`
}

// Service builds the read projections.
type Service struct {
	src Sources
	cfg Config
	now func() time.Time
}

// New creates the projection service.
func New(src Sources, cfg Config) *Service {
	if cfg.Scorer.BuyThreshold <= 0 {
		cfg.Scorer = domain.NewScorer(0)
	}
	if cfg.HistoryPoints <= 0 {
		cfg.HistoryPoints = 100
	}
	return &Service{src: src, cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

func notReady(what string) error {
	return fmt.Errorf("query: %s: %w", what, domain.ErrNotReady)
}

// expired reports whether a result produced at `at` missed two of its ticks.
func (s *Service) expired(at time.Time, interval time.Duration) bool {
	return interval > 0 && s.now().Sub(at) > 2*interval
}

// Markets scores the current snapshot set on read, highest score first.
func (s *Service) Markets() (MarketsView, error) {
	set, ok := s.src.Markets.Latest()
	if !ok {
		return MarketsView{}, notReady("markets")
	}
	scored, skipped := scanner.Analyze(s.cfg.Scorer, set.Markets)
	return MarketsView{
		Meta: Meta{
			Success:    true,
			Stale:      set.Stale() || s.expired(set.At, s.cfg.PollInterval),
			LastUpdate: set.At,
		},
		Markets: scored,
		Partial: set.Partial,
		Skipped: set.Skipped + skipped,
	}, nil
}

// Analytics aggregates the current set by category plus the inefficiency
// history. A history read failure degrades to an empty history flagged stale.
func (s *Service) Analytics(ctx context.Context) (AnalyticsView, error) {
	set, ok := s.src.Markets.Latest()
	if !ok {
		return AnalyticsView{}, notReady("analytics")
	}
	scored, _ := scanner.Analyze(s.cfg.Scorer, set.Markets)

	stale := set.Stale() || s.expired(set.At, s.cfg.PollInterval)
	var history []domain.InefficiencyPoint
	if s.src.History != nil {
		h, err := s.src.History.GetInefficiencyHistory(ctx, s.cfg.HistoryPoints)
		if err != nil {
			slog.Warn("query: inefficiency history unavailable", "err", err)
			stale = true
		}
		history = h
	}

	return AnalyticsView{
		Meta:      Meta{Success: true, Stale: stale, LastUpdate: set.At},
		Analytics: domain.BuildAnalytics(scored, history),
	}, nil
}

// Arbitrage returns the latest matcher pass.
func (s *Service) Arbitrage() (ArbitrageView, error) {
	p, ok := s.src.Arbitrage.Latest()
	if !ok {
		return ArbitrageView{}, notReady("arbitrage")
	}
	return ArbitrageView{
		Meta:          Meta{Success: true, Stale: p.Stale || s.expired(p.At, s.cfg.ArbitrageInterval), LastUpdate: p.At},
		Opportunities: p.Value.Opportunities,
		Summary:       p.Value.Summary,
	}, nil
}

// Backtest returns the latest backtest run.
func (s *Service) Backtest() (BacktestView, error) {
	p, ok := s.src.Backtest.Latest()
	if !ok {
		return BacktestView{}, notReady("backtest")
	}
	return BacktestView{
		Meta:    Meta{Success: true, Stale: p.Stale || s.expired(p.At, s.cfg.BacktestInterval), LastUpdate: p.At},
		Results: p.Value,
	}, nil
}

// Portfolio returns the published ledger version.
func (s *Service) Portfolio() (PortfolioView, error) {
	st, ok := s.src.Portfolio.State()
	if !ok {
		return PortfolioView{}, notReady("portfolio")
	}
	trades := st.Trades
	if trades == nil {
		trades = []domain.Trade{}
	}
	return PortfolioView{
		Meta:   Meta{Success: true, Stale: s.expired(st.UpdatedAt, s.cfg.AgentInterval), LastUpdate: st.UpdatedAt},
		Stats:  st.Stats,
		Trades: trades,
	}, nil
}

// Health reports which projections have committed data.
func (s *Service) Health() HealthView {
	_, markets := s.src.Markets.Latest()
	_, arb := s.src.Arbitrage.Latest()
	_, bt := s.src.Backtest.Latest()
	_, pf := s.src.Portfolio.State()

	status := "ok"
	if !markets || !arb || !pf {
		status = "starting"
	}
	return HealthView{
		Status: status,
		Ready: map[string]bool{
			"markets":   markets,
			"arbitrage": arb,
			"backtest":  bt,
			"portfolio": pf,
		},
	}
}

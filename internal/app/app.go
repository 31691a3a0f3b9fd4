// Package app wires the engine's adapters and services and runs their loops.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/betgpt/config"
	"github.com/alejandrodnm/betgpt/internal/adapters/cache"
	"github.com/alejandrodnm/betgpt/internal/adapters/notify"
	"github.com/alejandrodnm/betgpt/internal/adapters/storage"
	"github.com/alejandrodnm/betgpt/internal/adapters/upstream"
	"github.com/alejandrodnm/betgpt/internal/application/agent"
	"github.com/alejandrodnm/betgpt/internal/application/arbitrage"
	"github.com/alejandrodnm/betgpt/internal/application/backtest"
	"github.com/alejandrodnm/betgpt/internal/application/query"
	"github.com/alejandrodnm/betgpt/internal/application/scanner"
	"github.com/alejandrodnm/betgpt/internal/domain"
	"github.com/alejandrodnm/betgpt/internal/metrics"
	"github.com/alejandrodnm/betgpt/internal/ports"
	"github.com/alejandrodnm/betgpt/internal/server"
)

const shutdownTimeout = 10 * time.Second

// App owns every long-lived component. Create it with New and release it with Close.
type App struct {
	cfg     *config.Config
	store   *storage.SQLiteStorage
	redis   *cache.RedisMirror
	console *notify.Console
	rec     *metrics.Recorder

	poller    *scanner.Scanner
	arbitrage *arbitrage.Service
	backtest  *backtest.Service
	agent     *agent.Agent
	query     *query.Service
}

// New opens storage, connects the optional Redis mirror and builds the services.
func New(ctx context.Context, cfg *config.Config, console *notify.Console) (*App, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN, cfg.Storage.RetentionDays)
	if err != nil {
		return nil, fmt.Errorf("app.New: storage: %w", err)
	}

	a := &App{cfg: cfg, store: store, console: console, rec: metrics.New()}

	var mirror ports.ReportMirror
	if cfg.Redis.Addr != "" {
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		r, err := cache.New(pctx, cache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.RedisTTL(),
		})
		cancel()
		if err != nil {
			slog.Warn("redis mirror disabled", "addr", cfg.Redis.Addr, "err", err)
		} else {
			a.redis = r
			mirror = r
		}
	}

	client := upstream.NewClient(upstream.Options{
		PolymarketBase:     cfg.API.PolymarketBase,
		ManifoldBase:       cfg.API.ManifoldBase,
		OracleBase:         cfg.API.OracleBase,
		OracleAPIKey:       cfg.API.OracleAPIKey,
		MarketsPerPlatform: cfg.API.MarketsPerPlatform,
		Timeout:            cfg.RequestTimeout(),
	})
	if cfg.API.OracleBase == "" {
		slog.Warn("no oracle configured: every market will be skipped until api.oracle_base is set")
	}

	scorer := domain.NewScorer(cfg.Scoring.BuyThreshold)
	platforms := make([]domain.Platform, 0, len(cfg.API.Platforms))
	for _, p := range cfg.API.Platforms {
		platforms = append(platforms, domain.Platform(p))
	}

	a.poller = scanner.New(scanner.Config{
		Interval:  cfg.PollInterval(),
		Timeout:   cfg.TickTimeout(),
		Platforms: platforms,
		Workers:   cfg.Engine.Workers,
		Scorer:    scorer,
	}, client, client, store, a.rec)

	matcher := arbitrage.NewMatcher(arbitrage.Config{
		SimilarityThreshold: cfg.Arbitrage.SimilarityThreshold,
		FeePercent:          cfg.Arbitrage.FeePercent,
		MinLiquidity:        cfg.Arbitrage.MinLiquidity,
		Workers:             cfg.Engine.Workers,
	}, nil)
	a.arbitrage = arbitrage.NewService(matcher, a.poller, mirror, a.rec, cfg.ArbitrageInterval(), cfg.TickTimeout())

	a.backtest = backtest.NewService(backtest.NewSimulator(scorer), store, mirror, a.rec, backtest.Params{
		Days:           cfg.Backtest.Days,
		InitialCapital: cfg.Backtest.InitialCapital,
		StakePerTrade:  cfg.Backtest.StakePerTrade,
		Seed:           cfg.Backtest.Seed,
	}, cfg.BacktestInterval(), cfg.TickTimeout())

	var notifier ports.Notifier
	if console != nil {
		notifier = console
	}
	ledger := agent.NewLedger(cfg.Agent.InitialBalance, cfg.Agent.MaxTradeHistory)
	a.agent = agent.New(a.poller, client, ledger, store, notifier, a.rec, agent.Config{
		Scorer:          scorer,
		StakePerTrade:   cfg.Agent.StakePerTrade,
		HoldingPeriod:   cfg.HoldingPeriod(),
		MaxOpenPerTick:  cfg.Agent.MaxOpenPerTick,
		MaxTradeHistory: cfg.Agent.MaxTradeHistory,
		Interval:        cfg.AgentInterval(),
		Timeout:         cfg.TickTimeout(),
	})

	a.query = query.New(query.Sources{
		Markets:   a.poller,
		Arbitrage: a.arbitrage,
		Backtest:  a.backtest,
		Portfolio: ledger,
		History:   store,
	}, query.Config{
		Scorer:            scorer,
		PollInterval:      cfg.PollInterval(),
		ArbitrageInterval: cfg.ArbitrageInterval(),
		BacktestInterval:  cfg.BacktestInterval(),
		AgentInterval:     cfg.AgentInterval(),
		HistoryPoints:     cfg.Engine.HistoryPoints,
	})

	if err := a.agent.Restore(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("app.New: %w", err)
	}
	a.arbitrage.Restore(ctx)
	a.backtest.Restore(ctx)

	return a, nil
}

// Run starts every loop and the HTTP server and blocks until ctx is cancelled
// or one of them fails.
func (a *App) Run(ctx context.Context) error {
	srv := server.New(server.Config{
		Addr:        a.cfg.Server.Addr,
		CORSOrigins: a.cfg.Server.CORSOrigins,
	}, a.query, a.rec)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.poller.Run(ctx) })
	g.Go(func() error { return a.arbitrage.Run(ctx) })
	g.Go(func() error { return a.backtest.Run(ctx) })
	g.Go(func() error { return a.agent.Run(ctx) })
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

// RunOnce runs one poll, one arbitrage pass and one agent tick and prints them.
func (a *App) RunOnce(ctx context.Context) error {
	set, err := a.poller.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("app.RunOnce: poll: %w", err)
	}
	if err := a.arbitrage.RunOnce(ctx); err != nil {
		return fmt.Errorf("app.RunOnce: arbitrage: %w", err)
	}
	if _, err := a.agent.Tick(ctx); err != nil {
		slog.Warn("agent tick failed", "err", err)
	}

	if a.console != nil {
		scored, _ := scanner.Analyze(domain.NewScorer(a.cfg.Scoring.BuyThreshold), set.Markets)
		a.console.PrintMarkets(scored)
		if p, ok := a.arbitrage.Latest(); ok {
			a.console.PrintArbitrage(p.Value)
		}
	}
	return nil
}

// RunBacktest runs the simulator once over stored history and prints it.
func (a *App) RunBacktest(ctx context.Context) (domain.BacktestResult, error) {
	result, err := a.backtest.RunOnce(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientHistory) {
			return domain.BacktestResult{}, fmt.Errorf("app.RunBacktest: no stored history yet, run the engine first: %w", err)
		}
		return domain.BacktestResult{}, fmt.Errorf("app.RunBacktest: %w", err)
	}
	if a.console != nil {
		a.console.PrintBacktest(result)
	}
	return result, nil
}

// Close releases storage and the Redis connection.
func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			slog.Warn("redis close failed", "err", err)
		}
	}
	if err := a.store.Close(); err != nil {
		slog.Warn("storage close failed", "err", err)
	}
}

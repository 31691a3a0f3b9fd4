package backtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alejandrodnm/betgpt/internal/domain"
	"github.com/alejandrodnm/betgpt/internal/metrics"
	"github.com/alejandrodnm/betgpt/internal/ports"
)

const (
	subsystem = "backtest"
	mirrorKey = "betgpt:backtest:latest"
)

// Service re-runs the simulator periodically over stored history and
// publishes the latest result.
type Service struct {
	sim      *Simulator
	store    ports.HistoryStorage
	mirror   ports.ReportMirror
	metrics  ports.Metrics
	params   Params
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time

	latest atomic.Pointer[domain.Published[domain.BacktestResult]]
}

// NewService wires the backtest loop. mirror and rec may be nil.
func NewService(
	sim *Simulator,
	store ports.HistoryStorage,
	mirror ports.ReportMirror,
	rec ports.Metrics,
	params Params,
	interval, timeout time.Duration,
) *Service {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Service{
		sim:      sim,
		store:    store,
		mirror:   mirror,
		metrics:  rec,
		params:   params,
		interval: interval,
		timeout:  timeout,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Restore publishes the mirrored result, if any, flagged stale.
func (s *Service) Restore(ctx context.Context) {
	if s.mirror == nil {
		return
	}
	var result domain.BacktestResult
	found, err := s.mirror.Load(ctx, mirrorKey, &result)
	if err != nil {
		slog.Warn("backtest: mirror load failed", "err", err)
		return
	}
	if found {
		s.latest.Store(&domain.Published[domain.BacktestResult]{Value: result, At: result.GeneratedAt, Stale: true})
		slog.Info("backtest: restored run from mirror", "run_id", result.RunID)
	}
}

// Run executes a backtest immediately and then on every tick until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	slog.Info("backtest starting", "interval", s.interval, "days", s.params.Days)

	s.runLogged(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("backtest stopped")
			return nil
		case <-ticker.C:
			s.runLogged(ctx)
		}
	}
}

func (s *Service) runLogged(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		if errors.Is(err, domain.ErrInsufficientHistory) {
			slog.Info("backtest: waiting for history", "err", err)
			return
		}
		slog.Warn("backtest run failed", "err", err)
	}
}

// loadHistory prefers the per-day reduction done by storage. Stores without it
// return every snapshot and the simulator reduces them in memory.
func (s *Service) loadHistory(ctx context.Context, from, to time.Time) ([]domain.Market, error) {
	if daily, ok := s.store.(ports.DailyHistoryStorage); ok {
		return daily.GetDailyHistory(ctx, from, to)
	}
	return s.store.GetHistory(ctx, from, to)
}

// RunOnce loads the window of history, simulates it and publishes the result.
// On error the previously published result is kept.
func (s *Service) RunOnce(ctx context.Context) (domain.BacktestResult, error) {
	start := time.Now()
	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	to := s.now()
	from := to.AddDate(0, 0, -s.params.Days)
	history, err := s.loadHistory(tctx, from, to)
	if err != nil {
		s.metrics.ObserveTick(subsystem, time.Since(start), err)
		return domain.BacktestResult{}, fmt.Errorf("backtest.RunOnce: load history: %w", err)
	}

	result, err := s.sim.Run(history, s.params)
	if err != nil {
		if !errors.Is(err, domain.ErrInsufficientHistory) {
			s.metrics.ObserveTick(subsystem, time.Since(start), err)
		}
		return domain.BacktestResult{}, fmt.Errorf("backtest.RunOnce: %w", err)
	}

	s.latest.Store(&domain.Published[domain.BacktestResult]{Value: result, At: result.GeneratedAt})

	if err := s.store.SaveBacktestRun(ctx, result); err != nil {
		slog.Warn("backtest: save run failed", "run_id", result.RunID, "err", err)
	}
	if s.mirror != nil {
		if err := s.mirror.Save(ctx, mirrorKey, result); err != nil {
			slog.Warn("backtest: mirror save failed", "err", err)
		}
	}

	s.metrics.MarketsSkipped(subsystem, "invalid_probability", result.Skipped)
	s.metrics.ObserveTick(subsystem, time.Since(start), nil)

	slog.Info("backtest run complete",
		"run_id", result.RunID,
		"seed", result.Seed,
		"days", result.Summary.DaysTested,
		"trades", result.Summary.TotalTrades,
		"roi", result.Summary.ROI,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return result, nil
}

// Latest returns the last published run.
func (s *Service) Latest() (domain.Published[domain.BacktestResult], bool) {
	p := s.latest.Load()
	if p == nil {
		return domain.Published[domain.BacktestResult]{}, false
	}
	return *p, true
}

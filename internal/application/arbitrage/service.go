package arbitrage

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alejandrodnm/betgpt/internal/domain"
	"github.com/alejandrodnm/betgpt/internal/metrics"
	"github.com/alejandrodnm/betgpt/internal/ports"
)

const (
	subsystem = "arbitrage"
	mirrorKey = "betgpt:arbitrage:latest"
)

// Service runs the matcher on its own ticker over the latest committed
// snapshot set and publishes each report for lock-free reads.
type Service struct {
	matcher  *Matcher
	feed     ports.MarketFeed
	mirror   ports.ReportMirror
	metrics  ports.Metrics
	interval time.Duration
	timeout  time.Duration

	latest atomic.Pointer[domain.Published[domain.ArbitrageReport]]
}

// NewService wires the matcher loop. mirror and rec may be nil.
func NewService(
	matcher *Matcher,
	feed ports.MarketFeed,
	mirror ports.ReportMirror,
	rec ports.Metrics,
	interval, timeout time.Duration,
) *Service {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Service{
		matcher:  matcher,
		feed:     feed,
		mirror:   mirror,
		metrics:  rec,
		interval: interval,
		timeout:  timeout,
	}
}

// Restore loads the last mirrored report, if any, and publishes it as stale.
func (s *Service) Restore(ctx context.Context) {
	if s.mirror == nil {
		return
	}
	var report domain.ArbitrageReport
	found, err := s.mirror.Load(ctx, mirrorKey, &report)
	if err != nil {
		slog.Warn("arbitrage: mirror load failed", "err", err)
		return
	}
	if found {
		s.latest.Store(&domain.Published[domain.ArbitrageReport]{Value: report, At: report.GeneratedAt, Stale: true})
		slog.Info("arbitrage: restored report from mirror", "opportunities", len(report.Opportunities))
	}
}

// Run executes a pass immediately and then on every tick until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	slog.Info("arbitrage starting", "interval", s.interval)

	if err := s.RunOnce(ctx); err != nil {
		slog.Warn("arbitrage pass failed", "err", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("arbitrage stopped")
			return nil
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				slog.Warn("arbitrage pass failed", "err", err)
			}
		}
	}
}

// RunOnce matches the current snapshot set and publishes the report. Without
// a committed set it returns domain.ErrNotReady and keeps the previous report.
func (s *Service) RunOnce(ctx context.Context) error {
	start := time.Now()

	set, ok := s.feed.Latest()
	if !ok {
		return fmt.Errorf("arbitrage.RunOnce: %w", domain.ErrNotReady)
	}

	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	report := s.matcher.Match(tctx, set.Markets)

	s.latest.Store(&domain.Published[domain.ArbitrageReport]{
		Value: report,
		At:    report.GeneratedAt,
		Stale: set.Partial || set.Stale() || tctx.Err() != nil,
	})

	if s.mirror != nil {
		if err := s.mirror.Save(ctx, mirrorKey, report); err != nil {
			slog.Warn("arbitrage: mirror save failed", "err", err)
		}
	}

	s.metrics.SetOpportunities(len(report.Opportunities))
	s.metrics.MarketsSkipped(subsystem, "invalid_probability", report.Skipped)
	s.metrics.ObserveTick(subsystem, time.Since(start), nil)

	slog.Info("arbitrage pass complete",
		"markets", len(set.Markets),
		"opportunities", report.Summary.TotalOpportunities,
		"max_spread", report.Summary.MaxSpread,
		"skipped", report.Skipped,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

// Latest returns the last published report.
func (s *Service) Latest() (domain.Published[domain.ArbitrageReport], bool) {
	p := s.latest.Load()
	if p == nil {
		return domain.Published[domain.ArbitrageReport]{}, false
	}
	return *p, true
}

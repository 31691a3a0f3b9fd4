package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/betgpt/internal/domain"
	"github.com/alejandrodnm/betgpt/internal/metrics"
	"github.com/alejandrodnm/betgpt/internal/ports"
)

const subsystem = "poller"

// Config contiene la configuración del poller.
type Config struct {
	Interval  time.Duration
	Timeout   time.Duration // deadline por ciclo; al expirar se commitea lo parcial
	Platforms []domain.Platform
	Workers   int // goroutines para pedir estimaciones (0 = NumCPU*2)
	Scorer    domain.Scorer
}

// Scanner es el poller: en cada ciclo trae los snapshots de cada plataforma,
// les pide la estimación al oracle, persiste el ciclo y publica el set.
// Implementa ports.MarketFeed.
type Scanner struct {
	cfg     Config
	markets ports.MarketProvider
	oracle  ports.ProbabilityOracle
	storage ports.HistoryStorage
	metrics ports.Metrics
	now     func() time.Time

	// lastKnown es el último valor válido de cada mercado, por key.
	// Solo lo toca el ciclo, que nunca corre en paralelo consigo mismo.
	lastKnown map[string]domain.Market
	latest    atomic.Pointer[domain.MarketSet]
}

// New crea un Scanner con todas las dependencias inyectadas. storage y rec pueden ser nil.
func New(
	cfg Config,
	markets ports.MarketProvider,
	oracle ports.ProbabilityOracle,
	storage ports.HistoryStorage,
	rec ports.Metrics,
) *Scanner {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if cfg.Scorer.BuyThreshold <= 0 {
		cfg.Scorer = domain.NewScorer(0)
	}
	return &Scanner{
		cfg:       cfg,
		markets:   markets,
		oracle:    oracle,
		storage:   storage,
		metrics:   rec,
		now:       func() time.Time { return time.Now().UTC() },
		lastKnown: make(map[string]domain.Market),
	}
}

// Run ejecuta el loop de polling hasta que el contexto se cancele.
func (s *Scanner) Run(ctx context.Context) error {
	slog.Info("poller starting",
		"interval", s.cfg.Interval,
		"platforms", s.cfg.Platforms,
		"workers", s.cfg.Workers,
	)

	if _, err := s.RunOnce(ctx); err != nil {
		slog.Error("poll cycle failed", "err", err)
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("poller stopped")
			return nil
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				slog.Error("poll cycle failed", "err", err)
			}
		}
	}
}

// Latest devuelve el último set commiteado sin bloquear.
func (s *Scanner) Latest() (domain.MarketSet, bool) {
	p := s.latest.Load()
	if p == nil {
		return domain.MarketSet{}, false
	}
	return *p, true
}

// RunOnce ejecuta un ciclo completo: fetch → estimate → validate → persist → publish.
// Solo devuelve error si no hay ningún snapshot para publicar; en ese caso se
// conserva el set anterior.
func (s *Scanner) RunOnce(ctx context.Context) (domain.MarketSet, error) {
	start := time.Now()
	tctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	fresh, failed := s.fetchAll(tctx)

	set := domain.MarketSet{At: s.now(), Partial: len(failed) > 0}
	markets := make([]domain.Market, 0, len(fresh)+len(s.lastKnown))

	// Plataformas caídas: se sirve el último valor conocido marcado stale.
	for _, m := range s.lastKnown {
		if failed[m.Platform] {
			m.Stale = true
			markets = append(markets, m)
		}
	}

	estimates, ok, errs := estimateConcurrent(tctx, s.oracle, fresh, s.cfg.Workers)
	for i, m := range fresh {
		if !ok[i] {
			if errors.Is(errs[i], context.DeadlineExceeded) || errors.Is(errs[i], context.Canceled) {
				set.Partial = true
			} else {
				s.metrics.UpstreamError("oracle")
			}
			if prev, found := s.lastKnown[m.Key()]; found {
				prev.Stale = true
				markets = append(markets, prev)
				continue
			}
			set.Skipped++
			slog.Debug("poller: no estimate, market skipped", "market", m.Key(), "err", errs[i])
			continue
		}
		markets = append(markets, m.WithEstimate(estimates[i]))
	}

	valid := markets[:0]
	for _, m := range markets {
		if err := m.Validate(); err != nil {
			set.Skipped++
			slog.Warn("poller: invalid snapshot", "market", m.Key(), "err", err)
			continue
		}
		valid = append(valid, m)
	}
	sort.Slice(valid, func(i, j int) bool { return valid[i].Key() < valid[j].Key() })
	set.Markets = valid

	if len(set.Markets) == 0 && len(failed) > 0 {
		s.metrics.ObserveTick(subsystem, time.Since(start), domain.ErrUpstreamUnavailable)
		return domain.MarketSet{}, fmt.Errorf("scanner.RunOnce: %d platforms failed: %w", len(failed), domain.ErrUpstreamUnavailable)
	}

	s.publish(set)

	scored, _ := Analyze(s.cfg.Scorer, set.Markets)
	summary := domain.Summarize(scored, set.Skipped, set.At)
	if s.storage != nil {
		if err := s.storage.SaveCycle(ctx, set.Markets, summary); err != nil {
			slog.Warn("storage error", "err", err)
		}
	}

	s.metrics.MarketsSkipped(subsystem, "invalid_or_unavailable", set.Skipped)
	s.metrics.ObserveTick(subsystem, time.Since(start), nil)

	slog.Info("poll cycle complete",
		"markets", len(set.Markets),
		"high", summary.HighCount,
		"avg_inefficiency", fmt.Sprintf("%.3f", summary.AvgInefficiency),
		"skipped", set.Skipped,
		"partial", set.Partial,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return set, nil
}

// fetchAll trae los snapshots de todas las plataformas en paralelo.
// Una plataforma caída no cancela a las demás: se devuelve en failed.
func (s *Scanner) fetchAll(ctx context.Context) ([]domain.Market, map[domain.Platform]bool) {
	slots := make([][]domain.Market, len(s.cfg.Platforms))
	errs := make([]error, len(s.cfg.Platforms))

	var g errgroup.Group
	for i, p := range s.cfg.Platforms {
		g.Go(func() error {
			slots[i], errs[i] = s.markets.FetchSnapshot(ctx, p)
			return nil
		})
	}
	_ = g.Wait()

	failed := make(map[domain.Platform]bool)
	var fresh []domain.Market
	for i, p := range s.cfg.Platforms {
		if errs[i] != nil {
			failed[p] = true
			s.metrics.UpstreamError(string(p))
			slog.Warn("poller: platform unavailable, serving last known", "platform", p, "err", errs[i])
			continue
		}
		fresh = append(fresh, slots[i]...)
	}
	return fresh, failed
}

// publish commitea el set y actualiza el último valor conocido por mercado.
func (s *Scanner) publish(set domain.MarketSet) {
	last := make(map[string]domain.Market, len(set.Markets))
	for _, m := range set.Markets {
		m.Stale = false
		last[m.Key()] = m
	}
	s.lastKnown = last
	s.latest.Store(&set)
}

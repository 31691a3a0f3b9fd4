package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/betgpt/internal/domain"
	"github.com/alejandrodnm/betgpt/internal/metrics"
	"github.com/alejandrodnm/betgpt/internal/ports"
)

const subsystem = "agent"

// ErrTickInProgress is returned when a tick starts while the previous one is
// still running. The overlapping tick is skipped.
var ErrTickInProgress = errors.New("agent tick already in progress")

// Rand is the uniform source for settlement draws.
type Rand interface {
	Float64() float64
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// Config holds the agent settings.
type Config struct {
	Scorer          domain.Scorer
	StakePerTrade   float64
	HoldingPeriod   time.Duration
	MaxOpenPerTick  int // 0 = no limit
	MaxTradeHistory int
	Interval        time.Duration
	Timeout         time.Duration
	// Rand overrides the settlement source. Nil uses math/rand/v2.
	Rand Rand
}

// Agent runs the live paper portfolio: every tick it opens trades on
// tradeable markets and resolves the ones whose market closed or whose
// holding period elapsed.
type Agent struct {
	feed     ports.MarketFeed
	resolver ports.ResolutionSource
	ledger   *Ledger
	store    ports.LedgerStorage
	notifier ports.Notifier
	metrics  ports.Metrics
	cfg      Config

	rand    Rand
	now     func() time.Time
	newID   func() string
	running atomic.Bool
}

// New creates an agent over ledger. resolver, store, notifier and rec may be nil.
func New(
	feed ports.MarketFeed,
	resolver ports.ResolutionSource,
	ledger *Ledger,
	store ports.LedgerStorage,
	notifier ports.Notifier,
	rec ports.Metrics,
	cfg Config,
) *Agent {
	if rec == nil {
		rec = metrics.Nop{}
	}
	r := cfg.Rand
	if r == nil {
		r = globalRand{}
	}
	if cfg.Scorer.BuyThreshold <= 0 {
		cfg.Scorer = domain.NewScorer(0)
	}
	return &Agent{
		feed:     feed,
		resolver: resolver,
		ledger:   ledger,
		store:    store,
		notifier: notifier,
		metrics:  rec,
		cfg:      cfg,
		rand:     r,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// Restore loads the persisted ledger and publishes it.
func (a *Agent) Restore(ctx context.Context) error {
	if a.store == nil {
		return nil
	}
	state, trades, found, err := a.store.LoadLedger(ctx, a.cfg.MaxTradeHistory)
	if err != nil {
		return fmt.Errorf("agent.Restore: %w", err)
	}
	if !found {
		return nil
	}
	a.ledger.Restore(state, trades)
	a.ledger.Commit(state.Tick, state.UpdatedAt)
	slog.Info("agent: ledger restored",
		"balance", state.Balance,
		"tick", state.Tick,
		"open", len(a.ledger.OpenTrades()),
	)
	return nil
}

// Run ticks immediately and then every interval until ctx is done. Each tick
// runs on its own goroutine; a tick that fires while the previous one is
// still running is skipped.
func (a *Agent) Run(ctx context.Context) error {
	slog.Info("agent starting",
		"interval", a.cfg.Interval,
		"stake", a.cfg.StakePerTrade,
		"holding_period", a.cfg.HoldingPeriod,
	)

	var wg sync.WaitGroup
	defer wg.Wait()

	tick := func() {
		if _, err := a.Tick(ctx); err != nil && !errors.Is(err, ErrTickInProgress) {
			slog.Warn("agent tick failed", "err", err)
		}
	}
	wg.Go(tick)

	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("agent stopped")
			return nil
		case <-ticker.C:
			wg.Go(tick)
		}
	}
}

// Ledger returns the ledger the agent writes to.
func (a *Agent) Ledger() *Ledger { return a.ledger }

// Tick runs one open/resolve pass and persists its delta.
func (a *Agent) Tick(ctx context.Context) (domain.TickReport, error) {
	if !a.running.CompareAndSwap(false, true) {
		a.metrics.TickSkipped(subsystem)
		slog.Warn("agent: previous tick still running, skipping")
		return domain.TickReport{}, ErrTickInProgress
	}
	defer a.running.Store(false)

	start := time.Now()
	tctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	now := a.now()
	report := domain.TickReport{At: now}

	if set, ok := a.feed.Latest(); ok {
		a.openTrades(tctx, set, now, &report)
	} else {
		slog.Debug("agent: no market set yet, resolving only")
	}
	a.resolveTrades(tctx, now, &report)

	state := a.ledger.Commit(a.ledger.Tick()+1, now)
	published, _ := a.ledger.State()
	report.Tick = state.Tick
	report.Balance = state.Balance
	report.ROI = published.Stats.ROI
	report.OpenCount = published.Stats.OpenTrades

	a.metrics.SetLedger(state.Balance, report.OpenCount)
	if report.Skipped > 0 {
		a.metrics.MarketsSkipped(subsystem, "invalid_or_stale", report.Skipped)
	}

	var err error
	delta := domain.LedgerDelta{State: state}
	delta.Trades = append(append(delta.Trades, report.Opened...), report.Resolved...)
	if a.store != nil {
		if cerr := a.store.CommitLedgerDelta(ctx, delta); cerr != nil {
			err = fmt.Errorf("agent.Tick: commit ledger: %w", cerr)
		}
	}

	if a.notifier != nil && (len(report.Opened) > 0 || len(report.Resolved) > 0) {
		if nerr := a.notifier.NotifyTick(ctx, report); nerr != nil {
			slog.Warn("agent: notify failed", "err", nerr)
		}
	}

	a.metrics.ObserveTick(subsystem, time.Since(start), err)
	slog.Info("agent tick complete",
		"tick", report.Tick,
		"opened", len(report.Opened),
		"resolved", len(report.Resolved),
		"refused", report.Refused,
		"balance", report.Balance,
		"roi", report.ROI,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return report, err
}

// openTrades opens one trade per tradeable market without an OPEN trade,
// highest score first.
func (a *Agent) openTrades(ctx context.Context, set domain.MarketSet, now time.Time, report *domain.TickReport) {
	var candidates []domain.ScoredMarket
	for _, m := range set.Markets {
		if m.Stale {
			report.Skipped++
			continue
		}
		sm, err := a.cfg.Scorer.Score(m)
		if err != nil {
			report.Skipped++
			slog.Debug("agent: skipping market", "market", m.Key(), "err", err)
			continue
		}
		if !sm.Tradeable() || a.ledger.HasOpen(sm.Key()) {
			continue
		}
		candidates = append(candidates, sm)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Key() < candidates[j].Key()
	})
	if n := a.cfg.MaxOpenPerTick; n > 0 && len(candidates) > n {
		candidates = candidates[:n]
	}

	for _, sm := range candidates {
		if ctx.Err() != nil {
			slog.Warn("agent: tick deadline reached while opening", "opened", len(report.Opened))
			return
		}
		t := domain.NewTrade(sm, a.cfg.StakePerTrade, now)
		t.ID = a.newID()
		openedAt := now
		t.OpenedAt = &openedAt

		if err := a.ledger.Open(t); err != nil {
			if errors.Is(err, domain.ErrInsufficientFunds) {
				report.Refused++
				slog.Debug("agent: open refused", "market", t.MarketRef, "err", err)
				continue
			}
			slog.Warn("agent: open failed", "market", t.MarketRef, "err", err)
			continue
		}
		t.Outcome = domain.OutcomeOpen
		t.IsLive = true
		report.Opened = append(report.Opened, t)
		slog.Info("agent: trade opened",
			"market", t.MarketRef,
			"action", t.Action,
			"entry", t.EntryPrice,
			"confidence", t.Confidence,
		)
	}
}

// resolveTrades settles OPEN trades whose market resolved upstream or whose
// holding period elapsed. A resolution lookup error leaves the trade OPEN.
func (a *Agent) resolveTrades(ctx context.Context, now time.Time, report *domain.TickReport) {
	for _, t := range a.ledger.OpenTrades() {
		if ctx.Err() != nil {
			slog.Warn("agent: tick deadline reached while resolving")
			return
		}

		resolved := false
		if a.resolver != nil {
			id := strings.TrimPrefix(t.MarketRef, string(t.Platform)+":")
			var err error
			resolved, err = a.resolver.IsResolved(ctx, t.Platform, id)
			if err != nil {
				a.metrics.UpstreamError("resolution")
				slog.Warn("agent: resolution lookup failed, trade stays open", "market", t.MarketRef, "err", err)
				continue
			}
		}

		expired := t.OpenedAt != nil && now.Sub(*t.OpenedAt) >= a.cfg.HoldingPeriod
		if !resolved && !expired {
			continue
		}

		settled, ok := a.ledger.Resolve(t.ID, a.rand.Float64(), now)
		if !ok {
			continue
		}
		report.Resolved = append(report.Resolved, settled)
		slog.Info("agent: trade resolved",
			"market", settled.MarketRef,
			"outcome", settled.Outcome,
			"profit", settled.Profit,
			"market_resolved", resolved,
		)
	}
}

package agent

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/alejandrodnm/betgpt/internal/domain"
)

// Ledger is the live portfolio. It has a single writer (the agent tick) and
// any number of readers, which only see immutable PortfolioState versions
// published through an atomic pointer. Mutating methods are not safe for
// concurrent use.
type Ledger struct {
	state      domain.LedgerState
	trades     []domain.Trade // most recent first
	openByRef  map[string]string
	maxHistory int

	published atomic.Pointer[domain.PortfolioState]
}

// NewLedger creates an empty ledger with the given starting balance.
func NewLedger(initialBalance float64, maxHistory int) *Ledger {
	return &Ledger{
		state:      domain.LedgerState{Balance: initialBalance, InitialBalance: initialBalance},
		openByRef:  make(map[string]string),
		maxHistory: maxHistory,
	}
}

// Restore replaces the ledger contents with persisted state. trades must be
// ordered most recent first. state.Extremes seeds best and worst trade, since
// the loaded history may have been trimmed past them.
func (l *Ledger) Restore(state domain.LedgerState, trades []domain.Trade) {
	l.state = state
	l.trades = append([]domain.Trade(nil), trades...)
	l.openByRef = make(map[string]string)
	for _, t := range l.trades {
		if t.Outcome == domain.OutcomeOpen {
			l.openByRef[t.MarketRef] = t.ID
			continue
		}
		l.state.Extremes.Observe(t)
	}
}

// Balance returns the uninvested cash.
func (l *Ledger) Balance() float64 { return l.state.Balance }

// Tick returns the number of the last committed tick.
func (l *Ledger) Tick() int64 { return l.state.Tick }

// HasOpen reports whether marketRef already has an OPEN trade.
func (l *Ledger) HasOpen(marketRef string) bool {
	_, ok := l.openByRef[marketRef]
	return ok
}

// OpenTrades returns a copy of the OPEN trades, oldest first.
func (l *Ledger) OpenTrades() []domain.Trade {
	var out []domain.Trade
	for i := len(l.trades) - 1; i >= 0; i-- {
		if l.trades[i].Outcome == domain.OutcomeOpen {
			out = append(out, l.trades[i])
		}
	}
	return out
}

// Open records a new OPEN trade and deducts its stake. The balance never goes
// negative: a stake above the balance fails with domain.ErrInsufficientFunds.
func (l *Ledger) Open(t domain.Trade) error {
	if t.Stake > l.state.Balance {
		return fmt.Errorf("agent.Ledger.Open: stake %.2f balance %.2f: %w", t.Stake, l.state.Balance, domain.ErrInsufficientFunds)
	}
	if l.HasOpen(t.MarketRef) {
		return fmt.Errorf("agent.Ledger.Open: %s already has an open trade", t.MarketRef)
	}
	t.Outcome = domain.OutcomeOpen
	t.IsLive = true
	l.state.Balance = domain.Round(l.state.Balance-t.Stake, 2)
	l.trades = append([]domain.Trade{t}, l.trades...)
	l.openByRef[t.MarketRef] = t.ID
	return nil
}

// Resolve settles the OPEN trade id with draw u and credits its payout.
// It returns false when id is not an OPEN trade.
func (l *Ledger) Resolve(id string, u float64, at time.Time) (domain.Trade, bool) {
	for i, t := range l.trades {
		if t.ID != id || t.Outcome != domain.OutcomeOpen {
			continue
		}
		settled := t.Settle(u)
		settled.ResolvedAt = &at
		l.trades[i] = settled

		delete(l.openByRef, t.MarketRef)
		l.state.Balance = domain.Round(l.state.Balance+settled.Payout(), 2)
		l.state.TotalProfit = domain.Round(l.state.TotalProfit+settled.Profit, 2)
		if settled.Outcome == domain.OutcomeWin {
			l.state.Wins++
		} else {
			l.state.Losses++
		}
		l.state.Extremes.Observe(settled)
		return settled, true
	}
	return domain.Trade{}, false
}

// Commit closes a tick: trims the trade history, stamps the state and
// publishes a new immutable version for readers.
func (l *Ledger) Commit(tick int64, at time.Time) domain.LedgerState {
	l.state.Tick = tick
	l.state.UpdatedAt = at
	l.trim()
	l.published.Store(l.snapshot())
	return l.state
}

// State returns the last published version. ok is false until the first Commit.
func (l *Ledger) State() (domain.PortfolioState, bool) {
	p := l.published.Load()
	if p == nil {
		return domain.PortfolioState{}, false
	}
	return *p, true
}

// trim drops the oldest resolved trades beyond maxHistory. OPEN trades are
// always kept.
func (l *Ledger) trim() {
	if l.maxHistory <= 0 || len(l.trades) <= l.maxHistory {
		return
	}
	excess := len(l.trades) - l.maxHistory
	drop := make(map[int]bool, excess)
	for i := len(l.trades) - 1; i >= 0 && len(drop) < excess; i-- {
		if l.trades[i].Outcome != domain.OutcomeOpen {
			drop[i] = true
		}
	}
	kept := make([]domain.Trade, 0, len(l.trades)-len(drop))
	for i, t := range l.trades {
		if !drop[i] {
			kept = append(kept, t)
		}
	}
	l.trades = kept
}

func (l *Ledger) snapshot() *domain.PortfolioState {
	s := l.state
	trades := append([]domain.Trade{}, l.trades...)

	open := len(l.openByRef)
	resolved := s.Wins + s.Losses
	stats := domain.PortfolioStats{
		TotalTrades:    resolved + open,
		OpenTrades:     open,
		Wins:           s.Wins,
		Losses:         s.Losses,
		TotalProfit:    s.TotalProfit,
		ROI:            domain.Round((s.Balance-s.InitialBalance)/s.InitialBalance*100, 2),
		Balance:        s.Balance,
		CurrentBalance: s.Balance,
		InitialBalance: s.InitialBalance,
	}
	if resolved > 0 {
		stats.WinRate = domain.Round(float64(s.Wins)/float64(resolved)*100, 1)
	}
	if s.Extremes.Best != nil {
		b := *s.Extremes.Best
		stats.BestTrade = &b
	}
	if s.Extremes.Worst != nil {
		w := *s.Extremes.Worst
		stats.WorstTrade = &w
	}
	return &domain.PortfolioState{Stats: stats, Trades: trades, Tick: s.Tick, UpdatedAt: s.UpdatedAt}
}

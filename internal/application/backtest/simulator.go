package backtest

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/betgpt/internal/domain"
)

const recentTrades = 10

// Rand is the uniform source used for every WIN/LOSS draw.
type Rand interface {
	Float64() float64
}

// NewRand returns the seeded source the simulator uses by default.
func NewRand(seed uint64) Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Params describes one run.
type Params struct {
	Days           int
	InitialCapital float64
	StakePerTrade  float64
	// Seed makes the run reproducible. 0 draws a fresh seed, recorded in the result.
	Seed uint64
	// Rand overrides the seeded source when set.
	Rand Rand
}

// Simulator replays stored snapshots through the scorer and settles every
// tradeable one immediately.
type Simulator struct {
	scorer domain.Scorer
	now    func() time.Time
}

// NewSimulator creates a simulator that scores history with scorer.
func NewSimulator(scorer domain.Scorer) *Simulator {
	return &Simulator{scorer: scorer, now: func() time.Time { return time.Now().UTC() }}
}

type day struct {
	date    time.Time
	markets []domain.Market
}

// Run simulates the last p.Days days of history. history must be ordered by
// observed_at; Run works on its own copy. Without at least one valid snapshot
// it returns domain.ErrInsufficientHistory and no partial result.
func (s *Simulator) Run(history []domain.Market, p Params) (domain.BacktestResult, error) {
	if p.InitialCapital <= 0 || p.StakePerTrade <= 0 {
		return domain.BacktestResult{}, fmt.Errorf("backtest.Run: capital %.2f stake %.2f: invalid parameters", p.InitialCapital, p.StakePerTrade)
	}

	days, skipped := groupByDay(history, p.Days)
	if len(days) == 0 {
		return domain.BacktestResult{}, fmt.Errorf("backtest.Run: %d snapshots: %w", len(history), domain.ErrInsufficientHistory)
	}

	seed := p.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	r := p.Rand
	if r == nil {
		r = NewRand(seed)
	}

	result := domain.BacktestResult{
		RunID:             uuid.NewString(),
		Seed:              seed,
		CumulativeReturns: make([]domain.EquityPoint, 0, len(days)),
		WeeklyPerformance: []domain.WeeklyStat{},
		Trades:            []domain.Trade{},
		GeneratedAt:       s.now(),
	}

	capital := p.InitialCapital
	var (
		extremes domain.TradeExtremes
		wins     int
		weeks    = map[string]*weekAcc{}
		order    []string
	)

	for _, d := range days {
		for _, m := range d.markets {
			sm, err := s.scorer.Score(m)
			if err != nil {
				skipped++
				continue
			}
			if !sm.Tradeable() {
				continue
			}
			if capital < p.StakePerTrade {
				slog.Debug("backtest: capital below stake, trade skipped", "market", m.Key(), "capital", capital)
				continue
			}

			t := domain.NewTrade(sm, p.StakePerTrade, d.date).Settle(r.Float64())
			capital = domain.Round(capital+t.Profit, 2)
			result.Trades = append(result.Trades, t)
			extremes.Observe(t)
			if t.Outcome == domain.OutcomeWin {
				wins++
			}

			y, w := d.date.ISOWeek()
			key := fmt.Sprintf("%d-W%02d", y, w)
			acc, ok := weeks[key]
			if !ok {
				acc = &weekAcc{}
				weeks[key] = acc
				order = append(order, key)
			}
			acc.add(t)
		}

		result.CumulativeReturns = append(result.CumulativeReturns, domain.EquityPoint{
			Date:    d.date.Format(time.DateOnly),
			Capital: capital,
			ROI:     roi(capital, p.InitialCapital),
		})
	}

	for _, key := range order {
		result.WeeklyPerformance = append(result.WeeklyPerformance, weeks[key].stat(key))
	}

	total := len(result.Trades)
	result.Summary = domain.BacktestSummary{
		TotalTrades:    total,
		Wins:           wins,
		Losses:         total - wins,
		TotalProfit:    domain.Round(capital-p.InitialCapital, 2),
		ROI:            roi(capital, p.InitialCapital),
		FinalCapital:   capital,
		InitialCapital: p.InitialCapital,
		BestTrade:      extremes.Best,
		WorstTrade:     extremes.Worst,
		DaysTested:     len(days),
	}
	if total > 0 {
		result.Summary.WinRate = domain.Round(float64(wins)/float64(total)*100, 1)
		result.Summary.AvgProfitPerTrade = domain.Round((capital-p.InitialCapital)/float64(total), 2)
	}

	from := max(0, total-recentTrades)
	result.RecentTrades = append([]domain.Trade{}, result.Trades[from:]...)
	result.Skipped = skipped

	return result, nil
}

// groupByDay keeps the last snapshot of each market per UTC day, inside the
// window of the last `window` days ending at the newest snapshot. Markets in a
// day are ordered by key so draws are assigned deterministically.
func groupByDay(history []domain.Market, window int) ([]day, int) {
	var (
		skipped int
		newest  time.Time
	)
	valid := make([]domain.Market, 0, len(history))
	for _, m := range history {
		if err := m.Validate(); err != nil {
			skipped++
			continue
		}
		valid = append(valid, m)
		if m.ObservedAt.After(newest) {
			newest = m.ObservedAt
		}
	}
	if len(valid) == 0 {
		return nil, skipped
	}

	sort.SliceStable(valid, func(i, j int) bool { return valid[i].ObservedAt.Before(valid[j].ObservedAt) })

	var cutoff time.Time
	if window > 0 {
		cutoff = truncateDay(newest).AddDate(0, 0, -(window - 1))
	}

	byDay := map[time.Time]map[string]domain.Market{}
	for _, m := range valid {
		d := truncateDay(m.ObservedAt)
		if d.Before(cutoff) {
			continue
		}
		if byDay[d] == nil {
			byDay[d] = map[string]domain.Market{}
		}
		byDay[d][m.Key()] = m
	}

	days := make([]day, 0, len(byDay))
	for date, set := range byDay {
		keys := make([]string, 0, len(set))
		for k := range set {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		markets := make([]domain.Market, 0, len(keys))
		for _, k := range keys {
			markets = append(markets, set[k])
		}
		days = append(days, day{date: date, markets: markets})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].date.Before(days[j].date) })
	return days, skipped
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func roi(capital, initial float64) float64 {
	return domain.Round((capital-initial)/initial*100, 2)
}

type weekAcc struct {
	trades int
	wins   int
	profit float64
}

func (w *weekAcc) add(t domain.Trade) {
	w.trades++
	if t.Outcome == domain.OutcomeWin {
		w.wins++
	}
	w.profit += t.Profit
}

func (w *weekAcc) stat(week string) domain.WeeklyStat {
	return domain.WeeklyStat{
		Week:    week,
		Trades:  w.trades,
		WinRate: domain.Round(float64(w.wins)/float64(w.trades)*100, 1),
		Profit:  domain.Round(w.profit, 2),
	}
}

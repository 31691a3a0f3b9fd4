package backtest

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/betgpt/internal/domain"
)

type seqRand struct {
	seq []float64
	i   int
}

func (r *seqRand) Float64() float64 {
	v := r.seq[r.i%len(r.seq)]
	r.i++
	return v
}

func snapshot(id string, prob, ai float64, at time.Time) domain.Market {
	return domain.Market{
		ID:            id,
		Title:         "Will " + id + " happen?",
		Platform:      domain.PlatformManifold,
		MarketProb:    prob,
		AIProbability: ai,
		Liquidity:     100,
		ObservedAt:    at,
	}
}

var monday = time.Date(2025, 2, 10, 9, 0, 0, 0, time.UTC)

func TestRun_InsufficientHistory(t *testing.T) {
	sim := NewSimulator(domain.NewScorer(0))
	params := Params{Days: 30, InitialCapital: 1000, StakePerTrade: 50, Seed: 1}

	_, err := sim.Run(nil, params)
	assert.True(t, errors.Is(err, domain.ErrInsufficientHistory))

	_, err = sim.Run([]domain.Market{snapshot("bad", 1.5, 0.2, monday)}, params)
	assert.True(t, errors.Is(err, domain.ErrInsufficientHistory))
}

func TestRun_InvalidParams(t *testing.T) {
	sim := NewSimulator(domain.NewScorer(0))
	_, err := sim.Run([]domain.Market{snapshot("a", 0.385, 0.672, monday)}, Params{Days: 1})
	assert.Error(t, err)
}

func TestRun_SettlementMath(t *testing.T) {
	history := []domain.Market{
		snapshot("a", 0.385, 0.672, monday),
		snapshot("b", 0.385, 0.672, monday.Add(time.Minute)),
		snapshot("c", 0.385, 0.672, monday.Add(2*time.Minute)),
		// Low: never traded
		snapshot("d", 0.50, 0.55, monday.Add(24*time.Hour)),
	}
	sim := NewSimulator(domain.NewScorer(0))
	res, err := sim.Run(history, Params{
		Days: 30, InitialCapital: 1000, StakePerTrade: 50,
		Rand: &seqRand{seq: []float64{0.0, 0.1, 0.99}},
	})
	require.NoError(t, err)

	require.Len(t, res.Trades, 3)
	assert.Equal(t, domain.OutcomeWin, res.Trades[0].Outcome)
	assert.InDelta(t, 14.35, res.Trades[0].Profit, 1e-9)
	assert.Equal(t, domain.OutcomeWin, res.Trades[1].Outcome)
	assert.Equal(t, domain.OutcomeLoss, res.Trades[2].Outcome)
	assert.Equal(t, -50.0, res.Trades[2].Profit)
	assert.Equal(t, "2025-02-10", res.Trades[0].Date)
	assert.Equal(t, "Manifold:a", res.Trades[0].MarketRef)

	s := res.Summary
	assert.Equal(t, 3, s.TotalTrades)
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.InDelta(t, 66.7, s.WinRate, 1e-9)
	assert.InDelta(t, 978.7, s.FinalCapital, 1e-9)
	assert.InDelta(t, -21.3, s.TotalProfit, 1e-9)
	assert.InDelta(t, -2.13, s.ROI, 1e-9)
	assert.InDelta(t, -7.1, s.AvgProfitPerTrade, 1e-9)
	assert.Equal(t, 1000.0, s.InitialCapital)
	assert.Equal(t, 2, s.DaysTested)
	require.NotNil(t, s.BestTrade)
	require.NotNil(t, s.WorstTrade)
	assert.InDelta(t, 14.35, s.BestTrade.Profit, 1e-9)
	assert.Equal(t, -50.0, s.WorstTrade.Profit)

	require.Len(t, res.CumulativeReturns, 2)
	assert.Equal(t, domain.EquityPoint{Date: "2025-02-10", Capital: 978.7, ROI: -2.13}, res.CumulativeReturns[0])
	assert.Equal(t, "2025-02-11", res.CumulativeReturns[1].Date)
	assert.InDelta(t, 978.7, res.CumulativeReturns[1].Capital, 1e-9)

	require.Len(t, res.WeeklyPerformance, 1)
	w := res.WeeklyPerformance[0]
	assert.Equal(t, "2025-W07", w.Week)
	assert.Equal(t, 3, w.Trades)
	assert.InDelta(t, 66.7, w.WinRate, 1e-9)
	assert.InDelta(t, -21.3, w.Profit, 1e-9)

	assert.Len(t, res.RecentTrades, 3)
	assert.NotEmpty(t, res.RunID)
}

func TestRun_LatestSnapshotPerDay(t *testing.T) {
	history := []domain.Market{
		snapshot("a", 0.385, 0.672, monday),
		// Same market later that day: gap closed, nothing to trade.
		snapshot("a", 0.60, 0.62, monday.Add(3*time.Hour)),
	}
	res, err := NewSimulator(domain.NewScorer(0)).Run(history, Params{Days: 7, InitialCapital: 1000, StakePerTrade: 50, Seed: 9})
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
	assert.NotNil(t, res.Trades)
	assert.Equal(t, 1, res.Summary.DaysTested)
	assert.Equal(t, 1000.0, res.Summary.FinalCapital)
	assert.Nil(t, res.Summary.BestTrade)
}

func TestRun_StopsTradingBelowStake(t *testing.T) {
	var history []domain.Market
	for i := 0; i < 4; i++ {
		history = append(history, snapshot(fmt.Sprintf("m%d", i), 0.2, 0.6, monday.Add(time.Duration(i)*time.Minute)))
	}
	res, err := NewSimulator(domain.NewScorer(0)).Run(history, Params{
		Days: 1, InitialCapital: 60, StakePerTrade: 50,
		Rand: &seqRand{seq: []float64{0.999}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Summary.TotalTrades)
	assert.Equal(t, 10.0, res.Summary.FinalCapital)
	for _, p := range res.CumulativeReturns {
		assert.GreaterOrEqual(t, p.Capital, 0.0)
	}
}

func TestRun_Window(t *testing.T) {
	var history []domain.Market
	for d := 0; d < 10; d++ {
		history = append(history, snapshot("a", 0.3, 0.7, monday.AddDate(0, 0, d)))
	}
	res, err := NewSimulator(domain.NewScorer(0)).Run(history, Params{Days: 3, InitialCapital: 1000, StakePerTrade: 10, Seed: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Summary.DaysTested)
	assert.Equal(t, "2025-02-17", res.CumulativeReturns[0].Date)
	assert.Equal(t, 3, res.Summary.TotalTrades)
}

func longHistory() []domain.Market {
	var history []domain.Market
	for d := 0; d < 21; d++ {
		for i := 0; i < 6; i++ {
			prob := 0.1 + 0.13*float64(i)
			ai := prob + 0.4 - 0.08*float64((d+i)%10)
			if ai < 0 {
				ai = 0
			}
			if ai > 1 {
				ai = 1
			}
			history = append(history, snapshot(fmt.Sprintf("m%d", i), prob, ai, monday.AddDate(0, 0, d).Add(time.Duration(i)*time.Minute)))
		}
	}
	return history
}

func TestRun_SeededRunsAreIdentical(t *testing.T) {
	sim := NewSimulator(domain.NewScorer(0))
	params := Params{Days: 30, InitialCapital: 1000, StakePerTrade: 25, Seed: 42}

	first, err := sim.Run(longHistory(), params)
	require.NoError(t, err)
	second, err := sim.Run(longHistory(), params)
	require.NoError(t, err)

	ledger := func(r domain.BacktestResult) []byte {
		b, err := json.Marshal(struct {
			Summary domain.BacktestSummary
			Trades  []domain.Trade
			Curve   []domain.EquityPoint
			Weekly  []domain.WeeklyStat
		}{r.Summary, r.Trades, r.CumulativeReturns, r.WeeklyPerformance})
		require.NoError(t, err)
		return b
	}

	assert.NotZero(t, first.Summary.TotalTrades)
	assert.Equal(t, uint64(42), first.Seed)
	assert.Equal(t, string(ledger(first)), string(ledger(second)))
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Len(t, first.WeeklyPerformance, 3)
	assert.Len(t, first.RecentTrades, 10)
	assert.Equal(t, first.Trades[len(first.Trades)-1], first.RecentTrades[9])
}

func TestRun_UnseededRecordsSeed(t *testing.T) {
	sim := NewSimulator(domain.NewScorer(0))
	res, err := sim.Run(longHistory(), Params{Days: 30, InitialCapital: 1000, StakePerTrade: 25})
	require.NoError(t, err)
	assert.NotZero(t, res.Seed)

	replay, err := sim.Run(longHistory(), Params{Days: 30, InitialCapital: 1000, StakePerTrade: 25, Seed: res.Seed})
	require.NoError(t, err)
	assert.Equal(t, res.Summary, replay.Summary)
}

func TestRun_SkipsHoldRecommendations(t *testing.T) {
	history := []domain.Market{
		// Medium at T_buy=20 but HOLD
		snapshot("hold", 0.40, 0.56, monday),
		snapshot("buy", 0.20, 0.60, monday.Add(time.Minute)),
	}
	sim := NewSimulator(domain.NewScorer(20))
	res, err := sim.Run(history, Params{
		Days: 30, InitialCapital: 1000, StakePerTrade: 50,
		Rand: &seqRand{seq: []float64{0.0}},
	})
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	assert.Equal(t, "Manifold:buy", res.Trades[0].MarketRef)
}

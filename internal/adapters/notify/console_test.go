package notify_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alejandrodnm/betgpt/internal/adapters/notify"
	"github.com/alejandrodnm/betgpt/internal/domain"
	"github.com/alejandrodnm/betgpt/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.Notifier = (*notify.Console)(nil)

func makeTrade(title string, outcome domain.Outcome, profit float64) domain.Trade {
	return domain.Trade{
		MarketTitle: title,
		Action:      domain.ActionBuyYes,
		Stake:       50,
		EntryPrice:  38.5,
		AIEstimate:  67.2,
		Confidence:  57.4,
		Outcome:     outcome,
		Profit:      profit,
	}
}

func TestConsole_NotifyTick_Compact(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	err := n.NotifyTick(context.Background(), domain.TickReport{
		Tick:      3,
		Opened:    []domain.Trade{makeTrade("Will BTC hit 100k?", domain.OutcomeOpen, 0)},
		Refused:   2,
		Balance:   950,
		ROI:       -5,
		OpenCount: 1,
		At:        time.Date(2025, 1, 1, 10, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "[10:30:00] tick #3")
	assert.Contains(t, out, "bal $950.00")
	assert.Contains(t, out, "refused:2")
	assert.NotContains(t, out, "Will BTC", "compact mode prints no table")
}

func TestConsole_NotifyTick_Table(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, true)

	err := n.NotifyTick(context.Background(), domain.TickReport{
		Tick:     4,
		Opened:   []domain.Trade{makeTrade("Will BTC hit 100k?", domain.OutcomeOpen, 0)},
		Resolved: []domain.Trade{makeTrade("Will it rain in Paris?", domain.OutcomeWin, 14.35)},
		At:       time.Now(),
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Will BTC hit 100k?")
	assert.Contains(t, out, "RESOLVE")
	assert.Contains(t, out, "$+14.35")
}

func TestConsole_PrintBacktest(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, true)

	best := makeTrade("Best market", domain.OutcomeWin, 20)
	n.PrintBacktest(domain.BacktestResult{
		Seed: 7,
		Summary: domain.BacktestSummary{
			TotalTrades: 3, Wins: 2, Losses: 1, WinRate: 66.7,
			TotalProfit: -10, InitialCapital: 1000, FinalCapital: 990, DaysTested: 7,
			BestTrade: &best,
		},
		WeeklyPerformance: []domain.WeeklyStat{{Week: "2025-W02", Trades: 3, WinRate: 66.7, Profit: -10}},
	})

	out := buf.String()
	assert.Contains(t, out, "BACKTEST REPORT (7 days, seed 7)")
	assert.Contains(t, out, "2025-W02")
	assert.Contains(t, out, "Best market")
}

func TestConsole_PrintArbitrageAndMarkets(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, true)

	n.PrintArbitrage(domain.ArbitrageReport{
		Opportunities: []domain.ArbitrageOpportunity{{
			Question: "Will Bitcoin reach $100K by 2025?", CheaperPlatform: domain.PlatformManifold,
			ExpensivePlatform: domain.PlatformPolymarket, SpreadPercent: 16.8,
		}},
		Summary: domain.ArbitrageSummary{TotalOpportunities: 1, MaxSpread: 16.8, PlatformsCompared: 2},
	})
	n.PrintMarkets([]domain.ScoredMarket{{
		Market: domain.Market{Title: "Will BTC hit 100k?", Platform: domain.PlatformPolymarket, Stale: true},
		Label:  domain.LabelHigh,
	}})

	out := buf.String()
	assert.Contains(t, out, "ARBITRAGE: 1 opps")
	assert.Contains(t, out, "Manifold")
	assert.Contains(t, out, "(stale)")
}

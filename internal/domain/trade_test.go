package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrade_Settle(t *testing.T) {
	s, err := NewScorer(0).Score(market(0.385, 0.672))
	require.NoError(t, err)
	tr := NewTrade(s, 50, time.Date(2025, 3, 4, 15, 0, 0, 0, time.UTC))

	assert.Equal(t, "2025-03-04", tr.Date)
	assert.Equal(t, "Polymarket:m1", tr.MarketRef)
	assert.Equal(t, OutcomeOpen, tr.Outcome)
	assert.InDelta(t, 38.5, tr.EntryPrice, 1e-9)
	assert.InDelta(t, 67.2, tr.AIEstimate, 1e-9)

	win := tr.Settle(0.10)
	assert.Equal(t, OutcomeWin, win.Outcome)
	assert.InDelta(t, 14.35, win.Profit, 1e-9)
	assert.InDelta(t, 28.7, win.ROIPercent, 1e-9)
	assert.InDelta(t, 64.35, win.Payout(), 1e-9)

	loss := tr.Settle(0.60)
	assert.Equal(t, OutcomeLoss, loss.Outcome)
	assert.Equal(t, -50.0, loss.Profit)
	assert.Equal(t, -100.0, loss.ROIPercent)
	assert.Equal(t, 0.0, loss.Payout())

	assert.Equal(t, OutcomeOpen, tr.Outcome, "settle returns a copy")
}

func TestTradeExtremes(t *testing.T) {
	var e TradeExtremes
	e.Observe(Trade{MarketRef: "a", Profit: 10})
	e.Observe(Trade{MarketRef: "b", Profit: -50})
	e.Observe(Trade{MarketRef: "c", Profit: 25})

	require.NotNil(t, e.Best)
	require.NotNil(t, e.Worst)
	assert.Equal(t, "c", e.Best.MarketRef)
	assert.Equal(t, "b", e.Worst.MarketRef)
}

package domain

import "time"

// PortfolioStats is the summary projected on /api/portfolio.
type PortfolioStats struct {
	TotalTrades    int     `json:"total_trades"`
	OpenTrades     int     `json:"open_trades"`
	Wins           int     `json:"wins"`
	Losses         int     `json:"losses"`
	WinRate        float64 `json:"win_rate"`
	TotalProfit    float64 `json:"total_profit"`
	ROI            float64 `json:"roi"`
	Balance        float64 `json:"balance"`
	CurrentBalance float64 `json:"current_balance"`
	InitialBalance float64 `json:"initial_balance"`
	BestTrade      *Trade  `json:"best_trade"`
	WorstTrade     *Trade  `json:"worst_trade"`
}

// PortfolioState is an immutable published version of the live ledger.
// Trades are ordered most recent first.
type PortfolioState struct {
	Stats     PortfolioStats `json:"stats"`
	Trades    []Trade        `json:"trades"`
	Tick      int64          `json:"tick"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// LedgerState is the persisted scalar part of the ledger. Extremes are the
// all-time best and worst resolved trades, not just those still in history.
type LedgerState struct {
	Balance        float64
	InitialBalance float64
	TotalProfit    float64
	Wins           int
	Losses         int
	Tick           int64
	UpdatedAt      time.Time
	Extremes       TradeExtremes
}

// LedgerDelta is what one agent tick changed: trades opened or resolved plus
// the resulting scalar state. It is persisted atomically.
type LedgerDelta struct {
	Trades []Trade
	State  LedgerState
}

// Empty reports whether the tick changed nothing worth persisting.
func (d LedgerDelta) Empty() bool {
	return len(d.Trades) == 0
}

// TickReport summarizes one agent tick for notifiers.
type TickReport struct {
	Tick      int64
	Opened    []Trade
	Resolved  []Trade
	Refused   int
	Skipped   int
	Balance   float64
	ROI       float64
	OpenCount int
	At        time.Time
}

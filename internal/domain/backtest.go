package domain

import "time"

// EquityPoint is one day of the cumulative capital curve.
type EquityPoint struct {
	Date    string  `json:"date"`
	Capital float64 `json:"capital"`
	ROI     float64 `json:"roi"`
}

// WeeklyStat rolls up one ISO week of backtest trades.
type WeeklyStat struct {
	Week    string  `json:"week"`
	Trades  int     `json:"trades"`
	WinRate float64 `json:"win_rate"`
	Profit  float64 `json:"profit"`
}

// BacktestSummary aggregates a full run.
type BacktestSummary struct {
	TotalTrades       int     `json:"total_trades"`
	Wins              int     `json:"wins"`
	Losses            int     `json:"losses"`
	WinRate           float64 `json:"win_rate"`
	TotalProfit       float64 `json:"total_profit"`
	ROI               float64 `json:"roi"`
	FinalCapital      float64 `json:"final_capital"`
	InitialCapital    float64 `json:"initial_capital"`
	AvgProfitPerTrade float64 `json:"avg_profit_per_trade"`
	BestTrade         *Trade  `json:"best_trade"`
	WorstTrade        *Trade  `json:"worst_trade"`
	DaysTested        int     `json:"days_tested"`
}

// BacktestResult is the immutable output of one simulator run.
type BacktestResult struct {
	RunID             string          `json:"run_id"`
	Seed              uint64          `json:"seed"`
	Summary           BacktestSummary `json:"summary"`
	CumulativeReturns []EquityPoint   `json:"cumulative_returns"`
	WeeklyPerformance []WeeklyStat    `json:"weekly_performance"`
	Trades            []Trade         `json:"trades"`
	RecentTrades      []Trade         `json:"recent_trades"`
	Skipped           int             `json:"skipped"`
	GeneratedAt       time.Time       `json:"generated_at"`
}

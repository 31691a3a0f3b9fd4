package domain

import "time"

// Outcome is the settlement state of a simulated trade.
type Outcome string

const (
	OutcomeOpen Outcome = "OPEN"
	OutcomeWin  Outcome = "WIN"
	OutcomeLoss Outcome = "LOSS"
)

// Trade is a simulated binary position. Backtest trades are created already
// resolved; live trades start OPEN and are resolved exactly once.
type Trade struct {
	ID                string     `json:"id,omitempty"`
	Date              string     `json:"date"`
	MarketRef         string     `json:"market_ref"`
	MarketTitle       string     `json:"market_title"`
	Platform          Platform   `json:"platform"`
	Action            Action     `json:"action"`
	Stake             float64    `json:"stake"`
	EntryPrice        float64    `json:"entry_price"`
	AIEstimate        float64    `json:"ai_estimate"`
	InefficiencyScore float64    `json:"inefficiency_score"`
	Confidence        float64    `json:"confidence"`
	ExpectedROI       float64    `json:"expected_roi"`
	Outcome           Outcome    `json:"outcome"`
	Profit            float64    `json:"profit"`
	ROIPercent        float64    `json:"roi_percent"`
	IsLive            bool       `json:"is_live"`
	OpenedAt          *time.Time `json:"opened_at,omitempty"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`
}

// NewTrade fills the market-derived fields of a trade. Percent prices are
// reported with one decimal, like the dashboard shows them.
func NewTrade(s ScoredMarket, stake float64, date time.Time) Trade {
	return Trade{
		Date:              date.UTC().Format(time.DateOnly),
		MarketRef:         s.Key(),
		MarketTitle:       s.Title,
		Platform:          s.Platform,
		Action:            s.Recommendation.Action,
		Stake:             stake,
		EntryPrice:        Round(s.MarketProb*100, 1),
		AIEstimate:        Round(s.AIProbability*100, 1),
		InefficiencyScore: Round(s.Score, 3),
		Confidence:        s.Recommendation.Confidence,
		ExpectedROI:       s.Recommendation.ExpectedROI,
		Outcome:           OutcomeOpen,
	}
}

// Settle resolves the trade from a uniform draw u in [0,1).
// WIN when u < confidence/100: profit = stake × expected_roi / 100.
// LOSS: the full stake is lost.
func (t Trade) Settle(u float64) Trade {
	if u < t.Confidence/100 {
		t.Outcome = OutcomeWin
		t.Profit = Round(t.Stake*t.ExpectedROI/100, 2)
	} else {
		t.Outcome = OutcomeLoss
		t.Profit = -t.Stake
	}
	if t.Stake > 0 {
		t.ROIPercent = Round(t.Profit/t.Stake*100, 1)
	}
	return t
}

// Payout is what the ledger credits back on settlement: stake plus profit for a
// WIN, nothing for a LOSS.
func (t Trade) Payout() float64 {
	if t.Outcome == OutcomeWin {
		return t.Stake + t.Profit
	}
	return 0
}

// Resolved reports whether the trade reached a terminal outcome.
func (t Trade) Resolved() bool {
	return t.Outcome == OutcomeWin || t.Outcome == OutcomeLoss
}

// TradeExtremes tracks best and worst trade by profit.
type TradeExtremes struct {
	Best  *Trade `json:"best_trade"`
	Worst *Trade `json:"worst_trade"`
}

// Observe updates the extremes with a resolved trade.
func (e *TradeExtremes) Observe(t Trade) {
	if e.Best == nil || t.Profit > e.Best.Profit {
		c := t
		e.Best = &c
	}
	if e.Worst == nil || t.Profit < e.Worst.Profit {
		c := t
		e.Worst = &c
	}
}

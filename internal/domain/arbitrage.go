package domain

import "time"

// ArbitrageOpportunity pairs two markets from different platforms that quote the
// same question. Opportunities are rebuilt on every pass and carry no identity.
type ArbitrageOpportunity struct {
	Question           string   `json:"question"`
	SimilarityScore    float64  `json:"similarity_score"`
	SpreadPercent      float64  `json:"spread_percent"`
	CheaperPlatform    Platform `json:"cheaper_platform"`
	ExpensivePlatform  Platform `json:"expensive_platform"`
	CheaperPrice       float64  `json:"cheaper_price"`
	ExpensivePrice     float64  `json:"expensive_price"`
	CheaperLiquidity   float64  `json:"cheaper_liquidity"`
	ExpensiveLiquidity float64  `json:"expensive_liquidity"`
	PotentialProfit    float64  `json:"potential_profit"`
	CheaperMarketID    string   `json:"cheaper_market_id"`
	ExpensiveMarketID  string   `json:"expensive_market_id"`
	CheaperURL         string   `json:"cheaper_url,omitempty"`
	ExpensiveURL       string   `json:"expensive_url,omitempty"`
	Strategy           string   `json:"strategy"`
}

// CombinedLiquidity is the tie-breaker after spread and similarity.
func (o ArbitrageOpportunity) CombinedLiquidity() float64 {
	return o.CheaperLiquidity + o.ExpensiveLiquidity
}

// ArbitrageSummary aggregates one pass.
type ArbitrageSummary struct {
	TotalOpportunities   int     `json:"total_opportunities"`
	AvgSpread            float64 `json:"avg_spread"`
	MaxSpread            float64 `json:"max_spread"`
	TotalPotentialProfit float64 `json:"total_potential_profit"`
	PlatformsCompared    int     `json:"platforms_compared"`
}

// ArbitrageReport is the result of one matching pass.
type ArbitrageReport struct {
	Opportunities []ArbitrageOpportunity `json:"opportunities"`
	Summary       ArbitrageSummary       `json:"summary"`
	GeneratedAt   time.Time              `json:"generated_at"`
	// Skipped counts markets rejected as malformed during the pass.
	Skipped int `json:"skipped"`
}

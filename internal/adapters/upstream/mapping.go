package upstream

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/alejandrodnm/betgpt/internal/domain"
)

const polymarketSiteBase = "https://polymarket.com/market/"

// mapGammaMarkets convierte los DTOs de Gamma a domain.Market.
// Los mercados cerrados o sin precio se descartan.
func mapGammaMarkets(raw []gammaMarket, observedAt time.Time) []domain.Market {
	markets := make([]domain.Market, 0, len(raw))
	for _, r := range raw {
		if r.Closed || r.ID == "" {
			continue
		}
		prob, ok := gammaYesPrice(r)
		if !ok {
			continue
		}
		m := domain.Market{
			ID:         r.ID,
			Title:      r.Question,
			Platform:   domain.PlatformPolymarket,
			MarketProb: prob,
			ObservedAt: observedAt,
		}
		if r.Slug != "" {
			m.URL = polymarketSiteBase + r.Slug
		}
		if v, err := r.Liquidity.Float64(); err == nil {
			m.Liquidity = math.Max(0, v)
		}
		if v, err := r.Volume.Float64(); err == nil {
			m.Volume = math.Max(0, v)
		}
		markets = append(markets, m)
	}
	return markets
}

// gammaYesPrice devuelve el precio del outcome YES.
// Usa outcomePrices y cae a lastTradePrice si no se puede parsear.
func gammaYesPrice(r gammaMarket) (float64, bool) {
	if r.OutcomePrices != "" {
		var prices []string
		if err := json.Unmarshal([]byte(r.OutcomePrices), &prices); err == nil && len(prices) > 0 {
			if p, err := strconv.ParseFloat(prices[0], 64); err == nil {
				return p, true
			}
		}
	}
	if r.LastTradePrice > 0 {
		return r.LastTradePrice, true
	}
	return 0, false
}

// mapManifoldMarkets convierte los DTOs de Manifold a domain.Market.
// Solo se consideran mercados BINARY sin resolver.
func mapManifoldMarkets(raw []manifoldMarket, observedAt time.Time) []domain.Market {
	markets := make([]domain.Market, 0, len(raw))
	for _, r := range raw {
		if r.OutcomeType != "BINARY" || r.IsResolved || r.ID == "" {
			continue
		}
		markets = append(markets, domain.Market{
			ID:         r.ID,
			Title:      r.Question,
			Platform:   domain.PlatformManifold,
			URL:        r.URL,
			MarketProb: r.Probability,
			Liquidity:  math.Max(0, r.TotalLiquidity),
			Volume:     math.Max(0, r.Volume),
			ObservedAt: observedAt,
		})
	}
	return markets
}

// mapEstimate convierte la respuesta del oracle.
func mapEstimate(r estimateResponse) domain.Estimate {
	return domain.Estimate{
		AIProbability: *r.AIProbability,
		Sentiment: domain.Sentiment{
			News:    clampSignal(r.Sentiment.News),
			Crypto:  clampSignal(r.Sentiment.Crypto),
			Weather: clampSignal(r.Sentiment.Weather),
			Sports:  clampSignal(r.Sentiment.Sports),
		},
	}
}

func clampSignal(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

package upstream

import "encoding/json"

// DTOs raw de las APIs upstream. Solo se usan dentro de este paquete.
// La conversión a domain entities se hace en mapping.go.

// --- Gamma API (Polymarket) ---

// gammaMarket contiene los campos de GET /markets que usa el engine.
// Gamma devuelve algunos campos numéricos como strings JSON, usamos json.Number.
// OutcomePrices es un array JSON serializado dentro de un string: "[\"0.45\",\"0.55\"]".
type gammaMarket struct {
	ID             string      `json:"id"`
	Question       string      `json:"question"`
	Slug           string      `json:"slug"`
	OutcomePrices  string      `json:"outcomePrices"`
	LastTradePrice float64     `json:"lastTradePrice"`
	Volume         json.Number `json:"volume"`
	Liquidity      json.Number `json:"liquidity"`
	Active         bool        `json:"active"`
	Closed         bool        `json:"closed"`
}

// --- Manifold API ---

// manifoldMarket es un mercado de GET /v0/markets o /v0/market/{id}.
type manifoldMarket struct {
	ID             string  `json:"id"`
	Question       string  `json:"question"`
	URL            string  `json:"url"`
	OutcomeType    string  `json:"outcomeType"`
	Probability    float64 `json:"probability"`
	TotalLiquidity float64 `json:"totalLiquidity"`
	Volume         float64 `json:"volume"`
	IsResolved     bool    `json:"isResolved"`
}

// --- Oracle ---

// estimateRequest es el body del POST /estimate.
type estimateRequest struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Platform   string  `json:"platform"`
	MarketProb float64 `json:"market_prob"`
	Liquidity  float64 `json:"liquidity"`
	Volume     float64 `json:"volume"`
}

// estimateResponse es la respuesta del oracle.
type estimateResponse struct {
	AIProbability *float64 `json:"ai_probability"`
	Sentiment     struct {
		News    float64 `json:"news"`
		Crypto  float64 `json:"crypto"`
		Weather float64 `json:"weather"`
		Sports  float64 `json:"sports"`
	} `json:"sentiment"`
}

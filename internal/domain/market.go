package domain

import (
	"fmt"
	"math"
	"time"
)

// Platform identifica el mercado de predicción de origen.
type Platform string

const (
	PlatformPolymarket Platform = "Polymarket"
	PlatformManifold   Platform = "Manifold"
)

// Sentiment son las señales auxiliares del oracle, cada una en [-1, 1].
type Sentiment struct {
	News    float64 `json:"news"`
	Crypto  float64 `json:"crypto"`
	Weather float64 `json:"weather"`
	Sports  float64 `json:"sports"`
}

// Signals devuelve las señales en orden fijo.
func (s Sentiment) Signals() [4]float64 {
	return [4]float64{s.News, s.Crypto, s.Weather, s.Sports}
}

// Market es un snapshot inmutable de un mercado binario.
// Cada poll produce un snapshot nuevo para el mismo ID; nunca se muta el anterior.
type Market struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Platform      Platform  `json:"platform"`
	URL           string    `json:"url,omitempty"`
	MarketProb    float64   `json:"market_prob"`
	AIProbability float64   `json:"ai_probability"`
	Liquidity     float64   `json:"liquidity"`
	Volume        float64   `json:"volume"`
	Sentiment     Sentiment `json:"sentiment"`
	ObservedAt    time.Time `json:"observed_at"`
	// Stale marca un valor que viene del último poll válido porque el upstream falló.
	Stale bool `json:"stale,omitempty"`
}

// Key identifica el mercado de forma única entre plataformas.
// Los IDs solo son estables dentro de su plataforma.
func (m Market) Key() string {
	return string(m.Platform) + ":" + m.ID
}

// Validate rechaza probabilidades fuera de [0,1] y cantidades negativas.
func (m Market) Validate() error {
	if !validProb(m.MarketProb) {
		return fmt.Errorf("market %s: market_prob %v: %w", m.ID, m.MarketProb, ErrInvalidProbability)
	}
	if !validProb(m.AIProbability) {
		return fmt.Errorf("market %s: ai_probability %v: %w", m.ID, m.AIProbability, ErrInvalidProbability)
	}
	if m.Liquidity < 0 || m.Volume < 0 {
		return fmt.Errorf("market %s: negative liquidity or volume: %w", m.ID, ErrInvalidProbability)
	}
	return nil
}

func validProb(p float64) bool {
	return !math.IsNaN(p) && p >= 0 && p <= 1
}

// Estimate es la respuesta del oracle para un mercado.
type Estimate struct {
	AIProbability float64   `json:"ai_probability"`
	Sentiment     Sentiment `json:"sentiment"`
}

// WithEstimate devuelve una copia del snapshot con la estimación aplicada.
func (m Market) WithEstimate(e Estimate) Market {
	m.AIProbability = e.AIProbability
	m.Sentiment = e.Sentiment
	return m
}

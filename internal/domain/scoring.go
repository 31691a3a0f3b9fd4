package domain

import "math"

// Label clasifica la magnitud de la ineficiencia.
type Label string

const (
	LabelLow    Label = "Low"
	LabelMedium Label = "Medium"
	LabelHigh   Label = "High"
)

// Action es la recomendación derivada del gap.
type Action string

const (
	ActionBuyYes Action = "BUY_YES"
	ActionSellNo Action = "SELL_NO"
	ActionHold   Action = "HOLD"
)

// Color acompaña a la acción para la presentación.
type Color string

const (
	ColorGreen Color = "green"
	ColorRed   Color = "red"
	ColorGray  Color = "gray"
)

const (
	// DefaultBuyThreshold es T_buy en puntos porcentuales.
	DefaultBuyThreshold = 10.0

	highScore   = 0.30
	mediumScore = 0.15

	sentimentAdjust = 10.0
)

// Recommendation se recalcula en cada lectura, nunca se persiste.
type Recommendation struct {
	Action      Action  `json:"action"`
	Confidence  float64 `json:"confidence"`
	ExpectedROI float64 `json:"expected_roi"`
	Gap         float64 `json:"gap"`
}

// ScoredMarket es el snapshot con su score y recomendación derivados.
type ScoredMarket struct {
	Market
	Score          float64        `json:"inefficiency_score"`
	Label          Label          `json:"score_label"`
	Color          Color          `json:"score_color"`
	Recommendation Recommendation `json:"recommendation"`
}

// Tradeable indica si el snapshot justifica abrir un trade.
func (s ScoredMarket) Tradeable() bool {
	return s.Label != LabelLow && s.Recommendation.Action != ActionHold
}

// Scorer deriva score, label y recomendación de un snapshot.
// Es una función pura: mismo snapshot, mismo resultado.
type Scorer struct {
	BuyThreshold float64
}

// NewScorer crea un Scorer; un threshold <= 0 usa DefaultBuyThreshold.
func NewScorer(buyThreshold float64) Scorer {
	if buyThreshold <= 0 {
		buyThreshold = DefaultBuyThreshold
	}
	return Scorer{BuyThreshold: buyThreshold}
}

// Score calcula la ineficiencia del snapshot.
//
// Fórmula:
//
//	gap   = (ai_probability - market_prob) × 100
//	score = |gap| / 100
//	conf  = min(100, score × 200) ± 10 según el sentimiento, acotado a [0,100]
//
// El gap se cuantiza a 4 decimales y el score a 6 para que los umbrales
// (0.15, 0.30) no dependan del ruido de coma flotante.
func (s Scorer) Score(m Market) (ScoredMarket, error) {
	if err := m.Validate(); err != nil {
		return ScoredMarket{}, err
	}
	threshold := s.BuyThreshold
	if threshold <= 0 {
		threshold = DefaultBuyThreshold
	}

	gap := Round((m.AIProbability-m.MarketProb)*100, 4)
	score := Round(math.Abs(gap)/100, 6)

	action := ActionHold
	switch {
	case gap >= threshold:
		action = ActionBuyYes
	case gap <= -threshold:
		action = ActionSellNo
	}

	rec := Recommendation{
		Action:     action,
		Confidence: confidence(score, action, m.Sentiment),
		Gap:        Round(gap, 2),
	}
	if action != ActionHold {
		rec.ExpectedROI = Round(math.Abs(gap), 2)
	}

	return ScoredMarket{
		Market:         m,
		Score:          score,
		Label:          LabelFor(score),
		Color:          colorFor(action),
		Recommendation: rec,
	}, nil
}

// LabelFor aplica los umbrales High >= 0.30, Medium >= 0.15.
func LabelFor(score float64) Label {
	switch {
	case score >= highScore:
		return LabelHigh
	case score >= mediumScore:
		return LabelMedium
	default:
		return LabelLow
	}
}

func colorFor(a Action) Color {
	switch a {
	case ActionBuyYes:
		return ColorGreen
	case ActionSellNo:
		return ColorRed
	default:
		return ColorGray
	}
}

// confidence parte de min(100, score×200) y suma o resta 10 según el neto
// de señales de sentimiento a favor o en contra de la dirección.
// HOLD no tiene dirección y no se ajusta.
func confidence(score float64, action Action, s Sentiment) float64 {
	base := math.Min(100, score*200)

	var direction float64
	switch action {
	case ActionBuyYes:
		direction = 1
	case ActionSellNo:
		direction = -1
	}

	if direction != 0 {
		net := 0
		for _, sig := range s.Signals() {
			switch {
			case sig*direction > 0:
				net++
			case sig*direction < 0:
				net--
			}
		}
		switch {
		case net > 0:
			base += sentimentAdjust
		case net < 0:
			base -= sentimentAdjust
		}
	}

	return Round(math.Max(0, math.Min(100, base)), 2)
}

// Round redondea a n decimales.
func Round(x float64, n int) float64 {
	p := math.Pow(10, float64(n))
	return math.Round(x*p) / p
}

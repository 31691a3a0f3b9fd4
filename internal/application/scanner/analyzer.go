package scanner

import (
	"log/slog"
	"sort"

	"github.com/alejandrodnm/betgpt/internal/domain"
)

// Analyze puntúa cada snapshot y los devuelve ordenados por score descendente.
// Los snapshots con probabilidades inválidas se descartan y se cuentan.
func Analyze(scorer domain.Scorer, markets []domain.Market) ([]domain.ScoredMarket, int) {
	scored := make([]domain.ScoredMarket, 0, len(markets))
	skipped := 0
	for _, m := range markets {
		sm, err := scorer.Score(m)
		if err != nil {
			skipped++
			slog.Debug("score failed", "market", m.Key(), "err", err)
			continue
		}
		scored = append(scored, sm)
	}
	rankByScore(scored)
	return scored, skipped
}

// rankByScore ordena por score descendente; a igual score, por key para que
// el orden sea estable entre lecturas.
func rankByScore(scored []domain.ScoredMarket) {
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Key() < scored[j].Key()
	})
}

package domain

import (
	"sort"
	"strings"
	"time"
	"unicode"
)

// Category agrupa mercados por tema para la vista de analytics.
type Category string

const (
	CategoryPolitics Category = "Politics"
	CategoryCrypto   Category = "Crypto"
	CategorySports   Category = "Sports"
	CategoryWeather  Category = "Weather"
	CategoryEconomy  Category = "Economy"
	CategoryOther    Category = "Other"
)

// El orden importa: la primera categoría con una keyword presente gana.
var categoryKeywords = []struct {
	cat      Category
	keywords []string
}{
	{CategoryPolitics, []string{"trump", "election", "president", "political", "senate", "congress"}},
	{CategoryCrypto, []string{"bitcoin", "crypto", "eth", "ethereum", "btc", "cryptocurrency"}},
	{CategorySports, []string{"nba", "nfl", "sports", "game", "championship"}},
	{CategoryWeather, []string{"weather", "rain", "temperature", "snow"}},
	{CategoryEconomy, []string{"market", "stock", "economy", "gdp", "inflation"}},
}

// Categorize clasifica un título por palabras completas.
func Categorize(title string) Category {
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		words[w] = true
	}
	for _, ck := range categoryKeywords {
		for _, k := range ck.keywords {
			if words[k] {
				return ck.cat
			}
		}
	}
	return CategoryOther
}

// CategoryStat es la ineficiencia media de una categoría.
type CategoryStat struct {
	Category        Category `json:"category"`
	AvgInefficiency float64  `json:"avg_inefficiency"`
	Count           int      `json:"count"`
}

// InefficiencyPoint es un punto de la serie temporal de ineficiencia media.
type InefficiencyPoint struct {
	Timestamp       time.Time `json:"timestamp"`
	AvgInefficiency float64   `json:"avg_inefficiency"`
}

// CycleSummary resume un ciclo de poll para el historial.
type CycleSummary struct {
	ScannedAt       time.Time
	Total           int
	Skipped         int
	HighCount       int
	AvgInefficiency float64
}

// Summarize calcula el resumen de un ciclo a partir de los mercados puntuados.
func Summarize(scored []ScoredMarket, skipped int, at time.Time) CycleSummary {
	s := CycleSummary{ScannedAt: at, Total: len(scored), Skipped: skipped}
	if len(scored) == 0 {
		return s
	}
	var sum float64
	for _, m := range scored {
		sum += m.Score
		if m.Label == LabelHigh {
			s.HighCount++
		}
	}
	s.AvgInefficiency = Round(sum/float64(len(scored)), 4)
	return s
}

// Analytics es la vista agregada de /api/analytics.
type Analytics struct {
	TotalMarkets           int                 `json:"total_markets"`
	OverallAvgInefficiency float64             `json:"overall_avg_inefficiency"`
	Categories             []CategoryStat      `json:"categories"`
	InefficiencyHistory    []InefficiencyPoint `json:"inefficiency_history"`
}

// BuildAnalytics agrupa por categoría y ordena de mayor a menor ineficiencia.
func BuildAnalytics(scored []ScoredMarket, history []InefficiencyPoint) Analytics {
	a := Analytics{
		TotalMarkets:        len(scored),
		Categories:          []CategoryStat{},
		InefficiencyHistory: history,
	}
	if a.InefficiencyHistory == nil {
		a.InefficiencyHistory = []InefficiencyPoint{}
	}
	if len(scored) == 0 {
		return a
	}

	sums := make(map[Category]float64)
	counts := make(map[Category]int)
	var total float64
	for _, m := range scored {
		c := Categorize(m.Title)
		sums[c] += m.Score
		counts[c]++
		total += m.Score
	}
	for c, n := range counts {
		a.Categories = append(a.Categories, CategoryStat{
			Category:        c,
			AvgInefficiency: Round(sums[c]/float64(n), 3),
			Count:           n,
		})
	}
	sort.Slice(a.Categories, func(i, j int) bool {
		if a.Categories[i].AvgInefficiency != a.Categories[j].AvgInefficiency {
			return a.Categories[i].AvgInefficiency > a.Categories[j].AvgInefficiency
		}
		return a.Categories[i].Category < a.Categories[j].Category
	})
	a.OverallAvgInefficiency = Round(total/float64(len(scored)), 3)
	return a
}

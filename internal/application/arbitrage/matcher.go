package arbitrage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/betgpt/internal/domain"
)

// DefaultSimilarityThreshold is the minimum title similarity for a pair.
const DefaultSimilarityThreshold = 0.85

// SimilarityFunc scores two question titles. It must be symmetric and return
// a value in [0,1].
type SimilarityFunc func(a, b string) float64

// Config holds the matcher thresholds.
type Config struct {
	SimilarityThreshold float64
	FeePercent          float64 // round-trip fee in percentage points
	MinLiquidity        float64 // per side
	Workers             int
}

// Matcher finds the same question quoted at different prices on different platforms.
type Matcher struct {
	cfg        Config
	similarity SimilarityFunc
	now        func() time.Time
}

// NewMatcher creates a matcher. A nil similarity uses TitleSimilarity.
func NewMatcher(cfg Config, similarity SimilarityFunc) *Matcher {
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU() * 2
	}
	if similarity == nil {
		similarity = TitleSimilarity
	}
	return &Matcher{cfg: cfg, similarity: similarity, now: func() time.Time { return time.Now().UTC() }}
}

type candidate struct {
	opp          domain.ArbitrageOpportunity
	cheapKey     string
	expensiveKey string
}

// Match runs one pass over the snapshot set. Malformed markets are skipped
// and counted. If ctx expires mid-pass the pairs scored so far are used.
func (m *Matcher) Match(ctx context.Context, markets []domain.Market) domain.ArbitrageReport {
	report := domain.ArbitrageReport{
		Opportunities: []domain.ArbitrageOpportunity{},
		GeneratedAt:   m.now(),
	}

	byPlatform := make(map[domain.Platform][]domain.Market)
	for _, mk := range markets {
		if err := mk.Validate(); err != nil {
			report.Skipped++
			slog.Debug("arbitrage: skipping market", "market", mk.Key(), "err", err)
			continue
		}
		byPlatform[mk.Platform] = append(byPlatform[mk.Platform], mk)
	}

	platforms := make([]domain.Platform, 0, len(byPlatform))
	for p := range byPlatform {
		platforms = append(platforms, p)
	}
	sort.Slice(platforms, func(i, j int) bool { return platforms[i] < platforms[j] })

	var candidates []candidate
	for i := 0; i < len(platforms); i++ {
		for j := i + 1; j < len(platforms); j++ {
			candidates = append(candidates, m.pairPlatforms(ctx, byPlatform[platforms[i]], byPlatform[platforms[j]])...)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i].opp, candidates[j].opp
		if a.SpreadPercent != b.SpreadPercent {
			return a.SpreadPercent > b.SpreadPercent
		}
		if a.SimilarityScore != b.SimilarityScore {
			return a.SimilarityScore > b.SimilarityScore
		}
		if a.CombinedLiquidity() != b.CombinedLiquidity() {
			return a.CombinedLiquidity() > b.CombinedLiquidity()
		}
		if candidates[i].cheapKey != candidates[j].cheapKey {
			return candidates[i].cheapKey < candidates[j].cheapKey
		}
		return candidates[i].expensiveKey < candidates[j].expensiveKey
	})

	// Greedy: highest spread first, each market used once.
	used := make(map[string]bool)
	for _, c := range candidates {
		if used[c.cheapKey] || used[c.expensiveKey] {
			continue
		}
		used[c.cheapKey] = true
		used[c.expensiveKey] = true
		report.Opportunities = append(report.Opportunities, c.opp)
	}

	report.Summary = summarize(report.Opportunities)
	return report
}

// pairPlatforms scores every cross pair between two platforms. The outer
// loop fans out over a bounded errgroup; each goroutine owns one result slot.
func (m *Matcher) pairPlatforms(ctx context.Context, left, right []domain.Market) []candidate {
	slots := make([][]candidate, len(left))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Workers)
	for i := range left {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for _, b := range right {
				if c, ok := m.evaluate(left[i], b); ok {
					slots[i] = append(slots[i], c)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		slog.Warn("arbitrage: pair search failed", "err", err)
	}

	var out []candidate
	for _, s := range slots {
		out = append(out, s...)
	}
	return out
}

// evaluate applies the similarity, liquidity and profit filters to one pair.
func (m *Matcher) evaluate(a, b domain.Market) (candidate, bool) {
	if a.Liquidity < m.cfg.MinLiquidity || b.Liquidity < m.cfg.MinLiquidity {
		return candidate{}, false
	}
	sim := m.similarity(a.Title, b.Title)
	if sim < m.cfg.SimilarityThreshold {
		return candidate{}, false
	}

	spread := domain.Round(math.Abs(a.MarketProb-b.MarketProb)*100, 2)
	profit := domain.Round(spread-m.cfg.FeePercent, 2)
	if profit <= 0 {
		return candidate{}, false
	}

	cheap, expensive := a, b
	if b.MarketProb < a.MarketProb {
		cheap, expensive = b, a
	}
	cheapPrice := domain.Round(cheap.MarketProb*100, 1)
	expensivePrice := domain.Round(expensive.MarketProb*100, 1)

	return candidate{
		opp: domain.ArbitrageOpportunity{
			Question:           cheap.Title,
			SimilarityScore:    domain.Round(sim, 3),
			SpreadPercent:      spread,
			CheaperPlatform:    cheap.Platform,
			ExpensivePlatform:  expensive.Platform,
			CheaperPrice:       cheapPrice,
			ExpensivePrice:     expensivePrice,
			CheaperLiquidity:   cheap.Liquidity,
			ExpensiveLiquidity: expensive.Liquidity,
			PotentialProfit:    profit,
			CheaperMarketID:    cheap.ID,
			ExpensiveMarketID:  expensive.ID,
			CheaperURL:         cheap.URL,
			ExpensiveURL:       expensive.URL,
			Strategy: fmt.Sprintf("Buy YES on %s at %.1f%%, sell on %s at %.1f%%",
				cheap.Platform, cheapPrice, expensive.Platform, expensivePrice),
		},
		cheapKey:     cheap.Key(),
		expensiveKey: expensive.Key(),
	}, true
}

func summarize(opps []domain.ArbitrageOpportunity) domain.ArbitrageSummary {
	s := domain.ArbitrageSummary{TotalOpportunities: len(opps)}
	if len(opps) == 0 {
		return s
	}
	platforms := make(map[domain.Platform]bool)
	var total float64
	for _, o := range opps {
		total += o.SpreadPercent
		s.MaxSpread = math.Max(s.MaxSpread, o.SpreadPercent)
		s.TotalPotentialProfit += o.PotentialProfit
		platforms[o.CheaperPlatform] = true
		platforms[o.ExpensivePlatform] = true
	}
	s.AvgSpread = domain.Round(total/float64(len(opps)), 2)
	s.TotalPotentialProfit = domain.Round(s.TotalPotentialProfit, 2)
	s.PlatformsCompared = len(platforms)
	return s
}

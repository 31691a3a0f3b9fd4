package scanner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/betgpt/internal/domain"
	"github.com/alejandrodnm/betgpt/internal/ports"
)

var _ ports.MarketFeed = (*Scanner)(nil)

type fakeProvider struct {
	mu      sync.Mutex
	markets map[domain.Platform][]domain.Market
	errs    map[domain.Platform]error
}

func (f *fakeProvider) FetchSnapshot(_ context.Context, p domain.Platform) ([]domain.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[p]; err != nil {
		return nil, err
	}
	return append([]domain.Market(nil), f.markets[p]...), nil
}

type fakeOracle struct {
	mu        sync.Mutex
	estimates map[string]domain.Estimate
	errs      map[string]error
	delay     time.Duration
}

func (f *fakeOracle) FetchEstimate(ctx context.Context, m domain.Market) (domain.Estimate, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return domain.Estimate{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[m.ID]; err != nil {
		return domain.Estimate{}, err
	}
	est, ok := f.estimates[m.ID]
	if !ok {
		return domain.Estimate{}, domain.ErrUpstreamUnavailable
	}
	return est, nil
}

type fakeStorage struct {
	mu        sync.Mutex
	cycles    [][]domain.Market
	summaries []domain.CycleSummary
}

func (f *fakeStorage) SaveCycle(_ context.Context, markets []domain.Market, s domain.CycleSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cycles = append(f.cycles, markets)
	f.summaries = append(f.summaries, s)
	return nil
}

func (f *fakeStorage) GetHistory(context.Context, time.Time, time.Time) ([]domain.Market, error) {
	return nil, nil
}

func (f *fakeStorage) GetInefficiencyHistory(context.Context, int) ([]domain.InefficiencyPoint, error) {
	return nil, nil
}

func (f *fakeStorage) SaveBacktestRun(context.Context, domain.BacktestResult) error { return nil }

func raw(platform domain.Platform, id string, prob float64) domain.Market {
	return domain.Market{ID: id, Title: "Q " + id, Platform: platform, MarketProb: prob, Liquidity: 10}
}

type fixture struct {
	scanner  *Scanner
	provider *fakeProvider
	oracle   *fakeOracle
	storage  *fakeStorage
}

func newFixture() *fixture {
	f := &fixture{
		provider: &fakeProvider{
			markets: map[domain.Platform][]domain.Market{
				domain.PlatformPolymarket: {raw(domain.PlatformPolymarket, "pm1", 0.385)},
				domain.PlatformManifold:   {raw(domain.PlatformManifold, "mf1", 0.5), raw(domain.PlatformManifold, "mf2", 0.3)},
			},
			errs: map[domain.Platform]error{},
		},
		oracle: &fakeOracle{
			estimates: map[string]domain.Estimate{
				"pm1": {AIProbability: 0.672},
				"mf1": {AIProbability: 0.52},
				"mf2": {AIProbability: 0.35},
			},
			errs: map[string]error{},
		},
		storage: &fakeStorage{},
	}
	f.scanner = New(Config{
		Interval:  time.Minute,
		Timeout:   time.Second,
		Platforms: []domain.Platform{domain.PlatformPolymarket, domain.PlatformManifold},
		Workers:   2,
	}, f.provider, f.oracle, f.storage, nil)
	return f
}

func TestRunOnce_PublishesEnrichedSet(t *testing.T) {
	f := newFixture()

	_, ok := f.scanner.Latest()
	assert.False(t, ok, "not ready before the first cycle")

	set, err := f.scanner.RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, set.Markets, 3)
	assert.False(t, set.Partial)
	assert.Equal(t, 0, set.Skipped)
	assert.Equal(t, "Manifold:mf1", set.Markets[0].Key(), "ordered by key")

	latest, ok := f.scanner.Latest()
	require.True(t, ok)
	assert.Equal(t, set, latest)

	var pm domain.Market
	for _, m := range latest.Markets {
		if m.ID == "pm1" {
			pm = m
		}
	}
	assert.Equal(t, 0.672, pm.AIProbability)

	require.Len(t, f.storage.summaries, 1)
	assert.Equal(t, 3, f.storage.summaries[0].Total)
	assert.Equal(t, 0, f.storage.summaries[0].HighCount)
}

func TestRunOnce_PlatformDownServesLastKnownStale(t *testing.T) {
	f := newFixture()
	_, err := f.scanner.RunOnce(context.Background())
	require.NoError(t, err)

	f.provider.errs[domain.PlatformManifold] = domain.ErrUpstreamUnavailable
	set, err := f.scanner.RunOnce(context.Background())
	require.NoError(t, err)

	assert.True(t, set.Partial)
	assert.True(t, set.Stale())
	require.Len(t, set.Markets, 3)
	for _, m := range set.Markets {
		assert.Equal(t, m.Platform == domain.PlatformManifold, m.Stale, m.Key())
	}
}

func TestRunOnce_OracleFailure(t *testing.T) {
	f := newFixture()
	_, err := f.scanner.RunOnce(context.Background())
	require.NoError(t, err)

	// mf1 tiene valor anterior: se sirve stale. mf3 es nuevo: se descarta.
	f.oracle.errs["mf1"] = domain.ErrUpstreamUnavailable
	f.provider.markets[domain.PlatformManifold] = append(f.provider.markets[domain.PlatformManifold],
		raw(domain.PlatformManifold, "mf3", 0.4))

	set, err := f.scanner.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, set.Skipped)
	require.Len(t, set.Markets, 3)
	for _, m := range set.Markets {
		assert.Equal(t, m.ID == "mf1", m.Stale, m.ID)
	}
}

func TestRunOnce_InvalidSnapshotSkipped(t *testing.T) {
	f := newFixture()
	f.oracle.estimates["mf2"] = domain.Estimate{AIProbability: 1.7}

	set, err := f.scanner.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, set.Skipped)
	assert.Len(t, set.Markets, 2)
}

func TestRunOnce_AllPlatformsDownWithoutHistory(t *testing.T) {
	f := newFixture()
	f.provider.errs[domain.PlatformManifold] = errors.New("boom")
	f.provider.errs[domain.PlatformPolymarket] = errors.New("boom")

	_, err := f.scanner.RunOnce(context.Background())
	assert.True(t, errors.Is(err, domain.ErrUpstreamUnavailable))
	_, ok := f.scanner.Latest()
	assert.False(t, ok)
	assert.Empty(t, f.storage.cycles)
}

func TestRunOnce_DeadlineCommitsPartial(t *testing.T) {
	f := newFixture()
	f.scanner.cfg.Timeout = 20 * time.Millisecond
	f.oracle.delay = time.Second

	set, err := f.scanner.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, set.Partial)
	assert.Empty(t, set.Markets)
	assert.Equal(t, 3, set.Skipped)

	_, ok := f.scanner.Latest()
	assert.True(t, ok, "an empty partial set still commits")
}

func TestAnalyze(t *testing.T) {
	markets := []domain.Market{
		{ID: "a", Platform: domain.PlatformManifold, MarketProb: 0.5, AIProbability: 0.55},
		{ID: "b", Platform: domain.PlatformManifold, MarketProb: 0.2, AIProbability: 0.6},
		{ID: "c", Platform: domain.PlatformManifold, MarketProb: 2, AIProbability: 0.6},
	}
	scored, skipped := Analyze(domain.NewScorer(0), markets)
	assert.Equal(t, 1, skipped)
	require.Len(t, scored, 2)
	assert.Equal(t, "b", scored[0].ID)
	assert.Equal(t, domain.LabelHigh, scored[0].Label)
}

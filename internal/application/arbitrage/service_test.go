package arbitrage

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/betgpt/internal/domain"
)

type fakeFeed struct {
	set domain.MarketSet
	ok  bool
}

func (f *fakeFeed) Latest() (domain.MarketSet, bool) { return f.set, f.ok }

type memMirror struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemMirror() *memMirror { return &memMirror{data: map[string][]byte{}} }

func (m *memMirror) Save(_ context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = b
	return nil
}

func (m *memMirror) Load(_ context.Context, key string, out any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, out)
}

func btcSet() domain.MarketSet {
	return domain.MarketSet{
		At: time.Now().UTC(),
		Markets: []domain.Market{
			mkt(domain.PlatformManifold, "mf1", "Will Bitcoin reach $100K by 2025?", 0.412, 800),
			mkt(domain.PlatformPolymarket, "pm1", "Will BTC hit $100,000 in 2025?", 0.580, 15000),
		},
	}
}

func TestService_NotReady(t *testing.T) {
	svc := NewService(NewMatcher(Config{}, nil), &fakeFeed{}, nil, nil, time.Minute, time.Second)

	err := svc.RunOnce(context.Background())
	assert.True(t, errors.Is(err, domain.ErrNotReady))

	_, ok := svc.Latest()
	assert.False(t, ok)
}

func TestService_PublishesAndMirrors(t *testing.T) {
	mirror := newMemMirror()
	svc := NewService(NewMatcher(Config{}, nil), &fakeFeed{set: btcSet(), ok: true}, mirror, nil, time.Minute, time.Second)

	require.NoError(t, svc.RunOnce(context.Background()))

	p, ok := svc.Latest()
	require.True(t, ok)
	assert.False(t, p.Stale)
	assert.Len(t, p.Value.Opportunities, 1)
	assert.Contains(t, mirror.data, mirrorKey)

	// A fresh service restores the mirrored report flagged stale.
	restored := NewService(NewMatcher(Config{}, nil), &fakeFeed{}, mirror, nil, time.Minute, time.Second)
	restored.Restore(context.Background())

	r, ok := restored.Latest()
	require.True(t, ok)
	assert.True(t, r.Stale)
	require.Len(t, r.Value.Opportunities, 1)
	assert.Equal(t, 16.8, r.Value.Opportunities[0].SpreadPercent)
}

func TestService_StaleWhenSetPartial(t *testing.T) {
	set := btcSet()
	set.Partial = true
	svc := NewService(NewMatcher(Config{}, nil), &fakeFeed{set: set, ok: true}, nil, nil, time.Minute, time.Second)

	require.NoError(t, svc.RunOnce(context.Background()))
	p, ok := svc.Latest()
	require.True(t, ok)
	assert.True(t, p.Stale)
}

func TestService_RunStopsOnCancel(t *testing.T) {
	svc := NewService(NewMatcher(Config{}, nil), &fakeFeed{set: btcSet(), ok: true}, nil, nil, 10*time.Millisecond, time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, ok := svc.Latest()
		return ok
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/betgpt/internal/application/query"
	"github.com/alejandrodnm/betgpt/internal/domain"
	"github.com/alejandrodnm/betgpt/internal/metrics"
)

type stubQueries struct {
	ready bool
	err   error
}

func (s *stubQueries) check() error {
	if s.err != nil {
		return s.err
	}
	if !s.ready {
		return domain.ErrNotReady
	}
	return nil
}

func (s *stubQueries) Markets() (query.MarketsView, error) {
	if err := s.check(); err != nil {
		return query.MarketsView{}, err
	}
	sm, _ := domain.NewScorer(0).Score(domain.Market{
		ID: "m1", Title: "Will BTC hit 100k?", Platform: domain.PlatformPolymarket,
		MarketProb: 0.385, AIProbability: 0.672,
	})
	return query.MarketsView{
		Meta:    query.Meta{Success: true, LastUpdate: time.Unix(0, 0).UTC()},
		Markets: []domain.ScoredMarket{sm},
	}, nil
}

func (s *stubQueries) Analytics(context.Context) (query.AnalyticsView, error) {
	if err := s.check(); err != nil {
		return query.AnalyticsView{}, err
	}
	return query.AnalyticsView{Meta: query.Meta{Success: true}, Analytics: domain.BuildAnalytics(nil, nil)}, nil
}

func (s *stubQueries) Arbitrage() (query.ArbitrageView, error) {
	if err := s.check(); err != nil {
		return query.ArbitrageView{}, err
	}
	return query.ArbitrageView{
		Meta:          query.Meta{Success: true, Stale: true},
		Opportunities: []domain.ArbitrageOpportunity{{SpreadPercent: 16.8, CheaperPlatform: domain.PlatformManifold}},
	}, nil
}

func (s *stubQueries) Backtest() (query.BacktestView, error) {
	if err := s.check(); err != nil {
		return query.BacktestView{}, err
	}
	return query.BacktestView{Meta: query.Meta{Success: true}, Results: domain.BacktestResult{RunID: "r1"}}, nil
}

func (s *stubQueries) Portfolio() (query.PortfolioView, error) {
	if err := s.check(); err != nil {
		return query.PortfolioView{}, err
	}
	return query.PortfolioView{Meta: query.Meta{Success: true}, Stats: domain.PortfolioStats{Balance: 950}, Trades: []domain.Trade{}}, nil
}

func (s *stubQueries) Health() query.HealthView {
	return query.HealthView{Status: "ok", Ready: map[string]bool{"markets": s.ready}}
}

func get(t *testing.T, h http.Handler, path string) (*http.Response, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	res := rec.Result()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	var decoded map[string]any
	if strings.HasPrefix(res.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(body, &decoded))
	}
	return res, decoded
}

func TestHandlers_NotReady(t *testing.T) {
	h := NewHandler(Config{}, &stubQueries{}, nil)

	for _, path := range []string{"/api/markets", "/api/analytics", "/api/arbitrage", "/api/backtest", "/api/portfolio"} {
		res, body := get(t, h, path)
		assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode, path)
		assert.Equal(t, false, body["success"], path)
		assert.Equal(t, "not ready", body["error"], path)
	}

	res, body := get(t, h, "/api/health")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestHandlers_Ready(t *testing.T) {
	h := NewHandler(Config{}, &stubQueries{ready: true}, nil)

	res, body := get(t, h, "/api/markets")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, true, body["success"])
	markets := body["markets"].([]any)
	require.Len(t, markets, 1)
	m := markets[0].(map[string]any)
	assert.Equal(t, "m1", m["id"])
	assert.Equal(t, "Medium", m["score_label"])
	assert.Equal(t, "BUY_YES", m["recommendation"].(map[string]any)["action"])

	_, body = get(t, h, "/api/arbitrage")
	assert.Equal(t, true, body["stale"])
	opp := body["opportunities"].([]any)[0].(map[string]any)
	assert.Equal(t, 16.8, opp["spread_percent"])

	_, body = get(t, h, "/api/backtest")
	assert.Equal(t, "r1", body["results"].(map[string]any)["run_id"])

	_, body = get(t, h, "/api/portfolio")
	assert.Equal(t, 950.0, body["stats"].(map[string]any)["balance"])

	_, body = get(t, h, "/api/analytics")
	assert.Contains(t, body, "categories")
	assert.Contains(t, body, "inefficiency_history")
}

func TestHandlers_InternalError(t *testing.T) {
	h := NewHandler(Config{}, &stubQueries{err: errors.New("boom")}, nil)
	res, body := get(t, h, "/api/markets")
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	assert.Equal(t, "internal error", body["error"])
}

func TestHandlers_MethodNotAllowed(t *testing.T) {
	h := NewHandler(Config{}, &stubQueries{ready: true}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/markets", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORS(t *testing.T) {
	h := NewHandler(Config{CORSOrigins: []string{"http://localhost:3000"}}, &stubQueries{ready: true}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/markets", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := NewHandler(Config{}, &stubQueries{ready: true}, metrics.New())

	get(t, h, "/api/markets")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "betgpt_http_request_duration_seconds")
	assert.Contains(t, body, `route="GET /api/markets"`)
}

func TestServer_StartShutdown(t *testing.T) {
	srv := New(Config{Addr: "127.0.0.1:0"}, &stubQueries{}, nil)
	done := make(chan error, 1)
	go func() { done <- srv.Start() }()

	time.Sleep(20 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.NoError(t, <-done)
}

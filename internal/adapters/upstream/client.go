package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultGammaBase    = "https://gamma-api.polymarket.com"
	defaultManifoldBase = "https://api.manifold.markets"

	// Rate limits al 60% de los límites reales documentados.
	// Gamma /markets: 300/10s → 180/10s → 18/s
	gammaRatePerSec = 18
	// Manifold: 500/min por IP → 300/min → 5/s
	manifoldRatePerSec = 5
	// El oracle es propio; se limita para no saturarlo con el fan-out del poller.
	oracleRatePerSec = 20

	defaultMarketsLimit = 100
	maxRetries          = 3
	baseRetryWait       = 500 * time.Millisecond
)

// Options configura el Client. Los campos vacíos usan los valores de producción.
type Options struct {
	PolymarketBase     string
	ManifoldBase       string
	OracleBase         string
	OracleAPIKey       string
	MarketsPerPlatform int
	Timeout            time.Duration
	RetryWait          time.Duration
}

// Client es el HTTP client de las plataformas upstream y del oracle,
// con rate limiting por host y retries.
type Client struct {
	http            *http.Client
	gammaBase       string
	manifoldBase    string
	oracleBase      string
	oracleKey       string
	limit           int
	retryWait       time.Duration
	gammaLimiter    *rate.Limiter
	manifoldLimiter *rate.Limiter
	oracleLimiter   *rate.Limiter
	now             func() time.Time
}

// NewClient crea un Client con las opciones dadas.
func NewClient(opts Options) *Client {
	if opts.PolymarketBase == "" {
		opts.PolymarketBase = defaultGammaBase
	}
	if opts.ManifoldBase == "" {
		opts.ManifoldBase = defaultManifoldBase
	}
	if opts.MarketsPerPlatform <= 0 {
		opts.MarketsPerPlatform = defaultMarketsLimit
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = baseRetryWait
	}
	return &Client{
		http:            &http.Client{Timeout: opts.Timeout},
		gammaBase:       opts.PolymarketBase,
		manifoldBase:    opts.ManifoldBase,
		oracleBase:      opts.OracleBase,
		oracleKey:       opts.OracleAPIKey,
		limit:           opts.MarketsPerPlatform,
		retryWait:       opts.RetryWait,
		gammaLimiter:    rate.NewLimiter(gammaRatePerSec, 10),
		manifoldLimiter: rate.NewLimiter(manifoldRatePerSec, 5),
		oracleLimiter:   rate.NewLimiter(oracleRatePerSec, 20),
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// get hace un GET con rate limiting y retries.
func (c *Client) get(ctx context.Context, limiter *rate.Limiter, url string, out any) error {
	return c.doWithRetry(ctx, limiter, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return c.http.Do(req)
	}, out)
}

// post hace un POST JSON con rate limiting y retries.
func (c *Client) post(ctx context.Context, limiter *rate.Limiter, url string, headers map[string]string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}
	return c.doWithRetry(ctx, limiter, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return c.http.Do(req)
	}, out)
}

// doWithRetry ejecuta la función con backoff exponencial.
// Los 4xx (salvo 429) no se reintentan.
func (c *Client) doWithRetry(ctx context.Context, limiter *rate.Limiter, fn func() (*http.Response, error), out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := fn()
		if err != nil {
			if attempt == maxRetries || ctx.Err() != nil {
				return fmt.Errorf("request failed after %d attempts: %w", attempt+1, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			slog.Warn("rate limited by API", "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
		}

		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep espera con backoff exponencial, respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * c.retryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}

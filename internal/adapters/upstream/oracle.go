package upstream

import (
	"context"
	"errors"
	"fmt"

	"github.com/alejandrodnm/betgpt/internal/domain"
)

const oracleEstimatePath = "/estimate"

var errOracleNotConfigured = errors.New("oracle base URL not configured")

// FetchEstimate implementa ports.ProbabilityOracle contra un oracle HTTP.
// El oracle es una caja negra: el engine solo valida el rango de la respuesta.
func (c *Client) FetchEstimate(ctx context.Context, m domain.Market) (domain.Estimate, error) {
	if c.oracleBase == "" {
		return domain.Estimate{}, fmt.Errorf("upstream.FetchEstimate: %w: %w", domain.ErrUpstreamUnavailable, errOracleNotConfigured)
	}

	body := estimateRequest{
		ID:         m.ID,
		Title:      m.Title,
		Platform:   string(m.Platform),
		MarketProb: m.MarketProb,
		Liquidity:  m.Liquidity,
		Volume:     m.Volume,
	}
	var headers map[string]string
	if c.oracleKey != "" {
		headers = map[string]string{"Authorization": "Bearer " + c.oracleKey}
	}

	var resp estimateResponse
	if err := c.post(ctx, c.oracleLimiter, c.oracleBase+oracleEstimatePath, headers, body, &resp); err != nil {
		return domain.Estimate{}, fmt.Errorf("upstream.FetchEstimate: %s: %w: %w", m.ID, domain.ErrUpstreamUnavailable, err)
	}
	if resp.AIProbability == nil {
		return domain.Estimate{}, fmt.Errorf("upstream.FetchEstimate: %s: missing ai_probability: %w", m.ID, domain.ErrUpstreamUnavailable)
	}
	return mapEstimate(resp), nil
}

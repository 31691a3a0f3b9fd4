package upstream

import (
	"context"
	"fmt"
	"net/url"

	"github.com/alejandrodnm/betgpt/internal/domain"
)

const gammaMarketsPath = "/markets"

// fetchGammaMarkets obtiene los mercados activos de Gamma ordenados por volumen 24h.
func (c *Client) fetchGammaMarkets(ctx context.Context) ([]domain.Market, error) {
	q := url.Values{}
	q.Set("active", "true")
	q.Set("closed", "false")
	q.Set("order", "volume24hr")
	q.Set("ascending", "false")
	q.Set("limit", fmt.Sprint(c.limit))

	var resp []gammaMarket
	if err := c.get(ctx, c.gammaLimiter, c.gammaBase+gammaMarketsPath+"?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("gamma markets: %w", err)
	}
	return mapGammaMarkets(resp, c.now()), nil
}

// gammaResolved consulta un mercado puntual; closed=true indica que ya resolvió.
func (c *Client) gammaResolved(ctx context.Context, id string) (bool, error) {
	var resp gammaMarket
	if err := c.get(ctx, c.gammaLimiter, c.gammaBase+gammaMarketsPath+"/"+url.PathEscape(id), &resp); err != nil {
		return false, fmt.Errorf("gamma market: %w", err)
	}
	return resp.Closed, nil
}

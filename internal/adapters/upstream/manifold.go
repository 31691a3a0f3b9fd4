package upstream

import (
	"context"
	"fmt"
	"net/url"

	"github.com/alejandrodnm/betgpt/internal/domain"
)

const (
	manifoldMarketsPath = "/v0/markets"
	manifoldMarketPath  = "/v0/market/"
)

// fetchManifoldMarkets obtiene los mercados más recientes de Manifold.
func (c *Client) fetchManifoldMarkets(ctx context.Context) ([]domain.Market, error) {
	u := fmt.Sprintf("%s%s?limit=%d", c.manifoldBase, manifoldMarketsPath, c.limit)

	var resp []manifoldMarket
	if err := c.get(ctx, c.manifoldLimiter, u, &resp); err != nil {
		return nil, fmt.Errorf("manifold markets: %w", err)
	}
	return mapManifoldMarkets(resp, c.now()), nil
}

// manifoldResolved consulta isResolved de un mercado puntual.
func (c *Client) manifoldResolved(ctx context.Context, id string) (bool, error) {
	var resp manifoldMarket
	if err := c.get(ctx, c.manifoldLimiter, c.manifoldBase+manifoldMarketPath+url.PathEscape(id), &resp); err != nil {
		return false, fmt.Errorf("manifold market: %w", err)
	}
	return resp.IsResolved, nil
}

package upstream

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/betgpt/internal/domain"
)

// FetchSnapshot implementa ports.MarketProvider despachando por plataforma.
func (c *Client) FetchSnapshot(ctx context.Context, platform domain.Platform) ([]domain.Market, error) {
	var (
		markets []domain.Market
		err     error
	)
	switch platform {
	case domain.PlatformPolymarket:
		markets, err = c.fetchGammaMarkets(ctx)
	case domain.PlatformManifold:
		markets, err = c.fetchManifoldMarkets(ctx)
	default:
		return nil, fmt.Errorf("upstream.FetchSnapshot: unknown platform %q", platform)
	}
	if err != nil {
		return nil, fmt.Errorf("upstream.FetchSnapshot: %s: %w: %w", platform, domain.ErrUpstreamUnavailable, err)
	}

	slog.Debug("snapshot fetched", "platform", platform, "markets", len(markets))
	return markets, nil
}

// IsResolved implementa ports.ResolutionSource.
func (c *Client) IsResolved(ctx context.Context, platform domain.Platform, marketID string) (bool, error) {
	var (
		resolved bool
		err      error
	)
	switch platform {
	case domain.PlatformPolymarket:
		resolved, err = c.gammaResolved(ctx, marketID)
	case domain.PlatformManifold:
		resolved, err = c.manifoldResolved(ctx, marketID)
	default:
		return false, fmt.Errorf("upstream.IsResolved: unknown platform %q", platform)
	}
	if err != nil {
		return false, fmt.Errorf("upstream.IsResolved: %s/%s: %w: %w", platform, marketID, domain.ErrUpstreamUnavailable, err)
	}
	return resolved, nil
}

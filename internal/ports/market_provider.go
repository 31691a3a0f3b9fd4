package ports

import (
	"context"

	"github.com/alejandrodnm/betgpt/internal/domain"
)

// MarketProvider obtiene snapshots de mercados desde una plataforma upstream.
type MarketProvider interface {
	// FetchSnapshot devuelve los mercados binarios activos de la plataforma.
	// Los snapshots vienen sin ai_probability; eso lo aporta el ProbabilityOracle.
	// Los fallos de red se devuelven envueltos en domain.ErrUpstreamUnavailable.
	FetchSnapshot(ctx context.Context, platform domain.Platform) ([]domain.Market, error)
}

// ProbabilityOracle es la fuente externa de ai_probability y sentimiento.
type ProbabilityOracle interface {
	FetchEstimate(ctx context.Context, market domain.Market) (domain.Estimate, error)
}

// ResolutionSource informa si un mercado ya se resolvió en su plataforma.
type ResolutionSource interface {
	IsResolved(ctx context.Context, platform domain.Platform, marketID string) (bool, error)
}

// MarketFeed expone el último set de snapshots commiteado sin bloquear.
type MarketFeed interface {
	Latest() (domain.MarketSet, bool)
}

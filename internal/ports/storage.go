package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/betgpt/internal/domain"
)

// HistoryStorage persiste los snapshots de cada ciclo de poll.
type HistoryStorage interface {
	// SaveCycle persiste los snapshots frescos de un ciclo y su resumen.
	SaveCycle(ctx context.Context, markets []domain.Market, summary domain.CycleSummary) error

	// GetHistory devuelve los snapshots observados en [from, to), ordenados por observed_at.
	GetHistory(ctx context.Context, from, to time.Time) ([]domain.Market, error)

	// GetInefficiencyHistory devuelve los últimos limit puntos, del más antiguo al más reciente.
	GetInefficiencyHistory(ctx context.Context, limit int) ([]domain.InefficiencyPoint, error)

	// SaveBacktestRun guarda el resumen de una corrida de backtest.
	SaveBacktestRun(ctx context.Context, result domain.BacktestResult) error
}

// DailyHistoryStorage es un HistoryStorage que sabe reducir el historial al
// último snapshot de cada mercado por día UTC sin cargar el resto.
type DailyHistoryStorage interface {
	GetDailyHistory(ctx context.Context, from, to time.Time) ([]domain.Market, error)
}

// LedgerStorage persists the live portfolio ledger.
type LedgerStorage interface {
	// CommitLedgerDelta writes the trades touched by one tick and the resulting
	// scalar state in a single transaction.
	CommitLedgerDelta(ctx context.Context, delta domain.LedgerDelta) error

	// LoadLedger restores the ledger at startup. found is false on a fresh database.
	LoadLedger(ctx context.Context, tradeLimit int) (state domain.LedgerState, trades []domain.Trade, found bool, err error)
}

// ReportMirror keeps a copy of the latest published reports outside the process
// so a restart can serve last-known-good data.
type ReportMirror interface {
	Save(ctx context.Context, key string, v any) error
	// Load decodes the stored value into out. found is false when the key is absent.
	Load(ctx context.Context, key string, out any) (found bool, err error)
}

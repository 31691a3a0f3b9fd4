package storage

// sqlite.go: historial append-only de snapshots.
//
// Estrategia:
//   - `snapshots`: una fila por mercado y poll. Nunca se actualiza; el backtest
//     lee solo el último snapshot de cada mercado por día (GetDailyHistory).
//   - `cycles`: resumen ligero por ciclo (total, skipped, ineficiencia media).
//     Alimenta inefficiency_history de /api/analytics.
//   - `backtest_runs`: resumen de cada corrida periódica del backtest.
//   - Prune automático al arrancar según la retención configurada.
//
// Los timestamps se guardan como TEXT UTC de ancho fijo para que ORDER BY y
// BETWEEN funcionen lexicográficamente.

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/betgpt/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
-- Un snapshot por mercado y poll, append-only
CREATE TABLE IF NOT EXISTS snapshots (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    market_id      TEXT    NOT NULL,
    platform       TEXT    NOT NULL,
    title          TEXT    NOT NULL DEFAULT '',
    url            TEXT    NOT NULL DEFAULT '',
    market_prob    REAL    NOT NULL,
    ai_probability REAL    NOT NULL,
    liquidity      REAL    NOT NULL DEFAULT 0,
    volume         REAL    NOT NULL DEFAULT 0,
    news           REAL    NOT NULL DEFAULT 0,
    crypto         REAL    NOT NULL DEFAULT 0,
    weather        REAL    NOT NULL DEFAULT 0,
    sports         REAL    NOT NULL DEFAULT 0,
    observed_at    TEXT    NOT NULL
);

-- Resumen ligero por ciclo de poll
CREATE TABLE IF NOT EXISTS cycles (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    scanned_at       TEXT    NOT NULL,
    total            INTEGER NOT NULL DEFAULT 0,
    skipped          INTEGER NOT NULL DEFAULT 0,
    high_count       INTEGER NOT NULL DEFAULT 0,
    avg_inefficiency REAL    NOT NULL DEFAULT 0
);

-- Resumen de cada corrida de backtest
CREATE TABLE IF NOT EXISTS backtest_runs (
    run_id        TEXT PRIMARY KEY,
    generated_at  TEXT    NOT NULL,
    seed          TEXT    NOT NULL,
    days_tested   INTEGER NOT NULL,
    total_trades  INTEGER NOT NULL,
    wins          INTEGER NOT NULL,
    losses        INTEGER NOT NULL,
    total_profit  REAL    NOT NULL,
    roi           REAL    NOT NULL,
    final_capital REAL    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_at     ON snapshots(observed_at);
CREATE INDEX IF NOT EXISTS idx_snapshots_market ON snapshots(platform, market_id);
CREATE INDEX IF NOT EXISTS idx_cycles_at        ON cycles(scanned_at DESC);
`

const (
	tsLayout         = "2006-01-02T15:04:05.000000Z"
	retentionCycles  = 30 * 24 * time.Hour // ciclos: 30 días
	defaultRetention = 90 * 24 * time.Hour
)

// SQLiteStorage implementa ports.HistoryStorage y ports.LedgerStorage usando
// SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db        *sql.DB
	retention time.Duration
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada.
// Aplica el schema y limpia snapshots más viejos que retentionDays (0 = 90 días).
func NewSQLiteStorage(path string, retentionDays int) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	for _, ddl := range []string{schema, ledgerSchema} {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
		}
	}

	s := &SQLiteStorage{db: db, retention: defaultRetention}
	if retentionDays > 0 {
		s.retention = time.Duration(retentionDays) * 24 * time.Hour
	}
	s.pruneOld(context.Background())
	return s, nil
}

// SaveCycle inserta los snapshots frescos del ciclo y una fila de resumen.
// Los snapshots stale son copias del ciclo anterior y no se vuelven a guardar.
func (s *SQLiteStorage) SaveCycle(ctx context.Context, markets []domain.Market, summary domain.CycleSummary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveCycle: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO cycles (scanned_at, total, skipped, high_count, avg_inefficiency) VALUES (?, ?, ?, ?, ?)`,
		formatTS(summary.ScannedAt), summary.Total, summary.Skipped, summary.HighCount, summary.AvgInefficiency,
	); err != nil {
		return fmt.Errorf("storage.SaveCycle: insert cycle: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO snapshots
			(market_id, platform, title, url, market_prob, ai_probability,
			 liquidity, volume, news, crypto, weather, sports, observed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("storage.SaveCycle: prepare: %w", err)
	}
	defer stmt.Close()

	for _, m := range markets {
		if m.Stale {
			continue
		}
		if _, err := stmt.ExecContext(ctx,
			m.ID, string(m.Platform), m.Title, m.URL, m.MarketProb, m.AIProbability,
			m.Liquidity, m.Volume,
			m.Sentiment.News, m.Sentiment.Crypto, m.Sentiment.Weather, m.Sentiment.Sports,
			formatTS(m.ObservedAt),
		); err != nil {
			return fmt.Errorf("storage.SaveCycle: insert %s: %w", m.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveCycle: commit: %w", err)
	}
	return nil
}

// GetHistory devuelve los snapshots con observed_at en [from, to), del más antiguo al más reciente.
func (s *SQLiteStorage) GetHistory(ctx context.Context, from, to time.Time) ([]domain.Market, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+snapshotColumns+`
		FROM snapshots
		WHERE observed_at >= ? AND observed_at < ?
		ORDER BY observed_at ASC, id ASC
	`, formatTS(from), formatTS(to))
	if err != nil {
		return nil, fmt.Errorf("storage.GetHistory: query: %w", err)
	}
	defer rows.Close()

	markets, err := scanSnapshots(rows)
	if err != nil {
		return nil, fmt.Errorf("storage.GetHistory: %w", err)
	}
	return markets, nil
}

// GetDailyHistory devuelve, dentro de [from, to), solo el último snapshot de
// cada mercado por día UTC. La reducción se hace en SQL: el backtest nunca
// carga los snapshots intermedios de cada poll.
func (s *SQLiteStorage) GetDailyHistory(ctx context.Context, from, to time.Time) ([]domain.Market, error) {
	// observed_at usa tsLayout, así que substr(observed_at, 1, 10) es el día UTC.
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+snapshotColumns+` FROM (
			SELECT *, ROW_NUMBER() OVER (
				PARTITION BY platform, market_id, substr(observed_at, 1, 10)
				ORDER BY observed_at DESC, id DESC
			) AS rn
			FROM snapshots
			WHERE observed_at >= ? AND observed_at < ?
		)
		WHERE rn = 1
		ORDER BY observed_at ASC, id ASC
	`, formatTS(from), formatTS(to))
	if err != nil {
		return nil, fmt.Errorf("storage.GetDailyHistory: query: %w", err)
	}
	defer rows.Close()

	markets, err := scanSnapshots(rows)
	if err != nil {
		return nil, fmt.Errorf("storage.GetDailyHistory: %w", err)
	}
	return markets, nil
}

const snapshotColumns = `market_id, platform, title, url, market_prob, ai_probability,
       liquidity, volume, news, crypto, weather, sports, observed_at`

func scanSnapshots(rows *sql.Rows) ([]domain.Market, error) {
	var markets []domain.Market
	for rows.Next() {
		var m domain.Market
		var platform, observedAt string
		if err := rows.Scan(
			&m.ID, &platform, &m.Title, &m.URL, &m.MarketProb, &m.AIProbability,
			&m.Liquidity, &m.Volume,
			&m.Sentiment.News, &m.Sentiment.Crypto, &m.Sentiment.Weather, &m.Sentiment.Sports,
			&observedAt,
		); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		m.Platform = domain.Platform(platform)
		m.ObservedAt = parseTS(observedAt)
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

// GetInefficiencyHistory devuelve los últimos limit ciclos en orden cronológico.
func (s *SQLiteStorage) GetInefficiencyHistory(ctx context.Context, limit int) ([]domain.InefficiencyPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scanned_at, avg_inefficiency FROM (
			SELECT id, scanned_at, avg_inefficiency FROM cycles
			ORDER BY scanned_at DESC, id DESC LIMIT ?
		) ORDER BY scanned_at ASC, id ASC
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.GetInefficiencyHistory: query: %w", err)
	}
	defer rows.Close()

	points := []domain.InefficiencyPoint{}
	for rows.Next() {
		var p domain.InefficiencyPoint
		var at string
		if err := rows.Scan(&at, &p.AvgInefficiency); err != nil {
			return nil, fmt.Errorf("storage.GetInefficiencyHistory: scan row: %w", err)
		}
		p.Timestamp = parseTS(at)
		points = append(points, p)
	}
	return points, rows.Err()
}

// SaveBacktestRun guarda el resumen de una corrida.
func (s *SQLiteStorage) SaveBacktestRun(ctx context.Context, r domain.BacktestResult) error {
	sum := r.Summary
	if _, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO backtest_runs
			(run_id, generated_at, seed, days_tested, total_trades, wins, losses, total_profit, roi, final_capital)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.RunID, formatTS(r.GeneratedAt), fmt.Sprint(r.Seed), sum.DaysTested, sum.TotalTrades,
		sum.Wins, sum.Losses, sum.TotalProfit, sum.ROI, sum.FinalCapital,
	); err != nil {
		return fmt.Errorf("storage.SaveBacktestRun: %w", err)
	}
	return nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

// pruneOld elimina datos antiguos para mantener la DB ligera.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE observed_at < ?`, formatTS(now.Add(-s.retention))); err != nil {
		slog.Warn("storage: prune snapshots failed", "err", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cycles WHERE scanned_at < ?`, formatTS(now.Add(-retentionCycles))); err != nil {
		slog.Warn("storage: prune cycles failed", "err", err)
	}
}

func formatTS(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func parseTS(s string) time.Time {
	t, _ := time.Parse(tsLayout, s)
	return t
}

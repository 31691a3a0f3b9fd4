package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alejandrodnm/betgpt/internal/domain"
)

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS live_trades (
    id                 TEXT PRIMARY KEY,
    market_ref         TEXT NOT NULL,
    market_title       TEXT NOT NULL DEFAULT '',
    platform           TEXT NOT NULL,
    action             TEXT NOT NULL,
    stake              REAL NOT NULL,
    entry_price        REAL NOT NULL,
    ai_estimate        REAL NOT NULL,
    inefficiency_score REAL NOT NULL,
    confidence         REAL NOT NULL,
    expected_roi       REAL NOT NULL,
    outcome            TEXT NOT NULL,
    profit             REAL NOT NULL DEFAULT 0,
    roi_percent        REAL NOT NULL DEFAULT 0,
    trade_date         TEXT NOT NULL,
    opened_at          TEXT NOT NULL,
    resolved_at        TEXT
);

CREATE TABLE IF NOT EXISTS ledger_state (
    id              INTEGER PRIMARY KEY CHECK (id = 1),
    balance         REAL    NOT NULL,
    initial_balance REAL    NOT NULL,
    total_profit    REAL    NOT NULL,
    wins            INTEGER NOT NULL,
    losses          INTEGER NOT NULL,
    tick            INTEGER NOT NULL,
    updated_at      TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_live_trades_opened  ON live_trades(opened_at DESC);
CREATE INDEX IF NOT EXISTS idx_live_trades_outcome ON live_trades(outcome);
`

const tradeColumns = `id, market_ref, market_title, platform, action, stake, entry_price, ai_estimate,
       inefficiency_score, confidence, expected_roi, outcome, profit, roi_percent,
       trade_date, opened_at, resolved_at`

// CommitLedgerDelta upserts the trades touched by a tick and the scalar state
// in one transaction, so a crash never leaves trades without their balance.
func (s *SQLiteStorage) CommitLedgerDelta(ctx context.Context, d domain.LedgerDelta) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.CommitLedgerDelta: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO live_trades
			(id, market_ref, market_title, platform, action, stake, entry_price, ai_estimate,
			 inefficiency_score, confidence, expected_roi, outcome, profit, roi_percent,
			 trade_date, opened_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			outcome     = excluded.outcome,
			profit      = excluded.profit,
			roi_percent = excluded.roi_percent,
			resolved_at = excluded.resolved_at
	`)
	if err != nil {
		return fmt.Errorf("storage.CommitLedgerDelta: prepare: %w", err)
	}
	defer stmt.Close()

	for _, t := range d.Trades {
		var openedAt string
		if t.OpenedAt != nil {
			openedAt = formatTS(*t.OpenedAt)
		}
		var resolvedAt sql.NullString
		if t.ResolvedAt != nil {
			resolvedAt = sql.NullString{String: formatTS(*t.ResolvedAt), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			t.ID, t.MarketRef, t.MarketTitle, string(t.Platform), string(t.Action),
			t.Stake, t.EntryPrice, t.AIEstimate, t.InefficiencyScore, t.Confidence, t.ExpectedROI,
			string(t.Outcome), t.Profit, t.ROIPercent, t.Date, openedAt, resolvedAt,
		); err != nil {
			return fmt.Errorf("storage.CommitLedgerDelta: upsert trade %s: %w", t.ID, err)
		}
	}

	st := d.State
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_state (id, balance, initial_balance, total_profit, wins, losses, tick, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			balance      = excluded.balance,
			total_profit = excluded.total_profit,
			wins         = excluded.wins,
			losses       = excluded.losses,
			tick         = excluded.tick,
			updated_at   = excluded.updated_at
	`, st.Balance, st.InitialBalance, st.TotalProfit, st.Wins, st.Losses, st.Tick, formatTS(st.UpdatedAt),
	); err != nil {
		return fmt.Errorf("storage.CommitLedgerDelta: upsert state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.CommitLedgerDelta: commit: %w", err)
	}
	return nil
}

// LoadLedger restores the scalar state, every OPEN trade and the tradeLimit
// most recent resolved ones, most recent first. Best and worst trade come from
// all of live_trades, so they survive history trimming.
func (s *SQLiteStorage) LoadLedger(ctx context.Context, tradeLimit int) (domain.LedgerState, []domain.Trade, bool, error) {
	var st domain.LedgerState
	var updatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT balance, initial_balance, total_profit, wins, losses, tick, updated_at
		FROM ledger_state WHERE id = 1
	`).Scan(&st.Balance, &st.InitialBalance, &st.TotalProfit, &st.Wins, &st.Losses, &st.Tick, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.LedgerState{}, nil, false, nil
	}
	if err != nil {
		return domain.LedgerState{}, nil, false, fmt.Errorf("storage.LoadLedger: state: %w", err)
	}
	st.UpdatedAt = parseTS(updatedAt)

	if st.Extremes.Best, err = s.extremeTrade(ctx, "profit DESC"); err != nil {
		return domain.LedgerState{}, nil, false, fmt.Errorf("storage.LoadLedger: best trade: %w", err)
	}
	if st.Extremes.Worst, err = s.extremeTrade(ctx, "profit ASC"); err != nil {
		return domain.LedgerState{}, nil, false, fmt.Errorf("storage.LoadLedger: worst trade: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+tradeColumns+`
		FROM live_trades
		WHERE outcome = 'OPEN'
		   OR id IN (SELECT id FROM live_trades WHERE outcome != 'OPEN' ORDER BY opened_at DESC LIMIT ?)
		ORDER BY opened_at DESC, id DESC
	`, tradeLimit)
	if err != nil {
		return domain.LedgerState{}, nil, false, fmt.Errorf("storage.LoadLedger: trades: %w", err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return domain.LedgerState{}, nil, false, fmt.Errorf("storage.LoadLedger: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return domain.LedgerState{}, nil, false, fmt.Errorf("storage.LoadLedger: %w", err)
	}
	return st, trades, true, nil
}

// extremeTrade returns the first resolved trade by order, or nil when none is
// resolved. Ties go to the earliest resolution, as in TradeExtremes.Observe.
func (s *SQLiteStorage) extremeTrade(ctx context.Context, order string) (*domain.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+tradeColumns+`
		FROM live_trades
		WHERE outcome != 'OPEN'
		ORDER BY `+order+`, resolved_at ASC, id ASC
		LIMIT 1
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	t, err := scanTrade(rows)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanTrade(rows *sql.Rows) (domain.Trade, error) {
	var t domain.Trade
	var platform, action, outcome, openedAt string
	var resolvedAt sql.NullString
	if err := rows.Scan(
		&t.ID, &t.MarketRef, &t.MarketTitle, &platform, &action,
		&t.Stake, &t.EntryPrice, &t.AIEstimate, &t.InefficiencyScore, &t.Confidence, &t.ExpectedROI,
		&outcome, &t.Profit, &t.ROIPercent, &t.Date, &openedAt, &resolvedAt,
	); err != nil {
		return t, fmt.Errorf("scan trade: %w", err)
	}
	t.Platform = domain.Platform(platform)
	t.Action = domain.Action(action)
	t.Outcome = domain.Outcome(outcome)
	t.IsLive = true
	opened := parseTS(openedAt)
	t.OpenedAt = &opened
	if resolvedAt.Valid {
		r := parseTS(resolvedAt.String)
		t.ResolvedAt = &r
	}
	return t, nil
}

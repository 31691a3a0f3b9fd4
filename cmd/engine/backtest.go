package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/alejandrodnm/betgpt/internal/app"
)

func runBacktest(ctx context.Context, a *app.App) {
	slog.Info("=== BACKTEST MODE: replay stored snapshots ===")

	result, err := a.RunBacktest(ctx)
	if err != nil {
		slog.Error("backtest failed", "err", err)
		a.Close()
		os.Exit(1)
	}

	slog.Info("backtest complete",
		"run_id", result.RunID,
		"seed", result.Seed,
		"trades", result.Summary.TotalTrades,
		"roi", result.Summary.ROI,
	)
}

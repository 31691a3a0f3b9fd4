package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/betgpt/config"
	"github.com/alejandrodnm/betgpt/internal/adapters/notify"
	"github.com/alejandrodnm/betgpt/internal/app"
)

func main() {
	configPath := flag.String("config", "", "path to config file (empty: defaults + environment)")
	once := flag.Bool("once", false, "run one poll, arbitrage pass and agent tick, print them and exit")
	backtest := flag.Bool("backtest", false, "run the backtest over stored history, print it and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print agent ticks as full tables (default: compact 1-line)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("betgpt starting",
		"config", *configPath,
		"platforms", cfg.API.Platforms,
		"poll_interval", cfg.PollInterval(),
		"agent_interval", cfg.AgentInterval(),
		"once", *once,
		"backtest", *backtest,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	console := notify.NewConsole(*table || *once)

	a, err := app.New(ctx, cfg, console)
	if err != nil {
		slog.Error("failed to start", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	switch {
	case *backtest:
		runBacktest(ctx, a)
	case *once:
		if err := a.RunOnce(ctx); err != nil {
			slog.Error("single cycle failed", "err", err)
			a.Close()
			os.Exit(1)
		}
	default:
		if err := a.Run(ctx); err != nil {
			slog.Error("engine exited with error", "err", err)
			a.Close()
			os.Exit(1)
		}
	}

	slog.Info("betgpt stopped cleanly")
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/convict/config"
	"github.com/alejandrodnm/convict/internal/adapters/marketdata"
	"github.com/alejandrodnm/convict/internal/adapters/notify"
	"github.com/alejandrodnm/convict/internal/adapters/signalfeed"
	"github.com/alejandrodnm/convict/internal/adapters/storage"
	"github.com/alejandrodnm/convict/internal/application/beliefs"
	"github.com/alejandrodnm/convict/internal/application/calibrate"
	"github.com/alejandrodnm/convict/internal/application/engine"
	"github.com/alejandrodnm/convict/internal/application/ledger"
	"github.com/alejandrodnm/convict/internal/domain"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one cycle and exit")
	report := flag.Bool("report", false, "print markets, positions, performance and calibration, then exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "render reports as tables")
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

	slog.Info("convict starting",
		"config", *configPath,
		"poll_interval", cfg.PollInterval(),
		"capital", cfg.Risk.StartingCapital,
		"once", *once,
	)

	markets := marketdata.NewClient(cfg.API.MarketsBase)
	signals := signalfeed.NewClient(cfg.API.SignalsBase)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	beliefStore := beliefs.New(beliefs.Config{
		MaxStep:       cfg.Beliefs.MaxStepPoints,
		SignalHistory: cfg.Beliefs.SignalHistory,
	}, store)

	ledgerCfg := ledger.Config{
		MaxDrawdownPct:          cfg.Risk.MaxDrawdownPct,
		MaxCalibrationDeviation: cfg.Risk.MaxCalibrationDeviation,
		MaxConsecutiveLosses:    cfg.Risk.MaxConsecutiveLosses,
		MinCalibrationSample:    cfg.Risk.MinCalibrationSample,
	}
	portfolio := domain.NewPortfolio(cfg.Risk.StartingCapital, time.Now())
	l := ledger.New(ledgerCfg, store, portfolio, calibrate.OverallCalibration)

	notifier := notify.NewConsole(*table)

	engineCfg := engine.Config{
		PollInterval:      cfg.PollInterval(),
		ReconcileInterval: cfg.ReconcileInterval(),
		GovernorInterval:  cfg.GovernorInterval(),
		Gate: domain.GateConfig{
			MinConfidence:        cfg.Gate.MinConfidence,
			MaxBeliefWidth:       cfg.Gate.MaxBeliefWidth,
			MinLiquidity:         cfg.Gate.MinLiquidity,
			DailyLossLimit:       cfg.Risk.DailyLossLimit,
			MaxOpenPositions:     cfg.Gate.MaxOpenPositions,
			MaxCategoryPositions: cfg.Gate.MaxCategoryPositions,
		},
		Sizing: domain.SizingConfig{
			KellyFraction:   cfg.Risk.KellyFraction,
			MaxRiskPerTrade: cfg.Risk.MaxRiskPerTrade,
			MaxPositionSize: cfg.Risk.MaxPositionSize,
			MinTradeSize:    cfg.Risk.MinTradeSize,
		},
	}
	e := engine.New(engineCfg, markets, signals, beliefStore, l, notifier)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := e.Restore(ctx); err != nil {
		slog.Error("state restore failed", "err", err)
		os.Exit(1)
	}

	if *report {
		printReport(e, notifier)
		return
	}

	if *once {
		if err := e.RunCycle(ctx); err != nil {
			slog.Error("cycle failed", "err", err)
			os.Exit(1)
		}
		return
	}

	if err := e.Run(ctx); err != nil {
		slog.Error("engine exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("convict stopped cleanly")
}

// printReport renders the full query surface from restored state.
func printReport(e *engine.Engine, notifier *notify.Console) {
	status := e.Status()
	if status.Halted {
		reason := status.HaltReason
		notifier.PrintHalt(reason, nil)
	}

	notifier.PrintMarkets(e.Markets())
	notifier.PrintPositions(e.OpenPositions())
	notifier.PrintPerformance(e.Performance(), e.Portfolio())
	notifier.PrintCalibration(e.Calibration())
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

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/convict/internal/application/beliefs"
	"github.com/alejandrodnm/convict/internal/application/calibrate"
	"github.com/alejandrodnm/convict/internal/application/ledger"
	"github.com/alejandrodnm/convict/internal/application/reconcile"
	"github.com/alejandrodnm/convict/internal/domain"
	"github.com/alejandrodnm/convict/internal/ports"
)

// Config holds the engine's scheduling and decision parameters.
type Config struct {
	PollInterval      time.Duration
	ReconcileInterval time.Duration
	GovernorInterval  time.Duration
	Gate              domain.GateConfig
	Sizing            domain.SizingConfig
}

// Engine drives the whole pipeline: poll markets and signals, update
// beliefs, run the eligibility gate, size admitted trades, and hand
// resolution and memory maintenance to their own tickers. All trading
// decisions happen inside runCycle; everything else is bookkeeping.
type Engine struct {
	cfg        Config
	markets    ports.MarketSource
	signals    ports.SignalSource
	beliefs    *beliefs.Store
	ledger     *ledger.Ledger
	reconciler *reconcile.Reconciler
	notifier   ports.Notifier
}

func New(
	cfg Config,
	markets ports.MarketSource,
	signals ports.SignalSource,
	beliefStore *beliefs.Store,
	l *ledger.Ledger,
	notifier ports.Notifier,
) *Engine {
	return &Engine{
		cfg:        cfg,
		markets:    markets,
		signals:    signals,
		beliefs:    beliefStore,
		ledger:     l,
		reconciler: reconcile.New(markets, l),
		notifier:   notifier,
	}
}

// Restore rebuilds beliefs and portfolio from storage before the first
// cycle. Call once at startup.
func (e *Engine) Restore(ctx context.Context) error {
	if err := e.beliefs.Restore(ctx); err != nil {
		return fmt.Errorf("engine.Restore: %w", err)
	}
	if err := e.ledger.Restore(ctx); err != nil {
		return fmt.Errorf("engine.Restore: %w", err)
	}
	return nil
}

// Run blocks until ctx is cancelled, driving the three maintenance loops.
// A failed cycle is logged and retried on the next tick, never fatal.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting",
		"poll_interval", e.cfg.PollInterval,
		"reconcile_interval", e.cfg.ReconcileInterval,
		"governor_interval", e.cfg.GovernorInterval,
	)

	if err := e.RunCycle(ctx); err != nil {
		slog.Error("cycle failed", "err", err)
	}

	poll := time.NewTicker(e.cfg.PollInterval)
	defer poll.Stop()
	reconcileTick := time.NewTicker(e.cfg.ReconcileInterval)
	defer reconcileTick.Stop()
	governor := time.NewTicker(e.cfg.GovernorInterval)
	defer governor.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("engine stopped")
			return nil
		case <-poll.C:
			if err := e.RunCycle(ctx); err != nil {
				slog.Error("cycle failed", "err", err)
			}
		case <-reconcileTick.C:
			e.reconciler.Sweep(ctx)
		case <-governor.C:
			if evicted := e.beliefs.EvictStale(ctx, time.Now()); evicted > 0 {
				slog.Info("governor evicted stale beliefs", "count", evicted)
			}
		}
	}
}

// RunCycle executes exactly one poll cycle: observe, decide, size, record.
func (e *Engine) RunCycle(ctx context.Context) error {
	start := time.Now()
	report := domain.CycleReport{At: start}

	markets, err := e.markets.FetchMarkets(ctx)
	if err != nil {
		return fmt.Errorf("engine.RunCycle: fetch markets: %w", err)
	}
	report.MarketsFetched = len(markets)

	signalsByMarket := e.fetchSignals(ctx, &report)

	phase := e.ledger.SupervisorPhase()
	for _, m := range markets {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.decide(ctx, m, signalsByMarket[m.ID], phase, &report)
		// A halt triggered mid-cycle stops admissions for the rest of it.
		phase = e.ledger.SupervisorPhase()
	}

	report.BeliefsTracked = e.beliefs.Len()
	report.OpenPositions = len(e.ledger.OpenPositions())
	report.TotalCapital, _ = e.ledger.Capital()
	pf := e.ledger.PortfolioView()
	report.Allocated = pf.AllocatedCapital
	report.Halted = phase == domain.PhaseHalted
	report.HaltReason, _ = e.ledger.HaltInfo()

	if err := e.notifier.NotifyCycle(ctx, report); err != nil {
		slog.Warn("notifier error", "err", err)
	}

	slog.Info("cycle done",
		"markets", report.MarketsFetched,
		"signals", report.SignalsApplied,
		"admitted", report.TradesAdmitted,
		"rejected", report.TradesRejected,
		"open", report.OpenPositions,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

// fetchSignals polls the signal source and groups events by market. A
// failed fetch is transient: the cycle proceeds on price observations.
func (e *Engine) fetchSignals(ctx context.Context, report *domain.CycleReport) map[string][]domain.Signal {
	events, err := e.signals.FetchSignals(ctx)
	if err != nil {
		slog.Warn("signal fetch failed, proceeding on prices alone", "err", err)
		return nil
	}
	byMarket := make(map[string][]domain.Signal)
	for _, s := range events {
		byMarket[s.MarketID] = append(byMarket[s.MarketID], s)
	}
	report.SignalsApplied = len(events)
	return byMarket
}

// decide runs one market through belief update, gate, and sizer.
func (e *Engine) decide(ctx context.Context, m domain.MarketSnapshot, signals []domain.Signal, phase domain.SupervisorPhase, report *domain.CycleReport) {
	belief, err := e.beliefs.Observe(ctx, m, signals)
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidMarketState) {
			slog.Warn("belief update failed", "market", m.ID, "err", err)
		}
		return
	}

	decision := domain.EvaluateGate(m, belief, e.ledger.GateView(m.ID, m.Category), phase, e.cfg.Gate)
	if !decision.Admitted() {
		if decision.RejectReason != "price within belief interval" {
			report.TradesRejected++
			slog.Debug("trade rejected",
				"market", m.ID,
				"reason", decision.RejectReason,
				"checks_passed", len(decision.ChecksPassed),
			)
		}
		return
	}

	total, available := e.ledger.Capital()
	size, err := domain.KellyStake(decision.Side, m.Price, belief, total, available, e.cfg.Sizing)
	if err != nil {
		if errors.Is(err, domain.ErrSizeTooSmall) {
			report.SizeRejections++
			slog.Debug("stake below minimum, skipping", "market", m.ID)
		} else {
			slog.Warn("sizing failed", "market", m.ID, "err", err)
		}
		return
	}

	if _, err := e.ledger.Create(ctx, m, decision, belief, size); err != nil {
		slog.Error("position create failed", "market", m.ID, "err", err)
		return
	}
	report.TradesAdmitted++
}

// Status is the engine's headline state.
func (e *Engine) Status() domain.StatusView {
	phase := e.ledger.SupervisorPhase()
	reason, _ := e.ledger.HaltInfo()
	return domain.StatusView{
		State:      string(phase),
		Markets:    e.beliefs.Len(),
		Halted:     phase == domain.PhaseHalted,
		HaltReason: reason,
	}
}

// Markets lists every tracked market with its current belief.
func (e *Engine) Markets() []domain.MarketView {
	return e.beliefs.Views()
}

// Portfolio is the capital summary.
func (e *Engine) Portfolio() domain.PortfolioView {
	return e.ledger.PortfolioView()
}

// Performance aggregates resolved positions.
func (e *Engine) Performance() domain.PerformanceView {
	return calibrate.Performance(e.ledger.ResolvedPositions(), e.ledger.MaxDrawdown())
}

// Patterns is the derived pattern analysis.
func (e *Engine) Patterns() domain.PatternView {
	return calibrate.Patterns(e.ledger.ResolvedPositions())
}

// Calibration is the predicted-vs-actual calibration report.
func (e *Engine) Calibration() domain.CalibrationView {
	return calibrate.Report(e.ledger.ResolvedPositions())
}

// OpenPositions lists positions still awaiting resolution.
func (e *Engine) OpenPositions() []domain.Position {
	return e.ledger.OpenPositions()
}

// AddUnknown records an explicitly unmodeled factor on a market's belief.
func (e *Engine) AddUnknown(ctx context.Context, marketID, description string) (domain.Unknown, error) {
	return e.beliefs.AddUnknown(ctx, marketID, description)
}

// ResolveUnknown removes a previously recorded unknown.
func (e *Engine) ResolveUnknown(ctx context.Context, marketID, unknownID string) error {
	return e.beliefs.ResolveUnknown(ctx, marketID, unknownID)
}

// ResetHalt is the explicit operator restart after a supervisor halt.
func (e *Engine) ResetHalt() {
	e.ledger.ResetHalt()
}

package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/convict/internal/domain"
	"github.com/alejandrodnm/convict/internal/ports"
)

// Config holds the supervisor's halt thresholds.
type Config struct {
	MaxDrawdownPct          float64 // halt when drawdown exceeds this, in percent
	MaxCalibrationDeviation float64 // halt when overall calibration error exceeds this
	MaxConsecutiveLosses    int     // halt after this many invalidated predictions in a row
	MinCalibrationSample    int     // resolved trades required before the calibration trigger arms
}

// CalibrationFunc computes the overall calibration deviation (weighted
// bucket error, in points) over resolved positions, plus the sample size.
type CalibrationFunc func(resolved []domain.Position) (deviation float64, samples int)

// Ledger owns every position across its lifecycle, the portfolio state,
// and the supervisor. Create and Resolve are the only mutators; everyone
// else observes snapshots.
type Ledger struct {
	mu          sync.Mutex
	cfg         Config
	storage     ports.LedgerStorage
	portfolio   *domain.PortfolioState
	supervisor  *domain.Supervisor
	calibration CalibrationFunc

	open       map[string]domain.Position // by position id
	resolved   []domain.Position
	lossStreak int
}

// New creates a Ledger over the given durable storage.
func New(cfg Config, storage ports.LedgerStorage, portfolio *domain.PortfolioState, calibration CalibrationFunc) *Ledger {
	return &Ledger{
		cfg:         cfg,
		storage:     storage,
		portfolio:   portfolio,
		supervisor:  domain.NewSupervisor(),
		calibration: calibration,
		open:        make(map[string]domain.Position),
	}
}

// Restore reconstructs portfolio state from the durable ledger after a
// restart: open rows rebuild allocation and exposure counts, terminal
// rows rebuild realized P&L, peak equity and today's loss counter.
func (l *Ledger) Restore(ctx context.Context) error {
	openPositions, err := l.storage.GetOpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("ledger.Restore: open positions: %w", err)
	}
	resolvedPositions, err := l.storage.GetResolvedPositions(ctx)
	if err != nil {
		return fmt.Errorf("ledger.Restore: resolved positions: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for _, p := range resolvedPositions {
		l.resolved = append(l.resolved, p)
		if p.PnL == nil {
			continue
		}
		l.portfolio.TotalCapital += *p.PnL
		l.portfolio.RealizedPnL += *p.PnL
		if l.portfolio.Equity() > l.portfolio.PeakEquity {
			l.portfolio.PeakEquity = l.portfolio.Equity()
		}
		if dd := l.portfolio.Drawdown(); dd > l.portfolio.MaxDrawdown {
			l.portfolio.MaxDrawdown = dd
		}
		if *p.PnL < 0 && p.ExitAt != nil && sameUTCDay(*p.ExitAt, now) {
			l.portfolio.DailyRealizedLoss += -*p.PnL
		}
	}
	for _, p := range openPositions {
		l.open[p.ID] = p
		l.portfolio.Allocate(p.MarketID, p.Category, p.Size)
	}
	l.lossStreak = trailingLossStreak(l.resolved)

	slog.Info("ledger restored",
		"open", len(openPositions),
		"resolved", len(resolvedPositions),
		"capital", l.portfolio.TotalCapital,
	)
	return nil
}

// Create persists a new OPEN position for an admitted, sized decision and
// updates the portfolio counters. Returns the created position.
func (l *Ledger) Create(ctx context.Context, m domain.MarketSnapshot, d domain.Decision, b domain.Belief, size float64) (domain.Position, error) {
	p := domain.Position{
		ID:         uuid.New().String(),
		MarketID:   m.ID,
		Question:   m.Question,
		Category:   m.Category,
		Side:       d.Side,
		EntryPrice: m.Price,
		BeliefLow:  b.Low,
		BeliefHigh: b.High,
		Edge:       d.Edge,
		Size:       size,
		EntryAt:    time.Now(),
		Status:     domain.StatusOpen,
	}

	if err := l.storage.SavePosition(ctx, p); err != nil {
		return domain.Position{}, fmt.Errorf("ledger.Create: %w", err)
	}

	l.mu.Lock()
	l.open[p.ID] = p
	l.portfolio.Allocate(p.MarketID, p.Category, p.Size)
	l.mu.Unlock()

	slog.Info("position opened",
		"position", p.ID,
		"market", p.MarketID,
		"side", p.Side,
		"entry", p.EntryPrice,
		"edge", p.Edge,
		"size", fmt.Sprintf("%.2f", p.Size),
	)
	return p, nil
}

// Resolve settles an OPEN position. outcome carries the market's
// resolution; nil means the market closed without one and the position
// expires as a wash against lastPrice.
//
// Resolution is idempotent: the OPEN re-check under the lock makes a
// second attempt on an already-terminal position a no-op, returning the
// terminal position unchanged.
func (l *Ledger) Resolve(ctx context.Context, positionID string, outcome *bool, lastPrice float64) (domain.Position, error) {
	l.mu.Lock()
	p, isOpen := l.open[positionID]
	if !isOpen {
		// Already terminal, or never existed.
		for _, r := range l.resolved {
			if r.ID == positionID {
				l.mu.Unlock()
				return r, nil
			}
		}
		l.mu.Unlock()
		return domain.Position{}, domain.ErrPositionNotFound
	}

	now := time.Now()
	var exit, pnl float64
	var status domain.PositionStatus
	if outcome != nil {
		exit = domain.SettlementPrice(p.Side, *outcome)
		pnl = domain.SettlePnL(p.Side, p.EntryPrice, exit, p.Size)
		status = domain.ClassifyOutcome(pnl)
	} else {
		exit = domain.SideRelativePrice(p.Side, lastPrice)
		pnl = domain.SettlePnL(p.Side, p.EntryPrice, exit, p.Size)
		status = domain.StatusExpired
	}

	p.Status = status
	p.ExitPrice = &exit
	p.PnL = &pnl
	p.ExitAt = &now
	l.mu.Unlock()

	if err := l.storage.MarkResolved(ctx, p); err != nil {
		return domain.Position{}, fmt.Errorf("ledger.Resolve: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Another goroutine may have won the race while we were persisting;
	// the storage transition is one-way, so the first memory transition
	// wins here too.
	if _, stillOpen := l.open[positionID]; !stillOpen {
		for _, r := range l.resolved {
			if r.ID == positionID {
				return r, nil
			}
		}
	}
	delete(l.open, positionID)
	l.resolved = append(l.resolved, p)
	l.portfolio.Release(p.MarketID, p.Category, p.Size, pnl, now)

	if status == domain.StatusLoss {
		l.lossStreak++
	} else if status == domain.StatusWin {
		l.lossStreak = 0
	}

	slog.Info("position resolved",
		"position", p.ID,
		"market", p.MarketID,
		"status", status,
		"pnl", fmt.Sprintf("%.2f", pnl),
		"drawdown", fmt.Sprintf("%.1f%%", l.portfolio.Drawdown()*100),
	)

	l.superviseLocked(now)
	return p, nil
}

// superviseLocked feeds the latest drawdown and calibration output to
// the supervisor. Caller holds the lock.
func (l *Ledger) superviseLocked(now time.Time) {
	if l.supervisor.Halted() {
		return
	}

	if dd := l.portfolio.Drawdown() * 100; dd > l.cfg.MaxDrawdownPct {
		l.halt(fmt.Sprintf("drawdown %.1f%% exceeds ceiling %.1f%%", dd, l.cfg.MaxDrawdownPct), now)
		return
	}

	if l.lossStreak > l.cfg.MaxConsecutiveLosses {
		l.halt(fmt.Sprintf("%d consecutive invalidated predictions", l.lossStreak), now)
		return
	}

	if l.calibration != nil {
		deviation, samples := l.calibration(l.resolved)
		if samples >= l.cfg.MinCalibrationSample && deviation > l.cfg.MaxCalibrationDeviation {
			l.halt(fmt.Sprintf("calibration deviation %.1f points exceeds %.1f", deviation, l.cfg.MaxCalibrationDeviation), now)
		}
	}
}

func (l *Ledger) halt(reason string, now time.Time) {
	if l.supervisor.Halt(reason, now) {
		slog.Error("supervisor halted trading", "reason", reason)
	}
}

// SupervisorPhase returns the current control state.
func (l *Ledger) SupervisorPhase() domain.SupervisorPhase {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.supervisor.Phase()
}

// HaltInfo returns the halt reason and timestamp, zero while observing.
func (l *Ledger) HaltInfo() (string, *time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.supervisor.Reason(), l.supervisor.HaltedAt()
}

// ResetHalt is the explicit external restart that leaves HALTED.
func (l *Ledger) ResetHalt() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.supervisor.Reset()
	l.lossStreak = 0
	slog.Warn("supervisor reset: trade admission re-enabled")
}

// GateView builds the gate's portfolio snapshot for one candidate market.
func (l *Ledger) GateView(marketID string, cat domain.Category) domain.GateView {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.portfolio.RollDay(time.Now())
	return l.portfolio.GateView(marketID, cat)
}

// OpenPositions returns a snapshot of all OPEN positions.
func (l *Ledger) OpenPositions() []domain.Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Position, 0, len(l.open))
	for _, p := range l.open {
		out = append(out, p)
	}
	return out
}

// ResolvedPositions returns a snapshot of all terminal positions.
func (l *Ledger) ResolvedPositions() []domain.Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Position, len(l.resolved))
	copy(out, l.resolved)
	return out
}

// PortfolioView builds the capital summary for the query surface.
func (l *Ledger) PortfolioView() domain.PortfolioView {
	l.mu.Lock()
	defer l.mu.Unlock()
	return domain.PortfolioView{
		TotalValue:       l.portfolio.TotalCapital,
		AvailableCapital: l.portfolio.Available(),
		AllocatedCapital: l.portfolio.Allocated,
		OpenPositions:    l.portfolio.OpenCount,
		UnrealizedPnl:    0, // open positions are marked at cost
		Drawdown:         l.portfolio.Drawdown(),
	}
}

// Capital returns (total, available) for the sizer.
func (l *Ledger) Capital() (float64, float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.portfolio.TotalCapital, l.portfolio.Available()
}

// MaxDrawdown returns the worst drawdown seen, as a fraction.
func (l *Ledger) MaxDrawdown() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.portfolio.MaxDrawdown
}

func sameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// trailingLossStreak counts consecutive losses from the end of the
// resolved history.
func trailingLossStreak(resolved []domain.Position) int {
	streak := 0
	for i := len(resolved) - 1; i >= 0; i-- {
		switch resolved[i].Status {
		case domain.StatusLoss:
			streak++
		case domain.StatusWin:
			return streak
		default:
			// EXPIRED and BREAK_EVEN neither extend nor break the streak.
		}
	}
	return streak
}

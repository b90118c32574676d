package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/alejandrodnm/convict/internal/application/ledger"
	"github.com/alejandrodnm/convict/internal/ports"
)

// Reconciler settles open positions against the market source's
// resolution data. Each sweep re-fetches every open position's market;
// transient fetch failures leave the position OPEN for the next sweep,
// so a sweep is always safe to repeat.
type Reconciler struct {
	markets ports.MarketSource
	ledger  *ledger.Ledger
}

func New(markets ports.MarketSource, l *ledger.Ledger) *Reconciler {
	return &Reconciler{markets: markets, ledger: l}
}

// SweepResult summarizes one reconciliation pass.
type SweepResult struct {
	Checked  int
	Resolved int
	Expired  int
	Errors   int
}

// Sweep checks every open position once. Positions resolve when their
// market reports an outcome, expire when the market closed without one,
// and stay untouched otherwise.
func (r *Reconciler) Sweep(ctx context.Context) SweepResult {
	var res SweepResult
	now := time.Now()

	for _, p := range r.ledger.OpenPositions() {
		if ctx.Err() != nil {
			return res
		}
		res.Checked++

		m, err := r.markets.FetchMarket(ctx, p.MarketID)
		if err != nil {
			res.Errors++
			slog.Warn("reconcile: market fetch failed, position stays open",
				"position", p.ID, "market", p.MarketID, "error", err)
			continue
		}

		switch {
		case m.Resolved():
			if _, err := r.ledger.Resolve(ctx, p.ID, m.Outcome, m.Price); err != nil {
				res.Errors++
				slog.Warn("reconcile: resolve failed", "position", p.ID, "error", err)
				continue
			}
			res.Resolved++
		case m.Closed(now):
			if _, err := r.ledger.Resolve(ctx, p.ID, nil, m.Price); err != nil {
				res.Errors++
				slog.Warn("reconcile: expire failed", "position", p.ID, "error", err)
				continue
			}
			res.Expired++
			slog.Info("position expired without resolution",
				"position", p.ID, "market", p.MarketID, "last_price", m.Price)
		}
	}

	if res.Resolved > 0 || res.Expired > 0 || res.Errors > 0 {
		slog.Info("reconcile sweep done",
			"checked", res.Checked,
			"resolved", res.Resolved,
			"expired", res.Expired,
			"errors", res.Errors,
		)
	}
	return res
}

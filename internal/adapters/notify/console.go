package notify

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/convict/internal/domain"
)

// Console implements ports.Notifier, writing cycle summaries to stdout.
// Compact mode is one line per cycle; table mode renders full reports.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole creates a notifier that writes to stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter creates a notifier over an arbitrary writer, for tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// NotifyCycle prints the per-cycle summary.
func (c *Console) NotifyCycle(_ context.Context, r domain.CycleReport) error {
	now := r.At.Format("15:04:05")

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %d mkts → beliefs:%d sig:%d adm:%d rej:%d small:%d open:%d cap:$%.2f alloc:$%.2f",
		now, r.MarketsFetched, r.BeliefsTracked, r.SignalsApplied,
		r.TradesAdmitted, r.TradesRejected, r.SizeRejections,
		r.OpenPositions, r.TotalCapital, r.Allocated)
	if r.Halted {
		fmt.Fprintf(&sb, " | HALTED: %s", r.HaltReason)
	}

	fmt.Fprintln(c.out, sb.String())
	return nil
}

// PrintMarkets renders the tracked markets with their beliefs.
func (c *Console) PrintMarkets(views []domain.MarketView) {
	if len(views) == 0 {
		fmt.Fprintln(c.out, "no markets tracked")
		return
	}
	if !c.table {
		for _, v := range views {
			fmt.Fprintf(c.out, "%s [%s] %.0f | belief %.0f-%.0f conf %.0f sig:%d unk:%d\n",
				compactName(v.Question, 40), v.Category, v.CurrentPrice,
				v.Belief.BeliefLow, v.Belief.BeliefHigh, v.Belief.Confidence,
				v.SignalCount, len(v.Belief.Unknowns))
		}
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Market", "Cat", "Price", "Belief", "Conf", "Signals", "Unknowns", "Closes")
	for _, v := range views {
		table.Append(
			compactName(v.Question, 40),
			string(v.Category),
			fmt.Sprintf("%.0f", v.CurrentPrice),
			fmt.Sprintf("%.0f-%.0f", v.Belief.BeliefLow, v.Belief.BeliefHigh),
			fmt.Sprintf("%.0f", v.Belief.Confidence),
			fmt.Sprintf("%d", v.SignalCount),
			fmt.Sprintf("%d", len(v.Belief.Unknowns)),
			v.ClosesAt.Format("01-02 15:04"),
		)
	}
	table.Render()
}

// PrintPositions renders open and resolved positions.
func (c *Console) PrintPositions(positions []domain.Position) {
	if len(positions) == 0 {
		fmt.Fprintln(c.out, "no positions")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Market", "Side", "Entry", "Edge", "Size", "Status", "PnL")
	for _, p := range positions {
		pnl := "-"
		if p.PnL != nil {
			pnl = fmt.Sprintf("$%.2f", *p.PnL)
		}
		table.Append(
			compactName(p.Question, 40),
			string(p.Side),
			fmt.Sprintf("%.0f", p.EntryPrice),
			fmt.Sprintf("%.1f", p.Edge),
			fmt.Sprintf("$%.2f", p.Size),
			string(p.Status),
			pnl,
		)
	}
	table.Render()
}

// PrintPerformance renders the aggregate performance report.
func (c *Console) PrintPerformance(v domain.PerformanceView, pf domain.PortfolioView) {
	fmt.Fprintf(c.out, "\n=== PERFORMANCE ===\n")
	fmt.Fprintf(c.out, "capital: $%.2f (available $%.2f, allocated $%.2f)\n",
		pf.TotalValue, pf.AvailableCapital, pf.AllocatedCapital)
	fmt.Fprintf(c.out, "trades: %d (W:%d L:%d) win rate %.1f%%\n",
		v.TotalTrades, v.WinningTrades, v.LosingTrades, v.WinRate*100)
	fmt.Fprintf(c.out, "pnl: $%.2f total, $%.2f avg (win $%.2f / loss $%.2f)\n",
		v.TotalPnL, v.AveragePnL, v.AverageWin, v.AverageLoss)

	profitFactor := fmt.Sprintf("%.2f", v.ProfitFactor)
	if math.IsInf(v.ProfitFactor, 1) {
		profitFactor = "INF"
	}
	fmt.Fprintf(c.out, "profit factor %s | max drawdown %.1f%% | avg hold %.1fh | edge accuracy %.1f%%\n",
		profitFactor, v.MaxDrawdown*100, v.AverageHoldingPeriod, v.EdgeAccuracy*100)
}

// PrintCalibration renders the predicted-vs-actual calibration table.
func (c *Console) PrintCalibration(v domain.CalibrationView) {
	fmt.Fprintf(c.out, "\n=== CALIBRATION === brier %.4f | overall deviation %.1f\n",
		v.BrierScore, v.OverallCalibration)

	if len(v.CalibrationBuckets) > 0 {
		table := tablewriter.NewWriter(c.out)
		table.Header("Range", "Predicted", "Actual", "Trades", "Error")
		for _, b := range v.CalibrationBuckets {
			table.Append(
				b.BeliefRange,
				fmt.Sprintf("%.1f%%", b.PredictedProbability),
				fmt.Sprintf("%.1f%%", b.ActualWinRate),
				fmt.Sprintf("%d", b.Trades),
				fmt.Sprintf("%.1f", b.CalibrationError),
			)
		}
		table.Render()
	}

	for _, rec := range v.Recommendations {
		fmt.Fprintf(c.out, "  - %s\n", rec)
	}
}

// PrintHalt renders the halt banner when the supervisor has tripped.
func (c *Console) PrintHalt(reason string, at *time.Time) {
	when := ""
	if at != nil {
		when = at.Format("2006-01-02 15:04:05 MST")
	}
	fmt.Fprintf(c.out, "\n!!! TRADING HALTED at %s: %s\n", when, reason)
}

// compactName shortens a market question for single-line output.
func compactName(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

package domain

import "fmt"

// Action is the gate's verdict for one market.
type Action string

const (
	ActionBuyYes  Action = "BUY_YES"
	ActionBuyNo   Action = "BUY_NO"
	ActionNoTrade Action = "NO_TRADE"
)

// GateConfig holds the thresholds the eligibility checks run against.
// Category edge thresholds are fixed (see edgeThresholds); everything else
// is configurable.
type GateConfig struct {
	MinConfidence        float64 // minimum belief confidence
	MaxBeliefWidth       float64 // maximum belief interval width
	MinLiquidity         float64 // liquidity floor in currency units
	DailyLossLimit       float64 // max realized loss per UTC day
	MaxOpenPositions     int     // concurrent position ceiling
	MaxCategoryPositions int     // concurrent positions per category
}

// Decision is the gate's full output: the action, the candidate side and
// edge when one exists, the checks that passed in order, and the first
// failing check's reason when rejected.
type Decision struct {
	MarketID     string
	Action       Action
	Side         Side
	Edge         float64
	ChecksPassed []string
	RejectReason string
}

// Admitted reports whether the decision clears the market for sizing.
func (d Decision) Admitted() bool {
	return d.Action != ActionNoTrade
}

// Edge computes the distance between the market price and the nearest
// boundary of the belief interval, with the candidate side. A price inside
// the interval has zero edge and no side: inaction is the default.
func (b Belief) Edge(price float64) (float64, Side, bool) {
	switch {
	case price < b.Low:
		return b.Low - price, SideYes, true
	case price > b.High:
		return price - b.High, SideNo, true
	default:
		return 0, "", false
	}
}

// EvaluateGate runs the ordered, short-circuiting eligibility checks for
// one market. It is pure: identical inputs always yield the identical
// decision. The first failure aborts evaluation and becomes the rejection
// reason; a price inside the belief interval skips the checks entirely.
func EvaluateGate(m MarketSnapshot, b Belief, gv GateView, phase SupervisorPhase, cfg GateConfig) Decision {
	d := Decision{MarketID: m.ID, Action: ActionNoTrade}

	edge, side, ok := b.Edge(m.Price)
	if !ok {
		d.RejectReason = "price within belief interval"
		return d
	}
	d.Side = side
	d.Edge = edge

	type check struct {
		name string
		pass bool
		why  string
	}
	threshold := m.Category.EdgeThreshold()
	checks := []check{
		{"supervisor", phase == PhaseObserving,
			"trading halted"},
		{"edge", edge >= threshold,
			fmt.Sprintf("edge %.1f below %s threshold %.1f", edge, m.Category, threshold)},
		{"confidence", b.Confidence >= cfg.MinConfidence,
			fmt.Sprintf("confidence %.0f below minimum %.0f", b.Confidence, cfg.MinConfidence)},
		{"width", b.Width() <= cfg.MaxBeliefWidth,
			fmt.Sprintf("belief width %.1f exceeds maximum %.1f", b.Width(), cfg.MaxBeliefWidth)},
		{"liquidity", m.Liquidity >= cfg.MinLiquidity,
			fmt.Sprintf("liquidity %.0f below floor %.0f", m.Liquidity, cfg.MinLiquidity)},
		{"exposure", !gv.HasOpenInMarket,
			"open position already exists for this market"},
		{"daily_loss", gv.DailyRealizedLoss <= cfg.DailyLossLimit,
			fmt.Sprintf("daily realized loss %.2f over limit %.2f", gv.DailyRealizedLoss, cfg.DailyLossLimit)},
		{"capacity", gv.OpenCount < cfg.MaxOpenPositions && gv.OpenInCategory < cfg.MaxCategoryPositions,
			capacityReason(gv, cfg)},
	}

	for _, c := range checks {
		if !c.pass {
			d.RejectReason = c.why
			return d
		}
		d.ChecksPassed = append(d.ChecksPassed, c.name)
	}

	if side == SideYes {
		d.Action = ActionBuyYes
	} else {
		d.Action = ActionBuyNo
	}
	return d
}

func capacityReason(gv GateView, cfg GateConfig) string {
	if gv.OpenCount >= cfg.MaxOpenPositions {
		return fmt.Sprintf("max open positions reached (%d)", cfg.MaxOpenPositions)
	}
	return fmt.Sprintf("category exposure limit reached (%d)", cfg.MaxCategoryPositions)
}

package domain

import "time"

// Side is the traded side of a binary market.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// PositionStatus is the lifecycle state of a position. Once it leaves
// OPEN the position is immutable.
type PositionStatus string

const (
	StatusOpen      PositionStatus = "OPEN"
	StatusWin       PositionStatus = "WIN"
	StatusLoss      PositionStatus = "LOSS"
	StatusExpired   PositionStatus = "EXPIRED"
	StatusBreakEven PositionStatus = "BREAK_EVEN"
)

// Position is a paper position from admission to resolution. Created once
// by the sizer, mutated only by the reconciler, never deleted.
type Position struct {
	ID         string
	MarketID   string
	Question   string
	Category   Category
	Side       Side
	EntryPrice float64 // market YES price at entry
	BeliefLow  float64 // belief interval at entry
	BeliefHigh float64
	Edge       float64
	Size       float64 // currency units
	EntryAt    time.Time
	Status     PositionStatus

	// Terminal fields, nil while OPEN.
	ExitPrice *float64 // side-relative settlement price
	PnL       *float64
	ExitAt    *time.Time
}

// Open reports whether the position is still awaiting resolution.
func (p Position) Open() bool {
	return p.Status == StatusOpen
}

// PredictedProbability is the believed win probability of the position's
// side at entry, in percentage points: the belief midpoint for YES, its
// complement for NO.
func (p Position) PredictedProbability() float64 {
	mid := (p.BeliefLow + p.BeliefHigh) / 2
	if p.Side == SideNo {
		return 100 - mid
	}
	return mid
}

// HoldingPeriod is the time between entry and exit, zero while OPEN.
func (p Position) HoldingPeriod() time.Duration {
	if p.ExitAt == nil {
		return 0
	}
	return p.ExitAt.Sub(p.EntryAt)
}

// CostBasis is what the position's side cost at entry, in percentage
// points: the YES price for YES, its complement for NO.
func CostBasis(side Side, entryPrice float64) float64 {
	if side == SideNo {
		return 100 - entryPrice
	}
	return entryPrice
}

// SettlementPrice is the side-relative exit price of a resolved binary
// market: 100 when the outcome matches the side, 0 otherwise.
func SettlementPrice(side Side, outcome bool) float64 {
	matches := (side == SideYes) == outcome
	if matches {
		return 100
	}
	return 0
}

// SideRelativePrice converts a market YES price to the position side's
// terms. Used to mark expired positions against the last observed price.
func SideRelativePrice(side Side, marketPrice float64) float64 {
	if side == SideNo {
		return 100 - marketPrice
	}
	return marketPrice
}

// SettlePnL computes realized P&L in currency units:
// (exit − cost basis) × size / 100, with exit in side-relative terms.
// A YES entered at 45 that resolves YES settles at 100 → +0.55 × size.
func SettlePnL(side Side, entryPrice, exitPrice, size float64) float64 {
	return (exitPrice - CostBasis(side, entryPrice)) * size / 100
}

// ClassifyOutcome maps realized P&L to a terminal status.
func ClassifyOutcome(pnl float64) PositionStatus {
	switch {
	case pnl > 0:
		return StatusWin
	case pnl < 0:
		return StatusLoss
	default:
		return StatusBreakEven
	}
}

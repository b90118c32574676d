package domain

import "math"

// SizingConfig holds the capital-risk parameters for position sizing.
type SizingConfig struct {
	KellyFraction   float64 // fraction of full Kelly actually staked
	MaxRiskPerTrade float64 // fraction of total capital per trade
	MaxPositionSize float64 // absolute currency cap per position
	MinTradeSize    float64 // minimal tradable unit
}

// WinProbability is the believed probability that the admitted side is
// correct: the belief midpoint for YES, its complement for NO. Returned
// as a fraction in [0,1].
func WinProbability(side Side, b Belief) float64 {
	p := b.Midpoint() / 100
	if side == SideNo {
		p = 1 - p
	}
	return p
}

// KellyStake sizes an admitted trade in currency units.
//
// The full-Kelly fraction uses the side's effective payout odds at the
// current price: a side costing c points pays b = (100−c)/c per unit
// staked, so f* = p − (1−p)/b. The stake is f* scaled by KellyFraction
// against available capital, then clamped to
// min(MaxRiskPerTrade × total, MaxPositionSize, available).
// A clamped stake at or below MinTradeSize returns ErrSizeTooSmall,
// a valid, expected outcome rather than a fault.
func KellyStake(side Side, price float64, b Belief, total, available float64, cfg SizingConfig) (float64, error) {
	cost := CostBasis(side, price)
	if cost <= 0 || cost >= 100 || available <= 0 {
		return 0, ErrSizeTooSmall
	}

	p := WinProbability(side, b)
	odds := (100 - cost) / cost
	kelly := p - (1-p)/odds
	if kelly <= 0 {
		return 0, ErrSizeTooSmall
	}

	stake := kelly * cfg.KellyFraction * available
	stake = math.Min(stake, cfg.MaxRiskPerTrade*total)
	stake = math.Min(stake, cfg.MaxPositionSize)
	stake = math.Min(stake, available)

	if stake <= cfg.MinTradeSize {
		return 0, ErrSizeTooSmall
	}
	return stake, nil
}

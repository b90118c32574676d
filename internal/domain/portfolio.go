package domain

import "time"

// PortfolioState is the process-wide capital state. It is owned by the
// position ledger; every mutation goes through a named method here so the
// gate and the query surface only ever see snapshots.
type PortfolioState struct {
	StartingCapital   float64
	TotalCapital      float64 // starting capital + realized P&L
	Allocated         float64 // sum of OPEN position sizes
	RealizedPnL       float64
	DailyRealizedLoss float64 // accumulated losses for the current UTC day
	Day               time.Time
	PeakEquity        float64
	MaxDrawdown       float64 // worst drawdown seen, as a fraction
	OpenCount         int
	OpenByCategory    map[Category]int
	OpenMarkets       map[string]bool
}

// NewPortfolio creates a portfolio with the given starting capital.
func NewPortfolio(startingCapital float64, now time.Time) *PortfolioState {
	return &PortfolioState{
		StartingCapital: startingCapital,
		TotalCapital:    startingCapital,
		Day:             utcDay(now),
		PeakEquity:      startingCapital,
		OpenByCategory:  make(map[Category]int),
		OpenMarkets:     make(map[string]bool),
	}
}

// Available is the capital not locked in open positions.
func (p *PortfolioState) Available() float64 {
	return p.TotalCapital - p.Allocated
}

// Equity marks open positions at cost, so equity equals total capital.
func (p *PortfolioState) Equity() float64 {
	return p.TotalCapital
}

// Drawdown is the fractional decline from peak equity.
func (p *PortfolioState) Drawdown() float64 {
	if p.PeakEquity <= 0 {
		return 0
	}
	dd := (p.PeakEquity - p.Equity()) / p.PeakEquity
	if dd < 0 {
		return 0
	}
	return dd
}

// Allocate records a newly created open position.
func (p *PortfolioState) Allocate(marketID string, cat Category, size float64) {
	p.Allocated += size
	p.OpenCount++
	p.OpenByCategory[cat]++
	p.OpenMarkets[marketID] = true
}

// Release records a resolved position: the size comes back, the realized
// P&L moves total capital, and the daily loss counter accumulates losses.
func (p *PortfolioState) Release(marketID string, cat Category, size, pnl float64, now time.Time) {
	p.RollDay(now)

	p.Allocated -= size
	if p.Allocated < 0 {
		p.Allocated = 0
	}
	p.OpenCount--
	if p.OpenCount < 0 {
		p.OpenCount = 0
	}
	if p.OpenByCategory[cat] > 0 {
		p.OpenByCategory[cat]--
	}
	delete(p.OpenMarkets, marketID)

	p.TotalCapital += pnl
	p.RealizedPnL += pnl
	if pnl < 0 {
		p.DailyRealizedLoss += -pnl
	}

	if p.Equity() > p.PeakEquity {
		p.PeakEquity = p.Equity()
	}
	if dd := p.Drawdown(); dd > p.MaxDrawdown {
		p.MaxDrawdown = dd
	}
}

// RollDay resets the daily loss counter when the UTC day changes.
func (p *PortfolioState) RollDay(now time.Time) {
	day := utcDay(now)
	if !day.Equal(p.Day) {
		p.Day = day
		p.DailyRealizedLoss = 0
	}
}

// GateView is the read-only snapshot the eligibility gate evaluates.
type GateView struct {
	DailyRealizedLoss float64
	OpenCount         int
	OpenInCategory    int
	HasOpenInMarket   bool
}

// GateView builds the gate's snapshot for one candidate market.
func (p *PortfolioState) GateView(marketID string, cat Category) GateView {
	return GateView{
		DailyRealizedLoss: p.DailyRealizedLoss,
		OpenCount:         p.OpenCount,
		OpenInCategory:    p.OpenByCategory[cat],
		HasOpenInMarket:   p.OpenMarkets[marketID],
	}
}

func utcDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

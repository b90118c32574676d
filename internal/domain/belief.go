package domain

import "time"

// Unknown is an open question attached to a belief: something we know we
// don't know about the market. Append-only except for explicit resolution.
type Unknown struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	AddedAt     time.Time `json:"added_at"`
}

// Belief is the engine's probability interval for a market's true outcome
// probability, in percentage points. Invariant: 0 ≤ Low ≤ High ≤ 100.
type Belief struct {
	MarketID    string
	Low         float64
	High        float64
	Confidence  float64 // [0,100], grows with signal volume
	Unknowns    []Unknown
	LastUpdated time.Time
}

// Width is the size of the belief interval. The engine never acts on a
// belief wider than the configured ceiling.
func (b Belief) Width() float64 {
	return b.High - b.Low
}

// Midpoint is the center of the interval, used as the believed probability
// when sizing and calibrating.
func (b Belief) Midpoint() float64 {
	return (b.Low + b.High) / 2
}

// Contains reports whether a market price sits inside the interval.
// A price inside the interval means no edge and no trade.
func (b Belief) Contains(price float64) bool {
	return price >= b.Low && price <= b.High
}

// Signal is one opaque per-market event emitted by an external collector.
// Strength is directional: positive pushes the believed probability up,
// negative pushes it down.
type Signal struct {
	MarketID   string
	Strength   float64 // [-1,1]
	Source     string
	ObservedAt time.Time
}

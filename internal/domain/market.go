package domain

import "time"

// Category classifies a prediction market by topic. The edge the engine
// demands before trading depends on it: domains we model well (weather)
// need less edge than domains we model poorly (world events).
type Category string

const (
	CategoryWeather       Category = "weather"
	CategorySports        Category = "sports"
	CategoryPolitics      Category = "politics"
	CategoryEconomics     Category = "economics"
	CategoryCrypto        Category = "crypto"
	CategoryTechnology    Category = "technology"
	CategoryEntertainment Category = "entertainment"
	CategoryWorld         Category = "world"
	CategoryOther         Category = "other"
)

// edgeThresholds is the minimum edge (percentage points) required per
// category before a trade is admitted.
var edgeThresholds = map[Category]float64{
	CategoryWeather:       8,
	CategorySports:        10,
	CategoryPolitics:      12,
	CategoryEconomics:     12,
	CategoryCrypto:        15,
	CategoryTechnology:    15,
	CategoryEntertainment: 18,
	CategoryWorld:         20,
	CategoryOther:         25,
}

// ParseCategory maps a free-form category string to a known Category.
// Anything unrecognized falls into CategoryOther, which carries the
// strictest edge threshold.
func ParseCategory(s string) Category {
	c := Category(s)
	if _, ok := edgeThresholds[c]; ok {
		return c
	}
	return CategoryOther
}

// EdgeThreshold returns the minimum edge required for this category.
func (c Category) EdgeThreshold() float64 {
	if t, ok := edgeThresholds[c]; ok {
		return t
	}
	return edgeThresholds[CategoryOther]
}

// MarketSnapshot is one observation of a binary prediction market as
// reported by the market source. Immutable once constructed.
type MarketSnapshot struct {
	ID        string
	Question  string
	Category  Category
	Price     float64 // current YES price in percentage points [0,100]
	Liquidity float64 // available liquidity in currency units
	ClosesAt  time.Time

	// Resolution fields, absent until the market resolves.
	Outcome    *bool
	ResolvedAt *time.Time
}

// Resolved reports whether the source has published a resolution.
func (m MarketSnapshot) Resolved() bool {
	return m.Outcome != nil || m.ResolvedAt != nil
}

// Closed reports whether the market is past its close time.
func (m MarketSnapshot) Closed(now time.Time) bool {
	return !m.ClosesAt.IsZero() && now.After(m.ClosesAt)
}

// Tradable reports whether the snapshot can seed or update a belief:
// it needs an id, a price strictly inside (0,100) and must not be past
// close or resolved.
func (m MarketSnapshot) Tradable(now time.Time) bool {
	if m.ID == "" || m.Price <= 0 || m.Price >= 100 {
		return false
	}
	return !m.Closed(now) && !m.Resolved()
}

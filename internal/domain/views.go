package domain

import "time"

// Read-only views exposed by the engine's query surface. Field sets are
// part of the compatibility contract: renaming a JSON key is a breaking
// change for consumers.

// StatusView is the engine's headline state.
type StatusView struct {
	State      string `json:"state"` // OBSERVING | HALTED
	Markets    int    `json:"markets"`
	Halted     bool   `json:"halted"`
	HaltReason string `json:"haltReason,omitempty"`
}

// BeliefView is the belief payload embedded in MarketView.
type BeliefView struct {
	BeliefLow   float64   `json:"belief_low"`
	BeliefHigh  float64   `json:"belief_high"`
	Confidence  float64   `json:"confidence"`
	Unknowns    []Unknown `json:"unknowns"`
	LastUpdated time.Time `json:"last_updated"`
}

// MarketView is one tracked market with its current belief.
type MarketView struct {
	MarketID     string     `json:"marketId"`
	Question     string     `json:"question"`
	Category     Category   `json:"category"`
	CurrentPrice float64    `json:"currentPrice"`
	Liquidity    float64    `json:"liquidity"`
	ClosesAt     time.Time  `json:"closesAt"`
	Belief       BeliefView `json:"belief"`
	SignalCount  int        `json:"signalCount"`
	LastChecked  time.Time  `json:"lastChecked"`
}

// PortfolioView is the capital summary.
type PortfolioView struct {
	TotalValue       float64 `json:"totalValue"`
	AvailableCapital float64 `json:"availableCapital"`
	AllocatedCapital float64 `json:"allocatedCapital"`
	OpenPositions    int     `json:"openPositions"`
	UnrealizedPnl    float64 `json:"unrealizedPnl"`
	Drawdown         float64 `json:"drawdown"`
}

// PerformanceView aggregates resolved positions.
type PerformanceView struct {
	TotalTrades          int     `json:"totalTrades"`
	WinningTrades        int     `json:"winningTrades"`
	LosingTrades         int     `json:"losingTrades"`
	WinRate              float64 `json:"winRate"`
	TotalPnL             float64 `json:"totalPnL"`
	AveragePnL           float64 `json:"averagePnL"`
	AverageWin           float64 `json:"averageWin"`
	AverageLoss          float64 `json:"averageLoss"`
	ProfitFactor         float64 `json:"profitFactor"` // +Inf when no losses
	MaxDrawdown          float64 `json:"maxDrawdown"`
	AverageHoldingPeriod float64 `json:"averageHoldingPeriod"` // hours
	EdgeAccuracy         float64 `json:"edgeAccuracy"`
}

// CategoryStat is a per-category performance line.
type CategoryStat struct {
	Category   Category `json:"category"`
	Trades     int      `json:"trades"`
	WinRate    float64  `json:"winRate"`
	AveragePnL float64  `json:"averagePnL"`
}

// RangeStat is the best-performing band of a numeric dimension.
type RangeStat struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	WinRate float64 `json:"winRate"`
}

// HourStat is a win-rate bucket by UTC entry hour.
type HourStat struct {
	Hour    int     `json:"hour"`
	Trades  int     `json:"trades"`
	WinRate float64 `json:"winRate"`
}

// PatternView is the derived pattern analysis.
type PatternView struct {
	BestCategories     []CategoryStat `json:"bestCategories"`
	WorstCategories    []CategoryStat `json:"worstCategories"`
	OptimalEdgeRange   RangeStat      `json:"optimalEdgeRange"`
	OptimalBeliefWidth RangeStat      `json:"optimalBeliefWidth"`
	TimeOfDayPatterns  []HourStat     `json:"timeOfDayPatterns"`
}

// CalibrationBucket compares predicted probability against realized win
// rate for one 10-point belief range.
type CalibrationBucket struct {
	BeliefRange          string  `json:"beliefRange"` // e.g. "60-70"
	PredictedProbability float64 `json:"predictedProbability"`
	ActualWinRate        float64 `json:"actualWinRate"`
	Trades               int     `json:"trades"`
	CalibrationError     float64 `json:"calibrationError"`
}

// CalibrationView is the paper-trading calibration report.
type CalibrationView struct {
	CalibrationBuckets []CalibrationBucket `json:"calibrationBuckets"`
	BrierScore         float64             `json:"brierScore"`
	OverallCalibration float64             `json:"overallCalibration"`
	Recommendations    []string            `json:"recommendations"`
}

// CycleReport summarizes one polling cycle for the notifier.
type CycleReport struct {
	At              time.Time
	MarketsFetched  int
	BeliefsTracked  int
	SignalsApplied  int
	TradesAdmitted  int
	TradesRejected  int
	SizeRejections  int
	OpenPositions   int
	TotalCapital    float64
	Allocated       float64
	Halted          bool
	HaltReason      string
}

package calibrate

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/convict/internal/domain"
)

func resolved(cat domain.Category, side domain.Side, low, high, edge, pnl float64, entry time.Time, hold time.Duration) domain.Position {
	exit := entry.Add(hold)
	status := domain.ClassifyOutcome(pnl)
	exitPrice := 100.0
	if status == domain.StatusLoss {
		exitPrice = 0
	}
	return domain.Position{
		ID:         "p",
		MarketID:   "m",
		Category:   cat,
		Side:       side,
		EntryPrice: 50,
		BeliefLow:  low,
		BeliefHigh: high,
		Edge:       edge,
		Size:       10,
		EntryAt:    entry,
		Status:     status,
		ExitPrice:  &exitPrice,
		PnL:        &pnl,
		ExitAt:     &exit,
	}
}

func win(cat domain.Category, low, high float64) domain.Position {
	return resolved(cat, domain.SideYes, low, high, 12, 5, time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC), 2*time.Hour)
}

func loss(cat domain.Category, low, high float64) domain.Position {
	return resolved(cat, domain.SideYes, low, high, 12, -5, time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC), 2*time.Hour)
}

func TestReport_BucketsBySideAdjustedProbability(t *testing.T) {
	// A NO position with belief 20-30 predicts 75% for its own side, so it
	// lands in the 70-80 bucket, not 20-30.
	p := resolved(domain.CategoryWeather, domain.SideNo, 20, 30, 12, 5, time.Now(), time.Hour)
	view := Report([]domain.Position{p})

	require.Len(t, view.CalibrationBuckets, 1)
	assert.Equal(t, "70-80", view.CalibrationBuckets[0].BeliefRange)
	assert.Equal(t, 75.0, view.CalibrationBuckets[0].PredictedProbability)
}

func TestReport_BucketErrorAndBrier(t *testing.T) {
	// Six trades predicting 65%, four wins: actual 66.7%, error ~1.7.
	positions := []domain.Position{
		win(domain.CategoryWeather, 60, 70),
		win(domain.CategoryWeather, 60, 70),
		win(domain.CategoryWeather, 60, 70),
		win(domain.CategoryWeather, 60, 70),
		loss(domain.CategoryWeather, 60, 70),
		loss(domain.CategoryWeather, 60, 70),
	}
	view := Report(positions)

	require.Len(t, view.CalibrationBuckets, 1)
	b := view.CalibrationBuckets[0]
	assert.Equal(t, "60-70", b.BeliefRange)
	assert.Equal(t, 6, b.Trades)
	assert.InDelta(t, 65.0, b.PredictedProbability, 1e-9)
	assert.InDelta(t, 100.0*4/6, b.ActualWinRate, 1e-9)
	assert.InDelta(t, math.Abs(65.0-100.0*4/6), b.CalibrationError, 1e-9)
	assert.InDelta(t, b.CalibrationError, view.OverallCalibration, 1e-9)

	// Brier: 4 × (0.65-1)² + 2 × (0.65-0)² over 6.
	wantBrier := (4*0.35*0.35 + 2*0.65*0.65) / 6
	assert.InDelta(t, wantBrier, view.BrierScore, 1e-9)
}

func TestReport_IgnoresExpiredAndOpen(t *testing.T) {
	open := domain.Position{Status: domain.StatusOpen, BeliefLow: 60, BeliefHigh: 70, Side: domain.SideYes}
	expired := domain.Position{Status: domain.StatusExpired, BeliefLow: 60, BeliefHigh: 70, Side: domain.SideYes}

	view := Report([]domain.Position{open, expired})
	assert.Empty(t, view.CalibrationBuckets)
	assert.Zero(t, view.BrierScore)
}

func TestReport_OverconfidenceRecommendation(t *testing.T) {
	// Predicting 85% but winning 40% of ten trades.
	positions := make([]domain.Position, 0, 10)
	for i := 0; i < 4; i++ {
		positions = append(positions, win(domain.CategorySports, 80, 90))
	}
	for i := 0; i < 6; i++ {
		positions = append(positions, loss(domain.CategorySports, 80, 90))
	}

	view := Report(positions)
	require.NotEmpty(t, view.Recommendations)
	assert.Contains(t, view.Recommendations[0], "overconfident")
	assert.Contains(t, view.Recommendations[0], "80-90")
}

func TestReport_SmallSampleRecommendation(t *testing.T) {
	view := Report([]domain.Position{win(domain.CategoryWeather, 60, 70)})
	require.Len(t, view.Recommendations, 1)
	assert.Contains(t, view.Recommendations[0], "more data")
}

func TestOverallCalibration_SampleExcludesExpired(t *testing.T) {
	positions := []domain.Position{
		win(domain.CategoryWeather, 60, 70),
		loss(domain.CategoryWeather, 60, 70),
		{Status: domain.StatusExpired},
	}
	_, samples := OverallCalibration(positions)
	assert.Equal(t, 2, samples)
}

func TestPerformance(t *testing.T) {
	entry := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	positions := []domain.Position{
		resolved(domain.CategoryWeather, domain.SideYes, 60, 70, 12, 10, entry, 4*time.Hour),
		resolved(domain.CategoryWeather, domain.SideYes, 60, 70, 12, 6, entry, 2*time.Hour),
		resolved(domain.CategorySports, domain.SideYes, 55, 70, 14, -4, entry, 6*time.Hour),
		{Status: domain.StatusOpen}, // ignored
	}

	view := Performance(positions, 0.07)

	assert.Equal(t, 3, view.TotalTrades)
	assert.Equal(t, 2, view.WinningTrades)
	assert.Equal(t, 1, view.LosingTrades)
	assert.InDelta(t, 2.0/3, view.WinRate, 1e-9)
	assert.InDelta(t, 12.0, view.TotalPnL, 1e-9)
	assert.InDelta(t, 4.0, view.AveragePnL, 1e-9)
	assert.InDelta(t, 8.0, view.AverageWin, 1e-9)
	assert.InDelta(t, 4.0, view.AverageLoss, 1e-9)
	assert.InDelta(t, 4.0, view.ProfitFactor, 1e-9)
	assert.InDelta(t, 4.0, view.AverageHoldingPeriod, 1e-9)
	assert.InDelta(t, 2.0/3, view.EdgeAccuracy, 1e-9)
	assert.InDelta(t, 0.07, view.MaxDrawdown, 1e-9)
}

func TestPerformance_NoLossesInfiniteProfitFactor(t *testing.T) {
	view := Performance([]domain.Position{win(domain.CategoryWeather, 60, 70)}, 0)
	assert.True(t, math.IsInf(view.ProfitFactor, 1))
	assert.Equal(t, 1.0, view.WinRate)
}

func TestPerformance_Empty(t *testing.T) {
	view := Performance(nil, 0)
	assert.Zero(t, view.TotalTrades)
	assert.Zero(t, view.ProfitFactor)
}

func TestPatterns_CategoryRanking(t *testing.T) {
	positions := []domain.Position{
		win(domain.CategoryWeather, 60, 70),
		win(domain.CategoryWeather, 60, 70),
		win(domain.CategorySports, 60, 70),
		loss(domain.CategorySports, 60, 70),
		loss(domain.CategoryCrypto, 60, 70),
	}

	view := Patterns(positions)

	require.NotEmpty(t, view.BestCategories)
	assert.Equal(t, domain.CategoryWeather, view.BestCategories[0].Category)
	assert.Equal(t, 1.0, view.BestCategories[0].WinRate)

	require.NotEmpty(t, view.WorstCategories)
	assert.Equal(t, domain.CategoryCrypto, view.WorstCategories[0].Category)
	assert.Zero(t, view.WorstCategories[0].WinRate)
}

func TestPatterns_OptimalEdgeRange(t *testing.T) {
	entry := time.Date(2026, 8, 1, 14, 0, 0, 0, time.UTC)
	positions := make([]domain.Position, 0, 12)
	// Edge 10-15 band: five wins, one loss. Edge 15-20 band: one win, five losses.
	for i := 0; i < 5; i++ {
		positions = append(positions, resolved(domain.CategoryWeather, domain.SideYes, 60, 70, 12, 5, entry, time.Hour))
	}
	positions = append(positions, resolved(domain.CategoryWeather, domain.SideYes, 60, 70, 12, -5, entry, time.Hour))
	positions = append(positions, resolved(domain.CategoryWeather, domain.SideYes, 60, 70, 17, 5, entry, time.Hour))
	for i := 0; i < 5; i++ {
		positions = append(positions, resolved(domain.CategoryWeather, domain.SideYes, 60, 70, 17, -5, entry, time.Hour))
	}

	view := Patterns(positions)
	assert.Equal(t, 10.0, view.OptimalEdgeRange.Min)
	assert.Equal(t, 15.0, view.OptimalEdgeRange.Max)
	assert.InDelta(t, 5.0/6, view.OptimalEdgeRange.WinRate, 1e-9)

	require.Len(t, view.TimeOfDayPatterns, 1)
	assert.Equal(t, 14, view.TimeOfDayPatterns[0].Hour)
	assert.Equal(t, 12, view.TimeOfDayPatterns[0].Trades)
}

func TestPatterns_Empty(t *testing.T) {
	view := Patterns(nil)
	assert.Empty(t, view.BestCategories)
	assert.Empty(t, view.TimeOfDayPatterns)
	assert.Zero(t, view.OptimalEdgeRange.WinRate)
}

package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGateConfig() GateConfig {
	return GateConfig{
		MinConfidence:        65,
		MaxBeliefWidth:       25,
		MinLiquidity:         500,
		DailyLossLimit:       50,
		MaxOpenPositions:     10,
		MaxCategoryPositions: 3,
	}
}

func testMarket(cat Category, price, liquidity float64) MarketSnapshot {
	return MarketSnapshot{
		ID:        "mkt-1",
		Question:  "Will it rain tomorrow?",
		Category:  cat,
		Price:     price,
		Liquidity: liquidity,
		ClosesAt:  time.Now().Add(48 * time.Hour),
	}
}

func testBelief(low, high, confidence float64) Belief {
	return Belief{MarketID: "mkt-1", Low: low, High: high, Confidence: confidence}
}

func TestEvaluateGate_AdmitsYes(t *testing.T) {
	m := testMarket(CategoryWeather, 30, 5000)
	b := testBelief(45, 60, 80)

	d := EvaluateGate(m, b, GateView{}, PhaseObserving, testGateConfig())

	require.True(t, d.Admitted())
	assert.Equal(t, ActionBuyYes, d.Action)
	assert.Equal(t, SideYes, d.Side)
	assert.InDelta(t, 15.0, d.Edge, 0.001)
	assert.Len(t, d.ChecksPassed, 8)
	assert.Empty(t, d.RejectReason)
}

func TestEvaluateGate_AdmitsNo(t *testing.T) {
	m := testMarket(CategoryWeather, 75, 5000)
	b := testBelief(45, 60, 80)

	d := EvaluateGate(m, b, GateView{}, PhaseObserving, testGateConfig())

	require.True(t, d.Admitted())
	assert.Equal(t, ActionBuyNo, d.Action)
	assert.InDelta(t, 15.0, d.Edge, 0.001)
}

func TestEvaluateGate_PriceInsideBelief_NoChecksRun(t *testing.T) {
	m := testMarket(CategoryWeather, 50, 5000)
	b := testBelief(45, 60, 80)

	d := EvaluateGate(m, b, GateView{}, PhaseObserving, testGateConfig())

	assert.Equal(t, ActionNoTrade, d.Action)
	assert.Empty(t, d.ChecksPassed, "inaction is the default: no checks should run")
	assert.Equal(t, "price within belief interval", d.RejectReason)
}

func TestEvaluateGate_HaltedBlocksFirst(t *testing.T) {
	m := testMarket(CategoryWeather, 30, 5000)
	b := testBelief(45, 60, 80)

	d := EvaluateGate(m, b, GateView{}, PhaseHalted, testGateConfig())

	assert.Equal(t, ActionNoTrade, d.Action)
	assert.Empty(t, d.ChecksPassed)
	assert.Equal(t, "trading halted", d.RejectReason)
}

func TestEvaluateGate_EdgeBelowThreshold_ShortCircuits(t *testing.T) {
	// world requires 20 points of edge; 15 is not enough. Confidence is
	// also too low, but the edge check must fail first.
	m := testMarket(CategoryWorld, 30, 5000)
	b := testBelief(45, 60, 10)

	d := EvaluateGate(m, b, GateView{}, PhaseObserving, testGateConfig())

	assert.Equal(t, ActionNoTrade, d.Action)
	assert.Equal(t, []string{"supervisor"}, d.ChecksPassed)
	assert.Contains(t, d.RejectReason, "edge 15.0 below world threshold 20.0")
}

func TestEvaluateGate_ChecksInOrder(t *testing.T) {
	cfg := testGateConfig()
	m := testMarket(CategoryWeather, 30, 5000)

	cases := []struct {
		name   string
		belief Belief
		market MarketSnapshot
		view   GateView
		reason string
		passed []string
	}{
		{
			name:   "low confidence",
			belief: testBelief(45, 60, 40),
			market: m,
			reason: "confidence 40 below minimum 65",
			passed: []string{"supervisor", "edge"},
		},
		{
			name:   "wide belief",
			belief: testBelief(45, 75, 80),
			market: m,
			reason: "belief width 30.0 exceeds maximum 25.0",
			passed: []string{"supervisor", "edge", "confidence"},
		},
		{
			name:   "thin liquidity",
			belief: testBelief(45, 60, 80),
			market: testMarket(CategoryWeather, 30, 100),
			reason: "liquidity 100 below floor 500",
			passed: []string{"supervisor", "edge", "confidence", "width"},
		},
		{
			name:   "duplicate exposure",
			belief: testBelief(45, 60, 80),
			market: m,
			view:   GateView{HasOpenInMarket: true},
			reason: "open position already exists for this market",
			passed: []string{"supervisor", "edge", "confidence", "width", "liquidity"},
		},
		{
			name:   "daily loss limit",
			belief: testBelief(45, 60, 80),
			market: m,
			view:   GateView{DailyRealizedLoss: 60},
			reason: "daily realized loss 60.00 over limit 50.00",
			passed: []string{"supervisor", "edge", "confidence", "width", "liquidity", "exposure"},
		},
		{
			name:   "max open positions",
			belief: testBelief(45, 60, 80),
			market: m,
			view:   GateView{OpenCount: 10},
			reason: "max open positions reached (10)",
			passed: []string{"supervisor", "edge", "confidence", "width", "liquidity", "exposure", "daily_loss"},
		},
		{
			name:   "category ceiling",
			belief: testBelief(45, 60, 80),
			market: m,
			view:   GateView{OpenCount: 4, OpenInCategory: 3},
			reason: "category exposure limit reached (3)",
			passed: []string{"supervisor", "edge", "confidence", "width", "liquidity", "exposure", "daily_loss"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := EvaluateGate(tc.market, tc.belief, tc.view, PhaseObserving, cfg)
			assert.Equal(t, ActionNoTrade, d.Action)
			assert.Equal(t, tc.reason, d.RejectReason)
			assert.Equal(t, tc.passed, d.ChecksPassed)
		})
	}
}

func TestEvaluateGate_Deterministic(t *testing.T) {
	m := testMarket(CategorySports, 35, 2000)
	b := testBelief(50, 62, 70)
	cfg := testGateConfig()

	first := EvaluateGate(m, b, GateView{}, PhaseObserving, cfg)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, EvaluateGate(m, b, GateView{}, PhaseObserving, cfg))
	}
}

func TestCategory_EdgeThresholds(t *testing.T) {
	assert.Equal(t, 8.0, CategoryWeather.EdgeThreshold())
	assert.Equal(t, 25.0, CategoryOther.EdgeThreshold())
	assert.Equal(t, CategoryOther, ParseCategory("astrology"))
	assert.Equal(t, CategoryCrypto, ParseCategory("crypto"))
}

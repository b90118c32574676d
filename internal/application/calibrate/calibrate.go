package calibrate

import (
	"fmt"
	"math"
	"sort"

	"github.com/alejandrodnm/convict/internal/domain"
)

// Calibration and performance analytics over resolved positions. All
// functions here are pure: the engine passes a ledger snapshot in and
// renders the result, nothing is cached.

const (
	bucketWidth = 10
	// Buckets and recommendations need a minimum sample before they say
	// anything; a 2-trade bucket that went 0-2 is noise, not miscalibration.
	minBucketSample         = 5
	overconfidenceThreshold = 10 // points of predicted-vs-actual gap
)

// resolvedWithOutcome filters to positions whose prediction was actually
// tested: WIN and LOSS. EXPIRED and BREAK_EVEN carry no outcome signal.
func resolvedWithOutcome(positions []domain.Position) []domain.Position {
	out := make([]domain.Position, 0, len(positions))
	for _, p := range positions {
		if p.Status == domain.StatusWin || p.Status == domain.StatusLoss {
			out = append(out, p)
		}
	}
	return out
}

// Report builds the calibration view: predicted probability vs realized
// win rate per 10-point bucket, the Brier score, and recommendations.
func Report(positions []domain.Position) domain.CalibrationView {
	scored := resolvedWithOutcome(positions)

	type bucket struct {
		wins   int
		trades int
	}
	buckets := make(map[int]*bucket)
	var brierSum float64

	for _, p := range scored {
		prob := p.PredictedProbability()
		won := p.Status == domain.StatusWin

		outcome := 0.0
		if won {
			outcome = 1.0
		}
		d := prob/100 - outcome
		brierSum += d * d

		idx := int(prob) / bucketWidth
		if idx >= 100/bucketWidth {
			idx = 100/bucketWidth - 1
		}
		b := buckets[idx]
		if b == nil {
			b = &bucket{}
			buckets[idx] = b
		}
		b.trades++
		if won {
			b.wins++
		}
	}

	view := domain.CalibrationView{
		CalibrationBuckets: make([]domain.CalibrationBucket, 0, len(buckets)),
		Recommendations:    []string{},
	}

	indices := make([]int, 0, len(buckets))
	for idx := range buckets {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	var weightedError float64
	for _, idx := range indices {
		b := buckets[idx]
		predicted := float64(idx*bucketWidth) + float64(bucketWidth)/2
		actual := float64(b.wins) / float64(b.trades) * 100
		view.CalibrationBuckets = append(view.CalibrationBuckets, domain.CalibrationBucket{
			BeliefRange:          fmt.Sprintf("%d-%d", idx*bucketWidth, (idx+1)*bucketWidth),
			PredictedProbability: predicted,
			ActualWinRate:        actual,
			Trades:               b.trades,
			CalibrationError:     math.Abs(predicted - actual),
		})
		weightedError += math.Abs(predicted-actual) * float64(b.trades)
	}

	if len(scored) > 0 {
		view.BrierScore = brierSum / float64(len(scored))
		view.OverallCalibration = weightedError / float64(len(scored))
	}
	view.Recommendations = recommendations(view.CalibrationBuckets, scored)
	return view
}

// recommendations turns bucket gaps into plain-language guidance.
func recommendations(buckets []domain.CalibrationBucket, scored []domain.Position) []string {
	recs := []string{}
	if len(scored) < minBucketSample {
		recs = append(recs, fmt.Sprintf("only %d resolved trades; calibration needs more data before it means anything", len(scored)))
		return recs
	}

	for _, b := range buckets {
		if b.Trades < minBucketSample {
			continue
		}
		gap := b.PredictedProbability - b.ActualWinRate
		switch {
		case gap > overconfidenceThreshold:
			recs = append(recs, fmt.Sprintf("overconfident in the %s range: predicted %.0f%% but won %.0f%%; widen intervals or demand more edge there", b.BeliefRange, b.PredictedProbability, b.ActualWinRate))
		case gap < -overconfidenceThreshold:
			recs = append(recs, fmt.Sprintf("underconfident in the %s range: predicted %.0f%% but won %.0f%%; beliefs there can tighten", b.BeliefRange, b.PredictedProbability, b.ActualWinRate))
		}
	}
	if len(recs) == 0 {
		recs = append(recs, "calibration within tolerance across all populated ranges")
	}
	return recs
}

// OverallCalibration is the supervisor's feed: the trade-weighted bucket
// deviation and its sample size.
func OverallCalibration(positions []domain.Position) (float64, int) {
	view := Report(positions)
	return view.OverallCalibration, len(resolvedWithOutcome(positions))
}

// Performance aggregates resolved positions into the performance view.
// maxDrawdown is supplied by the ledger, which tracks it live.
func Performance(positions []domain.Position, maxDrawdown float64) domain.PerformanceView {
	var view domain.PerformanceView
	view.MaxDrawdown = maxDrawdown

	var totalWin, totalLoss, holdingHours float64
	var edgeConfirmed, edgeTested, withExit int

	for _, p := range positions {
		if p.Open() {
			continue
		}
		view.TotalTrades++
		if p.PnL != nil {
			view.TotalPnL += *p.PnL
		}
		if p.ExitAt != nil {
			holdingHours += p.HoldingPeriod().Hours()
			withExit++
		}

		switch p.Status {
		case domain.StatusWin:
			view.WinningTrades++
			if p.PnL != nil {
				totalWin += *p.PnL
			}
			edgeConfirmed++
			edgeTested++
		case domain.StatusLoss:
			view.LosingTrades++
			if p.PnL != nil {
				totalLoss += -*p.PnL
			}
			edgeTested++
		}
	}

	if view.TotalTrades == 0 {
		return view
	}

	view.AveragePnL = view.TotalPnL / float64(view.TotalTrades)
	if scored := view.WinningTrades + view.LosingTrades; scored > 0 {
		view.WinRate = float64(view.WinningTrades) / float64(scored)
	}
	if view.WinningTrades > 0 {
		view.AverageWin = totalWin / float64(view.WinningTrades)
	}
	if view.LosingTrades > 0 {
		view.AverageLoss = totalLoss / float64(view.LosingTrades)
	}
	switch {
	case totalLoss > 0:
		view.ProfitFactor = totalWin / totalLoss
	case totalWin > 0:
		view.ProfitFactor = math.Inf(1)
	}
	if withExit > 0 {
		view.AverageHoldingPeriod = holdingHours / float64(withExit)
	}
	if edgeTested > 0 {
		view.EdgeAccuracy = float64(edgeConfirmed) / float64(edgeTested)
	}
	return view
}

// Patterns derives the pattern analysis: category ranking, the edge and
// belief-width bands that actually won, and time-of-day win rates.
func Patterns(positions []domain.Position) domain.PatternView {
	scored := resolvedWithOutcome(positions)

	view := domain.PatternView{
		BestCategories:    []domain.CategoryStat{},
		WorstCategories:   []domain.CategoryStat{},
		TimeOfDayPatterns: []domain.HourStat{},
	}
	if len(scored) == 0 {
		return view
	}

	view.BestCategories, view.WorstCategories = categoryRanking(scored)
	view.OptimalEdgeRange = bestBand(scored, func(p domain.Position) float64 { return p.Edge }, 5)
	view.OptimalBeliefWidth = bestBand(scored, func(p domain.Position) float64 { return p.BeliefHigh - p.BeliefLow }, 5)
	view.TimeOfDayPatterns = hourStats(scored)
	return view
}

func categoryRanking(scored []domain.Position) (best, worst []domain.CategoryStat) {
	type agg struct {
		trades int
		wins   int
		pnl    float64
	}
	byCat := make(map[domain.Category]*agg)
	for _, p := range scored {
		a := byCat[p.Category]
		if a == nil {
			a = &agg{}
			byCat[p.Category] = a
		}
		a.trades++
		if p.Status == domain.StatusWin {
			a.wins++
		}
		if p.PnL != nil {
			a.pnl += *p.PnL
		}
	}

	stats := make([]domain.CategoryStat, 0, len(byCat))
	for cat, a := range byCat {
		stats = append(stats, domain.CategoryStat{
			Category:   cat,
			Trades:     a.trades,
			WinRate:    float64(a.wins) / float64(a.trades),
			AveragePnL: a.pnl / float64(a.trades),
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].WinRate != stats[j].WinRate {
			return stats[i].WinRate > stats[j].WinRate
		}
		return stats[i].Category < stats[j].Category
	})

	n := len(stats)
	top := n
	if top > 3 {
		top = 3
	}
	best = append(best, stats[:top]...)
	for i := n - 1; i >= 0 && len(worst) < 3; i-- {
		if stats[i].WinRate < 0.5 {
			worst = append(worst, stats[i])
		}
	}
	return best, worst
}

// bestBand buckets a numeric dimension into fixed-width bands and returns
// the band with the highest win rate among bands with enough trades.
func bestBand(scored []domain.Position, dim func(domain.Position) float64, width float64) domain.RangeStat {
	type agg struct {
		trades int
		wins   int
	}
	bands := make(map[int]*agg)
	for _, p := range scored {
		idx := int(dim(p) / width)
		a := bands[idx]
		if a == nil {
			a = &agg{}
			bands[idx] = a
		}
		a.trades++
		if p.Status == domain.StatusWin {
			a.wins++
		}
	}

	var best domain.RangeStat
	bestIdx := -1
	for idx, a := range bands {
		if a.trades < minBucketSample {
			continue
		}
		rate := float64(a.wins) / float64(a.trades)
		if bestIdx == -1 || rate > best.WinRate || (rate == best.WinRate && idx < bestIdx) {
			best = domain.RangeStat{Min: float64(idx) * width, Max: float64(idx+1) * width, WinRate: rate}
			bestIdx = idx
		}
	}
	return best
}

func hourStats(scored []domain.Position) []domain.HourStat {
	type agg struct {
		trades int
		wins   int
	}
	byHour := make(map[int]*agg)
	for _, p := range scored {
		h := p.EntryAt.UTC().Hour()
		a := byHour[h]
		if a == nil {
			a = &agg{}
			byHour[h] = a
		}
		a.trades++
		if p.Status == domain.StatusWin {
			a.wins++
		}
	}

	hours := make([]int, 0, len(byHour))
	for h := range byHour {
		hours = append(hours, h)
	}
	sort.Ints(hours)

	out := make([]domain.HourStat, 0, len(hours))
	for _, h := range hours {
		a := byHour[h]
		out = append(out, domain.HourStat{
			Hour:    h,
			Trades:  a.trades,
			WinRate: float64(a.wins) / float64(a.trades),
		})
	}
	return out
}

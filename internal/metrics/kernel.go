// Package metrics computes the twelve-scalar MetricTuple for one
// IS/OOS partition (spec §4.4): the masked bars are first compacted into
// their own arrays, then each metric family takes its own pass over them.
// Grounded on the
// Sharpe/drawdown/stats formulas originally written for per-security
// scoring (trader-go/pkg/formulas).
package metrics

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/sentinel/internal/domain"
)

const tradingDaysPerYear = 252
const daysPerYear = 365.25
const threeYearDays = 3 * daysPerYear

// Compute implements the MetricsKernel contract: position is the
// executed (one-day-lagged) long/flat array, stratReturn the strategy's
// daily return series, dates the calendar aligned to both, and mask the
// IS or OOS partition selector. Warm-up bars carry position=false and
// stratReturn=0 already (the BacktestKernel's invariant), so they
// contribute nothing here.
func Compute(position []bool, stratReturn []float64, dates []time.Time, mask []bool, trades []domain.Trade) domain.MetricTuple {
	n := len(position)

	var maskedPos []bool
	var maskedRet []float64
	var maskedDates []time.Time
	maskedIndex := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if !mask[i] {
			continue
		}
		maskedPos = append(maskedPos, position[i])
		maskedRet = append(maskedRet, stratReturn[i])
		maskedDates = append(maskedDates, dates[i])
		maskedIndex = append(maskedIndex, i)
	}

	m := len(maskedPos)
	if m == 0 {
		return domain.MetricTuple{}
	}

	tim := timeInMarket(maskedPos)

	equity := equityCurve(maskedRet)
	finalEquity := equity[len(equity)-1]
	calendarDays := 0.0
	if m > 1 {
		calendarDays = maskedDates[m-1].Sub(maskedDates[0]).Hours() / 24
	}
	cagr := cagrOf(finalEquity, calendarDays)

	drawdowns := drawdownSeries(equity)
	maxDD := minOf(drawdowns)

	timar := 0.0
	if tim > 0 {
		timar = 100 * cagr / tim
	}
	timardd := 0.0
	if math.Abs(maxDD) > 0 {
		timardd = timar / math.Abs(maxDD)
	}

	numTrades, avgHold := tradeStats(trades, maskedIndex)

	sharpe := sharpeOf(maskedRet)

	dd3, dd50, dd95 := drawdownPercentiles(drawdowns)

	timar3 := worstThreeYearTIMAR(maskedPos, maskedRet, maskedDates)

	return domain.MetricTuple{
		TIM:     tim,
		CAGR:    cagr,
		TIMAR:   timar,
		MaxDD:   maxDD,
		TIMARDD: timardd,
		Trades:  numTrades,
		AvgHold: avgHold,
		Sharpe:  sharpe,
		DD3:     dd3,
		DD50:    dd50,
		DD95:    dd95,
		TIMAR3:  timar3,
	}
}

func timeInMarket(position []bool) float64 {
	count := 0
	for _, held := range position {
		if held {
			count++
		}
	}
	return 100 * float64(count) / float64(len(position))
}

// equityCurve is the running product of (1+r) over the strategy's daily
// returns, seeded at 1 (spec §4.4). The recurrence is a textbook
// cumulative product, so it's delegated to gonum's floats.CumProd rather
// than hand-rolled.
func equityCurve(stratReturn []float64) []float64 {
	growth := make([]float64, len(stratReturn))
	for i, r := range stratReturn {
		growth[i] = 1 + r
	}
	equity := make([]float64, len(stratReturn)+1)
	equity[0] = 1
	floats.CumProd(equity[1:], growth)
	return equity
}

func cagrOf(finalEquity, calendarDays float64) float64 {
	years := calendarDays / daysPerYear
	if years <= 0 || finalEquity <= 0 {
		return 0
	}
	return math.Pow(finalEquity, 1/years) - 1
}

// drawdownSeries is the pointwise drawdown of the equity curve (spec
// §4.4): E[i]/runningMax(E)[i] - 1, a non-positive number per point.
func drawdownSeries(equity []float64) []float64 {
	drawdowns := make([]float64, len(equity))
	runningMax := equity[0]
	for i, e := range equity {
		if e > runningMax {
			runningMax = e
		}
		if runningMax == 0 {
			drawdowns[i] = 0
			continue
		}
		drawdowns[i] = e/runningMax - 1
	}
	return drawdowns
}

func minOf(values []float64) float64 {
	min := 0.0
	for _, v := range values {
		if v < min {
			min = v
		}
	}
	return min
}

func sharpeOf(stratReturn []float64) float64 {
	if len(stratReturn) < 2 {
		return 0
	}
	mean := stat.Mean(stratReturn, nil)
	sd := stat.StdDev(stratReturn, nil)
	if sd == 0 {
		return 0
	}
	return math.Sqrt(tradingDaysPerYear) * mean / sd
}

// drawdownPercentiles resolves the §9 Open Question on tie-handling in
// favor of linear interpolation, via gonum's stat.Quantile.
func drawdownPercentiles(drawdowns []float64) (dd3, dd50, dd95 float64) {
	sorted := append([]float64(nil), drawdowns...)
	sort.Float64s(sorted)
	dd3 = stat.Quantile(0.03, stat.LinInterp, sorted, nil)
	dd50 = stat.Quantile(0.50, stat.LinInterp, sorted, nil)
	dd95 = stat.Quantile(0.95, stat.LinInterp, sorted, nil)
	return dd3, dd50, dd95
}

// tradeStats counts trades whose entry falls within the masked index set
// (spec §4.4 "from the TradeLog counted over masked bars only").
func tradeStats(trades []domain.Trade, maskedIndex []int) (count int, avgHold float64) {
	masked := make(map[int]bool, len(maskedIndex))
	for _, idx := range maskedIndex {
		masked[idx] = true
	}
	var totalHold int
	for _, t := range trades {
		if !masked[t.EntryIndex] {
			continue
		}
		count++
		totalHold += t.HoldDays
	}
	if count == 0 {
		return 0, 0
	}
	return count, float64(totalHold) / float64(count)
}

// worstThreeYearTIMAR implements the §9 Open Question resolution: TIMAR
// computed on the worst rolling three-year window within the masked
// period (not TIMAR at the worst-3-year-drawdown window). Returns 0 if
// the masked span is under three years.
func worstThreeYearTIMAR(position []bool, stratReturn []float64, dates []time.Time) float64 {
	m := len(position)
	if m < 2 {
		return 0
	}
	totalSpan := dates[m-1].Sub(dates[0]).Hours() / 24
	if totalSpan < threeYearDays {
		return 0
	}

	worst := math.Inf(1)
	found := false
	start := 0
	for end := 0; end < m; end++ {
		// Narrow to the shortest window ending at end that still spans at
		// least three years.
		for start < end && dates[end].Sub(dates[start+1]).Hours()/24 >= threeYearDays {
			start++
		}
		span := dates[end].Sub(dates[start]).Hours() / 24
		if span < threeYearDays {
			continue
		}
		windowPos := position[start : end+1]
		windowRet := stratReturn[start : end+1]
		tim := timeInMarket(windowPos)
		if tim <= 0 {
			continue
		}
		equity := equityCurve(windowRet)
		cagr := cagrOf(equity[len(equity)-1], span)
		timar := 100 * cagr / tim
		if timar < worst {
			worst = timar
			found = true
		}
	}
	if !found {
		return 0
	}
	return worst
}

// Package kernel implements the vectorized long/flat backtest (spec
// §4.3): one pass over the price/indicator arrays, no per-bar
// allocation, one-day execution lag.
package kernel

import (
	"github.com/aristath/sentinel/internal/domain"
)

// Result is the output of one backtest run: the daily signal, the
// executed position, the strategy's daily returns, and the trade log
// (spec §3 Signal/TradeLog).
type Result struct {
	Signal         []bool
	Position       []bool
	StrategyReturn []float64
	Trades         []domain.Trade
}

// Run executes the BacktestKernel contract (spec §4.3): consumes one
// indicator array plus (comparator, threshold), an optional L2
// condition, and the owning PriceSeries' returns; emits a boolean signal
// array, a one-day-lagged position array, and a daily-returns array.
//
// indicator and (when present) l2Indicator must be aligned to returns
// (same length, same calendar). costBps is applied on entry transitions
// only (spec §9 Open Question resolution).
func Run(indicator *domain.IndicatorSeries, comparator domain.Comparator, threshold float64, l2Indicator *domain.IndicatorSeries, l2Comparator domain.Comparator, l2Threshold float64, returns []float64, costBps float64) Result {
	n := len(returns)

	rawSignal := make([]bool, n)
	for i := 0; i < n; i++ {
		rawSignal[i] = compare(indicator.Values[i], comparator, threshold)
	}
	if l2Indicator != nil {
		for i := 0; i < n; i++ {
			rawSignal[i] = rawSignal[i] && compare(l2Indicator.Values[i], l2Comparator, l2Threshold)
		}
	}

	position := make([]bool, n)
	for i := 1; i < n; i++ {
		position[i] = rawSignal[i-1]
	}

	stratReturn := make([]float64, n)
	costFraction := costBps / 10000
	for i := 0; i < n; i++ {
		if !position[i] {
			continue
		}
		stratReturn[i] = returns[i]
		enteredHere := i == 0 || !position[i-1]
		if enteredHere && costFraction != 0 {
			stratReturn[i] -= costFraction
		}
	}

	trades := extractTrades(position, stratReturn)

	return Result{
		Signal:         rawSignal,
		Position:       position,
		StrategyReturn: stratReturn,
		Trades:         trades,
	}
}

// compare applies the comparator; indicator.Values[i] == NaN at warm-up
// positions makes this false for both GT and LT without a separate
// branch (spec §3/§4.3).
func compare(value float64, comparator domain.Comparator, threshold float64) bool {
	switch comparator {
	case domain.ComparatorGT:
		return value > threshold
	case domain.ComparatorLT:
		return value < threshold
	default:
		return false
	}
}

// extractTrades identifies [entry, exit) spans where position transitions
// false->true->false (spec §3 TradeLog).
func extractTrades(position []bool, stratReturn []float64) []domain.Trade {
	var trades []domain.Trade
	entry := -1
	for i, held := range position {
		switch {
		case held && entry == -1:
			entry = i
		case !held && entry != -1:
			trades = append(trades, buildTrade(entry, i, stratReturn))
			entry = -1
		}
	}
	if entry != -1 {
		trades = append(trades, buildTrade(entry, len(position), stratReturn))
	}
	return trades
}

func buildTrade(entry, exit int, stratReturn []float64) domain.Trade {
	cumulative := 1.0
	for j := entry; j < exit; j++ {
		cumulative *= 1 + stratReturn[j]
	}
	return domain.Trade{
		EntryIndex: entry,
		ExitIndex:  exit,
		HoldDays:   exit - entry,
		Return:     cumulative - 1,
	}
}

// Package indicator computes and memoizes per-(ticker, family, window)
// indicator arrays (spec §4.2). Core families with closed-form
// definitions are computed directly; extended families are delegated to
// go-talib.
package indicator

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/aristath/sentinel/internal/domain"
)

// nanFill returns a slice of n NaNs, the warm-up sentinel (spec §3/§4.2):
// by IEEE-754, any comparison against NaN is false, so a rawSignal
// computed against a warm-up position is false without an explicit
// branch.
func nanFill(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// computeCurrentPrice is the windowless "current price" family: the raw
// close, with no warm-up.
func computeCurrentPrice(series *domain.PriceSeries) *domain.IndicatorSeries {
	values := make([]float64, len(series.Close))
	copy(values, series.Close)
	return &domain.IndicatorSeries{
		Key:    domain.IndicatorKey{Ticker: series.Ticker, Family: domain.FamilyCurrentPrice},
		Values: values,
		Warmup: 0,
	}
}

// computeSMA is the rolling arithmetic mean of close over w bars;
// warm-up w0 = w-1 (spec §4.2).
func computeSMA(close []float64, w int) (values []float64, warmup int) {
	n := len(close)
	values = nanFill(n)
	if w <= 0 || w > n {
		return values, n
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += close[i]
		if i >= w {
			sum -= close[i-w]
		}
		if i >= w-1 {
			values[i] = sum / float64(w)
		}
	}
	return values, w - 1
}

// computeEMA seeds from the first w closes' SMA, then applies
// alpha = 2/(w+1); warm-up w0 = w-1 (spec §4.2).
func computeEMA(close []float64, w int) (values []float64, warmup int) {
	n := len(close)
	values = nanFill(n)
	if w <= 0 || w > n {
		return values, n
	}
	alpha := 2.0 / (float64(w) + 1.0)

	seedSum := 0.0
	for i := 0; i < w; i++ {
		seedSum += close[i]
	}
	ema := seedSum / float64(w)
	values[w-1] = ema
	for i := w; i < n; i++ {
		ema = alpha*close[i] + (1-alpha)*ema
		values[i] = ema
	}
	return values, w - 1
}

// computeRSI is Wilder's smoothed RSI; warm-up 2w (spec §4.2).
func computeRSI(close []float64, w int) (values []float64, warmup int) {
	n := len(close)
	values = nanFill(n)
	if w <= 0 || 2*w >= n {
		return values, n
	}

	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		delta := close[i] - close[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}

	// Seed average gain/loss over the first w changes (bars 1..w).
	var avgGain, avgLoss float64
	for i := 1; i <= w; i++ {
		avgGain += gains[i]
		avgLoss += losses[i]
	}
	avgGain /= float64(w)
	avgLoss /= float64(w)

	rsiAt := func(g, l float64) float64 {
		if l == 0 {
			if g == 0 {
				return 50
			}
			return 100
		}
		rs := g / l
		return 100 - 100/(1+rs)
	}

	// Wilder smoothing for subsequent bars; values only become
	// "non-participating-free" once the warm-up (2w) has elapsed.
	for i := w + 1; i < n; i++ {
		avgGain = (avgGain*float64(w-1) + gains[i]) / float64(w)
		avgLoss = (avgLoss*float64(w-1) + losses[i]) / float64(w)
		if i >= 2*w {
			values[i] = rsiAt(avgGain, avgLoss)
		}
	}
	return values, 2 * w
}

// computeROC is close[i]/close[i-w] - 1; warm-up w (spec §4.2).
func computeROC(close []float64, w int) (values []float64, warmup int) {
	n := len(close)
	values = nanFill(n)
	if w <= 0 || w >= n {
		return values, n
	}
	for i := w; i < n; i++ {
		if close[i-w] == 0 {
			continue
		}
		values[i] = close[i]/close[i-w] - 1
	}
	return values, w
}

// computeStdDev is the sample stddev of close over w bars; warm-up w-1
// (spec §4.2).
func computeStdDev(close []float64, w int) (values []float64, warmup int) {
	n := len(close)
	values = nanFill(n)
	if w <= 1 || w > n {
		return values, n
	}
	window := make([]float64, w)
	for i := w - 1; i < n; i++ {
		copy(window, close[i-w+1:i+1])
		values[i] = stat.StdDev(window, nil)
	}
	return values, w - 1
}

// computeBBandsPercentB derives %B = (close-lower)/(upper-lower) from an
// SMA(w) +/- k*stddev(w) envelope (spec §4.2, k=2 fixed).
func computeBBandsPercentB(close []float64, w int) (values []float64, warmup int) {
	const k = 2.0
	n := len(close)
	sma, smaWarmup := computeSMA(close, w)
	sd, _ := computeStdDev(close, w)
	values = nanFill(n)
	for i := 0; i < n; i++ {
		if math.IsNaN(sma[i]) || math.IsNaN(sd[i]) {
			continue
		}
		upper := sma[i] + k*sd[i]
		lower := sma[i] - k*sd[i]
		denom := upper - lower
		if denom == 0 {
			continue
		}
		values[i] = (close[i] - lower) / denom
	}
	return values, smaWarmup
}

// computeATR is Wilder-smoothed true range; warm-up w (spec §4.2).
func computeATR(high, low, close []float64, w int) (values []float64, warmup int) {
	n := len(close)
	values = nanFill(n)
	if w <= 0 || w >= n {
		return values, n
	}

	tr := make([]float64, n)
	tr[0] = high[0] - low[0]
	for i := 1; i < n; i++ {
		hl := high[i] - low[i]
		hc := math.Abs(high[i] - close[i-1])
		lc := math.Abs(low[i] - close[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}

	sum := 0.0
	for i := 1; i <= w; i++ {
		sum += tr[i]
	}
	atr := sum / float64(w)
	values[w] = atr
	for i := w + 1; i < n; i++ {
		atr = (atr*float64(w-1) + tr[i]) / float64(w)
		values[i] = atr
	}
	return values, w
}

package indicator

import (
	"math"

	"github.com/markcheno/go-talib"
)

// rewarm overwrites the first `warmup` entries of a talib-produced slice
// with the NaN sentinel, so every family (core or extended) obeys the
// same "values[i] for i < warmup are non-participating" contract (spec
// §3/§4.2) regardless of how talib represents its own unstable period.
func rewarm(values []float64, warmup int) []float64 {
	if warmup > len(values) {
		warmup = len(values)
	}
	for i := 0; i < warmup; i++ {
		values[i] = math.NaN()
	}
	return values
}

func computeWilliamsR(high, low, close []float64, w int) (values []float64, warmup int) {
	n := len(close)
	if w <= 0 || w >= n {
		return nanFill(n), n
	}
	return rewarm(talib.WillR(high, low, close, w), w), w
}

func computeCCI(high, low, close []float64, w int) (values []float64, warmup int) {
	n := len(close)
	if w <= 0 || w >= n {
		return nanFill(n), n
	}
	return rewarm(talib.Cci(high, low, close, w), w), w
}

func computeStoch(high, low, close []float64, w int) (k, d []float64, warmup int) {
	n := len(close)
	if w <= 0 || w >= n {
		return nanFill(n), nanFill(n), n
	}
	slowK, slowD := talib.Stoch(high, low, close, w, 3, talib.SMA, 3, talib.SMA)
	return rewarm(slowK, w+3), rewarm(slowD, w+6), w + 6
}

func computeADX(high, low, close []float64, w int) (values []float64, warmup int) {
	n := len(close)
	if w <= 0 || 2*w >= n {
		return nanFill(n), n
	}
	return rewarm(talib.Adx(high, low, close, w), 2 * w), 2 * w
}

func computeMACDHist(close []float64, fast, slow, signal int) (values []float64, warmup int) {
	n := len(close)
	if slow <= 0 || slow >= n {
		return nanFill(n), n
	}
	_, _, hist := talib.Macd(close, fast, slow, signal)
	w := slow + signal
	return rewarm(hist, w), w
}

func computeAroon(high, low []float64, w int) (down, up []float64, warmup int) {
	n := len(high)
	if w <= 0 || w >= n {
		return nanFill(n), nanFill(n), n
	}
	aroonDown, aroonUp := talib.Aroon(high, low, w)
	return rewarm(aroonDown, w), rewarm(aroonUp, w), w
}

func computeMFI(high, low, close, volume []float64, w int) (values []float64, warmup int) {
	n := len(close)
	if w <= 0 || w >= n {
		return nanFill(n), n
	}
	return rewarm(talib.Mfi(high, low, close, volume, w), w), w
}

func computeOBV(close, volume []float64) (values []float64, warmup int) {
	return talib.Obv(close, volume), 0
}

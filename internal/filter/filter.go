// Package filter applies the JobConfig survival thresholds to a branch's
// IS metrics (spec §4.6); OOS metrics are never consulted.
package filter

import (
	"math"

	"github.com/aristath/sentinel/internal/domain"
)

// Passes reports whether metrics clears every configured threshold. Each
// check short-circuits the next (spec Testable Property 8: raising any
// threshold can only shrink the passing set).
//
// cfg.MaxDD is the maximum tolerable drawdown magnitude as a non-negative
// number (e.g. 0.3 rejects anything drawing down more than 30%), while
// metrics.MaxDD is always <= 0 (spec §3). The two are compared by
// magnitude, not by raw sign, so the threshold stays usable regardless of
// how deep metrics.MaxDD actually goes.
func Passes(metrics domain.MetricTuple, cfg domain.JobConfig) bool {
	if metrics.TIM < cfg.MinTIM {
		return false
	}
	if metrics.TIMAR < cfg.MinTIMAR {
		return false
	}
	if metrics.MaxDD < -math.Abs(cfg.MaxDD) {
		return false
	}
	if metrics.Trades < cfg.MinTrades {
		return false
	}
	if metrics.TIMARDD < cfg.MinTIMARDD {
		return false
	}
	return true
}

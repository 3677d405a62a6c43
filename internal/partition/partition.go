// Package partition produces IS/OOS boolean masks from a date series
// under one of three split policies (spec §4.5).
package partition

import (
	"time"

	"github.com/aristath/sentinel/internal/domain"
)

// Split returns the (isMask, oosMask) pair for dates under policy.
// warmup excludes the leading warm-up bars from both masks, matching
// Testable Property 7 ("isMask XOR oosMask is true on every non-warm-up
// bar... both exclude warm-up").
func Split(dates []time.Time, policy domain.SplitPolicy, oosStart time.Time, warmup int) (isMask, oosMask []bool) {
	n := len(dates)
	isMask = make([]bool, n)
	oosMask = make([]bool, n)

	for i := 0; i < n; i++ {
		if i < warmup {
			continue
		}
		if inSample(dates[i], policy, oosStart) {
			isMask[i] = true
		} else {
			oosMask[i] = true
		}
	}
	return isMask, oosMask
}

func inSample(date time.Time, policy domain.SplitPolicy, oosStart time.Time) bool {
	switch policy {
	case domain.SplitEvenOddMonth:
		return int(date.Month())%2 == 1
	case domain.SplitEvenOddYear:
		return date.Year()%2 == 1
	case domain.SplitChronological:
		return date.Before(oosStart)
	default:
		return false
	}
}

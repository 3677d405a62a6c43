package partition

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/sentinel/internal/domain"
)

func monthlyDates(n int) []time.Time {
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = base.AddDate(0, i, 0)
	}
	return out
}

// TestSplitComplementarity is Testable Property 7: isMask XOR oosMask on
// every non-warm-up bar, and never both true.
func TestSplitComplementarity(t *testing.T) {
	dates := monthlyDates(24)
	warmup := 3

	for _, policy := range []domain.SplitPolicy{domain.SplitEvenOddMonth, domain.SplitEvenOddYear} {
		isMask, oosMask := Split(dates, policy, time.Time{}, warmup)

		for i := range dates {
			assert.False(t, isMask[i] && oosMask[i], "policy %s: bar %d cannot be in both partitions", policy, i)
			if i < warmup {
				assert.False(t, isMask[i], "policy %s: warm-up bar %d must be excluded from IS", policy, i)
				assert.False(t, oosMask[i], "policy %s: warm-up bar %d must be excluded from OOS", policy, i)
			} else {
				assert.True(t, isMask[i] != oosMask[i], "policy %s: bar %d must be in exactly one partition", policy, i)
			}
		}
	}
}

func TestSplitEvenOddMonth(t *testing.T) {
	dates := monthlyDates(4) // Jan, Feb, Mar, Apr 2020
	isMask, oosMask := Split(dates, domain.SplitEvenOddMonth, time.Time{}, 0)

	assert.True(t, isMask[0])  // January (odd)
	assert.False(t, isMask[1]) // February (even)
	assert.True(t, isMask[2])  // March (odd)
	assert.False(t, isMask[3]) // April (even)

	assert.False(t, oosMask[0])
	assert.True(t, oosMask[1])
}

func TestSplitEvenOddYear(t *testing.T) {
	dates := []time.Time{
		time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	isMask, oosMask := Split(dates, domain.SplitEvenOddYear, time.Time{}, 0)

	assert.True(t, isMask[0])  // 2019 odd
	assert.False(t, isMask[1]) // 2020 even
	assert.True(t, isMask[2])  // 2021 odd

	assert.False(t, oosMask[0])
	assert.True(t, oosMask[1])
}

func TestSplitChronological(t *testing.T) {
	dates := monthlyDates(12)
	cutoff := time.Date(2020, 7, 1, 0, 0, 0, 0, time.UTC)

	isMask, oosMask := Split(dates, domain.SplitChronological, cutoff, 0)

	for i, d := range dates {
		if d.Before(cutoff) {
			assert.True(t, isMask[i])
			assert.False(t, oosMask[i])
		} else {
			assert.False(t, isMask[i])
			assert.True(t, oosMask[i])
		}
	}
}

func TestSplitWarmupExclusion(t *testing.T) {
	dates := monthlyDates(5)
	isMask, oosMask := Split(dates, domain.SplitEvenOddMonth, time.Time{}, 5)

	for i := range dates {
		assert.False(t, isMask[i])
		assert.False(t, oosMask[i])
	}
}

package enumerate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/sentinel/internal/domain"
)

func baseConfig() domain.JobConfig {
	return domain.JobConfig{
		Indicator:     domain.FamilySMA,
		PeriodMin:     5,
		PeriodMax:     7,
		Tickers:       []string{"AAA", "BBB"},
		Comparator:    "BOTH",
		ThresholdMin:  0,
		ThresholdMax:  1,
		ThresholdStep: 0.5,
	}
}

// TestCountMatchesActualYield is Testable Property 1: Count() must equal
// the number of Branch values Next() actually yields.
func TestCountMatchesActualYield(t *testing.T) {
	cfg := baseConfig()
	e := New(cfg, false)

	expected := e.Count()
	var actual int64
	for {
		_, ok := e.Next()
		if !ok {
			break
		}
		actual++
	}
	assert.Equal(t, expected, actual)
	assert.Equal(t, int64(2*3*2*3), expected) // tickers x windows x comparators x thresholds
}

func TestEnumerationOrder(t *testing.T) {
	cfg := baseConfig()
	e := New(cfg, false)

	first, ok := e.Next()
	require.True(t, ok)
	assert.Equal(t, "AAA", first.SignalTicker)
	assert.Equal(t, 5, first.Window)
	assert.Equal(t, domain.ComparatorLT, first.Comparator, "LT must precede GT when comparator is BOTH")
	assert.InDelta(t, 0.0, first.Threshold, 1e-9)
}

func TestWindowlessFamilyCollapsesWindowDimension(t *testing.T) {
	cfg := baseConfig()
	cfg.Indicator = domain.FamilyCurrentPrice
	e := New(cfg, true)

	assert.Equal(t, int64(2*1*2*3), e.Count())
	branch, ok := e.Next()
	require.True(t, ok)
	assert.Equal(t, 0, branch.Window)
}

func TestSingleComparator(t *testing.T) {
	cfg := baseConfig()
	cfg.Comparator = "GT"
	e := New(cfg, false)

	for {
		branch, ok := e.Next()
		if !ok {
			break
		}
		assert.Equal(t, domain.ComparatorGT, branch.Comparator)
	}
}

func TestEmptyTickersYieldsNothing(t *testing.T) {
	cfg := baseConfig()
	cfg.Tickers = nil
	e := New(cfg, false)

	_, ok := e.Next()
	assert.False(t, ok)
	assert.Zero(t, e.Count())
}

func TestInvestTickerDefaultsToSignalTicker(t *testing.T) {
	cfg := baseConfig()
	e := New(cfg, false)

	branch, ok := e.Next()
	require.True(t, ok)
	assert.Equal(t, branch.SignalTicker, branch.InvestTicker)
}

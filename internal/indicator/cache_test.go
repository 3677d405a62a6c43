package indicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/sentinel/internal/domain"
)

func testSeries() *domain.PriceSeries {
	n := 60
	series := &domain.PriceSeries{Ticker: "TEST"}
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	price := 100.0
	for i := 0; i < n; i++ {
		price += float64(i%5) - 2
		series.Dates = append(series.Dates, base.AddDate(0, 0, i))
		series.Open = append(series.Open, price)
		series.High = append(series.High, price+1)
		series.Low = append(series.Low, price-1)
		series.Close = append(series.Close, price)
		series.Volume = append(series.Volume, 1000+float64(i))
	}
	series.Returns = make([]float64, n)
	for i := 1; i < n; i++ {
		series.Returns[i] = series.Close[i]/series.Close[i-1] - 1
	}
	return series
}

// TestCacheIdempotence exercises Testable Property 3: repeated Get calls
// for the same key return the same backing array.
func TestCacheIdempotence(t *testing.T) {
	series := testSeries()
	cache := New()

	first, err := cache.Get(series, domain.FamilySMA, 10)
	require.NoError(t, err)
	second, err := cache.Get(series, domain.FamilySMA, 10)
	require.NoError(t, err)

	assert.Same(t, first, second)
}

func TestCacheDistinctKeysDistinctSeries(t *testing.T) {
	series := testSeries()
	cache := New()

	sma10, err := cache.Get(series, domain.FamilySMA, 10)
	require.NoError(t, err)
	sma20, err := cache.Get(series, domain.FamilySMA, 20)
	require.NoError(t, err)

	assert.NotSame(t, sma10, sma20)
}

func TestCacheUnknownFamily(t *testing.T) {
	series := testSeries()
	cache := New()

	_, err := cache.Get(series, domain.Family("bogus"), 10)
	assert.Error(t, err)
}

func TestCacheAllFamiliesCompute(t *testing.T) {
	series := testSeries()
	cache := New()

	families := []domain.Family{
		domain.FamilyCurrentPrice, domain.FamilySMA, domain.FamilyEMA, domain.FamilyRSI,
		domain.FamilyROC, domain.FamilySTDDEV, domain.FamilyBBandsPercentB, domain.FamilyATR,
		domain.FamilyWilliamsR, domain.FamilyCCI, domain.FamilyStochK, domain.FamilyStochD,
		domain.FamilyADX, domain.FamilyMACDHist, domain.FamilyAroon, domain.FamilyMFI, domain.FamilyOBV,
	}
	for _, family := range families {
		window := 10
		if family.Windowless() {
			window = 0
		}
		result, err := cache.Get(series, family, window)
		require.NoError(t, err, "family %s should compute without error", family)
		assert.Len(t, result.Values, series.Len())
	}
}

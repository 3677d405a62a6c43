package indicator

import (
	"fmt"
	"sync"

	"github.com/aristath/sentinel/internal/domain"
)

// Cache owns a mapping of (ticker, family, window) to a memoized,
// immutable indicator array. One Cache instance per worker; there is no
// cross-worker sharing (spec §4.2/§9).
type Cache struct {
	mu    sync.Mutex
	store map[domain.IndicatorKey]*domain.IndicatorSeries
}

// New creates an empty indicator cache.
func New() *Cache {
	return &Cache{store: make(map[domain.IndicatorKey]*domain.IndicatorSeries)}
}

// Get returns the memoized IndicatorSeries for (series.Ticker, family,
// window), computing it lazily on first request (spec §4.2).
func (c *Cache) Get(series *domain.PriceSeries, family domain.Family, window int) (*domain.IndicatorSeries, error) {
	key := domain.IndicatorKey{Ticker: series.Ticker, Family: family, Window: window}

	c.mu.Lock()
	if cached, ok := c.store[key]; ok {
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	result, err := c.compute(series, family, window)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok := c.store[key]; ok {
		return cached, nil
	}
	c.store[key] = result
	return result, nil
}

func (c *Cache) compute(series *domain.PriceSeries, family domain.Family, window int) (*domain.IndicatorSeries, error) {
	key := domain.IndicatorKey{Ticker: series.Ticker, Family: family, Window: window}

	switch family {
	case domain.FamilyCurrentPrice:
		return computeCurrentPrice(series), nil
	case domain.FamilySMA:
		values, warmup := computeSMA(series.Close, window)
		return &domain.IndicatorSeries{Key: key, Values: values, Warmup: warmup}, nil
	case domain.FamilyEMA:
		values, warmup := computeEMA(series.Close, window)
		return &domain.IndicatorSeries{Key: key, Values: values, Warmup: warmup}, nil
	case domain.FamilyRSI:
		values, warmup := computeRSI(series.Close, window)
		return &domain.IndicatorSeries{Key: key, Values: values, Warmup: warmup}, nil
	case domain.FamilyROC:
		values, warmup := computeROC(series.Close, window)
		return &domain.IndicatorSeries{Key: key, Values: values, Warmup: warmup}, nil
	case domain.FamilySTDDEV:
		values, warmup := computeStdDev(series.Close, window)
		return &domain.IndicatorSeries{Key: key, Values: values, Warmup: warmup}, nil
	case domain.FamilyBBandsPercentB:
		values, warmup := computeBBandsPercentB(series.Close, window)
		return &domain.IndicatorSeries{Key: key, Values: values, Warmup: warmup}, nil
	case domain.FamilyATR:
		values, warmup := computeATR(series.High, series.Low, series.Close, window)
		return &domain.IndicatorSeries{Key: key, Values: values, Warmup: warmup}, nil
	case domain.FamilyWilliamsR:
		values, warmup := computeWilliamsR(series.High, series.Low, series.Close, window)
		return &domain.IndicatorSeries{Key: key, Values: values, Warmup: warmup}, nil
	case domain.FamilyCCI:
		values, warmup := computeCCI(series.High, series.Low, series.Close, window)
		return &domain.IndicatorSeries{Key: key, Values: values, Warmup: warmup}, nil
	case domain.FamilyStochK:
		k, _, warmup := computeStoch(series.High, series.Low, series.Close, window)
		return &domain.IndicatorSeries{Key: key, Values: k, Warmup: warmup}, nil
	case domain.FamilyStochD:
		_, d, warmup := computeStoch(series.High, series.Low, series.Close, window)
		return &domain.IndicatorSeries{Key: key, Values: d, Warmup: warmup}, nil
	case domain.FamilyADX:
		values, warmup := computeADX(series.High, series.Low, series.Close, window)
		return &domain.IndicatorSeries{Key: key, Values: values, Warmup: warmup}, nil
	case domain.FamilyMACDHist:
		values, warmup := computeMACDHist(series.Close, 12, window, 9)
		return &domain.IndicatorSeries{Key: key, Values: values, Warmup: warmup}, nil
	case domain.FamilyAroon:
		_, up, warmup := computeAroon(series.High, series.Low, window)
		return &domain.IndicatorSeries{Key: key, Values: up, Warmup: warmup}, nil
	case domain.FamilyMFI:
		values, warmup := computeMFI(series.High, series.Low, series.Close, series.Volume, window)
		return &domain.IndicatorSeries{Key: key, Values: values, Warmup: warmup}, nil
	case domain.FamilyOBV:
		values, warmup := computeOBV(series.Close, series.Volume)
		return &domain.IndicatorSeries{Key: key, Values: values, Warmup: warmup}, nil
	default:
		return nil, fmt.Errorf("indicator: unknown family %q", family)
	}
}

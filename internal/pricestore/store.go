// Package pricestore provides a read-only columnar loader for per-ticker
// daily price history, with a bounded LRU of parsed series (spec §4.1).
package pricestore

import (
	"container/list"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/domain"
)

// ErrMissingData is returned when a ticker has no backing price file, or
// the file is missing a required column (spec §6/§7).
var ErrMissingData = errors.New("pricestore: missing data")

// DefaultCapacity is the default number of tickers retained in the LRU
// (spec §4.1).
const DefaultCapacity = 128

// Store is a read-only, concurrency-safe loader and LRU cache of
// PriceSeries keyed by ticker. Concurrent callers see the same immutable
// *domain.PriceSeries snapshot; there is no writer other than the loader
// itself (spec §4.1/§5).
type Store struct {
	dir      string
	capacity int
	log      zerolog.Logger

	mu      sync.Mutex
	entries map[string]*list.Element // ticker -> LRU node
	order   *list.List                // front = most recently used
}

type lruEntry struct {
	ticker string
	series *domain.PriceSeries
}

// New creates a Store reading `<dir>/<TICKER>.csv` files, with an LRU of
// the given capacity (DefaultCapacity when capacity <= 0).
func New(dir string, capacity int, log zerolog.Logger) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		dir:      dir,
		capacity: capacity,
		log:      log.With().Str("component", "pricestore").Logger(),
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Load returns the PriceSeries for ticker, loading and caching it on
// first touch. Returns ErrMissingData if the backing file does not exist
// or lacks a required column.
func (s *Store) Load(ticker string) (*domain.PriceSeries, error) {
	s.mu.Lock()
	if elem, ok := s.entries[ticker]; ok {
		s.order.MoveToFront(elem)
		series := elem.Value.(*lruEntry).series
		s.mu.Unlock()
		return series, nil
	}
	s.mu.Unlock()

	series, err := s.loadFromDisk(ticker)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another goroutine may have loaded the same ticker concurrently;
	// prefer whichever is already cached to keep a single shared snapshot.
	if elem, ok := s.entries[ticker]; ok {
		s.order.MoveToFront(elem)
		return elem.Value.(*lruEntry).series, nil
	}

	elem := s.order.PushFront(&lruEntry{ticker: ticker, series: series})
	s.entries[ticker] = elem
	s.evictIfNeeded()
	return series, nil
}

func (s *Store) evictIfNeeded() {
	for s.order.Len() > s.capacity {
		oldest := s.order.Back()
		if oldest == nil {
			return
		}
		entry := oldest.Value.(*lruEntry)
		s.order.Remove(oldest)
		delete(s.entries, entry.ticker)
		s.log.Debug().Str("ticker", entry.ticker).Msg("evicted price series from LRU")
	}
}

func (s *Store) loadFromDisk(ticker string) (*domain.PriceSeries, error) {
	path := filepath.Join(s.dir, ticker+".csv")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: no price file for %s", ErrMissingData, ticker)
		}
		return nil, fmt.Errorf("pricestore: opening %s: %w", path, err)
	}
	defer f.Close()

	series, err := parseCSV(ticker, f)
	if err != nil {
		return nil, err
	}
	computeReturns(series)
	return series, nil
}

var requiredColumns = []string{"Date", "Open", "High", "Low", "Close", "Volume"}

func parseCSV(ticker string, r io.Reader) (*domain.PriceSeries, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: empty or unreadable header", ErrMissingData, ticker)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range requiredColumns {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("%w: %s: missing column %q", ErrMissingData, ticker, required)
		}
	}

	series := &domain.PriceSeries{Ticker: ticker}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("pricestore: reading %s: %w", ticker, err)
		}

		date, err := time.Parse("2006-01-02", record[col["Date"]])
		if err != nil {
			return nil, fmt.Errorf("pricestore: %s: bad date %q: %w", ticker, record[col["Date"]], err)
		}
		open, _ := strconv.ParseFloat(record[col["Open"]], 64)
		high, _ := strconv.ParseFloat(record[col["High"]], 64)
		low, _ := strconv.ParseFloat(record[col["Low"]], 64)
		closePrice, _ := strconv.ParseFloat(record[col["Close"]], 64)
		volume, _ := strconv.ParseFloat(record[col["Volume"]], 64)

		series.Dates = append(series.Dates, date.UTC())
		series.Open = append(series.Open, open)
		series.High = append(series.High, high)
		series.Low = append(series.Low, low)
		series.Close = append(series.Close, closePrice)
		series.Volume = append(series.Volume, volume)
	}

	if len(series.Dates) == 0 {
		return nil, fmt.Errorf("%w: %s: no data rows", ErrMissingData, ticker)
	}
	return series, nil
}

func computeReturns(series *domain.PriceSeries) {
	n := len(series.Close)
	series.Returns = make([]float64, n)
	for i := 1; i < n; i++ {
		prev := series.Close[i-1]
		if prev == 0 {
			continue
		}
		series.Returns[i] = series.Close[i]/prev - 1
	}
}

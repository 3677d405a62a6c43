// Package enumerate produces the Cartesian product of a JobConfig's search
// space as a pull-based iterator (spec §4.7): ticker outermost, then
// window ascending, then comparator, then threshold ascending.
package enumerate

import "github.com/aristath/sentinel/internal/domain"

// Enumerator walks (ticker x window x comparator x threshold) for a single
// indicator family. Comparator order is LT before GT when the job asks
// for "BOTH" (spec §6/§9).
type Enumerator struct {
	cfg domain.JobConfig

	windows      []int
	comparators  []domain.Comparator
	thresholds   []float64

	tickerIdx     int
	windowIdx     int
	comparatorIdx int
	thresholdIdx  int

	done bool
}

// New builds an Enumerator over cfg's search space. windowless reports
// whether cfg.Indicator takes no period parameter, in which case the
// window dimension collapses to a single iteration.
func New(cfg domain.JobConfig, windowless bool) *Enumerator {
	e := &Enumerator{cfg: cfg}

	if windowless {
		e.windows = []int{0}
	} else {
		for w := cfg.PeriodMin; w <= cfg.PeriodMax; w++ {
			e.windows = append(e.windows, w)
		}
	}

	switch cfg.Comparator {
	case "LT":
		e.comparators = []domain.Comparator{domain.ComparatorLT}
	case "GT":
		e.comparators = []domain.Comparator{domain.ComparatorGT}
	default: // "BOTH"
		e.comparators = []domain.Comparator{domain.ComparatorLT, domain.ComparatorGT}
	}

	if cfg.ThresholdStep <= 0 {
		e.thresholds = []float64{cfg.ThresholdMin}
	} else {
		for t := cfg.ThresholdMin; t <= cfg.ThresholdMax+1e-9; t += cfg.ThresholdStep {
			e.thresholds = append(e.thresholds, t)
		}
	}

	if len(cfg.Tickers) == 0 || len(e.windows) == 0 || len(e.comparators) == 0 || len(e.thresholds) == 0 {
		e.done = true
	}

	return e
}

// Count returns the total number of branches this Enumerator will yield,
// computed in closed form (spec Testable Property 1).
func (e *Enumerator) Count() int64 {
	return int64(len(e.cfg.Tickers)) * int64(len(e.windows)) * int64(len(e.comparators)) * int64(len(e.thresholds))
}

// Next returns the next Branch and true, or a zero Branch and false once
// the product is exhausted.
func (e *Enumerator) Next() (domain.Branch, bool) {
	if e.done {
		return domain.Branch{}, false
	}

	ticker := e.cfg.Tickers[e.tickerIdx]
	branch := domain.Branch{
		SignalTicker: ticker,
		InvestTicker: ticker,
		Family:       e.cfg.Indicator,
		Window:       e.windows[e.windowIdx],
		Comparator:   e.comparators[e.comparatorIdx],
		Threshold:    e.thresholds[e.thresholdIdx],
	}

	e.advance()
	return branch, true
}

func (e *Enumerator) advance() {
	e.thresholdIdx++
	if e.thresholdIdx < len(e.thresholds) {
		return
	}
	e.thresholdIdx = 0

	e.comparatorIdx++
	if e.comparatorIdx < len(e.comparators) {
		return
	}
	e.comparatorIdx = 0

	e.windowIdx++
	if e.windowIdx < len(e.windows) {
		return
	}
	e.windowIdx = 0

	e.tickerIdx++
	if e.tickerIdx < len(e.cfg.Tickers) {
		return
	}
	e.done = true
}

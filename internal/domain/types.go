// Package domain holds the shared data model for the branch-generation
// engine: price series, indicators, branches, metrics and jobs.
package domain

import "time"

// Family identifies an indicator kind. The core families (SMA, EMA, RSI,
// ROC, StdDev, BBandsPercentB, ATR) have closed-form definitions computed
// directly by internal/indicator; the extended families are computed via
// go-talib.
type Family string

const (
	FamilyCurrentPrice    Family = "current_price"
	FamilySMA             Family = "sma"
	FamilyEMA             Family = "ema"
	FamilyRSI             Family = "rsi"
	FamilyROC             Family = "roc"
	FamilySTDDEV          Family = "stddev"
	FamilyBBandsPercentB  Family = "bbands_pctb"
	FamilyATR             Family = "atr"
	FamilyWilliamsR       Family = "williams_r"
	FamilyCCI             Family = "cci"
	FamilyStochK          Family = "stoch_k"
	FamilyStochD          Family = "stoch_d"
	FamilyADX             Family = "adx"
	FamilyMACDHist        Family = "macd_hist"
	FamilyAroon           Family = "aroon"
	FamilyMFI             Family = "mfi"
	FamilyOBV             Family = "obv"
)

// Windowless reports whether a family takes no period parameter.
func (f Family) Windowless() bool {
	switch f {
	case FamilyCurrentPrice, FamilyOBV:
		return true
	default:
		return false
	}
}

// Comparator is the signal-generation relation applied to an indicator
// value against a threshold.
type Comparator string

const (
	ComparatorGT Comparator = "GT"
	ComparatorLT Comparator = "LT"
)

// SplitPolicy names the IS/OOS partition policy (spec §3 PartitionMask).
type SplitPolicy string

const (
	SplitEvenOddMonth  SplitPolicy = "even_odd_month"
	SplitEvenOddYear   SplitPolicy = "even_odd_year"
	SplitChronological SplitPolicy = "chronological"
)

// PriceSeries is one ticker's dense, gap-free OHLCV history plus its
// derived daily returns (spec §3).
type PriceSeries struct {
	Ticker  string
	Dates   []time.Time
	Open    []float64
	High    []float64
	Low     []float64
	Close   []float64
	Volume  []float64
	Returns []float64 // Returns[0] == 0, Returns[i] = Close[i]/Close[i-1] - 1
}

// Len returns the number of bars in the series.
func (p *PriceSeries) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Dates)
}

// IndicatorKey identifies one memoized indicator array in the cache.
type IndicatorKey struct {
	Ticker string
	Family Family
	Window int // 0 for windowless families
}

// IndicatorSeries is one (ticker, family, window) computed array, aligned
// to the owning PriceSeries. Values before Warmup are math.NaN(); any
// comparison against NaN is false by IEEE-754, which is how "warm-up bars
// never participate" (spec §3) is enforced without a branch in the kernel.
type IndicatorSeries struct {
	Key    IndicatorKey
	Values []float64
	Warmup int
}

// L2Condition is the optional second indicator clause ANDed onto the
// primary signal (spec §4.3).
type L2Condition struct {
	Family     Family
	Window     int
	Comparator Comparator
	Threshold  float64
}

// Branch is one point in the search Cartesian product (spec §3).
type Branch struct {
	SignalTicker string
	InvestTicker string // defaults to SignalTicker
	Family       Family
	Window       int
	Comparator   Comparator
	Threshold    float64
	L2           *L2Condition
}

// Trade is one completed long position, used only for trade-count and
// average-hold metrics (spec §3 TradeLog).
type Trade struct {
	EntryIndex int
	ExitIndex  int
	HoldDays   int
	Return     float64
}

// MetricTuple is the twelve-scalar performance summary for one partition
// (spec §3).
type MetricTuple struct {
	TIM     float64
	CAGR    float64
	TIMAR   float64
	MaxDD   float64
	TIMARDD float64
	Trades  int
	AvgHold float64
	Sharpe  float64
	DD3     float64
	DD50    float64
	DD95    float64
	TIMAR3  float64
}

// BranchResult is a passing Branch plus its IS/OOS metrics (spec §3).
type BranchResult struct {
	ID        string
	JobID     string
	Branch    Branch
	IS        MetricTuple
	OOS       MetricTuple
	CreatedAt time.Time
}

// JobStatus is the JobController lifecycle state (spec §3/§4.10).
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCancelled JobStatus = "cancelled"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// JobConfig is the validated, typed job configuration (spec §6).
type JobConfig struct {
	Indicator     Family
	PeriodMin     int
	PeriodMax     int
	Tickers       []string
	Comparator    string // "LT" | "GT" | "BOTH"
	ThresholdMin  float64
	ThresholdMax  float64
	ThresholdStep float64
	MinTIM        float64
	MinTIMAR      float64
	MaxDD         float64 // maximum tolerable drawdown magnitude, >= 0 (e.g. 0.3 == 30%); compared against |MetricTuple.MaxDD|
	MinTrades     int
	MinTIMARDD    float64
	SplitStrategy SplitPolicy
	OOSStartDate  time.Time // only meaningful when SplitStrategy == SplitChronological
	NumWorkers    int
	CostBps       float64
}

// BranchError records a per-branch failure that does not fail the job
// (spec §7): MissingData, DegenerateSeries, NumericAnomaly.
type BranchError struct {
	Ticker  string
	Family  Family
	Kind    string
	Message string
}

// Job is the lifecycle record for one discovery run (spec §3).
type Job struct {
	ID                string
	Config            JobConfig
	Status            JobStatus
	TotalBranches     int64
	CompletedBranches int64
	PassingBranches   int64
	Errors            []BranchError
	Err               string
	CreatedAt         time.Time
	StartedAt         time.Time
	FinishedAt        time.Time
}

// ProgressSnapshot is the externally published progress event (spec §6).
type ProgressSnapshot struct {
	JobID             string
	CompletedBranches int64
	TotalBranches     int64
	PassingBranches   int64
	Status            JobStatus
}

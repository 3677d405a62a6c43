// Package job implements the Scheduler, Aggregator and JobController
// components (spec §4.8-§4.10), grounded on the channel-based worker pool
// pattern (jobs chan / results chan / sync.WaitGroup).
package job

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/enumerate"
	"github.com/aristath/sentinel/internal/filter"
	"github.com/aristath/sentinel/internal/indicator"
	"github.com/aristath/sentinel/internal/kernel"
	"github.com/aristath/sentinel/internal/metrics"
	"github.com/aristath/sentinel/internal/partition"
	"github.com/aristath/sentinel/internal/pricestore"
	"github.com/aristath/sentinel/internal/utils"
)

// progressEvery is how many completed branches elapse between progress
// publications (spec §4.8).
const progressEvery = 500

// resultBufferCapacity bounds how many passing BranchResults accumulate
// before the Aggregator flushes them to the sink (spec §4.9).
const resultBufferCapacity = 100

// Scheduler fans a job's enumerated branches out across worker goroutines
// over one shared channel. Branches are not sharded by ticker: any worker
// may evaluate any ticker's branches. Each worker owns its own
// indicator.Cache; there is no cross-worker sharing (spec §4.2/§9).
type Scheduler struct {
	store      *pricestore.Store
	log        zerolog.Logger
	numWorkers int
}

// NewScheduler builds a Scheduler backed by store. numWorkers <= 0 falls
// back to a single worker; the logical-CPU default is resolved by the
// caller (cmd/discoveryd via gopsutil) before a job reaches here.
func NewScheduler(store *pricestore.Store, numWorkers int, log zerolog.Logger) *Scheduler {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	return &Scheduler{store: store, numWorkers: numWorkers, log: log}
}

// branchJob is one unit of work sent to a worker goroutine.
type branchJob struct {
	branch domain.Branch
}

// branchOutcome is what a worker reports back for one branch: either a
// passing BranchResult, a filtered-out branch (nil result, no error), a
// BranchError (spec §7 — branch failures do not fail the job), or a fatal
// error from a recovered worker panic (spec §4.10/§7 — a worker crash
// fails the whole job).
type branchOutcome struct {
	result *domain.BranchResult
	errRec *domain.BranchError
	fatal  error
}

// Run drives cfg's full Cartesian product through the worker pool,
// invoking onResult for every passing branch and onProgress every
// progressEvery completed branches. Run returns the BranchErrors (at most
// one per (ticker, family) pair), the completed/passing branch counts,
// and a non-nil fatalErr
// if a worker panicked partway through (spec §4.10: running -> failed on
// worker crash). It honors ctx cancellation cooperatively, checked
// between branches (not mid-branch).
func (s *Scheduler) Run(ctx context.Context, jobID string, cfg domain.JobConfig, onResult func(domain.BranchResult), onProgress func(completed, total, passing int64)) (errs []domain.BranchError, completed, passing int64, fatalErr error) {
	defer utils.OperationTimer("scheduler_run:"+jobID, s.log)()

	enumerator := enumerate.New(cfg, cfg.Indicator.Windowless())
	total := enumerator.Count()

	runCtx, abort := context.WithCancel(ctx)
	defer abort()

	jobs := make(chan branchJob, s.numWorkers*2)
	outcomes := make(chan branchOutcome, s.numWorkers*2)

	var wg sync.WaitGroup
	for i := 0; i < s.numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.worker(runCtx, abort, jobID, cfg, jobs, outcomes)
		}()
	}

	go func() {
		defer close(jobs)
		for {
			branch, ok := enumerator.Next()
			if !ok {
				return
			}
			select {
			case jobs <- branchJob{branch: branch}:
			case <-runCtx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	var completedCount, passingCount int64
	type errKey struct {
		ticker string
		family domain.Family
	}
	loggedErrs := make(map[errKey]bool)
	for outcome := range outcomes {
		if outcome.fatal != nil {
			if fatalErr == nil {
				fatalErr = outcome.fatal
			}
			continue
		}
		completedCount++
		switch {
		case outcome.errRec != nil:
			key := errKey{ticker: outcome.errRec.Ticker, family: outcome.errRec.Family}
			if !loggedErrs[key] {
				loggedErrs[key] = true
				errs = append(errs, *outcome.errRec)
			}
		case outcome.result != nil:
			passingCount++
			onResult(*outcome.result)
		}
		if completedCount%progressEvery == 0 {
			onProgress(completedCount, total, passingCount)
		}
	}
	onProgress(completedCount, total, passingCount)

	return errs, completedCount, passingCount, fatalErr
}

func (s *Scheduler) worker(ctx context.Context, abort context.CancelFunc, jobID string, cfg domain.JobConfig, jobs <-chan branchJob, outcomes chan<- branchOutcome) {
	cache := indicator.New()

	for j := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}
		outcomes <- s.runBranch(jobID, cfg, cache, j.branch, abort)
	}
}

// runBranch recovers a panicking evaluateBranch call, aborting the job's
// run context so sibling workers stop picking up new branches (spec §7
// WorkerCrash: fatal).
func (s *Scheduler) runBranch(jobID string, cfg domain.JobConfig, cache *indicator.Cache, branch domain.Branch, abort context.CancelFunc) (outcome branchOutcome) {
	defer func() {
		if r := recover(); r != nil {
			abort()
			s.log.Error().Str("job_id", jobID).Str("ticker", branch.SignalTicker).
				Interface("panic", r).Msg("worker crashed evaluating branch")
			outcome = branchOutcome{fatal: fmt.Errorf("worker crashed evaluating %s/%s: %v", branch.SignalTicker, branch.Family, r)}
		}
	}()
	return s.evaluateBranch(jobID, cfg, cache, branch)
}

func (s *Scheduler) evaluateBranch(jobID string, cfg domain.JobConfig, cache *indicator.Cache, branch domain.Branch) branchOutcome {
	series, err := s.store.Load(branch.SignalTicker)
	if err != nil {
		return branchOutcome{errRec: &domain.BranchError{
			Ticker: branch.SignalTicker, Family: branch.Family, Kind: "MissingData", Message: err.Error(),
		}}
	}

	investSeries := series
	if branch.InvestTicker != branch.SignalTicker {
		investSeries, err = s.store.Load(branch.InvestTicker)
		if err != nil {
			return branchOutcome{errRec: &domain.BranchError{
				Ticker: branch.InvestTicker, Family: branch.Family, Kind: "MissingData", Message: err.Error(),
			}}
		}
	}

	if series.Len() == 0 || investSeries.Len() == 0 {
		return branchOutcome{errRec: &domain.BranchError{
			Ticker: branch.SignalTicker, Family: branch.Family, Kind: "DegenerateSeries", Message: "empty price series",
		}}
	}

	ind, err := cache.Get(series, branch.Family, branch.Window)
	if err != nil {
		return branchOutcome{errRec: &domain.BranchError{
			Ticker: branch.SignalTicker, Family: branch.Family, Kind: "NumericAnomaly", Message: err.Error(),
		}}
	}

	var l2Ind *domain.IndicatorSeries
	var l2Comparator domain.Comparator
	var l2Threshold float64
	if branch.L2 != nil {
		l2Ind, err = cache.Get(series, branch.L2.Family, branch.L2.Window)
		if err != nil {
			return branchOutcome{errRec: &domain.BranchError{
				Ticker: branch.SignalTicker, Family: branch.L2.Family, Kind: "NumericAnomaly", Message: err.Error(),
			}}
		}
		l2Comparator = branch.L2.Comparator
		l2Threshold = branch.L2.Threshold
	}

	result := kernel.Run(ind, branch.Comparator, branch.Threshold, l2Ind, l2Comparator, l2Threshold, investSeries.Returns, cfg.CostBps)

	warmup := ind.Warmup
	if l2Ind != nil && l2Ind.Warmup > warmup {
		warmup = l2Ind.Warmup
	}
	isMask, oosMask := partition.Split(investSeries.Dates, cfg.SplitStrategy, cfg.OOSStartDate, warmup)

	isMetrics := metrics.Compute(result.Position, result.StrategyReturn, investSeries.Dates, isMask, result.Trades)
	oosMetrics := metrics.Compute(result.Position, result.StrategyReturn, investSeries.Dates, oosMask, result.Trades)

	if !filter.Passes(isMetrics, cfg) {
		return branchOutcome{}
	}

	return branchOutcome{result: &domain.BranchResult{
		JobID:  jobID,
		Branch: branch,
		IS:     isMetrics,
		OOS:    oosMetrics,
	}}
}

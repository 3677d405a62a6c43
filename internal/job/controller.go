package job

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/pricestore"
)

// validate rejects configurations the Scheduler could not enumerate
// branches from at all (spec §6 validation rules). universe, when
// non-empty, restricts cfg.Tickers to a configured allowlist.
func validate(cfg domain.JobConfig, universe []string) error {
	if len(cfg.Tickers) == 0 {
		return fmt.Errorf("job: at least one ticker is required")
	}
	if len(universe) > 0 {
		allowed := make(map[string]bool, len(universe))
		for _, t := range universe {
			allowed[t] = true
		}
		for _, t := range cfg.Tickers {
			if !allowed[t] {
				return fmt.Errorf("job: ticker %q is not in the configured universe", t)
			}
		}
	}
	if !cfg.Indicator.Windowless() && cfg.PeriodMin > cfg.PeriodMax {
		return fmt.Errorf("job: period_min must be <= period_max")
	}
	if cfg.ThresholdMin > cfg.ThresholdMax {
		return fmt.Errorf("job: threshold_min must be <= threshold_max")
	}
	if cfg.Comparator != "LT" && cfg.Comparator != "GT" && cfg.Comparator != "BOTH" {
		return fmt.Errorf("job: comparator must be one of LT, GT, BOTH")
	}
	if cfg.SplitStrategy == domain.SplitChronological && cfg.OOSStartDate.IsZero() {
		return fmt.Errorf("job: oos_start_date is required for chronological split")
	}
	return nil
}

// Broadcaster publishes progress snapshots to whatever transport is
// listening (spec §4.8/§6 — the websocket handler in internal/httpapi).
type Broadcaster interface {
	Publish(snapshot domain.ProgressSnapshot)
}

// Controller owns the pending -> running -> {completed, cancelled, failed}
// lifecycle for one job (spec §4.10), grounded on the original queue
// package's Job/status model.
type Controller struct {
	mu              sync.Mutex
	job             domain.Job
	cancel          context.CancelFunc
	cancelRequested bool

	store       *pricestore.Store
	sink        Sink
	broadcaster Broadcaster
	log         zerolog.Logger
	universe    []string
}

// NewController creates a pending job from cfg. universe, when non-empty,
// restricts which tickers the job may request (spec §6).
func NewController(cfg domain.JobConfig, store *pricestore.Store, sink Sink, broadcaster Broadcaster, universe []string, log zerolog.Logger) *Controller {
	return &Controller{
		job: domain.Job{
			ID:        uuid.NewString(),
			Config:    cfg,
			Status:    domain.JobPending,
			CreatedAt: time.Now(),
		},
		store:       store,
		sink:        sink,
		broadcaster: broadcaster,
		universe:    universe,
		log:         log,
	}
}

// Snapshot returns a copy of the job's current state.
func (c *Controller) Snapshot() domain.Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.job
}

// Cancel requests cooperative cancellation. A request made while the job
// is still pending is remembered and takes effect as soon as Start runs
// the job; once the job has settled, Cancel has no effect.
func (c *Controller) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	if cancel == nil && c.job.Status == domain.JobPending {
		c.cancelRequested = true
	}
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Start transitions pending -> running and drives the Scheduler to
// completion, then settles the job into completed, cancelled or failed.
// Start blocks until the job finishes; callers invoke it from its own
// goroutine.
func (c *Controller) Start(parent context.Context) {
	c.mu.Lock()
	if c.job.Status != domain.JobPending {
		c.mu.Unlock()
		return
	}
	cfg := c.job.Config
	jobID := c.job.ID

	if err := validate(cfg, c.universe); err != nil {
		c.job.Status = domain.JobFailed
		c.job.Err = err.Error()
		c.job.StartedAt = time.Now()
		c.job.FinishedAt = time.Now()
		c.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(parent)
	c.cancel = cancel
	if c.cancelRequested {
		cancel()
	}
	c.job.Status = domain.JobRunning
	c.job.StartedAt = time.Now()
	c.mu.Unlock()

	scheduler := NewScheduler(c.store, cfg.NumWorkers, c.log)
	aggregator := NewAggregator(jobID, c.sink)

	// aggErr latches the first persistence failure; it is only ever
	// written from onResult/the post-Run Flush, both invoked on the same
	// goroutine that calls Start, so no lock is needed.
	var aggErr error

	onResult := func(result domain.BranchResult) {
		result.ID = uuid.NewString()
		result.CreatedAt = time.Now()
		if err := aggregator.Add(result); err != nil {
			c.log.Error().Err(err).Str("job_id", jobID).Msg("aggregator add failed")
			if aggErr == nil {
				aggErr = err
			}
		}
	}

	onProgress := func(completed, total, passing int64) {
		c.mu.Lock()
		c.job.CompletedBranches = completed
		c.job.TotalBranches = total
		c.job.PassingBranches = passing
		snapshot := domain.ProgressSnapshot{
			JobID: jobID, CompletedBranches: completed, TotalBranches: total,
			PassingBranches: passing, Status: c.job.Status,
		}
		c.mu.Unlock()
		if c.broadcaster != nil {
			c.broadcaster.Publish(snapshot)
		}
	}

	errs, completed, passing, fatalErr := scheduler.Run(ctx, jobID, cfg, onResult, onProgress)

	if err := aggregator.Flush(); err != nil {
		c.log.Error().Err(err).Str("job_id", jobID).Msg("aggregator flush failed")
		if aggErr == nil {
			aggErr = err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.job.Errors = errs
	c.job.CompletedBranches = completed
	c.job.PassingBranches = passing
	c.job.FinishedAt = time.Now()

	switch {
	case fatalErr != nil:
		c.job.Status = domain.JobFailed
		c.job.Err = fatalErr.Error()
	case aggErr != nil:
		c.job.Status = domain.JobFailed
		c.job.Err = aggErr.Error()
	default:
		select {
		case <-ctx.Done():
			c.job.Status = domain.JobCancelled
		default:
			c.job.Status = domain.JobCompleted
		}
	}

	if c.broadcaster != nil {
		c.broadcaster.Publish(domain.ProgressSnapshot{
			JobID: jobID, CompletedBranches: c.job.CompletedBranches, TotalBranches: c.job.TotalBranches,
			PassingBranches: c.job.PassingBranches, Status: c.job.Status,
		})
	}
}

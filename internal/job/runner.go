package job

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/domain"
	"github.com/aristath/sentinel/internal/pricestore"
)

// ResultLister reads back persisted BranchResults for a job (implemented
// by internal/sink.DB).
type ResultLister interface {
	ListByJob(jobID string) ([]domain.BranchResult, error)
}

// SinkAndLister is the full persistence dependency Runner needs.
type SinkAndLister interface {
	Sink
	ResultLister
}

// Runner owns every in-flight and completed Controller for the process
// and fans out progress snapshots to subscribers (spec §4.10, httpapi's
// websocket handler).
type Runner struct {
	mu          sync.Mutex
	controllers map[string]*Controller
	subscribers map[string][]chan domain.ProgressSnapshot

	store          *pricestore.Store
	sink           SinkAndLister
	log            zerolog.Logger
	defaultWorkers int
	universe       []string
}

// NewRunner builds a Runner. defaultWorkers is used for any JobConfig that
// does not specify NumWorkers (resolved by the caller, typically from the
// host's logical CPU count). universe, when non-empty, restricts which
// tickers a submitted job may request.
func NewRunner(store *pricestore.Store, sink SinkAndLister, defaultWorkers int, universe []string, log zerolog.Logger) *Runner {
	return &Runner{
		controllers:    make(map[string]*Controller),
		subscribers:    make(map[string][]chan domain.ProgressSnapshot),
		store:          store,
		sink:           sink,
		defaultWorkers: defaultWorkers,
		universe:       universe,
		log:            log,
	}
}

// Submit launches cfg as a new job, returning immediately with its ID
// while the job is validated and run in the background. Submit itself
// never rejects a config: one that fails validation settles the job as
// failed, with the reason in Job.Err.
func (r *Runner) Submit(cfg domain.JobConfig) (string, error) {
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = r.defaultWorkers
	}

	controller := NewController(cfg, r.store, r.sink, r, r.universe, r.log)
	jobID := controller.Snapshot().ID

	r.mu.Lock()
	r.controllers[jobID] = controller
	r.mu.Unlock()

	go controller.Start(context.Background())

	return jobID, nil
}

// Status returns the current snapshot of a job.
func (r *Runner) Status(jobID string) (domain.Job, bool) {
	r.mu.Lock()
	controller, ok := r.controllers[jobID]
	r.mu.Unlock()
	if !ok {
		return domain.Job{}, false
	}
	return controller.Snapshot(), true
}

// Results reads back persisted BranchResults for jobID.
func (r *Runner) Results(jobID string) ([]domain.BranchResult, error) {
	results, err := r.sink.ListByJob(jobID)
	if err != nil {
		return nil, fmt.Errorf("runner: list results: %w", err)
	}
	return results, nil
}

// Cancel requests cooperative cancellation of a running job.
func (r *Runner) Cancel(jobID string) bool {
	r.mu.Lock()
	controller, ok := r.controllers[jobID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	controller.Cancel()
	return true
}

// Subscribe registers a channel for jobID's progress snapshots. The
// returned func unlinks the channel from further publishes.
func (r *Runner) Subscribe(jobID string) (<-chan domain.ProgressSnapshot, func()) {
	ch := make(chan domain.ProgressSnapshot, 16)

	r.mu.Lock()
	r.subscribers[jobID] = append(r.subscribers[jobID], ch)
	r.mu.Unlock()

	// unsubscribe only unlinks ch from the subscriber list; it does not
	// close ch, since Publish may already hold a snapshot of the list and
	// send to it concurrently (closing here would race a send on a
	// closed channel). The unreferenced channel is left for GC.
	unsubscribe := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		subs := r.subscribers[jobID]
		for i, c := range subs {
			if c == ch {
				r.subscribers[jobID] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
	return ch, unsubscribe
}

// Publish implements Broadcaster: it fans snapshot out to every
// subscriber of its job, dropping it for any subscriber whose buffer is
// full rather than blocking the job.
func (r *Runner) Publish(snapshot domain.ProgressSnapshot) {
	r.mu.Lock()
	subs := append([]chan domain.ProgressSnapshot(nil), r.subscribers[snapshot.JobID]...)
	r.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- snapshot:
		default:
		}
	}
}

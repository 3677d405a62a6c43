package job

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/sentinel/internal/domain"
)

type fakeBroadcaster struct {
	mu        sync.Mutex
	snapshots []domain.ProgressSnapshot
}

func (f *fakeBroadcaster) Publish(snapshot domain.ProgressSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, snapshot)
}

func (f *fakeBroadcaster) last() domain.ProgressSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshots[len(f.snapshots)-1]
}

func validConfig() domain.JobConfig {
	return domain.JobConfig{
		Indicator:     domain.FamilySMA,
		PeriodMin:     5,
		PeriodMax:     5,
		Tickers:       []string{"AAA"},
		Comparator:    "GT",
		ThresholdMin:  0,
		ThresholdMax:  0,
		SplitStrategy: domain.SplitEvenOddMonth,
		NumWorkers:    1,
	}
}

func TestControllerInvalidConfigFailsWithoutRunning(t *testing.T) {
	cfg := validConfig()
	cfg.Tickers = nil // invalid: no tickers

	store := testStore(t, []string{"AAA"}, 30)
	sink := &fakeSink{}
	broadcaster := &fakeBroadcaster{}
	controller := NewController(cfg, store, sink, broadcaster, nil, zerolog.Nop())

	controller.Start(context.Background())

	snapshot := controller.Snapshot()
	assert.Equal(t, domain.JobFailed, snapshot.Status)
	assert.NotEmpty(t, snapshot.Err)
}

func TestControllerRejectsTickerOutsideUniverse(t *testing.T) {
	cfg := validConfig()
	store := testStore(t, []string{"AAA"}, 30)
	sink := &fakeSink{}
	broadcaster := &fakeBroadcaster{}
	controller := NewController(cfg, store, sink, broadcaster, []string{"BBB"}, zerolog.Nop())

	controller.Start(context.Background())

	assert.Equal(t, domain.JobFailed, controller.Snapshot().Status)
}

func TestControllerCompletesAndPersists(t *testing.T) {
	cfg := validConfig()
	store := testStore(t, []string{"AAA"}, 90)
	sink := &fakeSink{}
	broadcaster := &fakeBroadcaster{}
	controller := NewController(cfg, store, sink, broadcaster, nil, zerolog.Nop())

	controller.Start(context.Background())

	snapshot := controller.Snapshot()
	assert.Equal(t, domain.JobCompleted, snapshot.Status)
	assert.Equal(t, snapshot.TotalBranches, snapshot.CompletedBranches)
	assert.Equal(t, domain.JobCompleted, broadcaster.last().Status)
}

func TestControllerCancelConverges(t *testing.T) {
	cfg := validConfig()
	cfg.PeriodMin, cfg.PeriodMax = 2, 80
	cfg.ThresholdMax = 500
	cfg.ThresholdStep = 0.01
	cfg.Comparator = "BOTH"
	store := testStore(t, []string{"AAA"}, 300)
	sink := &fakeSink{}
	broadcaster := &fakeBroadcaster{}
	controller := NewController(cfg, store, sink, broadcaster, nil, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		controller.Start(context.Background())
		close(done)
	}()

	controller.Cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("controller did not converge after cancellation")
	}

	assert.Equal(t, domain.JobCancelled, controller.Snapshot().Status)
}

type failingSink struct {
	err error
}

func (f *failingSink) WriteBatch(jobID string, results []domain.BranchResult) error {
	return f.err
}

// TestControllerFailsOnSinkError is spec §4.10/§7: a persistence failure
// must surface as the job transitioning to failed, not just a log line.
func TestControllerFailsOnSinkError(t *testing.T) {
	cfg := validConfig()
	// An always-long branch with every threshold wide open, so at least
	// one result is guaranteed to reach the aggregator's Flush call.
	cfg.Indicator = domain.FamilyCurrentPrice
	cfg.PeriodMin, cfg.PeriodMax = 0, 0
	cfg.ThresholdMin, cfg.ThresholdMax = -1e9, -1e9
	cfg.MinTIM = -1
	cfg.MinTIMAR = -1e9
	cfg.MaxDD = 1e9
	cfg.MinTIMARDD = -1e9
	store := testStore(t, []string{"AAA"}, 90)
	sink := &failingSink{err: assert.AnError}
	broadcaster := &fakeBroadcaster{}
	controller := NewController(cfg, store, sink, broadcaster, nil, zerolog.Nop())

	controller.Start(context.Background())

	snapshot := controller.Snapshot()
	assert.Equal(t, domain.JobFailed, snapshot.Status)
	assert.NotEmpty(t, snapshot.Err)
}

func TestControllerStartTwiceIsNoop(t *testing.T) {
	cfg := validConfig()
	store := testStore(t, []string{"AAA"}, 60)
	sink := &fakeSink{}
	controller := NewController(cfg, store, sink, &fakeBroadcaster{}, nil, zerolog.Nop())

	controller.Start(context.Background())
	first := controller.Snapshot()

	controller.Start(context.Background())
	second := controller.Snapshot()

	require.Equal(t, domain.JobCompleted, first.Status)
	assert.Equal(t, first.FinishedAt, second.FinishedAt, "a second Start call must not re-run the job")
}

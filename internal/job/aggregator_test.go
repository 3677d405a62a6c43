package job

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/sentinel/internal/domain"
)

type fakeSink struct {
	mu      sync.Mutex
	batches [][]domain.BranchResult
}

func (f *fakeSink) WriteBatch(jobID string, results []domain.BranchResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, append([]domain.BranchResult(nil), results...))
	return nil
}

func (f *fakeSink) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

// ListByJob satisfies SinkAndLister by returning every result ever
// written, regardless of jobID, which is sufficient for the runner tests
// that only ever submit a single job to a given fakeSink.
func (f *fakeSink) ListByJob(jobID string) ([]domain.BranchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.BranchResult
	for _, b := range f.batches {
		out = append(out, b...)
	}
	return out, nil
}

func TestAggregator_FlushesAtCapacity(t *testing.T) {
	sink := &fakeSink{}
	agg := NewAggregator("job-1", sink)

	for i := 0; i < resultBufferCapacity; i++ {
		require.NoError(t, agg.Add(domain.BranchResult{}))
	}

	assert.Equal(t, resultBufferCapacity, sink.total())
	assert.Len(t, sink.batches, 1)
}

func TestAggregator_FlushWritesPartialBatch(t *testing.T) {
	sink := &fakeSink{}
	agg := NewAggregator("job-1", sink)

	require.NoError(t, agg.Add(domain.BranchResult{}))
	require.NoError(t, agg.Add(domain.BranchResult{}))
	require.NoError(t, agg.Flush())

	assert.Equal(t, 2, sink.total())
}

func TestAggregator_FlushOfEmptyBufferIsNoop(t *testing.T) {
	sink := &fakeSink{}
	agg := NewAggregator("job-1", sink)

	require.NoError(t, agg.Flush())
	assert.Empty(t, sink.batches)
}

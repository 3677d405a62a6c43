package job

import (
	"sync"

	"github.com/aristath/sentinel/internal/domain"
)

// Sink persists a batch of passing BranchResults (spec §4.9). Implemented
// by internal/sink against modernc.org/sqlite.
type Sink interface {
	WriteBatch(jobID string, results []domain.BranchResult) error
}

// Aggregator buffers passing BranchResults and flushes them to a Sink in
// batches once resultBufferCapacity is reached, rather than on every
// single passing branch.
type Aggregator struct {
	mu     sync.Mutex
	sink   Sink
	jobID  string
	buffer []domain.BranchResult
}

// NewAggregator returns an Aggregator that flushes batches for jobID to
// sink.
func NewAggregator(jobID string, sink Sink) *Aggregator {
	return &Aggregator{jobID: jobID, sink: sink, buffer: make([]domain.BranchResult, 0, resultBufferCapacity)}
}

// Add appends one passing result, flushing the buffer once it is full.
func (a *Aggregator) Add(result domain.BranchResult) error {
	a.mu.Lock()
	a.buffer = append(a.buffer, result)
	full := len(a.buffer) >= resultBufferCapacity
	var toFlush []domain.BranchResult
	if full {
		toFlush = a.buffer
		a.buffer = make([]domain.BranchResult, 0, resultBufferCapacity)
	}
	a.mu.Unlock()

	if toFlush != nil {
		return a.sink.WriteBatch(a.jobID, toFlush)
	}
	return nil
}

// Flush writes any buffered results that have not yet reached a full
// batch. Call this once the job finishes enumerating branches.
func (a *Aggregator) Flush() error {
	a.mu.Lock()
	toFlush := a.buffer
	a.buffer = make([]domain.BranchResult, 0, resultBufferCapacity)
	a.mu.Unlock()

	if len(toFlush) == 0 {
		return nil
	}
	return a.sink.WriteBatch(a.jobID, toFlush)
}

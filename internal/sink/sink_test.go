package sink

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/sentinel/internal/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "results.db")
	db, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleResult(jobID string) domain.BranchResult {
	return domain.BranchResult{
		ID:    uuid.NewString(),
		JobID: jobID,
		Branch: domain.Branch{
			SignalTicker: "AAA",
			InvestTicker: "AAA",
			Family:       domain.FamilySMA,
			Window:       20,
			Comparator:   domain.ComparatorGT,
			Threshold:    1.0,
		},
		IS:        domain.MetricTuple{TIM: 40, CAGR: 0.1, TIMAR: 2.5},
		OOS:       domain.MetricTuple{TIM: 35, CAGR: 0.08, TIMAR: 2.0},
		CreatedAt: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestWriteBatchAndListByJobRoundTrip(t *testing.T) {
	db := openTestDB(t)

	result := sampleResult("job-1")
	require.NoError(t, db.WriteBatch("job-1", []domain.BranchResult{result}))

	got, err := db.ListByJob("job-1")
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, result.ID, got[0].ID)
	assert.Equal(t, result.Branch.SignalTicker, got[0].Branch.SignalTicker)
	assert.Equal(t, result.Branch.Family, got[0].Branch.Family)
	assert.Equal(t, result.Branch.Comparator, got[0].Branch.Comparator)
	assert.InDelta(t, result.IS.TIMAR, got[0].IS.TIMAR, 1e-9)
	assert.InDelta(t, result.OOS.CAGR, got[0].OOS.CAGR, 1e-9)
}

func TestWriteBatchPersistsL2Condition(t *testing.T) {
	db := openTestDB(t)

	result := sampleResult("job-1")
	result.Branch.L2 = &domain.L2Condition{
		Family: domain.FamilyRSI, Window: 14, Comparator: domain.ComparatorLT, Threshold: 30,
	}
	require.NoError(t, db.WriteBatch("job-1", []domain.BranchResult{result}))

	got, err := db.ListByJob("job-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Branch.L2)
	assert.Equal(t, domain.FamilyRSI, got[0].Branch.L2.Family)
	assert.Equal(t, 14, got[0].Branch.L2.Window)
	assert.InDelta(t, 30.0, got[0].Branch.L2.Threshold, 1e-9)
}

func TestListByJobOnlyReturnsMatchingJob(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.WriteBatch("job-1", []domain.BranchResult{sampleResult("job-1")}))
	require.NoError(t, db.WriteBatch("job-2", []domain.BranchResult{sampleResult("job-2")}))

	got, err := db.ListByJob("job-1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, "job-1", got[0].JobID)
}

func TestWriteBatchOfEmptySliceIsNoop(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.WriteBatch("job-1", nil))

	got, err := db.ListByJob("job-1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestListByJobUnknownJobReturnsEmpty(t *testing.T) {
	db := openTestDB(t)
	got, err := db.ListByJob("does-not-exist")
	require.NoError(t, err)
	assert.Empty(t, got)
}

package state

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataforge-labs/kicketl/internal/testutil"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(testutil.NewTestLogger(t))
	require.NoError(t, s.Open(filepath.Join(t.TempDir(), "runs.db")))
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate())
	return s
}

func TestCreateRun(t *testing.T) {
	s := testStore(t)

	run, err := s.CreateRun("data/raw/ks-projects-201801.csv")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.Nil(t, run.CompletedAt)

	got, err := s.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "data/raw/ks-projects-201801.csv", got.SourcePath)
	assert.Equal(t, RunStatusRunning, got.Status)
	assert.Zero(t, got.Counts.Facts)
}

func TestCompleteRun(t *testing.T) {
	s := testStore(t)

	run, err := s.CreateRun("data.csv")
	require.NoError(t, err)

	counts := Counts{Extracted: 10, Transformed: 9, Dropped: 1, Dates: 4, States: 2, Categories: 3, Facts: 9}
	require.NoError(t, s.CompleteRun(run.ID, RunStatusCompleted, counts, ""))

	got, err := s.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, got.Status)
	assert.Equal(t, counts, got.Counts)
	require.NotNil(t, got.CompletedAt)
	assert.Empty(t, got.Error)
}

func TestCompleteRun_Failed(t *testing.T) {
	s := testStore(t)

	run, err := s.CreateRun("data.csv")
	require.NoError(t, err)
	require.NoError(t, s.CompleteRun(run.ID, RunStatusFailed, Counts{Extracted: 10}, "source file unavailable"))

	got, err := s.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, got.Status)
	assert.Equal(t, "source file unavailable", got.Error)
}

func TestCompleteRun_UnknownID(t *testing.T) {
	s := testStore(t)
	err := s.CompleteRun("missing", RunStatusCompleted, Counts{}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestGetRun_UnknownID(t *testing.T) {
	s := testStore(t)
	_, err := s.GetRun("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestListRuns(t *testing.T) {
	s := testStore(t)

	var ids []string
	for i := 0; i < 3; i++ {
		run, err := s.CreateRun("data.csv")
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}

	runs, err := s.ListRuns(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	all, err := s.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for _, id := range ids {
		found := false
		for _, run := range all {
			if run.ID == id {
				found = true
			}
		}
		assert.True(t, found, "run %s should be listed", id)
	}
}

func TestStore_NotOpened(t *testing.T) {
	s := NewStore(nil)
	_, err := s.CreateRun("data.csv")
	require.Error(t, err)

	require.Error(t, s.Migrate())
}

package runlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "runlog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLiteStore_CheckpointEmpty(t *testing.T) {
	s := newTestSQLiteStore(t)

	cp, err := s.Checkpoint(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cp)
}

func TestSQLiteStore_CompleteRun_AdvancesCheckpoint(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(15 * time.Minute)

	run, err := s.StartRun(ctx, start, end)
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)

	require.NoError(t, s.CompleteRun(ctx, run.ID, Result{Records: 4, Uploaded: 3, Failed: 1}))

	cp, err := s.Checkpoint(ctx)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.True(t, cp.Equal(end), "checkpoint %v, want %v", cp, end)

	runs, err := s.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, StatusComplete, runs[0].Status)
	assert.Equal(t, 3, runs[0].Uploaded)
	assert.Equal(t, 1, runs[0].Failed)
	assert.NotNil(t, runs[0].CompletedAt)
}

func TestSQLiteStore_CompleteRun_UnknownRun(t *testing.T) {
	s := newTestSQLiteStore(t)

	err := s.CompleteRun(context.Background(), "missing", Result{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown run")
}

func TestSQLiteStore_FailRun_KeepsCheckpoint(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	first, err := s.StartRun(ctx, start, start.Add(15*time.Minute))
	require.NoError(t, err)
	require.NoError(t, s.CompleteRun(ctx, first.ID, Result{Records: 1, Uploaded: 1}))

	second, err := s.StartRun(ctx, start.Add(15*time.Minute), start.Add(30*time.Minute))
	require.NoError(t, err)
	require.NoError(t, s.FailRun(ctx, second.ID, eris.New("upstream unavailable")))

	cp, err := s.Checkpoint(ctx)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.True(t, cp.Equal(start.Add(15*time.Minute)), "failed run must not move the checkpoint")

	runs, err := s.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
}

func TestSQLiteStore_CheckpointIsMonotonic(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	later, err := s.StartRun(ctx, start.Add(15*time.Minute), start.Add(30*time.Minute))
	require.NoError(t, err)
	require.NoError(t, s.CompleteRun(ctx, later.ID, Result{}))

	// A replayed earlier window completing out of order must not rewind.
	earlier, err := s.StartRun(ctx, start, start.Add(15*time.Minute))
	require.NoError(t, err)
	require.NoError(t, s.CompleteRun(ctx, earlier.ID, Result{}))

	cp, err := s.Checkpoint(ctx)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.True(t, cp.Equal(start.Add(30*time.Minute)))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}

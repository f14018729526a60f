package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"cloneexec/internal/dedup"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCursorRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	_, ok, err := s.LoadCursor(ctx, "clone-1")
	require.NoError(t, err)
	assert.False(t, ok)

	at := time.UnixMilli(1_700_000_000_123).UTC()
	require.NoError(t, s.SaveCursor(ctx, "clone-1", dedup.Cursor{LastSequence: 42, LastStopLoss: 4100, UpdatedAt: at}))
	require.NoError(t, s.SaveCursor(ctx, "clone-1", dedup.Cursor{LastSequence: 43, LastStopLoss: 4200, LastTakeProfit: 3900, UpdatedAt: at}))

	got, ok, err := s.LoadCursor(ctx, "clone-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, dedup.Cursor{LastSequence: 43, LastStopLoss: 4200, LastTakeProfit: 3900, UpdatedAt: at}, got)

	_, ok, err = s.LoadCursor(ctx, "clone-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGuardOverSqlite(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	g := dedup.NewGuard(s, "clone-1")
	require.NoError(t, g.Load(ctx))
	require.NoError(t, g.Commit(ctx, 7, 4000, 3800))

	reopened := dedup.NewGuard(s, "clone-1")
	require.NoError(t, reopened.Load(ctx))
	assert.False(t, reopened.ShouldProcess(7))
	stop, tp := reopened.Thresholds()
	assert.Equal(t, 4000.0, stop)
	assert.Equal(t, 3800.0, tp)
}

func TestSubmissionLedger(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	_, ok, err := s.FindSubmission(ctx, "sig-1")
	require.NoError(t, err)
	assert.False(t, ok)

	at := time.UnixMilli(1_700_000_000_000).UTC()
	require.NoError(t, s.RecordSubmission(ctx, dedup.Submission{SignalID: "sig-1", PositionID: "pos-9", Rate: 4000, Size: 0.5, SubmittedAt: at}))
	require.NoError(t, s.MarkPushed(ctx, "sig-1"))

	got, ok, err := s.FindSubmission(ctx, "sig-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, dedup.Submission{SignalID: "sig-1", PositionID: "pos-9", Rate: 4000, Size: 0.5, SubmittedAt: at, Pushed: true}, got)

	assert.Error(t, s.RecordSubmission(ctx, dedup.Submission{}))
}

func TestClosedStore(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	_, _, err = s.LoadCursor(context.Background(), "x")
	assert.Error(t, err)
}

package history

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/applypilot/applypilot/internal/job"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSeenUnknownJob(t *testing.T) {
	store := openTestStore(t)

	seen, err := store.Seen(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestRecordThenSeen(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, &job.Outcome{
		JobID:    "j1",
		Status:   job.StatusProcessed,
		FitScore: 9.2,
		HasScore: true,
	}))

	seen, err := store.Seen(ctx, "j1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestErrorOutcomeIsRetriable(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, &job.Outcome{
		JobID:  "j1",
		Status: job.StatusError,
		Reason: job.ReasonScoring,
	}))

	seen, err := store.Seen(ctx, "j1")
	require.NoError(t, err)
	assert.False(t, seen, "errored jobs must be retried on the next run")

	// The retry succeeds and the row flips to terminal.
	require.NoError(t, store.Record(ctx, &job.Outcome{
		JobID:    "j1",
		Status:   job.StatusProcessed,
		FitScore: 8.7,
		HasScore: true,
	}))

	seen, err = store.Seen(ctx, "j1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestReopenPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.db")
	ctx := context.Background()

	store, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.Record(ctx, &job.Outcome{JobID: "j1", Status: job.StatusIgnored, Reason: job.ReasonRoleUnknown}))
	require.NoError(t, store.Close())

	store2, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	defer store2.Close()

	seen, err := store2.Seen(ctx, "j1")
	require.NoError(t, err)
	assert.True(t, seen)
}

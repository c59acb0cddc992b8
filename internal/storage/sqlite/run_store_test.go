package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willibrandon/rdsprobe/internal/db/models"
)

func setupTestRunStore(t *testing.T) *RunStore {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewRunStore(db)
}

func testRun(id string, startedAt time.Time, outcome models.Outcome) models.Run {
	return models.Run{
		ID:         id,
		Operation:  "smoke",
		Target:     "proxy.internal:5432",
		AuthMode:   "iam",
		Proxied:    true,
		TLS:        true,
		Outcome:    outcome,
		StatusCode: 200,
		Body:       "ok: 12 tables visible",
		StartedAt:  startedAt,
		Duration:   85 * time.Millisecond,
	}
}

func TestRunStore_RecordAndList(t *testing.T) {
	store := setupTestRunStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.RecordRun(ctx, testRun("a", base, models.OutcomeSuccess)))
	failed := testRun("b", base.Add(time.Minute), models.OutcomeConnectionError)
	failed.StatusCode = 502
	failed.Body = "connection error: connect to proxy.internal:5432: refused"
	failed.Error = "connect to proxy.internal:5432: refused"
	require.NoError(t, store.RecordRun(ctx, failed))

	runs, err := store.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "b", runs[0].ID)
	assert.Equal(t, models.OutcomeConnectionError, runs[0].Outcome)
	assert.Equal(t, 502, runs[0].StatusCode)
	assert.Equal(t, failed.Error, runs[0].Error)

	got := runs[1]
	assert.Equal(t, "a", got.ID)
	assert.Equal(t, "smoke", got.Operation)
	assert.Equal(t, "proxy.internal:5432", got.Target)
	assert.Equal(t, "iam", got.AuthMode)
	assert.True(t, got.Proxied)
	assert.True(t, got.TLS)
	assert.Equal(t, "ok: 12 tables visible", got.Body)
	assert.True(t, base.Equal(got.StartedAt), "started_at %v", got.StartedAt)
	assert.Equal(t, 85*time.Millisecond, got.Duration)
}

func TestRunStore_RecordTwiceKeepsFirst(t *testing.T) {
	store := setupTestRunStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, store.RecordRun(ctx, testRun("same", now, models.OutcomeSuccess)))
	require.NoError(t, store.RecordRun(ctx, testRun("same", now, models.OutcomeQueryError)))

	runs, err := store.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.OutcomeSuccess, runs[0].Outcome)
}

func TestRunStore_Limit(t *testing.T) {
	store := setupTestRunStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"r1", "r2", "r3", "r4"} {
		require.NoError(t, store.RecordRun(ctx, testRun(id, base.Add(time.Duration(i)*time.Second), models.OutcomeSuccess)))
	}

	runs, err := store.RecentRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r4", runs[0].ID)
	assert.Equal(t, "r3", runs[1].ID)
}

func TestRunStore_Prune(t *testing.T) {
	store := setupTestRunStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.RecordRun(ctx, testRun("old", now.Add(-48*time.Hour), models.OutcomeSuccess)))
	require.NoError(t, store.RecordRun(ctx, testRun("new", now, models.OutcomeSuccess)))

	removed, err := store.Prune(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	runs, err := store.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "new", runs[0].ID)
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "history.db")
	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, path, db.Path())
	assert.FileExists(t, path)
}

package jobs

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/wp-extractor/app/database"
)

func newTestSQLiteStore(t *testing.T) (*SQLiteStore, *time.Time) {
	t.Helper()

	db, err := database.NewConnection(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)

	store := NewSQLiteStore(db)
	t.Cleanup(func() { store.Close() })

	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	return store, &now
}

func TestSQLiteStore_SetGet(t *testing.T) {
	store, _ := newTestSQLiteStore(t)
	ctx := context.Background()

	job := NewJob("job-1", Request{BaseURL: "https://example.com", PostType: "pages", After: "2024-01-01T00:00:00"})
	require.NoError(t, store.Set(ctx, job, time.Hour))

	job.State = StateSuccess
	job.Result = &Result{Status: StatusComplete, TotalPosts: 0, TotalPages: 1}
	require.NoError(t, store.Set(ctx, job, time.Hour))

	got, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, StateSuccess, got.State)
	require.Equal(t, job.Request, got.Request)
	require.NotNil(t, got.Result)
	require.Equal(t, StatusComplete, got.Result.Status)
}

func TestSQLiteStore_NotFound(t *testing.T) {
	store, _ := newTestSQLiteStore(t)

	_, err := store.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_Expiry(t *testing.T) {
	store, now := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, NewJob("short", Request{}), time.Minute))
	require.NoError(t, store.Set(ctx, NewJob("long", Request{}), time.Hour))
	require.NoError(t, store.Set(ctx, NewJob("forever", Request{}), 0))

	*now = now.Add(2 * time.Minute)

	_, err := store.Get(ctx, "short")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = store.Get(ctx, "long")
	require.NoError(t, err)

	purged, err := store.Purge(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), purged)

	require.NoError(t, store.Expire(ctx, "long", time.Second))
	*now = now.Add(2 * time.Second)
	_, err = store.Get(ctx, "long")
	require.ErrorIs(t, err, ErrNotFound)

	*now = now.Add(365 * 24 * time.Hour)
	_, err = store.Get(ctx, "forever")
	require.NoError(t, err)
}

func TestSQLiteStore_Ping(t *testing.T) {
	store, _ := newTestSQLiteStore(t)

	require.NoError(t, store.Ping(context.Background()))
	require.Equal(t, "sqlite", store.Backend())
}

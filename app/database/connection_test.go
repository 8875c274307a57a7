package database

import (
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestNewConnection_AppliesMigrations(t *testing.T) {
	db, err := NewConnection(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'jobs'`).Scan(&count)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	version, dirty, err := RunMigrations(db)
	require.NoError(t, err)
	require.Equal(t, uint(1), version)
	require.False(t, dirty)
}

func TestNewConnection_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := NewConnection(path)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO jobs (id, state, payload, updated_at, expires_at) VALUES ('a', 'PENDING', '{}', 0, 0)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = NewConnection(path)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM jobs`).Scan(&count))
	require.Equal(t, 1, count)
}

func TestNewRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedis("redis://" + mr.Addr() + "/0")
	require.NoError(t, err)
	defer client.Close()

	_, err = NewRedis("not a url")
	require.Error(t, err)
}

func TestNewRedis_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedis("redis://" + addr)
	require.Error(t, err)
}

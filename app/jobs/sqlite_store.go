package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/lysyi3m/wp-extractor/app/database"
)

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore keeps jobs in the jobs table. Expired rows are invisible to
// reads and removed by Purge.
type SQLiteStore struct {
	db  *database.DB
	now func() time.Time
}

func NewSQLiteStore(db *database.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

func (s *SQLiteStore) expiresAt(ttl time.Duration) int64 {
	if ttl <= 0 {
		return math.MaxInt64
	}
	return s.now().Add(ttl).UnixMilli()
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Job, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM jobs WHERE id = ? AND expires_at > ?`,
		id, s.now().UnixMilli(),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}

	var job Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job %s: %w", id, err)
	}
	return &job, nil
}

func (s *SQLiteStore) Set(ctx context.Context, job *Job, ttl time.Duration) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", job.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, state, payload, updated_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			state = excluded.state,
			payload = excluded.payload,
			updated_at = excluded.updated_at,
			expires_at = excluded.expires_at`,
		job.ID, string(job.State), string(data), s.now().UnixMilli(), s.expiresAt(ttl),
	)
	if err != nil {
		return fmt.Errorf("failed to set job %s: %w", job.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Expire(ctx context.Context, id string, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET expires_at = ? WHERE id = ? AND expires_at > ?`,
		s.expiresAt(ttl), id, s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to set expiry of job %s: %w", id, err)
	}
	return nil
}

// Purge deletes expired rows and returns how many were removed.
func (s *SQLiteStore) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE expires_at <= ?`, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired jobs: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Backend() string {
	return "sqlite"
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

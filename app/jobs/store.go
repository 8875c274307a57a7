package jobs

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned for identifiers that were never stored or have expired.
var ErrNotFound = errors.New("job not found")

// Store keeps the latest record of each job under its identifier. A ttl of
// zero or less means the record does not expire.
type Store interface {
	Get(ctx context.Context, id string) (*Job, error)
	Set(ctx context.Context, job *Job, ttl time.Duration) error
	Expire(ctx context.Context, id string, ttl time.Duration) error
	Ping(ctx context.Context) error
	Backend() string
	Close() error
}

package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)

// RedisStore keeps each job as a JSON string under {prefix}:job:{id}.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(id string) string {
	return fmt.Sprintf("%s:job:%s", s.prefix, id)
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Job, error) {
	val, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}

	var job Job
	if err := json.Unmarshal(val, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job %s: %w", id, err)
	}
	return &job, nil
}

func (s *RedisStore) Set(ctx context.Context, job *Job, ttl time.Duration) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", job.ID, err)
	}

	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.key(job.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set job %s: %w", job.ID, err)
	}
	return nil
}

func (s *RedisStore) Expire(ctx context.Context, id string, ttl time.Duration) error {
	var err error
	if ttl <= 0 {
		err = s.client.Persist(ctx, s.key(id)).Err()
	} else {
		err = s.client.Expire(ctx, s.key(id), ttl).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to set expiry of job %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Backend() string {
	return "redis"
}

// Close is a no-op: the client is shared with the queue and closed by its owner.
func (s *RedisStore) Close() error {
	return nil
}

package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lysyi3m/wp-extractor/app/jobs"
)

const (
	ConsumerGroup = "workers"

	payloadField    = "payload"
	enqueuedAtField = "enqueued_at"

	defaultBlockTimeout = 5 * time.Second
	maxPendingCheck     = 100
)

var _ Queue = (*RedisQueue)(nil)

// RedisQueue is a Redis Streams queue with one consumer group shared by all
// workers. Entries stay pending until acknowledged and are claimed by
// another consumer once they have been idle for the visibility timeout.
type RedisQueue struct {
	client            *redis.Client
	stream            string
	consumer          string
	visibilityTimeout time.Duration
	blockTimeout      time.Duration
}

type RedisQueueConfig struct {
	Prefix            string
	Consumer          string
	VisibilityTimeout time.Duration
	BlockTimeout      time.Duration // 0 = default
}

func NewRedisQueue(client *redis.Client, cfg RedisQueueConfig) (*RedisQueue, error) {
	if cfg.Consumer == "" {
		return nil, errors.New("consumer name is required")
	}
	if cfg.VisibilityTimeout <= 0 {
		return nil, errors.New("visibility timeout must be positive")
	}

	blockTimeout := cfg.BlockTimeout
	if blockTimeout <= 0 {
		blockTimeout = defaultBlockTimeout
	}

	return &RedisQueue{
		client:            client,
		stream:            cfg.Prefix + ":extraction",
		consumer:          cfg.Consumer,
		visibilityTimeout: cfg.VisibilityTimeout,
		blockTimeout:      blockTimeout,
	}, nil
}

// Initialize creates the stream and the consumer group if they do not exist.
func (q *RedisQueue) Initialize(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.stream, ConsumerGroup, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

func (q *RedisQueue) Stream() string {
	return q.stream
}

func (q *RedisQueue) Enqueue(ctx context.Context, msg jobs.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]any{
			payloadField:    string(payload),
			enqueuedAtField: time.Now().UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", msg.JobID, err)
	}
	return nil
}

// Receive returns a reclaimed entry if one has timed out, otherwise the next
// new entry of the stream.
func (q *RedisQueue) Receive(ctx context.Context) (*Delivery, error) {
	d, err := q.reclaim(ctx)
	if err != nil || d != nil {
		return d, err
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: q.consumer,
		Streams:  []string{q.stream, ">"},
		Count:    1,
		Block:    q.blockTimeout,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to read from stream %s: %w", q.stream, err)
	}

	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}
	return q.parse(ctx, streams[0].Messages[0], 1)
}

func (q *RedisQueue) reclaim(ctx context.Context) (*Delivery, error) {
	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: q.stream,
		Group:  ConsumerGroup,
		Start:  "-",
		End:    "+",
		Count:  maxPendingCheck,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list pending entries: %w", err)
	}

	for _, entry := range pending {
		if entry.Idle < q.visibilityTimeout {
			continue
		}

		claimed, err := q.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   q.stream,
			Group:    ConsumerGroup,
			Consumer: q.consumer,
			MinIdle:  q.visibilityTimeout,
			Messages: []string{entry.ID},
		}).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to claim entry %s: %w", entry.ID, err)
		}
		// another consumer claimed it first
		if len(claimed) == 0 {
			continue
		}

		slog.Warn("Reclaimed unacknowledged job", "message_id", entry.ID, "previous_consumer", entry.Consumer, "idle", entry.Idle.String(), "deliveries", entry.RetryCount+1)

		return q.parse(ctx, claimed[0], entry.RetryCount+1)
	}

	return nil, nil
}

// parse decodes an entry. Malformed entries are acknowledged and dropped.
func (q *RedisQueue) parse(ctx context.Context, msg redis.XMessage, deliveries int64) (*Delivery, error) {
	d := &Delivery{ID: msg.ID, Deliveries: deliveries, ReceivedAt: time.Now()}

	payload, ok := msg.Values[payloadField].(string)
	if !ok {
		slog.Error("Dropping stream entry without payload", "message_id", msg.ID)
		return nil, q.Ack(ctx, d)
	}
	if err := json.Unmarshal([]byte(payload), &d.Message); err != nil || d.Message.JobID == "" {
		slog.Error("Dropping malformed stream entry", "message_id", msg.ID, "error", err)
		return nil, q.Ack(ctx, d)
	}

	return d, nil
}

// Ack acknowledges the entry and deletes it from the stream. Acking an entry
// that is already gone is a no-op.
func (q *RedisQueue) Ack(ctx context.Context, d *Delivery) error {
	if err := q.client.XAck(ctx, q.stream, ConsumerGroup, d.ID).Err(); err != nil {
		return fmt.Errorf("failed to acknowledge %s: %w", d.ID, err)
	}
	if err := q.client.XDel(ctx, q.stream, d.ID).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", d.ID, err)
	}
	return nil
}

// Depth returns the stream length and the number of unacknowledged entries.
func (q *RedisQueue) Depth(ctx context.Context) (int64, int64, error) {
	length, err := q.client.XLen(ctx, q.stream).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get stream length: %w", err)
	}

	pending, err := q.client.XPending(ctx, q.stream, ConsumerGroup).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return length, 0, nil
		}
		return length, 0, fmt.Errorf("failed to get pending count: %w", err)
	}
	return length, pending.Count, nil
}

package tasks

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/wp-extractor/app/jobs"
)

func newTestRedisQueues(t *testing.T, consumers ...string) (*redis.Client, []*RedisQueue) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	queues := make([]*RedisQueue, 0, len(consumers))
	for _, consumer := range consumers {
		q, err := NewRedisQueue(client, RedisQueueConfig{
			Prefix:            "test",
			Consumer:          consumer,
			VisibilityTimeout: 100 * time.Millisecond,
			BlockTimeout:      20 * time.Millisecond,
		})
		require.NoError(t, err)
		require.NoError(t, q.Initialize(context.Background()))
		queues = append(queues, q)
	}
	return client, queues
}

func testRequest() jobs.Request {
	return jobs.Request{BaseURL: "https://example.com", PostType: "posts"}
}

func TestRedisQueue_EnqueueReceiveAck(t *testing.T) {
	_, queues := newTestRedisQueues(t, "worker-a")
	q := queues[0]
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, jobs.Message{JobID: "job-1", Request: testRequest()}))

	d, err := q.Receive(ctx)
	require.NoError(t, err)
	require.NotNil(t, d)
	require.Equal(t, "job-1", d.JobID())
	require.Equal(t, testRequest(), d.Message.Request)
	require.Equal(t, int64(1), d.Deliveries)

	length, pending, err := q.Depth(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), length)
	require.Equal(t, int64(1), pending)

	require.NoError(t, q.Ack(ctx, d))

	length, pending, err = q.Depth(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), length)
	require.Equal(t, int64(0), pending)
}

func TestRedisQueue_AckKeepsStreamBounded(t *testing.T) {
	_, queues := newTestRedisQueues(t, "worker-a")
	q := queues[0]
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		require.NoError(t, q.Enqueue(ctx, jobs.Message{JobID: fmt.Sprintf("job-%d", i), Request: testRequest()}))

		d, err := q.Receive(ctx)
		require.NoError(t, err)
		require.NotNil(t, d)
		require.NoError(t, q.Ack(ctx, d))
	}

	length, pending, err := q.Depth(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), length)
	require.Equal(t, int64(0), pending)

	// a late ack of a deleted entry
	require.NoError(t, q.Ack(ctx, &Delivery{ID: "0-1"}))
}

func TestRedisQueue_ReceiveEmpty(t *testing.T) {
	_, queues := newTestRedisQueues(t, "worker-a")

	d, err := queues[0].Receive(context.Background())
	require.NoError(t, err)
	require.Nil(t, d)
}

func TestRedisQueue_InitializeTwice(t *testing.T) {
	_, queues := newTestRedisQueues(t, "worker-a")

	require.NoError(t, queues[0].Initialize(context.Background()))
}

func TestRedisQueue_RedeliversAfterVisibilityTimeout(t *testing.T) {
	_, queues := newTestRedisQueues(t, "worker-a", "worker-b")
	a, b := queues[0], queues[1]
	ctx := context.Background()

	require.NoError(t, a.Enqueue(ctx, jobs.Message{JobID: "job-1", Request: testRequest()}))

	first, err := a.Receive(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)

	// still within the visibility timeout
	d, err := b.Receive(ctx)
	require.NoError(t, err)
	require.Nil(t, d)

	time.Sleep(150 * time.Millisecond)

	second, err := b.Receive(ctx)
	require.NoError(t, err)
	require.NotNil(t, second)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "job-1", second.JobID())
	require.Equal(t, int64(2), second.Deliveries)

	require.NoError(t, b.Ack(ctx, second))
	require.NoError(t, a.Ack(ctx, first))

	time.Sleep(150 * time.Millisecond)

	d, err = a.Receive(ctx)
	require.NoError(t, err)
	require.Nil(t, d)
}

func TestRedisQueue_DropsMalformedEntries(t *testing.T) {
	client, queues := newTestRedisQueues(t, "worker-a")
	q := queues[0]
	ctx := context.Background()

	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.Stream(),
		Values: map[string]any{payloadField: "{not json"},
	}).Err())

	d, err := q.Receive(ctx)
	require.NoError(t, err)
	require.Nil(t, d)

	_, pending, err := q.Depth(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), pending)
}

func TestNewRedisQueue_Validation(t *testing.T) {
	_, err := NewRedisQueue(nil, RedisQueueConfig{VisibilityTimeout: time.Second})
	require.Error(t, err)

	_, err = NewRedisQueue(nil, RedisQueueConfig{Consumer: "a"})
	require.Error(t, err)
}

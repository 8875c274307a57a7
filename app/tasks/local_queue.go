package tasks

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/lysyi3m/wp-extractor/app/jobs"
)

const DefaultLocalCapacity = 300

var _ Queue = (*LocalQueue)(nil)

// LocalQueue is an in-process queue. Messages are lost with the process;
// use it only with a process that runs both the gateway and the workers.
type LocalQueue struct {
	items chan *Delivery
	seq   atomic.Int64
	poll  time.Duration
}

func NewLocalQueue(capacity int) *LocalQueue {
	if capacity <= 0 {
		capacity = DefaultLocalCapacity
	}
	return &LocalQueue{
		items: make(chan *Delivery, capacity),
		poll:  time.Second,
	}
}

func (q *LocalQueue) Enqueue(ctx context.Context, msg jobs.Message) error {
	d := &Delivery{
		ID:      strconv.FormatInt(q.seq.Add(1), 10),
		Message: msg,
	}

	select {
	case q.items <- d:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (q *LocalQueue) Receive(ctx context.Context) (*Delivery, error) {
	timer := time.NewTimer(q.poll)
	defer timer.Stop()

	select {
	case d := <-q.items:
		d.Deliveries = 1
		d.ReceivedAt = time.Now()
		return d, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *LocalQueue) Ack(ctx context.Context, d *Delivery) error {
	return nil
}

func (q *LocalQueue) Len() int {
	return len(q.items)
}

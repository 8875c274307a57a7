package tasks

import (
	"context"

	"github.com/lysyi3m/wp-extractor/app/jobs"
)

// Queue hands job messages from the gateway to the workers.
//
// Receive blocks until a delivery is available, the queue's poll interval
// passes (nil, nil) or ctx is done. A delivery stays owned by the receiving
// worker until it is acknowledged.
type Queue interface {
	Enqueue(ctx context.Context, msg jobs.Message) error
	Receive(ctx context.Context) (*Delivery, error)
	Ack(ctx context.Context, d *Delivery) error
}

// Purger deletes expired job records. Stores with native expiry do not need it.
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

var _ Purger = (*jobs.SQLiteStore)(nil)

type PoolInterface interface {
	Start()
	Stop(ctx context.Context) error
}

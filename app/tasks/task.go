package tasks

import (
	"time"

	"github.com/lysyi3m/wp-extractor/app/jobs"
)

// Delivery is one hand-over of a message to a worker.
type Delivery struct {
	ID         string
	Message    jobs.Message
	Deliveries int64
	ReceivedAt time.Time
}

func (d *Delivery) JobID() string {
	return d.Message.JobID
}

package api

import (
	"context"
	"time"

	"github.com/lysyi3m/wp-extractor/app/extract"
	"github.com/lysyi3m/wp-extractor/app/jobs"
	"github.com/lysyi3m/wp-extractor/app/metrics"
	"github.com/lysyi3m/wp-extractor/app/sites"
	"github.com/lysyi3m/wp-extractor/app/tasks"
)

// Enqueuer is the producing side of the job queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg jobs.Message) error
}

var _ Enqueuer = (tasks.Queue)(nil)

type Handler struct {
	store      jobs.Store
	queue      Enqueuer
	extractor  jobs.Extractor
	sites      *sites.Registry
	metrics    *metrics.Metrics
	baseURL    string
	storeInfo  string
	pendingTTL time.Duration
	perPage    int
	newID      func() string
}

// ExtractRequest is the body of POST /extract and POST /extract/async.
type ExtractRequest struct {
	BaseURL   *string `json:"baseUrl"`
	PostType  *string `json:"postType"`
	AfterDate *string `json:"afterDate"`
	Site      *string `json:"site"`
}

func (r ExtractRequest) empty() bool {
	return r.BaseURL == nil && r.PostType == nil && r.AfterDate == nil && r.Site == nil
}

type ExtractResponse struct {
	Success bool           `json:"success"`
	Data    []extract.Post `json:"data"`
	Error   *string        `json:"error"`
}

type SubmitResponse struct {
	Success  bool   `json:"success"`
	TaskID   string `json:"task_id,omitempty"`
	Status   string `json:"status,omitempty"`
	Message  string `json:"message,omitempty"`
	CheckURL string `json:"check_url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// StateUnknown is reported for identifiers the store does not know.
const StateUnknown = "UNKNOWN"

type StatusResponse struct {
	Success  bool           `json:"success"`
	TaskID   string         `json:"task_id"`
	State    string         `json:"state"`
	Progress *jobs.Progress `json:"progress"`
	Result   *jobs.Result   `json:"result"`
	Error    *string        `json:"error"`
}

package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lysyi3m/wp-extractor/app/extract"
)

type State string

const (
	StatePending  State = "PENDING"
	StateProgress State = "PROGRESS"
	StateSuccess  State = "SUCCESS"
	StateFailure  State = "FAILURE"
)

// Terminal reports whether no further transitions can follow.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailure
}

const (
	StatusStarting = "Starting extraction..."
	StatusFailed   = "Task failed"
	StatusComplete = "completed"
)

// PageCount is a page total that encodes as "unknown" until it is learned.
type PageCount int

func (p PageCount) MarshalJSON() ([]byte, error) {
	if p <= 0 {
		return []byte(`"unknown"`), nil
	}
	return json.Marshal(int(p))
}

func (p *PageCount) UnmarshalJSON(data []byte) error {
	if string(data) == `"unknown"` || string(data) == "null" {
		*p = 0
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid page count %s: %w", data, err)
	}
	*p = PageCount(n)
	return nil
}

type Progress struct {
	CurrentPage    int       `json:"current_page"`
	TotalPages     PageCount `json:"total_pages"`
	ProcessedPosts int       `json:"processed_posts"`
	Status         string    `json:"status"`
}

type Result struct {
	Status     string         `json:"status"`
	TotalPosts int            `json:"total_posts"`
	TotalPages int            `json:"total_pages"`
	Data       []extract.Post `json:"data"`
}

type Request struct {
	BaseURL  string `json:"base_url"`
	PostType string `json:"post_type"`
	After    string `json:"after,omitempty"`
	PerPage  int    `json:"per_page,omitempty"`
}

func (r Request) Params() extract.Params {
	return extract.Params{
		BaseURL:  r.BaseURL,
		PostType: r.PostType,
		After:    r.After,
		PerPage:  r.PerPage,
	}
}

type Job struct {
	ID          string     `json:"id"`
	State       State      `json:"state"`
	Request     Request    `json:"request"`
	Progress    Progress   `json:"progress"`
	Result      *Result    `json:"result"`
	Error       string     `json:"error,omitempty"`
	Attempts    int        `json:"attempts"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewJob returns a PENDING job for the request.
func NewJob(id string, req Request) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:        id,
		State:     StatePending,
		Request:   req,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Message is the queue payload that hands a job to a worker.
type Message struct {
	JobID   string  `json:"job_id"`
	Request Request `json:"request"`
}

package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/wp-extractor/app/extract"
)

// ErrRevoked is returned by writes of an attempt that has been abandoned.
var ErrRevoked = errors.New("attempt revoked")

type Extractor interface {
	Run(ctx context.Context, params extract.Params, reporter extract.Reporter) (*extract.Outcome, error)
}

var _ Extractor = (*extract.Extractor)(nil)

// Attempt guards the store writes of one delivery of a job. Once revoked, the
// attempt may not write again, so an abandoned run cannot overwrite the
// record written on its behalf.
type Attempt struct {
	mu      sync.Mutex
	revoked bool
}

func NewAttempt() *Attempt {
	return &Attempt{}
}

func (a *Attempt) write(fn func() error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.revoked {
		return ErrRevoked
	}
	return fn()
}

// Revoke blocks further writes and runs fn as the attempt's last write.
func (a *Attempt) Revoke(fn func() error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.revoked {
		return ErrRevoked
	}
	a.revoked = true
	return fn()
}

type Runner struct {
	store      Store
	extractor  Extractor
	resultTTL  time.Duration
	pendingTTL time.Duration
}

func NewRunner(store Store, extractor Extractor, resultTTL, pendingTTL time.Duration) *Runner {
	return &Runner{
		store:      store,
		extractor:  extractor,
		resultTTL:  resultTTL,
		pendingTTL: pendingTTL,
	}
}

// Run executes one delivery of a job and records every transition in the
// store. The extraction error, if any, is recorded as FAILURE and returned.
func (r *Runner) Run(ctx context.Context, msg Message, attempt *Attempt) error {
	if attempt == nil {
		attempt = NewAttempt()
	}

	job, err := r.load(ctx, msg)
	if err != nil {
		return err
	}
	if job.State.Terminal() {
		slog.Info("Job already finished, skipping redelivery", "job_id", job.ID, "state", job.State)
		return nil
	}

	job.Attempts++
	job.State = StateProgress
	job.Error = ""
	job.Progress = Progress{Status: StatusStarting}
	if err := r.save(ctx, attempt, job, r.pendingTTL); err != nil {
		return err
	}

	slog.Info("Extraction started", "job_id", job.ID, "base_url", job.Request.BaseURL, "post_type", job.Request.PostType, "attempt", job.Attempts)

	reporter := extract.ReporterFunc(func(ctx context.Context, p extract.Progress) error {
		job.Progress = Progress{
			CurrentPage:    p.CurrentPage,
			TotalPages:     PageCount(p.TotalPages),
			ProcessedPosts: p.ProcessedPosts,
			Status:         p.Status,
		}
		return r.save(ctx, attempt, job, r.pendingTTL)
	})

	outcome, err := r.extractor.Run(ctx, job.Request.Params(), reporter)
	if err != nil {
		if errors.Is(err, ErrRevoked) {
			return err
		}
		r.fail(context.WithoutCancel(ctx), attempt, job, describe(ctx, err))
		return err
	}

	now := time.Now().UTC()
	job.State = StateSuccess
	job.CompletedAt = &now
	job.Progress = Progress{
		CurrentPage:    job.Progress.CurrentPage,
		TotalPages:     PageCount(outcome.TotalPages),
		ProcessedPosts: len(outcome.Posts),
		Status:         StatusComplete,
	}
	job.Result = &Result{
		Status:     StatusComplete,
		TotalPosts: len(outcome.Posts),
		TotalPages: outcome.TotalPages,
		Data:       outcome.Posts,
	}
	if err := r.save(context.WithoutCancel(ctx), attempt, job, r.resultTTL); err != nil {
		return err
	}

	slog.Info("Extraction completed", "job_id", job.ID, "posts", len(outcome.Posts), "total_pages", outcome.TotalPages)

	return nil
}

// Abandon revokes the attempt and records FAILURE for its job.
func (r *Runner) Abandon(ctx context.Context, msg Message, attempt *Attempt, reason error) error {
	return attempt.Revoke(func() error {
		job, err := r.load(ctx, msg)
		if err != nil {
			return err
		}
		if job.State.Terminal() {
			return nil
		}
		return r.store.Set(ctx, failed(job, reason.Error()), r.resultTTL)
	})
}

func (r *Runner) load(ctx context.Context, msg Message) (*Job, error) {
	job, err := r.store.Get(ctx, msg.JobID)
	if errors.Is(err, ErrNotFound) {
		return NewJob(msg.JobID, msg.Request), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	return job, nil
}

func (r *Runner) save(ctx context.Context, attempt *Attempt, job *Job, ttl time.Duration) error {
	return attempt.write(func() error {
		job.UpdatedAt = time.Now().UTC()
		return r.store.Set(ctx, job, ttl)
	})
}

func (r *Runner) fail(ctx context.Context, attempt *Attempt, job *Job, message string) {
	err := attempt.write(func() error {
		return r.store.Set(ctx, failed(job, message), r.resultTTL)
	})
	if err != nil {
		slog.Error("Failed to record job failure", "job_id", job.ID, "error", err)
		return
	}
	slog.Warn("Extraction failed", "job_id", job.ID, "error", message)
}

func failed(job *Job, message string) *Job {
	now := time.Now().UTC()
	job.State = StateFailure
	job.Error = message
	job.Result = nil
	job.Progress.Status = StatusFailed
	job.UpdatedAt = now
	job.CompletedAt = &now
	return job
}

// describe prefixes err with the cause of a cancelled context when the
// cause is more specific than the context error itself.
func describe(ctx context.Context, err error) string {
	cause := context.Cause(ctx)
	if cause == nil || errors.Is(err, cause) {
		return err.Error()
	}
	return fmt.Sprintf("%v: %v", cause, err)
}

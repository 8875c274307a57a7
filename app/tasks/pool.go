package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/wp-extractor/app/jobs"
	"github.com/lysyi3m/wp-extractor/app/metrics"
)

var (
	ErrSoftTimeLimit = errors.New("soft time limit exceeded")
	ErrHardTimeLimit = errors.New("hard time limit exceeded")
	ErrMaxDeliveries = errors.New("job was delivered too many times")
	ErrShutdown      = errors.New("worker shutting down")
)

const DefaultMaxJobsPerWorker = 50

const (
	ackTimeout    = 10 * time.Second
	retryInterval = time.Second
)

type JobRunner interface {
	Run(ctx context.Context, msg jobs.Message, attempt *jobs.Attempt) error
	Abandon(ctx context.Context, msg jobs.Message, attempt *jobs.Attempt, reason error) error
}

var _ JobRunner = (*jobs.Runner)(nil)

// RunnerFactory builds the runner of a new worker, including its HTTP client.
type RunnerFactory func() JobRunner

type PoolConfig struct {
	Workers          int
	MaxJobsPerWorker int
	SoftTimeLimit    time.Duration
	HardTimeLimit    time.Duration
	MaxDeliveries    int64
	PurgeInterval    time.Duration
}

var _ PoolInterface = (*Pool)(nil)

// Pool runs a fixed number of worker slots. Each worker runs one job at a
// time and is replaced after MaxJobsPerWorker jobs or when it is abandoned
// at the hard time limit.
type Pool struct {
	queue     Queue
	newRunner RunnerFactory
	purger    Purger
	metrics   *metrics.Metrics
	config    PoolConfig

	// ctx stops receiving; jobCtx interrupts running jobs.
	ctx       context.Context
	cancel    context.CancelFunc
	jobCtx    context.Context
	jobCancel context.CancelCauseFunc
	wg        sync.WaitGroup
}

func NewPool(queue Queue, newRunner RunnerFactory, purger Purger, m *metrics.Metrics, config PoolConfig) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	jobCtx, jobCancel := context.WithCancelCause(context.Background())

	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.MaxJobsPerWorker < 1 {
		config.MaxJobsPerWorker = DefaultMaxJobsPerWorker
	}
	if config.PurgeInterval <= 0 {
		config.PurgeInterval = time.Minute
	}

	return &Pool{
		queue:     queue,
		newRunner: newRunner,
		purger:    purger,
		metrics:   m,
		config:    config,
		ctx:       ctx,
		cancel:    cancel,
		jobCtx:    jobCtx,
		jobCancel: jobCancel,
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.config.Workers; i++ {
		p.wg.Add(1)
		go p.slot(i)
	}

	if p.purger != nil {
		p.wg.Add(1)
		go p.purgeLoop()
	}

	slog.Info("Worker pool started", "workers", p.config.Workers, "max_jobs_per_worker", p.config.MaxJobsPerWorker,
		"soft_time_limit", p.config.SoftTimeLimit.String(), "hard_time_limit", p.config.HardTimeLimit.String())
}

// Stop stops taking new jobs and waits for running ones. Jobs still running
// when ctx is done are interrupted and recorded as failed.
func (p *Pool) Stop(ctx context.Context) error {
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.jobCancel(ErrShutdown)
		return nil
	case <-ctx.Done():
		p.jobCancel(ErrShutdown)
		<-done
		return fmt.Errorf("running jobs interrupted: %w", ctx.Err())
	}
}

func (p *Pool) slot(id int) {
	defer p.wg.Done()

	for generation := 1; p.ctx.Err() == nil; generation++ {
		reason := p.worker(id, generation)
		if reason == "" {
			return
		}
		if p.metrics != nil {
			p.metrics.WorkersRecycled.WithLabelValues(reason).Inc()
		}
		slog.Debug("Worker replaced", "worker_id", id, "generation", generation, "reason", reason)
	}
}

// worker returns the reason it should be replaced, or "" on shutdown.
func (p *Pool) worker(id, generation int) string {
	runner := p.newRunner()

	for processed := 0; processed < p.config.MaxJobsPerWorker; {
		d, err := p.queue.Receive(p.ctx)
		if err != nil {
			if p.ctx.Err() != nil {
				return ""
			}
			slog.Error("Failed to receive job", "worker_id", id, "error", err)
			select {
			case <-time.After(retryInterval):
			case <-p.ctx.Done():
				return ""
			}
			continue
		}
		if d == nil {
			if p.ctx.Err() != nil {
				return ""
			}
			continue
		}

		processed++
		if !p.execute(id, runner, d) {
			return "hard_limit"
		}
	}

	return "max_jobs"
}

// execute runs one delivery and acknowledges it. It returns false when the
// run was abandoned and its goroutine may still be alive.
func (p *Pool) execute(workerID int, runner JobRunner, d *Delivery) bool {
	attempt := jobs.NewAttempt()
	log := slog.With("worker_id", workerID, "job_id", d.JobID(), "message_id", d.ID)

	if d.Deliveries > p.config.MaxDeliveries {
		log.Error("Job exceeded maximum deliveries", "deliveries", d.Deliveries, "max_deliveries", p.config.MaxDeliveries)
		reason := fmt.Errorf("%w (%d)", ErrMaxDeliveries, d.Deliveries)
		p.abandon(runner, d, attempt, reason, log)
		p.record(metrics.OutcomeDeadLetter, 0)
		return true
	}

	runCtx, cancel := context.WithTimeoutCause(p.jobCtx, p.config.SoftTimeLimit, ErrSoftTimeLimit)
	defer cancel()

	if p.metrics != nil {
		p.metrics.JobsRunning.Inc()
		defer p.metrics.JobsRunning.Dec()
	}

	started := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- runner.Run(runCtx, d.Message, attempt)
	}()

	timer := time.NewTimer(p.config.HardTimeLimit)
	defer timer.Stop()

	select {
	case err := <-done:
		elapsed := time.Since(started)
		if err != nil {
			log.Error("Worker task execution failed", "duration", elapsed.String(), "deliveries", d.Deliveries, "error", err)
			p.record(metrics.OutcomeFailure, elapsed)
		} else {
			log.Debug("Worker task completed", "duration", elapsed.String())
			p.record(metrics.OutcomeSuccess, elapsed)
		}
		p.ack(d, log)
		return true

	case <-timer.C:
		cancel()
		log.Error("Job exceeded hard time limit, abandoning worker", "limit", p.config.HardTimeLimit.String())
		p.abandon(runner, d, attempt, ErrHardTimeLimit, log)
		p.record(metrics.OutcomeHardLimit, time.Since(started))
		return false
	}
}

func (p *Pool) abandon(runner JobRunner, d *Delivery, attempt *jobs.Attempt, reason error, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), ackTimeout)
	defer cancel()

	if err := runner.Abandon(ctx, d.Message, attempt, reason); err != nil {
		log.Error("Failed to record abandoned job", "error", err)
	}
	p.ack(d, log)
}

func (p *Pool) ack(d *Delivery, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), ackTimeout)
	defer cancel()

	if err := p.queue.Ack(ctx, d); err != nil {
		log.Error("Failed to acknowledge job", "error", err)
	}
}

func (p *Pool) record(outcome string, elapsed time.Duration) {
	if p.metrics == nil {
		return
	}
	p.metrics.JobsFinished.WithLabelValues(outcome).Inc()
	if elapsed > 0 {
		p.metrics.JobDuration.Observe(elapsed.Seconds())
	}
}

func (p *Pool) purgeLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.PurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			purged, err := p.purger.Purge(p.ctx)
			if err != nil {
				slog.Warn("Failed to purge expired jobs", "error", err)
				continue
			}
			if purged > 0 {
				slog.Debug("Purged expired jobs", "count", purged)
				if p.metrics != nil {
					p.metrics.JobsPurged.Add(float64(purged))
				}
			}
		}
	}
}

package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
)

const (
	defaultConcurrency  = 2
	defaultPollInterval = time.Second
)

// Executor runs one job to a terminal status. Satisfied by the pipeline
// engine; narrowed here so the pool can be tested without one.
type Executor interface {
	Execute(ctx context.Context, job *models.Job) error
}

// Dispatcher is a fixed pool of workers that poll the job store for pending
// jobs and run each through the executor. In-flight jobs are tracked by ID so
// a cancel request can reach the right job context. Job contexts derive from
// the background context, not the pool context: stopping the pool drains
// running jobs instead of killing them.
type Dispatcher struct {
	jobs     interfaces.JobStorage
	executor Executor
	logger   arbor.ILogger

	concurrency  int
	pollInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	active  map[string]context.CancelFunc
	started bool
}

// NewDispatcher creates a stopped dispatcher. Zero or negative config values
// fall back to two workers polling every second.
func NewDispatcher(jobs interfaces.JobStorage, executor Executor, logger arbor.ILogger, config *common.DispatchConfig) *Dispatcher {
	concurrency := defaultConcurrency
	pollInterval := defaultPollInterval
	if config != nil {
		if config.Concurrency > 0 {
			concurrency = config.Concurrency
		}
		if d, err := time.ParseDuration(config.PollInterval); err == nil && d > 0 {
			pollInterval = d
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		jobs:         jobs,
		executor:     executor,
		logger:       logger,
		concurrency:  concurrency,
		pollInterval: pollInterval,
		ctx:          ctx,
		cancel:       cancel,
		active:       make(map[string]context.CancelFunc),
	}
}

// Start recovers orphaned jobs and launches the worker pool.
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher already started")
	}
	d.started = true
	d.mu.Unlock()

	if err := d.recoverOrphans(); err != nil {
		return fmt.Errorf("orphan recovery: %w", err)
	}

	d.logger.Info().
		Int("workers", d.concurrency).
		Str("poll_interval", d.pollInterval.String()).
		Msg("Starting job dispatcher")

	for i := 0; i < d.concurrency; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	return nil
}

// Stop stops polling and waits for in-flight jobs to settle. When the context
// expires first, remaining job contexts are cancelled so the engine can wind
// down at its next stage boundary, and the context error is returned.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.logger.Info().Msg("Stopping job dispatcher")
	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info().Msg("Job dispatcher stopped")
		return nil
	case <-ctx.Done():
		d.cancelAll()
		d.logger.Warn().Msg("Job dispatcher stop timed out, in-flight jobs cancelled")
		return ctx.Err()
	}
}

// Cancel cancels the context of an in-flight job. The engine records the
// cancellation and moves the job to failed. Returns false when the job is not
// currently executing.
func (d *Dispatcher) Cancel(jobID string) bool {
	d.mu.Lock()
	cancel, ok := d.active[jobID]
	d.mu.Unlock()
	if !ok {
		return false
	}

	d.logger.Info().Str("job_id", jobID).Msg("Cancelling in-flight job")
	cancel()
	return true
}

// ActiveCount returns the number of jobs currently executing.
func (d *Dispatcher) ActiveCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.active)
}

// recoverOrphans resets jobs stuck in running back to pending. A crash while
// executing leaves running rows nobody owns; on restart they re-enter the
// queue and get a fresh attempt.
func (d *Dispatcher) recoverOrphans() error {
	orphans, err := d.jobs.GetJobsByStatus(d.ctx, models.JobStatusRunning)
	if err != nil {
		return err
	}
	if len(orphans) == 0 {
		return nil
	}

	for _, job := range orphans {
		job.Status = models.JobStatusPending
		job.CurrentStage = ""
		job.Progress = 0
		if err := d.jobs.UpdateJob(d.ctx, job); err != nil {
			d.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to requeue orphaned job")
			continue
		}
		d.logger.Warn().Str("job_id", job.ID).Msg("Requeued orphaned running job")
	}
	return nil
}

func (d *Dispatcher) worker(workerID int) {
	defer d.wg.Done()

	d.logger.Debug().Int("worker_id", workerID).Msg("Worker started")

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			d.logger.Debug().Int("worker_id", workerID).Msg("Worker stopping")
			return
		case <-ticker.C:
			d.runNext(workerID)
		}
	}
}

// runNext claims the oldest pending job and executes it. Claims are
// serialized so two workers never pick up the same job.
func (d *Dispatcher) runNext(workerID int) {
	job, jobCtx, release := d.claim()
	if job == nil {
		return
	}
	defer release()

	d.logger.Info().
		Int("worker_id", workerID).
		Str("job_id", job.ID).
		Str("keyword", job.Keyword).
		Msg("Processing job")

	if err := d.executor.Execute(jobCtx, job); err != nil {
		d.logger.Warn().
			Int("worker_id", workerID).
			Str("job_id", job.ID).
			Err(err).
			Msg("Job failed")
		return
	}

	d.logger.Info().
		Int("worker_id", workerID).
		Str("job_id", job.ID).
		Msg("Job completed")
}

// claim picks the oldest pending job, marks it running, and registers its
// cancel func. Returns nil when nothing is pending. The release func must be
// called once execution settles.
func (d *Dispatcher) claim() (*models.Job, context.Context, func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	pending, err := d.jobs.GetJobsByStatus(d.ctx, models.JobStatusPending)
	if err != nil {
		d.logger.Warn().Err(err).Msg("Failed to poll for pending jobs")
		return nil, nil, nil
	}

	var job *models.Job
	for _, candidate := range pending {
		if job == nil || candidate.CreatedAt.Before(job.CreatedAt) {
			job = candidate
		}
	}
	if job == nil {
		return nil, nil, nil
	}

	// Mark running before releasing the claim lock. The engine sets its own
	// started timestamp; this keeps other workers off the job meanwhile.
	job.Status = models.JobStatusRunning
	if err := d.jobs.UpdateJob(d.ctx, job); err != nil {
		d.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to claim job")
		return nil, nil, nil
	}

	jobCtx, cancel := context.WithCancel(context.Background())
	d.active[job.ID] = cancel

	release := func() {
		d.mu.Lock()
		delete(d.active, job.ID)
		d.mu.Unlock()
		cancel()
	}
	return job, jobCtx, release
}

func (d *Dispatcher) cancelAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for jobID, cancel := range d.active {
		d.logger.Warn().Str("job_id", jobID).Msg("Cancelling job for shutdown")
		cancel()
	}
}

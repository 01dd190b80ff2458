package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/DukeRupert/cardapiofacil/internal/metrics"
)

// Errors returned by Enqueue.
var (
	ErrQueueFull = errors.New("worker: queue full")
	ErrStopped   = errors.New("worker: stopped")
)

// Job is a unit of background work held in memory.
type Job struct {
	Type        string
	Payload     any
	MaxAttempts int
	Attempts    int
}

// Worker runs in-process background jobs with a fixed number of goroutines
// fed from a bounded queue.
type Worker struct {
	handlers map[string]JobHandler
	config   Config
	logger   *slog.Logger
	queue    chan *Job

	// Synchronization
	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
	stopCh  chan struct{}
}

// New creates a new Worker with the given configuration.
// The worker must be started with Start() and stopped with Stop().
func New(config Config, logger *slog.Logger) (*Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Worker{
		handlers: make(map[string]JobHandler),
		config:   config,
		logger:   logger,
		queue:    make(chan *Job, config.QueueSize),
		stopCh:   make(chan struct{}),
	}, nil
}

// Register adds a job handler to the worker.
// The handler's Type() must be unique. Call this before Start().
func (w *Worker) Register(handler JobHandler) {
	jobType := handler.Type()
	if _, exists := w.handlers[jobType]; exists {
		w.logger.Warn("Overwriting existing handler", "job_type", jobType)
	}
	w.handlers[jobType] = handler
	w.logger.Debug("Registered job handler", "job_type", jobType)
}

// Start launches the worker goroutines. Jobs run with a context derived from
// ctx that is not cancelled with it, so queued work can still drain during
// shutdown; only the per-job timeout applies.
func (w *Worker) Start(ctx context.Context) {
	base := context.WithoutCancel(ctx)
	for i := 0; i < w.config.Concurrency; i++ {
		w.wg.Add(1)
		go w.runWorker(base, i+1)
	}

	w.logger.Info("Worker started", "concurrency", w.config.Concurrency, "queue_size", w.config.QueueSize)
}

// Stop refuses new jobs, lets the workers drain the queue, and waits for them
// up to ShutdownTimeout.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	close(w.stopCh)
	w.mu.Unlock()

	w.logger.Info("Stopping worker...")

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("Worker stopped gracefully")
	case <-time.After(w.config.ShutdownTimeout):
		w.logger.Warn("Worker shutdown timeout exceeded, some jobs may be lost",
			"queued", len(w.queue))
	}
}

// Enqueue adds a job without blocking. It fails with ErrQueueFull when every
// slot is taken and with ErrStopped after Stop.
func (w *Worker) Enqueue(jobType string, payload any, opts ...EnqueueOption) error {
	job := &Job{
		Type:        jobType,
		Payload:     payload,
		MaxAttempts: w.config.MaxAttempts,
	}
	for _, opt := range opts {
		opt(job)
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return ErrStopped
	}

	select {
	case w.queue <- job:
		metrics.JobEnqueued(jobType)
		return nil
	default:
		metrics.JobDropped(jobType)
		return ErrQueueFull
	}
}

// QueueLen returns the number of jobs waiting for a worker.
func (w *Worker) QueueLen() int {
	return len(w.queue)
}

// runWorker is the main loop for a worker goroutine. After stopCh closes it
// drains whatever is left in the queue and exits.
func (w *Worker) runWorker(ctx context.Context, workerID int) {
	defer w.wg.Done()

	logger := w.logger.With("worker_id", workerID)
	logger.Debug("Worker started")

	for {
		select {
		case job := <-w.queue:
			w.process(ctx, job, logger)
		case <-w.stopCh:
			for {
				select {
				case job := <-w.queue:
					w.process(ctx, job, logger)
				default:
					logger.Debug("Worker stopping")
					return
				}
			}
		}
	}
}

// process runs a job until it succeeds, fails permanently, or runs out of
// attempts. Retries back off exponentially but give up early on shutdown.
func (w *Worker) process(ctx context.Context, job *Job, logger *slog.Logger) {
	logger = logger.With("job_type", job.Type)

	for {
		job.Attempts++
		start := time.Now()
		err := w.executeJob(ctx, job)
		if err == nil {
			metrics.JobCompleted(job.Type, time.Since(start))
			return
		}

		if IsPermanent(err) || job.Attempts >= job.MaxAttempts {
			metrics.JobFailed(job.Type)
			logger.Error("Job failed", "attempt", job.Attempts, "permanent", IsPermanent(err), "error", err)
			return
		}

		metrics.JobRetried(job.Type)
		delay := w.config.RetryBaseDelay << (job.Attempts - 1)
		logger.Warn("Job attempt failed, retrying", "attempt", job.Attempts, "delay", delay, "error", err)

		select {
		case <-time.After(delay):
		case <-w.stopCh:
			// Shutting down: one last attempt without waiting.
			if err := w.executeJob(ctx, job); err != nil {
				metrics.JobFailed(job.Type)
				logger.Error("Job failed during shutdown", "error", err)
			}
			return
		}
	}
}

// executeJob runs the appropriate handler for the job with a timeout context.
func (w *Worker) executeJob(ctx context.Context, job *Job) error {
	handler, ok := w.handlers[job.Type]
	if !ok {
		return NewPermanentError(fmt.Errorf("no handler registered for job type: %s", job.Type))
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.config.JobTimeout)
	defer cancel()

	return handler.Handle(jobCtx, job.Payload)
}

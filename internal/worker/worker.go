// Package worker runs the durable report-execution pipeline: claiming
// runnable jobs under a lease and driving them stage by stage.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/OptivexIQ/optivexiq-sub002/internal/constants"
	"github.com/OptivexIQ/optivexiq-sub002/internal/repository"
)

// Worker claims and processes report jobs.
type Worker struct {
	jobs         repository.JobRepository
	pipeline     *Pipeline
	pollInterval time.Duration
	concurrency  int
	lease        time.Duration
	stop         chan struct{}
	poke         chan struct{}
	wg           sync.WaitGroup
	logger       *slog.Logger
}

// Config holds worker configuration.
type Config struct {
	PollInterval time.Duration
	Concurrency  int
}

// New creates a new worker.
func New(repos *repository.Repositories, pipeline *Pipeline, cfg Config, logger *slog.Logger) *Worker {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		jobs:         repos.Jobs,
		pipeline:     pipeline,
		pollInterval: cfg.PollInterval,
		concurrency:  cfg.Concurrency,
		lease:        constants.ClaimLeaseDuration,
		stop:         make(chan struct{}),
		poke:         make(chan struct{}, 1),
		logger:       logger.With("component", "worker"),
	}
}

// Start begins processing jobs.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("starting", "concurrency", w.concurrency, "poll_interval", w.pollInterval)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.runWorker(ctx, i)
	}
}

// Stop gracefully stops the worker, waiting for in-flight jobs.
func (w *Worker) Stop() {
	w.logger.Info("stopping")
	close(w.stop)
	w.wg.Wait()
	w.logger.Info("stopped")
}

// Poke wakes a worker ahead of the next poll tick. Non-blocking; a
// pending wake-up is enough.
func (w *Worker) Poke() {
	select {
	case w.poke <- struct{}{}:
	default:
	}
}

func (w *Worker) runWorker(ctx context.Context, workerID int) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drain(ctx, workerID)
		case <-w.poke:
			w.drain(ctx, workerID)
		}
	}
}

// drain claims and runs jobs until the queue has nothing runnable.
func (w *Worker) drain(ctx context.Context, workerID int) {
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		job, err := w.jobs.ClaimRunnable(ctx, w.lease)
		if err != nil {
			w.logger.Error("failed to claim job", "worker_id", workerID, "error", err)
			return
		}
		if job == nil {
			return
		}

		w.logger.Info("claimed job",
			"worker_id", workerID,
			"job_id", job.ID,
			"stage", job.Stage,
			"attempt", job.AttemptCount+1,
		)
		w.pipeline.Run(ctx, job)
	}
}

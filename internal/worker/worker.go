// Package worker runs the claim-execute-settle loop over the job queue.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"callpipe/internal/cache"
	"callpipe/internal/queue"
	"callpipe/pkg/models"
)

// StageRunner executes one claimed job.
type StageRunner interface {
	Run(ctx context.Context, job *models.Job) error
}

// Worker claims jobs one at a time and settles each as done or failed.
// Stage errors never stop the loop; only context cancellation or a
// claim error does.
type Worker struct {
	queue        queue.Queue
	runner       StageRunner
	cache        cache.Cache
	logger       *slog.Logger
	id           string
	pollInterval time.Duration
}

func New(q queue.Queue, runner StageRunner, c cache.Cache, logger *slog.Logger, id string, pollInterval time.Duration) *Worker {
	if c == nil {
		c = cache.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if pollInterval == 0 {
		pollInterval = time.Second
	}
	return &Worker{
		queue:        q,
		runner:       runner,
		cache:        c,
		logger:       logger,
		id:           id,
		pollInterval: pollInterval,
	}
}

// Run loops until ctx is cancelled. A claim error is fatal: it means
// the queue itself is unreachable and the worker cannot make progress.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started", "worker_id", w.id)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping", "worker_id", w.id)
			return nil
		default:
		}

		job, err := w.queue.Claim(ctx, w.id)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("claim failed: %w", err)
		}
		if job == nil {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.pollInterval):
			}
			continue
		}

		w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job *models.Job) {
	logger := w.logger.With(
		"worker_id", w.id,
		"job_id", job.ID,
		"call_id", job.CallID,
		"stage", job.Stage,
		"attempt", job.Attempts+1,
	)
	logger.Info("job claimed")
	_ = w.cache.SetJobStatus(ctx, job.ID.String(), models.JobStatusProcessing)
	_ = w.cache.SetCallStage(ctx, job.CallID.String(), string(job.Stage))

	runErr := w.runJob(ctx, job)
	if runErr == nil {
		if err := w.queue.Complete(ctx, job.ID); err != nil {
			logger.Error("failed to complete job", "error", err)
			return
		}
		_ = w.cache.SetJobStatus(ctx, job.ID.String(), models.JobStatusDone)
		logger.Info("job done")
		return
	}

	logger.Error("job failed", "error", runErr)
	if err := w.queue.Fail(ctx, job.ID, runErr.Error(), BackoffFor(job.Attempts)); err != nil {
		logger.Error("failed to record job failure", "error", err)
		return
	}
	if job.Attempts+1 >= job.MaxAttempts {
		_ = w.cache.SetJobStatus(ctx, job.ID.String(), models.JobStatusFailed)
	} else {
		_ = w.cache.SetJobStatus(ctx, job.ID.String(), models.JobStatusQueued)
	}
}

// runJob converts a handler panic into an ordinary failure so one bad
// job cannot kill the worker.
func (w *Worker) runJob(ctx context.Context, job *models.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage panicked: %v", r)
		}
	}()
	return w.runner.Run(ctx, job)
}

// BackoffFor returns the retry delay after a failed attempt, doubling
// from 30s and capped at 10 minutes.
func BackoffFor(attempts int) time.Duration {
	if attempts >= 5 {
		return 600 * time.Second
	}
	backoff := 30 * time.Second << attempts
	if backoff > 600*time.Second {
		return 600 * time.Second
	}
	return backoff
}

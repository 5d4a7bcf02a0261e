package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrFatal marks job failures that retrying cannot fix: malformed jobs and
// records that no longer exist. Wrap with Fatal to drop a job for good.
var ErrFatal = errors.New("permanent job failure")

// ErrQueueFull is returned by Enqueue when the job buffer is at capacity.
var ErrQueueFull = errors.New("thumbnail queue full")

// Fatal wraps err so the queue drops the job instead of retrying it.
func Fatal(err error) error {
	return fmt.Errorf("%w: %w", ErrFatal, err)
}

// Job identifies one image whose thumbnails are pending. Jobs are
// ephemeral: they live only in the queue buffer.
type Job struct {
	FileID string
	UserID string
}

// Handler processes a single job. A nil return marks the job done; an
// error wrapped with Fatal drops it, any other error schedules a retry.
type Handler func(ctx context.Context, job Job) error

// Queue is an in-process job queue feeding a fixed worker pool. Each job
// instance is consumed by exactly one worker, so no two workers ever
// write the same derived paths. Failed jobs are retried with exponential
// backoff up to maxAttempts.
type Queue struct {
	jobs        chan Job
	handler     Handler
	workers     int
	maxAttempts int
	baseBackoff time.Duration
	wg          sync.WaitGroup
}

// NewQueue creates a queue with the given worker count, buffer size and
// retry budget.
func NewQueue(handler Handler, workers, size, maxAttempts int) *Queue {
	if workers < 1 {
		workers = 1
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Queue{
		jobs:        make(chan Job, size),
		handler:     handler,
		workers:     workers,
		maxAttempts: maxAttempts,
		baseBackoff: time.Second,
	}
}

// Enqueue submits a job without blocking. A full buffer is reported as
// ErrQueueFull so uploads never stall on image processing.
func (q *Queue) Enqueue(fileID, userID string) error {
	select {
	case q.jobs <- Job{FileID: fileID, UserID: userID}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the worker pool. Workers exit when ctx is cancelled.
func (q *Queue) Start(ctx context.Context) {
	slog.Info("thumbnail workers started", "workers", q.workers, "max_attempts", q.maxAttempts)

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for {
				select {
				case job := <-q.jobs:
					q.run(ctx, job)
				case <-ctx.Done():
					return
				}
			}
		}()
	}
}

// Wait blocks until every worker has stopped.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// run drives one job through its attempts.
func (q *Queue) run(ctx context.Context, job Job) {
	for attempt := 1; ; attempt++ {
		err := q.handler(ctx, job)
		if err == nil {
			return
		}

		if errors.Is(err, ErrFatal) {
			slog.Error("thumbnail job dropped",
				"file_id", job.FileID,
				"user_id", job.UserID,
				"error", err,
			)
			return
		}

		if attempt >= q.maxAttempts {
			slog.Error("thumbnail job failed permanently",
				"file_id", job.FileID,
				"attempts", attempt,
				"error", err,
			)
			return
		}

		backoff := q.baseBackoff << (attempt - 1)
		slog.Warn("thumbnail job failed, retrying",
			"file_id", job.FileID,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
	}
}

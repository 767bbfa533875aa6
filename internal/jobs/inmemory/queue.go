package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/card-sms-parser/internal/jobs"
	"github.com/dvloznov/card-sms-parser/internal/logger"
	"github.com/google/uuid"
)

const (
	defaultWorkerCount  = 5
	defaultRetryBackoff = time.Second
)

// Queue is an in-memory implementation of job publisher and consumer.
// It uses Go channels for job distribution and is safe for concurrent use.
// This implementation is suitable for single-process batch runs and testing.
type Queue struct {
	jobChan      chan *jobs.ParseMessageJob
	closeChan    chan struct{}
	wg           sync.WaitGroup
	pending      sync.WaitGroup
	mu           sync.RWMutex
	store        jobs.JobStore
	closed       bool
	workerCount  int
	retryBackoff time.Duration
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithWorkerCount sets the number of concurrent workers started by Start.
func WithWorkerCount(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.workerCount = n
		}
	}
}

// WithRetryBackoff sets the base delay between retries. The n-th retry waits n*d.
func WithRetryBackoff(d time.Duration) QueueOption {
	return func(q *Queue) {
		if d >= 0 {
			q.retryBackoff = d
		}
	}
}

// NewQueue creates a new in-memory job queue.
// bufferSize determines how many jobs can be queued before PublishParseMessage blocks.
func NewQueue(bufferSize int, store jobs.JobStore, opts ...QueueOption) *Queue {
	q := &Queue{
		jobChan:      make(chan *jobs.ParseMessageJob, bufferSize),
		closeChan:    make(chan struct{}),
		store:        store,
		workerCount:  defaultWorkerCount,
		retryBackoff: defaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// PublishParseMessage implements the Publisher interface.
// It enqueues a message parsing job for asynchronous processing.
func (q *Queue) PublishParseMessage(ctx context.Context, job *jobs.ParseMessageJob) error {
	if job == nil {
		return fmt.Errorf("PublishParseMessage: nil job")
	}

	// Generate job ID if not provided
	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}

	// Set initial status and timestamp
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	q.pending.Add(1)
	if err := q.enqueue(ctx, job); err != nil {
		q.pending.Done()
		return err
	}
	return nil
}

// enqueue stores the job and hands it to the workers.
func (q *Queue) enqueue(ctx context.Context, job *jobs.ParseMessageJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("queue is closed")
	}

	// Save job to store
	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
	}

	// Enqueue job with context cancellation support
	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("queue is closed")
	}
}

// Start implements the Consumer interface.
// It starts consuming jobs from the queue and processes them using the provided handler.
// The handler is called concurrently for each job, up to the configured worker count.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	if handler == nil {
		return fmt.Errorf("Start: nil handler")
	}

	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("queue is closed")
	}
	q.mu.RUnlock()

	for i := 0; i < q.workerCount; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}

	return nil
}

// worker processes jobs from the queue.
func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}

			q.processJob(ctx, job, handler)
		}
	}
}

// processJob executes a single job with retry logic.
func (q *Queue) processJob(ctx context.Context, job *jobs.ParseMessageJob, handler jobs.JobHandler) {
	log := logger.FromContext(ctx).With().
		Str("job_id", job.JobID).
		Str("message_id", job.MessageID).
		Logger()

	job.Status = jobs.JobStatusRunning
	now := time.Now()
	job.StartedAt = &now

	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}

	err := handler(ctx, job)

	completedAt := time.Now()
	job.CompletedAt = &completedAt

	if err != nil {
		job.Error = err.Error()

		if !jobs.IsPermanent(err) && job.RetryCount < job.MaxRetries {
			job.RetryCount++
			job.Status = jobs.JobStatusRetrying
			log.Warn().Err(err).Int("retry", job.RetryCount).Msg("Job failed, scheduling retry")

			if q.store != nil {
				_ = q.store.SaveJob(ctx, job)
			}

			backoff := time.Duration(job.RetryCount) * q.retryBackoff
			time.AfterFunc(backoff, func() {
				job.Status = jobs.JobStatusPending
				job.StartedAt = nil
				job.CompletedAt = nil
				if err := q.enqueue(ctx, job); err != nil {
					job.Status = jobs.JobStatusFailed
					job.Error = fmt.Sprintf("retry not enqueued: %v", err)
					q.finish(ctx, job)
				}
			})
			return
		}

		job.Status = jobs.JobStatusFailed
		log.Debug().Err(err).Msg("Job failed")
	} else {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
	}

	q.finish(ctx, job)
}

// finish records a terminal job and releases it from Wait.
func (q *Queue) finish(ctx context.Context, job *jobs.ParseMessageJob) {
	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}
	q.pending.Done()
}

// Wait blocks until every published job reached a terminal status,
// or until ctx is done.
func (q *Queue) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		q.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop implements the Consumer interface.
// It stops the queue and waits for all in-flight jobs to complete.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	// Wait for workers to finish with timeout
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
// It closes the queue and releases resources.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

// Ensure Queue implements both Publisher and Consumer interfaces.
var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)

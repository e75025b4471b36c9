package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Harikeshav-R/Penny/internal/jobs"
	"github.com/Harikeshav-R/Penny/internal/logger"
)

// Defaults for NewQueue.
const (
	DefaultWorkers        = 5
	DefaultRetryBaseDelay = time.Second
)

// Queue is an in-memory job publisher and consumer built on channels. It is
// safe for concurrent use and suits single-instance deployments and tests.
type Queue struct {
	jobChan   chan *jobs.AnalyzeImageJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	closed    bool

	workers   int
	baseDelay time.Duration
}

// QueueOption customises a Queue.
type QueueOption func(*Queue)

// WithWorkers sets the number of concurrent workers started by Start.
func WithWorkers(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

// WithRetryBaseDelay sets the unit of the linear retry backoff.
func WithRetryBaseDelay(d time.Duration) QueueOption {
	return func(q *Queue) { q.baseDelay = d }
}

// NewQueue creates a new in-memory job queue.
// bufferSize determines how many jobs can be queued before publishing blocks.
func NewQueue(bufferSize int, store jobs.JobStore, opts ...QueueOption) *Queue {
	q := &Queue{
		jobChan:   make(chan *jobs.AnalyzeImageJob, bufferSize),
		closeChan: make(chan struct{}),
		store:     store,
		workers:   DefaultWorkers,
		baseDelay: DefaultRetryBaseDelay,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// PublishAnalyzeImage enqueues an analysis job.
func (q *Queue) PublishAnalyzeImage(ctx context.Context, job *jobs.AnalyzeImageJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("queue is closed")
	}

	job.Prepare(time.Now())

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("queue is closed")
	}
}

// Start launches the workers. Each job is handed to handler on one of them.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("queue is closed")
	}
	q.mu.RUnlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}

	return nil
}

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

// processJob executes a single job. Retryable failures are re-enqueued after
// RetryCount*baseDelay until MaxRetries is reached.
func (q *Queue) processJob(ctx context.Context, job *jobs.AnalyzeImageJob, handler jobs.JobHandler) {
	log := logger.Component(logger.FromContext(ctx), "jobs").With().Str("job_id", job.JobID).Logger()

	job.Status = jobs.JobStatusRunning
	now := time.Now()
	job.StartedAt = &now

	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}

	err := handler(ctx, job)

	completedAt := time.Now()
	job.CompletedAt = &completedAt

	var retryIn time.Duration
	switch {
	case err == nil:
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		log.Info().Dur("duration", completedAt.Sub(now)).Msg("job completed")

	case jobs.Retryable(err) && job.RetryCount < job.MaxRetries:
		job.Error = err.Error()
		job.RetryCount++
		job.Status = jobs.JobStatusRetrying

		retryIn = jobs.RetryDelay(job.RetryCount, q.baseDelay)
		log.Warn().Err(err).Int("retry_count", job.RetryCount).Dur("backoff", retryIn).Msg("job failed, retrying")

	default:
		job.Error = err.Error()
		job.Status = jobs.JobStatusFailed
		log.Error().Err(err).Int("retry_count", job.RetryCount).Msg("job failed")
	}

	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}

	if job.Status == jobs.JobStatusRetrying {
		time.AfterFunc(retryIn, func() {
			job.Status = jobs.JobStatusPending
			job.StartedAt = nil
			job.CompletedAt = nil
			if err := q.PublishAnalyzeImage(ctx, job); err != nil {
				log.Error().Err(err).Msg("failed to re-enqueue job")
			}
		})
	}
}

// Stop stops the queue and waits for all in-flight jobs to complete.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

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
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)

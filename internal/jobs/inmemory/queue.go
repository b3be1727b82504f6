package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/dvloznov/purchase-analytics/internal/jobs"
	"github.com/dvloznov/purchase-analytics/internal/logger"
	"github.com/google/uuid"
)

// Queue is an in-memory, channel-backed job publisher and consumer.
// It is safe for concurrent use and suited to a single instance.
type Queue struct {
	jobChan   chan *jobs.RebuildJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	closed    bool

	workers int
	backoff time.Duration
}

// Option configures a Queue.
type Option func(*Queue)

// WithWorkers sets the number of concurrent workers. Rebuilds replace the
// whole clean set, so the default is one.
func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

// WithBackoff sets the base retry delay; the n-th retry waits n times this long.
func WithBackoff(d time.Duration) Option {
	return func(q *Queue) { q.backoff = d }
}

// NewQueue creates a new in-memory job queue.
// bufferSize determines how many jobs can be queued before PublishRebuild blocks.
func NewQueue(bufferSize int, store jobs.JobStore, opts ...Option) *Queue {
	q := &Queue{
		jobChan:   make(chan *jobs.RebuildJob, bufferSize),
		closeChan: make(chan struct{}),
		store:     store,
		workers:   1,
		backoff:   time.Second,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// PublishRebuild implements the Publisher interface.
func (q *Queue) PublishRebuild(ctx context.Context, job *jobs.RebuildJob) error {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return jobs.ErrQueueClosed
	}

	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = jobs.DefaultMaxRetries
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return err
		}
	}

	// The worker gets its own copy; the caller may keep reading job.
	queued := *job
	select {
	case q.jobChan <- &queued:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return jobs.ErrQueueClosed
	}
}

// Start implements the Consumer interface. It returns immediately; workers
// run until ctx is canceled or the queue is stopped.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return jobs.ErrQueueClosed
	}

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

// processJob runs one job and schedules a retry on failure.
func (q *Queue) processJob(ctx context.Context, job *jobs.RebuildJob, handler jobs.JobHandler) {
	log := logger.WithFields(logger.FromContext(ctx), map[string]any{
		"job_id":  job.JobID,
		"trigger": job.Trigger,
	})

	job.Status = jobs.JobStatusRunning
	now := time.Now()
	job.StartedAt = &now
	job.CompletedAt = nil
	q.save(ctx, job)

	err := handler(ctx, job)

	completedAt := time.Now()
	job.CompletedAt = &completedAt

	var retry *jobs.RebuildJob
	switch {
	case err == nil:
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		log.Info().Dur("duration", completedAt.Sub(now)).Msg("Job completed")
	case job.RetryCount < job.MaxRetries:
		job.Error = err.Error()
		job.RetryCount++
		job.Status = jobs.JobStatusRetrying
		next := *job
		retry = &next
	default:
		job.Error = err.Error()
		job.Status = jobs.JobStatusFailed
		log.Error().Err(err).Int("retries", job.RetryCount).Msg("Job failed")
	}

	q.save(ctx, job)

	if retry != nil {
		delay := time.Duration(retry.RetryCount) * q.backoff
		log.Warn().Err(err).Int("retry", retry.RetryCount).Dur("backoff", delay).Msg("Job failed, retrying")
		time.AfterFunc(delay, func() {
			retry.Status = jobs.JobStatusPending
			retry.StartedAt = nil
			retry.CompletedAt = nil
			if err := q.PublishRebuild(context.WithoutCancel(ctx), retry); err != nil {
				log.Error().Err(err).Msg("Failed to re-enqueue job")
			}
		})
	}
}

func (q *Queue) save(ctx context.Context, job *jobs.RebuildJob) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("job_id", job.JobID).Msg("Failed to save job state")
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

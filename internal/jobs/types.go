package jobs

import (
	"context"
	"errors"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeRebuild rebuilds the clean set from the raw table.
	JobTypeRebuild JobType = "rebuild"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// DefaultMaxRetries applies when a job is published without MaxRetries.
const DefaultMaxRetries = 3

// ErrJobNotFound is returned by stores for an unknown job id.
var ErrJobNotFound = errors.New("job not found")

// ErrQueueClosed is returned when publishing to or starting a stopped queue.
var ErrQueueClosed = errors.New("queue is closed")

// RebuildJob asks the worker to rebuild the clean set.
type RebuildJob struct {
	JobID string `json:"job_id"`

	// Trigger names who asked for the rebuild, e.g. "api" or "startup".
	Trigger string `json:"trigger"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`

	// Filled by the handler on success.
	BuildID   string `json:"build_id,omitempty"`
	RawRows   int    `json:"raw_rows,omitempty"`
	CleanRows int    `json:"clean_rows,omitempty"`
}

// Job is a generic interface for all job types.
type Job interface {
	// GetID returns the unique job identifier.
	GetID() string

	// GetType returns the job type.
	GetType() JobType

	// GetStatus returns the current job status.
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *RebuildJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *RebuildJob) GetType() JobType {
	return JobTypeRebuild
}

// GetStatus implements the Job interface.
func (j *RebuildJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher enqueues jobs.
type Publisher interface {
	// PublishRebuild enqueues a rebuild job, assigning an id when it has none.
	// Implementations must not retain job: the caller may read it afterwards,
	// and progress is observed through the JobStore.
	PublishRebuild(ctx context.Context, job *RebuildJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job.
// It should return an error if the job failed and should be retried.
type JobHandler func(ctx context.Context, job Job) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *RebuildJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*RebuildJob, error)

	// ListJobs returns jobs newest first with optional filtering.
	ListJobs(ctx context.Context, filter JobFilter) ([]*RebuildJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	Trigger string
	Status  JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}

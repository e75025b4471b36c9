package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/Harikeshav-R/Penny/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeAnalyzeImage analyses a receipt photo or cart screenshot.
	JobTypeAnalyzeImage JobType = "analyze_image"
)

// DefaultMaxRetries is used when a job does not set MaxRetries.
const DefaultMaxRetries = 2

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and will run again after a
	// backoff.
	JobStatusRetrying JobStatus = "retrying"
)

// AnalyzeImageJob is one asynchronous receipt or cart analysis.
type AnalyzeImageJob struct {
	JobID   string              `json:"job_id"`
	OwnerID uuid.UUID           `json:"owner_id"`
	Kind    domain.AnalysisKind `json:"kind"`

	// Image carries the bytes when the publisher has no archive. Otherwise
	// ImageURI points at the archived copy and Image is empty.
	Image    []byte `json:"image,omitempty"`
	ImageURI string `json:"image_uri,omitempty"`

	// HourlyRate is used for cart time-cost estimates.
	HourlyRate *decimal.Decimal `json:"hourly_rate,omitempty"`

	// Record asks the worker to write one ledger transaction per split.
	Record bool `json:"record"`

	// RunID is the analysis run id in the audit store.
	RunID string `json:"run_id,omitempty"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`

	Result         *domain.AnalysisResponse `json:"result,omitempty"`
	TransactionIDs []uuid.UUID              `json:"transaction_ids,omitempty"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

func (j *AnalyzeImageJob) GetID() string {
	return j.JobID
}

func (j *AnalyzeImageJob) GetType() JobType {
	return JobTypeAnalyzeImage
}

func (j *AnalyzeImageJob) GetStatus() JobStatus {
	return j.Status
}

// Prepare fills the defaults of a job about to be published.
func (j *AnalyzeImageJob) Prepare(now time.Time) {
	if j.JobID == "" {
		j.JobID = uuid.New().String()
	}
	if j.Status == "" {
		j.Status = JobStatusPending
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	if j.MaxRetries == 0 {
		j.MaxRetries = DefaultMaxRetries
	}
}

// RetryDelay is the wait before retry n (1-based): n seconds, matching the
// extraction backoff.
func RetryDelay(n int, base time.Duration) time.Duration {
	return time.Duration(n) * base
}

// Retryable reports whether a failed job may succeed if run again. Missing
// credentials and bad input never will.
func Retryable(err error) bool {
	return !errors.Is(err, domain.ErrConfiguration) && !errors.Is(err, domain.ErrValidation)
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	PublishAnalyzeImage(ctx context.Context, job *AnalyzeImageJob) error
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
	SaveJob(ctx context.Context, job *AnalyzeImageJob) error
	// GetJob returns a not-found error for unknown ids.
	GetJob(ctx context.Context, jobID string) (*AnalyzeImageJob, error)
	// ListJobs returns jobs newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*AnalyzeImageJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	OwnerID uuid.UUID
	Status  JobStatus
	Limit   int
	Offset  int
}

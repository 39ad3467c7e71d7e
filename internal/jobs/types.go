// Package jobs defines the asynchronous job model for long-running work,
// currently CSV exports of a user's transaction history.
package jobs

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/civil"
)

// ErrJobNotFound is returned by JobStore lookups for unknown job IDs.
var ErrJobNotFound = errors.New("job not found")

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeExport represents a transaction CSV export job.
	JobTypeExport JobType = "export_csv"
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

// ExportJob represents a request to export a user's transactions to a CSV
// file in object storage.
type ExportJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// UserID is the owner of the transactions being exported.
	UserID string `json:"user_id"`

	// StartDate and EndDate optionally bound the exported date range.
	StartDate *civil.Date `json:"start_date,omitempty"`
	EndDate   *civil.Date `json:"end_date,omitempty"`

	// ObjectName is where the finished CSV lives in the bucket.
	ObjectName string `json:"object_name,omitempty"`

	// DownloadURL is the signed URL for the finished CSV.
	DownloadURL string `json:"download_url,omitempty"`

	// RowCount is the number of transactions written to the CSV.
	RowCount int `json:"row_count,omitempty"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// RetryCount is the number of times this job has been retried.
	RetryCount int `json:"retry_count"`

	// MaxRetries is the maximum number of retries allowed.
	MaxRetries int `json:"max_retries"`
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
func (j *ExportJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *ExportJob) GetType() JobType {
	return JobTypeExport
}

// GetStatus implements the Job interface.
func (j *ExportJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher defines the interface for publishing jobs to a queue.
// The abstraction leaves room for Cloud Tasks or Pub/Sub later.
type Publisher interface {
	// PublishExport publishes a CSV export job.
	PublishExport(ctx context.Context, job *ExportJob) error

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
	SaveJob(ctx context.Context, job *ExportJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*ExportJob, error)

	// ListJobs retrieves jobs with optional filtering.
	ListJobs(ctx context.Context, filter JobFilter) ([]*ExportJob, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// UserID filters jobs by owner.
	UserID string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}

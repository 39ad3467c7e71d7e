package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/finsight/backend/internal/jobs"
)

// Store keeps job state in memory. Safe for concurrent use; data is lost on
// restart.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*jobs.ExportJob
}

// NewStore creates a new in-memory job store.
func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*jobs.ExportJob),
	}
}

// SaveJob saves or updates a job. Jobs are copied on the way in so callers
// cannot mutate stored state.
func (s *Store) SaveJob(ctx context.Context, job *jobs.ExportJob) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	jobCopy := *job
	s.jobs[job.JobID] = &jobCopy

	return nil
}

// GetJob retrieves a job by ID, returning jobs.ErrJobNotFound when absent.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.ExportJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", jobs.ErrJobNotFound, jobID)
	}

	jobCopy := *job
	return &jobCopy, nil
}

// ListJobs retrieves jobs matching the filter.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.ExportJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*jobs.ExportJob

	for _, job := range s.jobs {
		if filter.UserID != "" && job.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}

		jobCopy := *job
		result = append(result, &jobCopy)
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.ExportJob{}, nil
		}
		result = result[filter.Offset:]
	}

	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

var _ jobs.JobStore = (*Store)(nil)

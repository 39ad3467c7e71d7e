package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/finsight/backend/internal/api/middleware"
	"github.com/finsight/backend/internal/jobs"
)

// JobsHandler handles export enqueueing and job status lookups.
type JobsHandler struct {
	publisher jobs.Publisher
	store     jobs.JobStore
	log       zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(publisher jobs.Publisher, store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		publisher: publisher,
		store:     store,
		log:       log,
	}
}

// EnqueueExport handles POST /api/transactions/export
func (h *JobsHandler) EnqueueExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserIDFromContext(ctx)

	// Body is optional; an absent body means an unbounded export.
	var req struct {
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	job := &jobs.ExportJob{UserID: userID}
	if req.StartDate != "" {
		d, err := civil.ParseDate(req.StartDate)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid start_date, expected YYYY-MM-DD")
			return
		}
		job.StartDate = &d
	}
	if req.EndDate != "" {
		d, err := civil.ParseDate(req.EndDate)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid end_date, expected YYYY-MM-DD")
			return
		}
		job.EndDate = &d
	}

	if err := h.publisher.PublishExport(ctx, job); err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to enqueue export job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue export job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("user_id", userID).Msg("Export job enqueued")
	middleware.WriteSuccess(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserIDFromContext(ctx)

	list, err := h.store.ListJobs(ctx, jobs.JobFilter{UserID: userID})
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}
	if list == nil {
		list = []*jobs.ExportJob{}
	}

	middleware.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"jobs":  list,
		"count": len(list),
	})
}

// GetJob handles GET /api/jobs/:id
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()
	userID := middleware.UserIDFromContext(ctx)

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to load job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load job")
		return
	}

	// Jobs are private to their owner; an existing but foreign job looks
	// exactly like a missing one.
	if job.UserID != userID {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteSuccess(w, http.StatusOK, job)
}

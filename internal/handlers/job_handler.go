package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
)

// JobHandler handles article job API requests
type JobHandler struct {
	jobs       interfaces.JobStorage
	artifacts  interfaces.ArtifactStorage
	dispatcher interfaces.Dispatcher
	events     interfaces.EventService
	validate   *validator.Validate
	logger     arbor.ILogger
}

// NewJobHandler creates a new job handler
func NewJobHandler(jobs interfaces.JobStorage, artifacts interfaces.ArtifactStorage, dispatcher interfaces.Dispatcher, events interfaces.EventService, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		jobs:       jobs,
		artifacts:  artifacts,
		dispatcher: dispatcher,
		events:     events,
		validate:   validator.New(),
		logger:     logger,
	}
}

// CreateJobHandler accepts a new article request and queues it
// POST /api/jobs
func (h *JobHandler) CreateJobHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	job := models.NewJob(&req)
	if err := h.jobs.SaveJob(ctx, job); err != nil {
		h.logger.Error().Err(err).Msg("Failed to save job")
		WriteError(w, http.StatusInternalServerError, "Failed to create job")
		return
	}

	h.logger.Info().
		Str("job_id", job.ID).
		Str("keyword", job.Keyword).
		Str("batch_id", job.BatchID).
		Msg("Job created")
	h.publish(ctx, interfaces.EventJobCreated, job.Summary())

	WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":     job.ID,
		"status":     job.Status,
		"created_at": job.CreatedAt.Format(time.RFC3339),
	})
}

// GetJobHandler returns a single job by ID, including the validated article
// and artifact references once the job completes
// GET /api/jobs/{id}
func (h *JobHandler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	jobID := h.jobID(w, r)
	if jobID == "" {
		return
	}

	job, err := h.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	WriteJSON(w, http.StatusOK, job)
}

// GetJobStatusHandler returns the lightweight poll view of a job
// GET /api/jobs/{id}/status
func (h *JobHandler) GetJobStatusHandler(w http.ResponseWriter, r *http.Request) {
	jobID := h.jobID(w, r)
	if jobID == "" {
		return
	}

	job, err := h.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	WriteJSON(w, http.StatusOK, job.Summary())
}

// CancelJobHandler requests cancellation of a queued or running job.
// Terminal jobs are immutable, so cancelling one is a conflict.
// DELETE /api/jobs/{id}
func (h *JobHandler) CancelJobHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := h.jobID(w, r)
	if jobID == "" {
		return
	}

	job, err := h.jobs.GetJob(ctx, jobID)
	if err != nil {
		WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	if job.IsTerminal() {
		WriteError(w, http.StatusConflict, "Job already "+string(job.Status))
		return
	}

	// A running job is cancelled through its context; the engine records the
	// cancellation and persists the terminal status. A job still in the queue
	// has no context, so it is failed directly.
	inFlight := h.dispatcher != nil && h.dispatcher.Cancel(jobID)
	if !inFlight {
		fresh, err := h.jobs.GetJob(ctx, jobID)
		if err == nil && fresh.Status == models.JobStatusPending {
			fresh.MarkFailed("job cancelled", "cancelled before execution started")
			if err := h.jobs.UpdateJob(ctx, fresh); err != nil {
				h.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to cancel pending job")
				WriteError(w, http.StatusInternalServerError, "Failed to cancel job")
				return
			}
		}
	}

	h.logger.Info().Str("job_id", jobID).Bool("in_flight", inFlight).Msg("Job cancellation requested")
	h.publish(ctx, interfaces.EventJobCancelled, map[string]interface{}{
		"job_id":    jobID,
		"timestamp": time.Now().Format(time.RFC3339),
	})

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"status": "cancelling",
	})
}

// ListJobsHandler returns recent jobs, newest first
// GET /api/jobs?limit=50&offset=0&status=completed&batch_id=xyz
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	opts := &interfaces.ListOptions{
		Limit:   QueryInt(r, "limit", 50),
		Offset:  QueryInt(r, "offset", 0),
		Status:  r.URL.Query().Get("status"),
		BatchID: r.URL.Query().Get("batch_id"),
	}

	jobs, err := h.jobs.ListJobs(ctx, opts)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list jobs")
		WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	totalCount, err := h.jobs.CountJobs(ctx)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to count jobs")
		totalCount = len(jobs)
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":        jobs,
		"total_count": totalCount,
		"limit":       opts.Limit,
		"offset":      opts.Offset,
	})
}

// GetArtifactHandler serves the bytes of one persisted artifact
// GET /api/jobs/{id}/artifacts/{key}
func (h *JobHandler) GetArtifactHandler(w http.ResponseWriter, r *http.Request) {
	segments := PathSegments(r)
	// api / jobs / {id} / artifacts / {key}
	if len(segments) < 5 || segments[2] == "" || segments[4] == "" {
		WriteError(w, http.StatusBadRequest, "Job ID and artifact key are required")
		return
	}
	jobID := segments[2]
	key := segments[4]

	data, ref, err := h.artifacts.Get(r.Context(), jobID, key)
	if err != nil {
		WriteError(w, http.StatusNotFound, "Artifact not found")
		return
	}

	contentType := ref.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// jobID extracts the job ID from /api/jobs/{id}[...] paths, writing a 400
// when it is missing.
func (h *JobHandler) jobID(w http.ResponseWriter, r *http.Request) string {
	segments := PathSegments(r)
	if len(segments) < 3 || segments[2] == "" {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return ""
	}
	return segments[2]
}

func (h *JobHandler) publish(ctx context.Context, eventType interfaces.EventType, payload interface{}) {
	if h.events == nil {
		return
	}
	if err := h.events.Publish(ctx, interfaces.Event{Type: eventType, Payload: payload}); err != nil {
		h.logger.Warn().Err(err).Str("event", string(eventType)).Msg("Failed to publish event")
	}
}

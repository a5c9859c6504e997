package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
)

// StatusHandler reports service liveness and queue health
type StatusHandler struct {
	jobs       interfaces.JobStorage
	dispatcher interfaces.Dispatcher
	scheduler  interfaces.SchedulerService
	logger     arbor.ILogger
	startedAt  time.Time
}

// NewStatusHandler creates a new StatusHandler
func NewStatusHandler(jobs interfaces.JobStorage, dispatcher interfaces.Dispatcher, scheduler interfaces.SchedulerService, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		jobs:       jobs,
		dispatcher: dispatcher,
		scheduler:  scheduler,
		logger:     logger,
		startedAt:  time.Now(),
	}
}

// HealthHandler handles GET /health
func (h *StatusHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "scriptor",
	})
}

// GetStatusHandler handles GET /api/status
func (h *StatusHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	ctx := r.Context()
	queue := map[string]int{}
	for _, status := range []models.JobStatus{
		models.JobStatusPending,
		models.JobStatusRunning,
		models.JobStatusCompleted,
		models.JobStatusFailed,
	} {
		count, err := h.jobs.CountJobsByStatus(ctx, status)
		if err != nil {
			h.logger.Warn().Err(err).Str("status", string(status)).Msg("Failed to count jobs")
			continue
		}
		queue[string(status)] = count
	}

	status := map[string]interface{}{
		"service":   "scriptor",
		"version":   common.GetVersion(),
		"status":    "running",
		"uptime":    time.Since(h.startedAt).Round(time.Second).String(),
		"timestamp": time.Now().Format(time.RFC3339),
		"jobs":      queue,
	}
	if h.dispatcher != nil {
		status["active_workers"] = h.dispatcher.ActiveCount()
	}
	if h.scheduler != nil {
		scheduled := map[string]interface{}{}
		for name, jobStatus := range h.scheduler.GetAllJobStatuses() {
			entry := map[string]interface{}{
				"enabled":    jobStatus.Enabled,
				"schedule":   jobStatus.Schedule,
				"is_running": jobStatus.IsRunning,
			}
			if jobStatus.LastRun != nil {
				entry["last_run"] = jobStatus.LastRun.Format(time.RFC3339)
			}
			if jobStatus.NextRun != nil {
				entry["next_run"] = jobStatus.NextRun.Format(time.RFC3339)
			}
			if jobStatus.LastError != "" {
				entry["last_error"] = jobStatus.LastError
			}
			scheduled[name] = entry
		}
		status["scheduled_jobs"] = scheduled
	}

	WriteJSON(w, http.StatusOK, status)
}

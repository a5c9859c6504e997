package server

import (
	"net/http"
	"strings"

	"github.com/ternarybob/scriptor/internal/handlers"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Liveness and service status
	mux.HandleFunc("/health", s.app.StatusHandler.HealthHandler)
	mux.HandleFunc("/api/status", s.app.StatusHandler.GetStatusHandler)

	// WebSocket event stream
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// Job lifecycle
	mux.HandleFunc("/api/jobs", s.handleJobsRoute) // GET (list), POST (create)
	mux.HandleFunc("/api/jobs/", s.handleJobRoutes)

	// Quality monitor window
	mux.HandleFunc("/api/quality/statistics", s.app.QualityHandler.GetStatisticsHandler)
	mux.HandleFunc("/api/quality/alerts", s.app.QualityHandler.GetAlertsHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.notFoundHandler)

	return mux
}

// handleJobsRoute routes /api/jobs requests (list and create)
func (s *Server) handleJobsRoute(w http.ResponseWriter, r *http.Request) {
	RouteResourceCollection(w, r, s.app.JobHandler.ListJobsHandler, s.app.JobHandler.CreateJobHandler)
}

// handleJobRoutes routes /api/jobs/{id} requests and subpaths
func (s *Server) handleJobRoutes(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	// GET /api/jobs/{id}/artifacts/{key}
	if r.Method == http.MethodGet && strings.Contains(path, "/artifacts") {
		s.app.JobHandler.GetArtifactHandler(w, r)
		return
	}

	// GET /api/jobs/{id}/status
	if r.Method == http.MethodGet && strings.HasSuffix(path, "/status") {
		s.app.JobHandler.GetJobStatusHandler(w, r)
		return
	}

	// GET /api/jobs/{id}, DELETE /api/jobs/{id}
	RouteResourceItem(w, r, s.app.JobHandler.GetJobHandler, nil, s.app.JobHandler.CancelJobHandler)
}

// notFoundHandler catches unmatched /api/ paths
func (s *Server) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	handlers.WriteError(w, http.StatusNotFound, "Not found")
}

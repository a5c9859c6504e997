package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
)

// QualityHandler exposes the quality monitor's window for inspection
type QualityHandler struct {
	monitor interfaces.QualityMonitor
	logger  arbor.ILogger
}

// NewQualityHandler creates a new quality handler
func NewQualityHandler(monitor interfaces.QualityMonitor, logger arbor.ILogger) *QualityHandler {
	return &QualityHandler{
		monitor: monitor,
		logger:  logger,
	}
}

// GetStatisticsHandler summarizes recent scored outcomes
// GET /api/quality/statistics
func (h *QualityHandler) GetStatisticsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	if h.monitor == nil {
		WriteJSON(w, http.StatusOK, models.QualityStatistics{})
		return
	}
	WriteJSON(w, http.StatusOK, h.monitor.Statistics())
}

// GetAlertsHandler returns recent quality alerts, most recent first
// GET /api/quality/alerts?limit=20
func (h *QualityHandler) GetAlertsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	limit := QueryInt(r, "limit", 20)
	var alerts []models.Alert
	if h.monitor != nil {
		alerts = h.monitor.RecentAlerts(limit)
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

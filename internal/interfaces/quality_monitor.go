package interfaces

import "github.com/ternarybob/scriptor/internal/models"

// QualityMonitor tracks recent scored outcomes across jobs and raises
// non-blocking alerts on degradation. Implementations keep a bounded
// in-memory window; nothing the monitor does can fail a job.
type QualityMonitor interface {
	// Record adds one scored outcome and returns any alerts it triggered.
	Record(record models.QualityRecord) []models.Alert

	// Statistics summarizes the retained window.
	Statistics() models.QualityStatistics

	// RecentAlerts returns up to limit alerts, most recent first.
	RecentAlerts(limit int) []models.Alert
}

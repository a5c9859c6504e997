// -----------------------------------------------------------------------
// Quality Monitor - bounded metric window with threshold and trend alerts
// -----------------------------------------------------------------------

package quality

import (
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
)

// Alerting thresholds. Scores below criticalScore raise critical alerts,
// below lowScore warnings; more than maxIssues critical issues also warns.
const (
	criticalScore = 50
	lowScore      = 70
	maxIssues     = 3

	// Regression detection compares the mean of the last trendWindow records
	// against the preceding trendWindow; a drop of regressionDelta or more
	// warns. Needs 2*trendWindow records before it activates.
	trendWindow     = 10
	regressionDelta = 10.0

	// maxRetainedAlerts bounds the alert history independently of the
	// record window.
	maxRetainedAlerts = 200
)

// Monitor implements QualityMonitor with a bounded FIFO window of records.
// All methods are safe for concurrent use.
type Monitor struct {
	mu       sync.Mutex
	records  []models.QualityRecord
	alerts   []models.Alert
	capacity int
	logger   arbor.ILogger
}

// NewMonitor creates a quality monitor retaining up to capacity records.
func NewMonitor(capacity int, logger arbor.ILogger) interfaces.QualityMonitor {
	if capacity <= 0 {
		capacity = 100
	}
	return &Monitor{
		records:  make([]models.QualityRecord, 0, capacity),
		capacity: capacity,
		logger:   logger,
	}
}

// Record appends one metric snapshot and returns the alerts it raised.
func (m *Monitor) Record(record models.QualityRecord) []models.Alert {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.records) >= m.capacity {
		m.records = m.records[1:]
	}
	m.records = append(m.records, record)

	var raised []models.Alert

	switch {
	case record.AEOScore < criticalScore:
		raised = append(raised, models.Alert{
			Severity: models.AlertSeverityCritical,
			Kind:     models.AlertKindCriticalQuality,
			Message:  fmt.Sprintf("AEO score %d is below the critical floor of %d", record.AEOScore, criticalScore),
			JobID:    record.JobID,
		})
	case record.AEOScore < lowScore:
		raised = append(raised, models.Alert{
			Severity: models.AlertSeverityWarning,
			Kind:     models.AlertKindLowQuality,
			Message:  fmt.Sprintf("AEO score %d is below the quality floor of %d", record.AEOScore, lowScore),
			JobID:    record.JobID,
		})
	}

	if record.CriticalIssueCount > maxIssues {
		raised = append(raised, models.Alert{
			Severity: models.AlertSeverityWarning,
			Kind:     models.AlertKindIssueCount,
			Message:  fmt.Sprintf("article has %d critical issues (limit %d)", record.CriticalIssueCount, maxIssues),
			JobID:    record.JobID,
		})
	}

	if drop, regressed := m.regressionLocked(); regressed {
		raised = append(raised, models.Alert{
			Severity: models.AlertSeverityWarning,
			Kind:     models.AlertKindRegression,
			Message:  fmt.Sprintf("mean AEO over the last %d jobs dropped %.1f points", trendWindow, drop),
			JobID:    record.JobID,
		})
	}

	now := time.Now()
	for i := range raised {
		raised[i].Timestamp = now
		m.retainAlertLocked(raised[i])

		event := m.logger.Warn()
		if raised[i].Severity == models.AlertSeverityCritical {
			event = m.logger.Error()
		}
		event.
			Str("job_id", raised[i].JobID).
			Str("kind", raised[i].Kind).
			Msg(raised[i].Message)
	}

	return raised
}

// regressionLocked reports whether the recent mean dropped regressionDelta
// or more versus the preceding window. Caller holds the lock.
func (m *Monitor) regressionLocked() (float64, bool) {
	if len(m.records) < 2*trendWindow {
		return 0, false
	}

	recent := m.records[len(m.records)-trendWindow:]
	preceding := m.records[len(m.records)-2*trendWindow : len(m.records)-trendWindow]

	drop := meanScore(preceding) - meanScore(recent)
	return drop, drop >= regressionDelta
}

func (m *Monitor) retainAlertLocked(alert models.Alert) {
	if len(m.alerts) >= maxRetainedAlerts {
		m.alerts = m.alerts[1:]
	}
	m.alerts = append(m.alerts, alert)
}

func meanScore(records []models.QualityRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	sum := 0
	for _, r := range records {
		sum += r.AEOScore
	}
	return float64(sum) / float64(len(records))
}

// Statistics summarizes the retained window.
func (m *Monitor) Statistics() models.QualityStatistics {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := models.QualityStatistics{
		RecordCount:      len(m.records),
		RecentAlertCount: len(m.alerts),
	}
	if len(m.records) == 0 {
		return stats
	}

	low, critical := 0, 0
	for _, r := range m.records {
		if r.AEOScore < lowScore {
			low++
		}
		if r.AEOScore < criticalScore {
			critical++
		}
	}

	stats.MeanAEO = meanScore(m.records)
	stats.LowQualityRate = float64(low) / float64(len(m.records))
	stats.CriticalRate = float64(critical) / float64(len(m.records))
	return stats
}

// RecentAlerts returns up to limit alerts, newest first.
func (m *Monitor) RecentAlerts(limit int) []models.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 || limit > len(m.alerts) {
		limit = len(m.alerts)
	}

	out := make([]models.Alert, 0, limit)
	for i := len(m.alerts) - 1; i >= len(m.alerts)-limit; i-- {
		out = append(out, m.alerts[i])
	}
	return out
}

package models

import "time"

// QualityReport is the scored quality outcome for one merge attempt
type QualityReport struct {
	AEOScore       int       `json:"aeo_score"` // 0..100, higher is better
	CriticalIssues []string  `json:"critical_issues,omitempty"`
	Attempt        int       `json:"attempt"`
	GatePassed     bool      `json:"gate_passed"`
	Skipped        bool      `json:"skipped,omitempty"` // scorer unavailable or failed
	ScoredAt       time.Time `json:"scored_at"`
}

// QualityRecord is one post-run metric snapshot retained by the monitor
type QualityRecord struct {
	JobID              string    `json:"job_id"`
	AEOScore           int       `json:"aeo_score"`
	CriticalIssueCount int       `json:"critical_issue_count"`
	Timestamp          time.Time `json:"timestamp"`
}

// AlertSeverity grades a quality violation notice
type AlertSeverity string

const (
	AlertSeverityInfo     AlertSeverity = "info"
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityCritical AlertSeverity = "critical"
)

// Alert kinds emitted by the quality monitor and similarity checker
const (
	AlertKindCriticalQuality = "critical_quality"   // aeo < 50
	AlertKindLowQuality      = "low_quality"        // aeo < 70
	AlertKindIssueCount      = "critical_issues"    // > 3 critical issues
	AlertKindRegression      = "quality_regression" // trailing mean dropped >= 10
	AlertKindSimilarity      = "high_similarity"    // hybrid >= threshold
)

// Alert is a non-blocking quality violation notice. Alerts are logged and
// retained for inspection; they never fail a job.
type Alert struct {
	Severity  AlertSeverity `json:"severity"`
	Kind      string        `json:"kind"`
	Message   string        `json:"message"`
	JobID     string        `json:"job_id"`
	Timestamp time.Time     `json:"timestamp"`
}

// QualityStatistics summarizes the monitor's retained window
type QualityStatistics struct {
	RecordCount      int     `json:"record_count"`
	MeanAEO          float64 `json:"mean_aeo"`
	LowQualityRate   float64 `json:"low_quality_rate"` // share of records with aeo < 70
	CriticalRate     float64 `json:"critical_rate"`    // share of records with aeo < 50
	RecentAlertCount int     `json:"recent_alert_count"`
}

package quality

import (
	"fmt"
	"math"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/models"
)

func record(jobID string, score, issues int) models.QualityRecord {
	return models.QualityRecord{JobID: jobID, AEOScore: score, CriticalIssueCount: issues}
}

func TestRecord_ThresholdAlerts(t *testing.T) {
	tests := []struct {
		name         string
		score        int
		issues       int
		wantKinds    []string
		wantSeverity models.AlertSeverity
	}{
		{"healthy score", 85, 0, nil, ""},
		{"low score warns", 65, 0, []string{models.AlertKindLowQuality}, models.AlertSeverityWarning},
		{"critical score", 40, 0, []string{models.AlertKindCriticalQuality}, models.AlertSeverityCritical},
		{"issue count warns", 90, 5, []string{models.AlertKindIssueCount}, models.AlertSeverityWarning},
		{"boundary 70 is healthy", 70, 0, nil, ""},
		{"boundary 50 is low not critical", 50, 0, []string{models.AlertKindLowQuality}, models.AlertSeverityWarning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			monitor := NewMonitor(100, arbor.NewLogger())
			alerts := monitor.Record(record("job-1", tt.score, tt.issues))

			if len(alerts) != len(tt.wantKinds) {
				t.Fatalf("alerts = %d, want %d: %+v", len(alerts), len(tt.wantKinds), alerts)
			}
			for i, kind := range tt.wantKinds {
				if alerts[i].Kind != kind {
					t.Errorf("alert kind = %s, want %s", alerts[i].Kind, kind)
				}
				if alerts[i].Severity != tt.wantSeverity {
					t.Errorf("severity = %s, want %s", alerts[i].Severity, tt.wantSeverity)
				}
			}
		})
	}
}

func TestRecord_LowScoreWithManyIssues(t *testing.T) {
	monitor := NewMonitor(100, arbor.NewLogger())

	alerts := monitor.Record(record("job-1", 45, 6))
	if len(alerts) != 2 {
		t.Fatalf("alerts = %d, want critical score + issue count", len(alerts))
	}
	if alerts[0].Kind != models.AlertKindCriticalQuality || alerts[1].Kind != models.AlertKindIssueCount {
		t.Errorf("alert kinds = [%s %s]", alerts[0].Kind, alerts[1].Kind)
	}
}

func TestRecord_RegressionTrend(t *testing.T) {
	monitor := NewMonitor(100, arbor.NewLogger())

	// First window: strong scores.
	for i := 0; i < 10; i++ {
		monitor.Record(record(fmt.Sprintf("good-%d", i), 90, 0))
	}
	// Second window: 9 mediocre scores, no regression alert until the
	// window completes.
	for i := 0; i < 9; i++ {
		alerts := monitor.Record(record(fmt.Sprintf("bad-%d", i), 75, 0))
		for _, a := range alerts {
			if a.Kind == models.AlertKindRegression {
				t.Fatalf("regression fired early at record %d", i)
			}
		}
	}

	// 20th record completes the comparison: mean drops 90 -> 75.
	alerts := monitor.Record(record("bad-9", 75, 0))
	found := false
	for _, a := range alerts {
		if a.Kind == models.AlertKindRegression {
			found = true
		}
	}
	if !found {
		t.Error("expected regression alert after sustained 15-point drop")
	}
}

func TestRecord_NoRegressionOnStableScores(t *testing.T) {
	monitor := NewMonitor(100, arbor.NewLogger())

	for i := 0; i < 30; i++ {
		alerts := monitor.Record(record(fmt.Sprintf("job-%d", i), 85, 0))
		for _, a := range alerts {
			if a.Kind == models.AlertKindRegression {
				t.Fatalf("regression fired on stable scores at record %d", i)
			}
		}
	}
}

func TestStatistics(t *testing.T) {
	monitor := NewMonitor(100, arbor.NewLogger())

	monitor.Record(record("job-1", 90, 0))
	monitor.Record(record("job-2", 60, 0)) // low
	monitor.Record(record("job-3", 40, 0)) // low + critical
	monitor.Record(record("job-4", 80, 0))

	stats := monitor.Statistics()
	if stats.RecordCount != 4 {
		t.Errorf("record count = %d, want 4", stats.RecordCount)
	}
	if math.Abs(stats.MeanAEO-67.5) > 1e-9 {
		t.Errorf("mean = %f, want 67.5", stats.MeanAEO)
	}
	if math.Abs(stats.LowQualityRate-0.5) > 1e-9 {
		t.Errorf("low rate = %f, want 0.5", stats.LowQualityRate)
	}
	if math.Abs(stats.CriticalRate-0.25) > 1e-9 {
		t.Errorf("critical rate = %f, want 0.25", stats.CriticalRate)
	}
	if stats.RecentAlertCount != 2 {
		t.Errorf("alert count = %d, want 2", stats.RecentAlertCount)
	}
}

func TestStatistics_EmptyWindow(t *testing.T) {
	monitor := NewMonitor(100, arbor.NewLogger())

	stats := monitor.Statistics()
	if stats.RecordCount != 0 || stats.MeanAEO != 0 {
		t.Errorf("empty stats = %+v, want zeros", stats)
	}
}

func TestWindowBounded(t *testing.T) {
	monitor := NewMonitor(5, arbor.NewLogger())

	for i := 0; i < 12; i++ {
		monitor.Record(record(fmt.Sprintf("job-%d", i), 85, 0))
	}

	stats := monitor.Statistics()
	if stats.RecordCount != 5 {
		t.Errorf("record count = %d, want capacity 5", stats.RecordCount)
	}
}

func TestRecentAlerts_NewestFirst(t *testing.T) {
	monitor := NewMonitor(100, arbor.NewLogger())

	monitor.Record(record("job-1", 40, 0))
	monitor.Record(record("job-2", 60, 0))
	monitor.Record(record("job-3", 45, 0))

	alerts := monitor.RecentAlerts(2)
	if len(alerts) != 2 {
		t.Fatalf("alerts = %d, want 2", len(alerts))
	}
	if alerts[0].JobID != "job-3" || alerts[1].JobID != "job-2" {
		t.Errorf("order = [%s %s], want newest first", alerts[0].JobID, alerts[1].JobID)
	}

	all := monitor.RecentAlerts(0)
	if len(all) != 3 {
		t.Errorf("unlimited alerts = %d, want 3", len(all))
	}
}

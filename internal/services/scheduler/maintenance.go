// -----------------------------------------------------------------------
// Maintenance Jobs - retention purge, batch sweep, quality snapshot
// -----------------------------------------------------------------------

package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
)

// RegisterMaintenanceJobs wires the standing maintenance jobs onto the
// scheduler: terminal-job retention, similarity batch expiry, and a periodic
// quality statistics snapshot.
func RegisterMaintenanceJobs(
	sched interfaces.SchedulerService,
	cfg *common.Config,
	jobs interfaces.JobStorage,
	artifacts interfaces.ArtifactStorage,
	similarity interfaces.SimilarityChecker,
	monitor interfaces.QualityMonitor,
	logger arbor.ILogger,
) error {
	schedule := cfg.Scheduler.Schedule
	if schedule == "" {
		schedule = "*/5 * * * *"
	}

	retention := 168 * time.Hour
	if d, err := time.ParseDuration(cfg.Scheduler.JobRetention); err == nil && d > 0 {
		retention = d
	}

	if err := sched.RegisterJob(
		"retention_purge",
		schedule,
		"Delete terminal jobs and their artifacts past the retention window",
		func() error { return purgeExpiredJobs(jobs, artifacts, retention, logger) },
	); err != nil {
		return fmt.Errorf("failed to register retention job: %w", err)
	}

	if similarity != nil {
		if err := sched.RegisterJob(
			"similarity_sweep",
			schedule,
			"Drop similarity batch memories idle past their TTL",
			func() error { similarity.PurgeExpired(); return nil },
		); err != nil {
			return fmt.Errorf("failed to register similarity sweep: %w", err)
		}
	}

	if monitor != nil {
		if err := sched.RegisterJob(
			"quality_snapshot",
			schedule,
			"Log the quality monitor's rolling statistics",
			func() error { logQualitySnapshot(monitor, logger); return nil },
		); err != nil {
			return fmt.Errorf("failed to register quality snapshot: %w", err)
		}
	}

	return nil
}

// purgeExpiredJobs deletes completed and failed jobs whose terminal time
// predates the retention window, artifacts first so nothing orphans.
func purgeExpiredJobs(jobs interfaces.JobStorage, artifacts interfaces.ArtifactStorage, retention time.Duration, logger arbor.ILogger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-retention)
	purgedJobs, purgedArtifacts := 0, 0

	for _, status := range []models.JobStatus{models.JobStatusCompleted, models.JobStatusFailed} {
		expired, err := jobs.GetJobsByStatus(ctx, status)
		if err != nil {
			return fmt.Errorf("failed to list %s jobs: %w", status, err)
		}

		for _, job := range expired {
			terminal := job.CompletedAt
			if terminal == nil {
				terminal = &job.CreatedAt
			}
			if !terminal.Before(cutoff) {
				continue
			}

			if n, err := artifacts.DeleteByJob(ctx, job.ID); err != nil {
				logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to delete job artifacts")
			} else {
				purgedArtifacts += n
			}

			if err := jobs.DeleteJob(ctx, job.ID); err != nil {
				logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to delete expired job")
				continue
			}
			purgedJobs++
		}
	}

	if purgedJobs > 0 {
		logger.Info().
			Int("jobs_purged", purgedJobs).
			Int("artifacts_purged", purgedArtifacts).
			Str("retention", retention.String()).
			Msg("Purged expired jobs")
	}

	return nil
}

// logQualitySnapshot writes the monitor's rolling window to the log so
// operators can watch quality drift without hitting the API.
func logQualitySnapshot(monitor interfaces.QualityMonitor, logger arbor.ILogger) {
	stats := monitor.Statistics()
	if stats.RecordCount == 0 {
		return
	}

	logger.Info().
		Int("record_count", stats.RecordCount).
		Float64("mean_aeo", stats.MeanAEO).
		Float64("low_quality_rate", stats.LowQualityRate).
		Float64("critical_rate", stats.CriticalRate).
		Int("recent_alerts", stats.RecentAlertCount).
		Msg("Quality monitor snapshot")
}

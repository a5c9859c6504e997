package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
)

// Engine executes the canonical pipeline for one job at a time. It owns
// failure classification, the non-blocking quality gate with its bounded
// regeneration loop, the parallel fan-out, and terminal reporting into the
// job store. Stage semantics live in the stage implementations; the engine
// only sequences them.
type Engine struct {
	registry  *Registry
	jobs      interfaces.JobStorage
	artifacts interfaces.ArtifactStorage
	events    interfaces.EventService
	scorer    interfaces.QualityScorer
	monitor   interfaces.QualityMonitor
	config    *common.Config
	logger    arbor.ILogger
}

// NewEngine wires the engine. The scorer and monitor are optional; a nil
// scorer disables the quality gate, a nil monitor disables trend tracking.
func NewEngine(
	registry *Registry,
	jobs interfaces.JobStorage,
	artifacts interfaces.ArtifactStorage,
	events interfaces.EventService,
	scorer interfaces.QualityScorer,
	monitor interfaces.QualityMonitor,
	config *common.Config,
	logger arbor.ILogger,
) *Engine {
	return &Engine{
		registry:  registry,
		jobs:      jobs,
		artifacts: artifacts,
		events:    events,
		scorer:    scorer,
		monitor:   monitor,
		config:    config,
		logger:    logger,
	}
}

// attemptSnapshot captures what the quality gate needs to restore a prior
// attempt when regeneration never beats it.
type attemptSnapshot struct {
	attempt   int
	validated models.ValidatedArticle
	report    *models.QualityReport
}

func (s *attemptSnapshot) score() int {
	if s == nil || s.report == nil {
		return -1
	}
	return s.report.AEOScore
}

// Execute runs one job through the pipeline to a terminal status. The
// returned error is the critical failure that terminated the job, or nil on
// completion. Advisory failures never surface here; they live in the job's
// error list.
func (e *Engine) Execute(ctx context.Context, job *models.Job) error {
	ec := NewContext(job, e.logger)
	tracker := newProgressTracker(e.progressSink(job))

	job.MarkStarted()
	job.Attempt = 1
	e.updateJob(job)

	e.logger.Info().
		Str("job_id", job.ID).
		Str("keyword", job.Keyword).
		Str("batch_id", job.BatchID).
		Msg("Pipeline started")

	start := time.Now()
	err := e.run(ctx, ec, tracker)

	// Terminal reporting happens on a fresh context: the job context may
	// already be cancelled and the artifacts must still land.
	e.writeReportArtifacts(context.Background(), ec)
	e.adoptResults(ec)

	if err != nil {
		tracker.failedStage(currentStageID(ec), err.Error())
		job.MarkFailed(err.Error(), lastErrorDetail(ec))
		e.updateJob(job)
		e.publish(interfaces.EventJobFailed, job.Summary())
		e.logger.Warn().
			Str("job_id", job.ID).
			Dur("duration", time.Since(start)).
			Err(err).
			Msg("Pipeline failed")
		return err
	}

	job.MarkCompleted()
	e.updateJob(job)
	e.publish(interfaces.EventJobCompleted, job.Summary())
	e.logger.Info().
		Str("job_id", job.ID).
		Int("attempts", ec.Attempt).
		Dur("duration", time.Since(start)).
		Msg("Pipeline completed")
	return nil
}

// run drives the stage sequence: sequential prefix, the gated generation
// loop, then the overlapped tail.
func (e *Engine) run(ctx context.Context, ec *Context, tracker *progressTracker) error {
	for _, id := range []StageID{StageDataFetch, StagePromptBuild} {
		if err := e.runSequential(ctx, ec, tracker, id); err != nil {
			return err
		}
	}

	if err := e.runGenerationLoop(ctx, ec, tracker); err != nil {
		return err
	}

	return e.runTail(ctx, ec, tracker)
}

// runGenerationLoop executes generate..merge, scores the result, and retries
// from generate while the gate fails and attempts remain. When attempts run
// out the best-scoring attempt wins, ties going to the most recent.
func (e *Engine) runGenerationLoop(ctx context.Context, ec *Context, tracker *progressTracker) error {
	maxAttempts := e.config.Engine.MaxRegenerationAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var best *attemptSnapshot
	for {
		if err := e.runGenerationBand(ctx, ec, tracker); err != nil {
			return err
		}

		report := e.scoreAttempt(ctx, ec)
		if report.Skipped || report.GatePassed {
			return nil
		}

		snap := &attemptSnapshot{attempt: ec.Attempt, validated: ec.Validated, report: report}
		if snap.score() >= best.score() {
			best = snap
		}

		if ec.Attempt >= maxAttempts {
			if best.attempt != ec.Attempt {
				ec.Validated = best.validated
				ec.QualityReport = best.report
			}
			ec.AddError(models.ErrorTypeQuality, StageMerge,
				fmt.Sprintf("aeo score %d below gate %d after %d attempts, best attempt %d kept",
					best.score(), e.config.Engine.AEOGateThreshold, ec.Attempt, best.attempt), "")
			e.logger.Warn().
				Str("job_id", ec.Job.ID).
				Int("aeo_score", best.score()).
				Int("attempts", ec.Attempt).
				Msg("Quality gate exhausted, continuing with best attempt")
			return nil
		}

		e.logger.Info().
			Str("job_id", ec.Job.ID).
			Int("aeo_score", report.AEOScore).
			Int("gate_threshold", e.config.Engine.AEOGateThreshold).
			Int("attempt", ec.Attempt).
			Msg("Quality gate failed, regenerating")

		ec.ResetForRegeneration()
		ec.Job.Attempt = ec.Attempt
		e.updateJob(ec.Job)
	}
}

// runGenerationBand executes one attempt: generate, extract, refine, the
// parallel fan-out, then merge.
func (e *Engine) runGenerationBand(ctx context.Context, ec *Context, tracker *progressTracker) error {
	for _, id := range []StageID{StageGenerate, StageExtract, StageRefine} {
		if err := e.runSequential(ctx, ec, tracker, id); err != nil {
			return err
		}
	}

	if err := e.runParallelBand(ctx, ec, tracker); err != nil {
		return err
	}

	return e.runSequential(ctx, ec, tracker, StageMerge)
}

// runTail persists the final article while the similarity check runs
// alongside it. Persistence consumes only the validated article, so the two
// never race; both are awaited before terminal status.
func (e *Engine) runTail(ctx context.Context, ec *Context, tracker *progressTracker) error {
	if err := ctx.Err(); err != nil {
		return e.recordCancelled(ec, StagePersist, err)
	}

	persist := e.registry.Stage(StagePersist)
	similarity := e.registry.Stage(StageSimilarity)

	tracker.starting(StagePersist)
	persistCh := make(chan error, 1)
	go func() {
		persistCh <- e.executeStage(ctx, persist, ec)
	}()

	tracker.starting(StageSimilarity)
	simErr := e.executeStage(ctx, similarity, ec)
	persistErr := <-persistCh

	if simErr != nil {
		etype := classify(StageSimilarity, simErr)
		ec.AddError(etype, StageSimilarity, simErr.Error(), "")
		tracker.failedStage(StageSimilarity, simErr.Error())
		e.logger.Warn().Str("job_id", ec.Job.ID).Err(simErr).Msg("Similarity check failed")
	} else {
		tracker.finished(StageSimilarity)
		if ec.SimilarityReport != nil && ec.SimilarityReport.Flagged {
			e.raiseSimilarityAlert(ec)
		}
	}

	if persistErr != nil {
		etype := classify(StagePersist, persistErr)
		ec.AddError(etype, StagePersist, persistErr.Error(), "")
		if etype == models.ErrorTypeCancelled {
			return fmt.Errorf("persist cancelled: %w", persistErr)
		}
		return fmt.Errorf("persist failed: %w", persistErr)
	}
	tracker.finished(StagePersist)
	return nil
}

// runSequential runs one stage in the sequential bands, classifying any
// failure. Only fatal classifications return an error; advisory failures are
// recorded and swallowed so the pipeline continues.
func (e *Engine) runSequential(ctx context.Context, ec *Context, tracker *progressTracker, id StageID) error {
	if err := ctx.Err(); err != nil {
		return e.recordCancelled(ec, id, err)
	}

	stage := e.registry.Stage(id)
	tracker.starting(id)

	err := e.executeStage(ctx, stage, ec)
	if err == nil {
		tracker.finished(id)
		e.updateJob(ec.Job)
		return nil
	}

	etype := classify(id, err)
	ec.AddError(etype, id, err.Error(), "")

	switch etype {
	case models.ErrorTypeAdvisory:
		e.logger.Warn().
			Str("job_id", ec.Job.ID).
			Str("stage", stage.Name()).
			Err(err).
			Msg("Advisory stage failed, continuing")
		tracker.report(id, bandFor(id).endPct, true, true, err.Error())
		return nil
	case models.ErrorTypeCancelled:
		tracker.failedStage(id, "cancelled")
		return fmt.Errorf("stage %s cancelled: %w", stage.Name(), err)
	default:
		tracker.failedStage(id, err.Error())
		return fmt.Errorf("stage %s failed: %w", stage.Name(), err)
	}
}

// runParallelBand fans out the enrichment stages, bounded by the configured
// concurrency limit. Each stage writes only its own context field, so the
// band needs no locking beyond the shared error list. Failures here are
// always advisory; there is no cross-cancellation between siblings.
func (e *Engine) runParallelBand(ctx context.Context, ec *Context, tracker *progressTracker) error {
	stages := e.registry.Parallel()

	var sem chan struct{}
	if limit := e.config.Engine.ParallelStageLimit; limit > 0 && limit < len(stages) {
		sem = make(chan struct{}, limit)
	}

	type outcome struct {
		id  StageID
		err error
	}

	for _, s := range stages {
		tracker.report(s.ID(), parallelBandStart, false, false, "Starting "+s.Name())
	}

	results := make(chan outcome, len(stages))
	var wg sync.WaitGroup
	for _, s := range stages {
		wg.Add(1)
		go func(s Stage) {
			defer wg.Done()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			results <- outcome{id: s.ID(), err: e.executeStage(ctx, s, ec)}
		}(s)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	settled := 0
	for out := range results {
		settled++
		percent := parallelPercent(settled, len(stages))
		if out.err != nil {
			etype := classify(out.id, out.err)
			ec.AddError(etype, out.id, out.err.Error(), "")
			e.logger.Warn().
				Str("job_id", ec.Job.ID).
				Str("stage", StageName(out.id)).
				Err(out.err).
				Msg("Parallel stage failed")
			tracker.report(out.id, percent, true, true, out.err.Error())
			continue
		}
		tracker.report(out.id, percent, true, false, "Completed "+StageName(out.id))
	}
	e.updateJob(ec.Job)

	if err := ctx.Err(); err != nil {
		return e.recordCancelled(ec, StageMerge, err)
	}
	return nil
}

// executeStage applies the per-stage timeout and runs the stage.
func (e *Engine) executeStage(ctx context.Context, s Stage, ec *Context) error {
	if timeout := e.config.Engine.StageTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	err := s.Execute(ctx, ec)
	e.logger.Debug().
		Str("job_id", ec.Job.ID).
		Str("stage", s.Name()).
		Int("attempt", ec.Attempt).
		Dur("duration", time.Since(start)).
		Msg("Stage settled")
	return err
}

// scoreAttempt computes the quality report for the current merge output,
// feeds the monitor, and publishes any alerts. Scoring is advisory: a
// missing or failing scorer skips the gate and the attempt stands.
func (e *Engine) scoreAttempt(ctx context.Context, ec *Context) *models.QualityReport {
	report := &models.QualityReport{Attempt: ec.Attempt, ScoredAt: time.Now()}

	if e.scorer == nil {
		report.Skipped = true
		ec.QualityReport = report
		return report
	}

	score, issues, err := e.scorer.Score(ctx, ec.Validated, ec.Job.Keyword)
	if err != nil {
		e.logger.Warn().Str("job_id", ec.Job.ID).Err(err).Msg("Quality scoring failed, gate skipped")
		ec.AddError(models.ErrorTypeAdvisory, StageMerge, "quality scoring failed: "+err.Error(), "")
		report.Skipped = true
		ec.QualityReport = report
		return report
	}

	report.AEOScore = score
	report.CriticalIssues = issues
	report.GatePassed = score >= e.config.Engine.AEOGateThreshold
	ec.QualityReport = report

	e.logger.Info().
		Str("job_id", ec.Job.ID).
		Int("aeo_score", score).
		Int("critical_issues", len(issues)).
		Bool("gate_passed", report.GatePassed).
		Int("attempt", ec.Attempt).
		Msg("Attempt scored")

	if e.monitor != nil {
		alerts := e.monitor.Record(models.QualityRecord{
			JobID:              ec.Job.ID,
			AEOScore:           score,
			CriticalIssueCount: len(issues),
			Timestamp:          time.Now(),
		})
		for _, alert := range alerts {
			e.logger.Warn().
				Str("job_id", alert.JobID).
				Str("kind", alert.Kind).
				Str("severity", string(alert.Severity)).
				Msg(alert.Message)
			e.publish(interfaces.EventQualityAlert, alert)
		}
	}
	return report
}

// raiseSimilarityAlert publishes the warning for a flagged similarity report.
func (e *Engine) raiseSimilarityAlert(ec *Context) {
	report := ec.SimilarityReport
	alert := models.Alert{
		Severity: models.AlertSeverityWarning,
		Kind:     models.AlertKindSimilarity,
		Message: fmt.Sprintf("article similarity %.2f against job %s exceeds threshold",
			report.Hybrid, report.NearestJobID),
		JobID:     ec.Job.ID,
		Timestamp: time.Now(),
	}
	e.logger.Warn().
		Str("job_id", ec.Job.ID).
		Str("nearest_job_id", report.NearestJobID).
		Msg(alert.Message)
	e.publish(interfaces.EventSimilarityAlert, alert)
}

// writeReportArtifacts stores the quality, similarity, and error reports.
// Called after the tail settles, and on the failure path with whatever
// exists; report artifacts never fail the job.
func (e *Engine) writeReportArtifacts(ctx context.Context, ec *Context) {
	if ec.QualityReport != nil {
		e.saveJSONArtifact(ctx, ec, "quality_report.json", ec.QualityReport)
	}

	simReport := ec.SimilarityReport
	if simReport == nil {
		simReport = &models.SimilarityReport{CheckedAt: time.Now()}
	}
	e.saveJSONArtifact(ctx, ec, "similarity_report.json", simReport)

	e.saveJSONArtifact(ctx, ec, "errors.json", ec.Errors())
}

func (e *Engine) saveJSONArtifact(ctx context.Context, ec *Context, key string, v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		e.logger.Warn().Str("job_id", ec.Job.ID).Str("key", key).Err(err).Msg("Report marshal failed")
		return
	}
	ref, err := e.artifacts.Save(ctx, ec.Job.ID, key, "application/json", data)
	if err != nil {
		e.logger.Warn().Str("job_id", ec.Job.ID).Str("key", key).Err(err).Msg("Report write failed")
		return
	}
	ec.Job.Artifacts = append(ec.Job.Artifacts, *ref)
}

// adoptResults copies the context outcome onto the job record for storage.
func (e *Engine) adoptResults(ec *Context) {
	job := ec.Job
	job.Errors = ec.Errors()
	if ec.Validated != nil {
		job.Result = ec.Validated
	}
	if ec.QualityReport != nil && !ec.QualityReport.Skipped {
		score := ec.QualityReport.AEOScore
		job.AEOScore = &score
	}
	if ec.StorageResult != nil {
		job.Artifacts = append(job.Artifacts, ec.StorageResult.Artifacts...)
	}
}

// recordCancelled books the cancellation and returns the terminal error.
func (e *Engine) recordCancelled(ec *Context, id StageID, cause error) error {
	ec.AddError(models.ErrorTypeCancelled, id, "cancelled", cause.Error())
	e.logger.Info().Str("job_id", ec.Job.ID).Str("stage", StageName(id)).Msg("Job cancelled")
	return fmt.Errorf("cancelled at stage %s: %w", StageName(id), cause)
}

// progressSink bridges tracker updates onto the job record and event bus.
func (e *Engine) progressSink(job *models.Job) ProgressFunc {
	return func(update ProgressUpdate) {
		job.Progress = update.Percent
		job.CurrentStage = update.Stage
		e.publish(interfaces.EventJobProgress, map[string]interface{}{
			"job_id":  job.ID,
			"stage":   update.Stage,
			"percent": update.Percent,
			"done":    update.Done,
			"failed":  update.Failed,
			"message": update.Message,
		})
	}
}

// updateJob persists the job record. Progress fields are flushed once per
// stage transition; per-update persistence would hammer the store.
func (e *Engine) updateJob(job *models.Job) {
	if err := e.jobs.UpdateJob(context.Background(), job); err != nil {
		e.logger.Warn().Str("job_id", job.ID).Err(err).Msg("Job update failed")
	}
}

func (e *Engine) publish(eventType interfaces.EventType, payload interface{}) {
	if e.events == nil {
		return
	}
	if err := e.events.Publish(context.Background(), interfaces.Event{Type: eventType, Payload: payload}); err != nil {
		e.logger.Debug().Err(err).Str("event", string(eventType)).Msg("Event publish failed")
	}
}

// classify maps a stage error to its failure record type.
func classify(id StageID, err error) models.StageErrorType {
	switch {
	case errors.Is(err, context.Canceled):
		return models.ErrorTypeCancelled
	case errors.Is(err, models.ErrArticleValidation):
		return models.ErrorTypeValidation
	case IsCritical(id):
		return models.ErrorTypeCritical
	default:
		return models.ErrorTypeAdvisory
	}
}

// currentStageID picks the stage to blame in a terminal failure update.
func currentStageID(ec *Context) StageID {
	errs := ec.Errors()
	for i := len(errs) - 1; i >= 0; i-- {
		if errs[i].IsFatal() {
			return StageID(errs[i].Stage)
		}
	}
	if len(errs) > 0 {
		return StageID(errs[len(errs)-1].Stage)
	}
	return StageDataFetch
}

// lastErrorDetail returns the detail of the most recent fatal record.
func lastErrorDetail(ec *Context) string {
	errs := ec.Errors()
	for i := len(errs) - 1; i >= 0; i-- {
		if errs[i].IsFatal() {
			return errs[i].Detail
		}
	}
	return ""
}

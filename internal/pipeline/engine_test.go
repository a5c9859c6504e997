package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
)

// ---- fakes ----

// recordingStage counts executions and runs an optional hook against the
// execution context.
type recordingStage struct {
	id   StageID
	mu   sync.Mutex
	runs int
	hook func(ctx context.Context, ec *Context) error
}

func (s *recordingStage) ID() StageID    { return s.id }
func (s *recordingStage) Name() string   { return StageName(s.id) }
func (s *recordingStage) Critical() bool { return IsCritical(s.id) }
func (s *recordingStage) Execute(ctx context.Context, ec *Context) error {
	s.mu.Lock()
	s.runs++
	s.mu.Unlock()
	if s.hook != nil {
		return s.hook(ctx, ec)
	}
	return nil
}

func (s *recordingStage) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

type memJobStorage struct {
	mu   sync.Mutex
	jobs map[string]*models.Job
}

func newMemJobStorage() *memJobStorage {
	return &memJobStorage{jobs: make(map[string]*models.Job)}
}

func (s *memJobStorage) SaveJob(ctx context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *memJobStorage) GetJob(ctx context.Context, id string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s not found", id)
	}
	copied := *job
	return &copied, nil
}

func (s *memJobStorage) UpdateJob(ctx context.Context, job *models.Job) error {
	return s.SaveJob(ctx, job)
}

func (s *memJobStorage) DeleteJob(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	return nil
}

func (s *memJobStorage) ListJobs(ctx context.Context, opts *interfaces.ListOptions) ([]*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Job
	for _, j := range s.jobs {
		copied := *j
		out = append(out, &copied)
	}
	return out, nil
}

func (s *memJobStorage) GetJobsByStatus(ctx context.Context, status models.JobStatus) ([]*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Job
	for _, j := range s.jobs {
		if j.Status == status {
			copied := *j
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *memJobStorage) GetJobsByBatch(ctx context.Context, batchID string) ([]*models.Job, error) {
	return nil, nil
}

func (s *memJobStorage) CountJobs(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs), nil
}

func (s *memJobStorage) CountJobsByStatus(ctx context.Context, status models.JobStatus) (int, error) {
	jobs, _ := s.GetJobsByStatus(ctx, status)
	return len(jobs), nil
}

type memArtifactStorage struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemArtifactStorage() *memArtifactStorage {
	return &memArtifactStorage{data: make(map[string][]byte)}
}

func (s *memArtifactStorage) key(jobID, key string) string { return jobID + "/" + key }

func (s *memArtifactStorage) Save(ctx context.Context, jobID, key, contentType string, data []byte) (*models.ArtifactRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[s.key(jobID, key)] = data
	return &models.ArtifactRef{Key: key, Location: s.key(jobID, key), ContentType: contentType, Size: len(data)}, nil
}

func (s *memArtifactStorage) Get(ctx context.Context, jobID, key string) ([]byte, *models.ArtifactRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.data[s.key(jobID, key)]
	if !ok {
		return nil, nil, fmt.Errorf("artifact %s not found", key)
	}
	return data, &models.ArtifactRef{Key: key, Location: s.key(jobID, key), Size: len(data)}, nil
}

func (s *memArtifactStorage) List(ctx context.Context, jobID string) ([]*models.ArtifactRef, error) {
	return nil, nil
}

func (s *memArtifactStorage) DeleteByJob(ctx context.Context, jobID string) (int, error) {
	return 0, nil
}

func (s *memArtifactStorage) Has(jobID, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[s.key(jobID, key)]
	return ok
}

type recordingEvents struct {
	mu     sync.Mutex
	events []interfaces.Event
}

func (e *recordingEvents) Subscribe(t interfaces.EventType, h interfaces.EventHandler) error   { return nil }
func (e *recordingEvents) Unsubscribe(t interfaces.EventType, h interfaces.EventHandler) error { return nil }
func (e *recordingEvents) Publish(ctx context.Context, ev interfaces.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return nil
}
func (e *recordingEvents) PublishSync(ctx context.Context, ev interfaces.Event) error {
	return e.Publish(ctx, ev)
}
func (e *recordingEvents) Close() error { return nil }

func (e *recordingEvents) countByType(t interfaces.EventType) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, ev := range e.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

// scriptedScorer returns queued scores in order, then repeats the last one.
type scriptedScorer struct {
	mu     sync.Mutex
	scores []int
	issues [][]string
	err    error
	calls  int
}

func (s *scriptedScorer) Score(ctx context.Context, article models.ValidatedArticle, keyword string) (int, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, nil, s.err
	}
	idx := s.calls
	if idx >= len(s.scores) {
		idx = len(s.scores) - 1
	}
	s.calls++
	var issues []string
	if idx < len(s.issues) {
		issues = s.issues[idx]
	}
	return s.scores[idx], issues, nil
}

type recordingMonitor struct {
	mu      sync.Mutex
	records []models.QualityRecord
}

func (m *recordingMonitor) Record(rec models.QualityRecord) []models.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}
func (m *recordingMonitor) Statistics() models.QualityStatistics  { return models.QualityStatistics{} }
func (m *recordingMonitor) RecentAlerts(limit int) []models.Alert { return nil }

func (m *recordingMonitor) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// ---- harness ----

type engineHarness struct {
	engine    *Engine
	stages    map[StageID]*recordingStage
	jobs      *memJobStorage
	artifacts *memArtifactStorage
	events    *recordingEvents
	monitor   *recordingMonitor
}

// newEngineHarness builds an engine over recording fakes. The default stage
// hooks simulate a successful run end to end.
func newEngineHarness(t *testing.T, scorer interfaces.QualityScorer) *engineHarness {
	t.Helper()

	stages := make(map[StageID]*recordingStage)
	var stageList []Stage
	for id := FirstStageID; id <= LastStageID; id++ {
		s := &recordingStage{id: id}
		stages[id] = s
		stageList = append(stageList, s)
	}

	stages[StageDataFetch].hook = func(ctx context.Context, ec *Context) error {
		ec.CompanyData = &models.CompanyData{URL: ec.Job.CompanyURL, Name: "Example"}
		return nil
	}
	stages[StagePromptBuild].hook = func(ctx context.Context, ec *Context) error {
		ec.Prompt = "write about " + ec.Job.Keyword
		return nil
	}
	stages[StageGenerate].hook = func(ctx context.Context, ec *Context) error {
		ec.RawArticle = fmt.Sprintf("raw draft attempt %d", ec.Attempt)
		return nil
	}
	stages[StageExtract].hook = func(ctx context.Context, ec *Context) error {
		ec.Draft = &models.ArticleDraft{Headline: "Headline " + fmt.Sprint(ec.Attempt)}
		return nil
	}
	stages[StageMerge].hook = func(ctx context.Context, ec *Context) error {
		ec.Validated = models.ValidatedArticle{
			"headline": ec.Draft.Headline,
			"attempt":  ec.Attempt,
		}
		return nil
	}
	stages[StagePersist].hook = func(ctx context.Context, ec *Context) error {
		ec.StorageResult = &models.StorageResult{
			Location:  "jobs/" + ec.Job.ID,
			Artifacts: []models.ArtifactRef{{Key: "article.json"}},
		}
		return nil
	}
	stages[StageSimilarity].hook = func(ctx context.Context, ec *Context) error {
		ec.SimilarityReport = &models.SimilarityReport{Compared: 1, Hybrid: 0.1, CheckedAt: time.Now()}
		return nil
	}

	registry, err := NewRegistry(stageList)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	cfg := common.NewDefaultConfig()
	cfg.Engine.StageTimeoutDefault = "5s"

	h := &engineHarness{
		stages:    stages,
		jobs:      newMemJobStorage(),
		artifacts: newMemArtifactStorage(),
		events:    &recordingEvents{},
		monitor:   &recordingMonitor{},
	}
	h.engine = NewEngine(registry, h.jobs, h.artifacts, h.events, scorer, h.monitor, cfg, arbor.NewLogger())
	return h
}

func newTestJob() *models.Job {
	return models.NewJob(&models.JobRequest{
		Keyword:    "cloud security best practices",
		CompanyURL: "https://example.com",
		BatchID:    "batch-1",
	})
}

// ---- tests ----

func TestEngine_HappyPath(t *testing.T) {
	h := newEngineHarness(t, &scriptedScorer{scores: []int{92}})
	job := newTestJob()

	if err := h.engine.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if job.Status != models.JobStatusCompleted {
		t.Errorf("status = %s, want completed", job.Status)
	}
	if job.Progress != 100 {
		t.Errorf("progress = %d, want 100", job.Progress)
	}
	if len(job.Errors) != 0 {
		t.Errorf("errors = %v, want empty", job.Errors)
	}
	if job.AEOScore == nil || *job.AEOScore != 92 {
		t.Errorf("aeo_score = %v, want 92", job.AEOScore)
	}

	// Every stage ran exactly once.
	for id := FirstStageID; id <= LastStageID; id++ {
		if runs := h.stages[id].Runs(); runs != 1 {
			t.Errorf("stage %s ran %d times, want 1", StageName(id), runs)
		}
	}

	// Report artifacts always land.
	for _, key := range []string{"quality_report.json", "similarity_report.json", "errors.json"} {
		if !h.artifacts.Has(job.ID, key) {
			t.Errorf("artifact %s missing", key)
		}
	}

	if h.events.countByType(interfaces.EventJobCompleted) != 1 {
		t.Error("expected one job_completed event")
	}
	if h.monitor.Count() != 1 {
		t.Errorf("monitor recorded %d attempts, want 1", h.monitor.Count())
	}
}

func TestEngine_AdvisoryParallelFailure(t *testing.T) {
	h := newEngineHarness(t, &scriptedScorer{scores: []int{85}})
	h.stages[StageCitations].hook = func(ctx context.Context, ec *Context) error {
		return errors.New("citation source unreachable")
	}
	job := newTestJob()

	if err := h.engine.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if job.Status != models.JobStatusCompleted {
		t.Errorf("status = %s, want completed despite advisory failure", job.Status)
	}
	if len(job.Errors) != 1 {
		t.Fatalf("errors = %d, want 1", len(job.Errors))
	}
	if job.Errors[0].Type != models.ErrorTypeAdvisory {
		t.Errorf("error type = %s, want advisory", job.Errors[0].Type)
	}
	if job.Errors[0].Stage != int(StageCitations) {
		t.Errorf("error stage = %d, want %d", job.Errors[0].Stage, StageCitations)
	}

	// Siblings still ran.
	for _, id := range []StageID{StageInternalLinks, StageTOC, StageMetadata, StageFAQ, StageImage} {
		if h.stages[id].Runs() != 1 {
			t.Errorf("stage %s did not run", StageName(id))
		}
	}
}

func TestEngine_QualityRegeneration(t *testing.T) {
	h := newEngineHarness(t, &scriptedScorer{scores: []int{62, 84}})
	job := newTestJob()

	if err := h.engine.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if job.Status != models.JobStatusCompleted {
		t.Errorf("status = %s, want completed", job.Status)
	}
	if job.AEOScore == nil || *job.AEOScore != 84 {
		t.Errorf("aeo_score = %v, want 84 (second attempt)", job.AEOScore)
	}
	if len(job.Errors) != 0 {
		t.Errorf("errors = %v, want empty (regeneration is not an error)", job.Errors)
	}

	// Prefix ran once, generation band twice.
	if h.stages[StageDataFetch].Runs() != 1 || h.stages[StagePromptBuild].Runs() != 1 {
		t.Error("prefix stages must not re-run on regeneration")
	}
	for _, id := range []StageID{StageGenerate, StageExtract, StageRefine, StageCitations, StageMerge} {
		if runs := h.stages[id].Runs(); runs != 2 {
			t.Errorf("stage %s ran %d times, want 2", StageName(id), runs)
		}
	}
	// Tail runs once, on the winning attempt.
	if h.stages[StagePersist].Runs() != 1 || h.stages[StageSimilarity].Runs() != 1 {
		t.Error("tail stages must run exactly once")
	}

	// The final article reflects the second draft.
	if got := job.Result.GetString("headline"); got != "Headline 2" {
		t.Errorf("result headline = %q, want \"Headline 2\"", got)
	}

	if h.monitor.Count() != 2 {
		t.Errorf("monitor recorded %d attempts, want 2", h.monitor.Count())
	}
}

func TestEngine_RegenerationExhaustedKeepsBest(t *testing.T) {
	h := newEngineHarness(t, &scriptedScorer{scores: []int{62, 60, 58}})
	job := newTestJob()

	if err := h.engine.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if job.Status != models.JobStatusCompleted {
		t.Errorf("status = %s, want completed (underflow is non-blocking)", job.Status)
	}
	if h.stages[StageGenerate].Runs() != 3 {
		t.Errorf("generate ran %d times, want 3", h.stages[StageGenerate].Runs())
	}
	if job.AEOScore == nil || *job.AEOScore != 62 {
		t.Errorf("aeo_score = %v, want 62 (best attempt)", job.AEOScore)
	}
	if got := job.Result.GetString("headline"); got != "Headline 1" {
		t.Errorf("result headline = %q, want \"Headline 1\" (best attempt)", got)
	}

	var underflow bool
	for _, e := range job.Errors {
		if e.Type == models.ErrorTypeQuality {
			underflow = true
		}
	}
	if !underflow {
		t.Error("expected a quality_underflow record after exhausted attempts")
	}
	if h.monitor.Count() != 3 {
		t.Errorf("monitor recorded %d attempts, want 3", h.monitor.Count())
	}
}

func TestEngine_BestAttemptTieGoesToMostRecent(t *testing.T) {
	h := newEngineHarness(t, &scriptedScorer{scores: []int{60, 60, 55}})
	job := newTestJob()

	if err := h.engine.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if got := job.Result.GetString("headline"); got != "Headline 2" {
		t.Errorf("result headline = %q, want \"Headline 2\" (tie broken by recency)", got)
	}
}

func TestEngine_ScorerFailureSkipsGate(t *testing.T) {
	h := newEngineHarness(t, &scriptedScorer{err: errors.New("scorer offline")})
	job := newTestJob()

	if err := h.engine.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if job.Status != models.JobStatusCompleted {
		t.Errorf("status = %s, want completed", job.Status)
	}
	if h.stages[StageGenerate].Runs() != 1 {
		t.Errorf("generate ran %d times, want 1 (gate skipped)", h.stages[StageGenerate].Runs())
	}
	if job.AEOScore != nil {
		t.Errorf("aeo_score = %v, want nil when scoring skipped", *job.AEOScore)
	}
	if h.monitor.Count() != 0 {
		t.Error("monitor must not record skipped scoring")
	}
}

func TestEngine_CriticalFailureFailsJob(t *testing.T) {
	h := newEngineHarness(t, &scriptedScorer{scores: []int{90}})
	h.stages[StageGenerate].hook = func(ctx context.Context, ec *Context) error {
		return errors.New("model unavailable")
	}
	job := newTestJob()

	err := h.engine.Execute(context.Background(), job)
	if err == nil {
		t.Fatal("Execute should fail on critical stage error")
	}

	if job.Status != models.JobStatusFailed {
		t.Errorf("status = %s, want failed", job.Status)
	}
	if h.stages[StagePersist].Runs() != 0 {
		t.Error("persist must not run after a critical failure")
	}
	if len(job.Errors) == 0 || job.Errors[0].Type != models.ErrorTypeCritical {
		t.Errorf("expected a critical error record, got %v", job.Errors)
	}

	// errors.json still lands for post-mortem.
	if !h.artifacts.Has(job.ID, "errors.json") {
		t.Error("errors.json must be written on failure")
	}
	if h.events.countByType(interfaces.EventJobFailed) != 1 {
		t.Error("expected one job_failed event")
	}
}

func TestEngine_PersistFailureFailsJob(t *testing.T) {
	h := newEngineHarness(t, &scriptedScorer{scores: []int{90}})
	h.stages[StagePersist].hook = func(ctx context.Context, ec *Context) error {
		return errors.New("disk full")
	}
	job := newTestJob()

	if err := h.engine.Execute(context.Background(), job); err == nil {
		t.Fatal("Execute should fail on persist error")
	}
	if job.Status != models.JobStatusFailed {
		t.Errorf("status = %s, want failed", job.Status)
	}
	// Similarity settled alongside and its report still lands.
	if h.stages[StageSimilarity].Runs() != 1 {
		t.Error("similarity should have run alongside persist")
	}
}

func TestEngine_SimilarityFailureIsAdvisory(t *testing.T) {
	h := newEngineHarness(t, &scriptedScorer{scores: []int{90}})
	h.stages[StageSimilarity].hook = func(ctx context.Context, ec *Context) error {
		return errors.New("embedding service down")
	}
	job := newTestJob()

	if err := h.engine.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if job.Status != models.JobStatusCompleted {
		t.Errorf("status = %s, want completed", job.Status)
	}

	// An empty similarity report is still written.
	if !h.artifacts.Has(job.ID, "similarity_report.json") {
		t.Error("similarity_report.json must be written even when the check fails")
	}
}

func TestEngine_SimilarityAlertPublished(t *testing.T) {
	h := newEngineHarness(t, &scriptedScorer{scores: []int{90}})
	h.stages[StageSimilarity].hook = func(ctx context.Context, ec *Context) error {
		ec.SimilarityReport = &models.SimilarityReport{
			Compared:     1,
			Hybrid:       0.83,
			NearestJobID: "job-other",
			Flagged:      true,
			CheckedAt:    time.Now(),
		}
		return nil
	}
	job := newTestJob()

	if err := h.engine.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if job.Status != models.JobStatusCompleted {
		t.Errorf("status = %s, want completed (similarity never blocks)", job.Status)
	}
	if h.events.countByType(interfaces.EventSimilarityAlert) != 1 {
		t.Error("expected one similarity_alert event")
	}
}

func TestEngine_Cancellation(t *testing.T) {
	h := newEngineHarness(t, &scriptedScorer{scores: []int{90}})

	ctx, cancel := context.WithCancel(context.Background())
	h.stages[StageGenerate].hook = func(stageCtx context.Context, ec *Context) error {
		cancel()
		return stageCtx.Err()
	}
	job := newTestJob()

	err := h.engine.Execute(ctx, job)
	if err == nil {
		t.Fatal("Execute should surface the cancellation")
	}
	if job.Status != models.JobStatusFailed {
		t.Errorf("status = %s, want failed", job.Status)
	}

	var cancelled bool
	for _, e := range job.Errors {
		if e.Type == models.ErrorTypeCancelled {
			cancelled = true
		}
	}
	if !cancelled {
		t.Errorf("expected a cancelled error record, got %v", job.Errors)
	}
	if h.stages[StageMerge].Runs() != 0 {
		t.Error("merge must not run after cancellation")
	}
}

func TestEngine_ParallelLimitBoundsConcurrency(t *testing.T) {
	h := newEngineHarness(t, &scriptedScorer{scores: []int{90}})
	h.engine.config.Engine.ParallelStageLimit = 2

	var mu sync.Mutex
	active, peak := 0, 0
	slowHook := func(ctx context.Context, ec *Context) error {
		mu.Lock()
		active++
		if active > peak {
			peak = active
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return nil
	}
	for id := StageCitations; id <= StageImage; id++ {
		h.stages[id].hook = slowHook
	}
	job := newTestJob()

	if err := h.engine.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if peak > 2 {
		t.Errorf("parallel peak = %d, want <= 2", peak)
	}
}

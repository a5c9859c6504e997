package handlers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
)

// fakeJobs is an in-memory JobStorage for handler tests.
type fakeJobs struct {
	mu   sync.Mutex
	jobs map[string]*models.Job
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{jobs: make(map[string]*models.Job)}
}

func (f *fakeJobs) SaveJob(ctx context.Context, job *models.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *job
	f.jobs[job.ID] = &cp
	return nil
}

func (f *fakeJobs) GetJob(ctx context.Context, id string) (*models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job not found: %s", id)
	}
	cp := *job
	return &cp, nil
}

func (f *fakeJobs) UpdateJob(ctx context.Context, job *models.Job) error {
	return f.SaveJob(ctx, job)
}

func (f *fakeJobs) DeleteJob(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.jobs, id)
	return nil
}

func (f *fakeJobs) ListJobs(ctx context.Context, opts *interfaces.ListOptions) ([]*models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Job
	for _, job := range f.jobs {
		if opts != nil && opts.Status != "" && string(job.Status) != opts.Status {
			continue
		}
		if opts != nil && opts.BatchID != "" && job.BatchID != opts.BatchID {
			continue
		}
		cp := *job
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeJobs) GetJobsByStatus(ctx context.Context, status models.JobStatus) ([]*models.Job, error) {
	return f.ListJobs(ctx, &interfaces.ListOptions{Status: string(status)})
}

func (f *fakeJobs) GetJobsByBatch(ctx context.Context, batchID string) ([]*models.Job, error) {
	return f.ListJobs(ctx, &interfaces.ListOptions{BatchID: batchID})
}

func (f *fakeJobs) CountJobs(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.jobs), nil
}

func (f *fakeJobs) CountJobsByStatus(ctx context.Context, status models.JobStatus) (int, error) {
	jobs, _ := f.GetJobsByStatus(ctx, status)
	return len(jobs), nil
}

func (f *fakeJobs) status(id string) models.JobStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	if job, ok := f.jobs[id]; ok {
		return job.Status
	}
	return ""
}

// fakeArtifacts is an in-memory ArtifactStorage for handler tests.
type fakeArtifacts struct {
	mu   sync.Mutex
	data map[string][]byte
	refs map[string]*models.ArtifactRef
}

func newFakeArtifacts() *fakeArtifacts {
	return &fakeArtifacts{
		data: make(map[string][]byte),
		refs: make(map[string]*models.ArtifactRef),
	}
}

func (f *fakeArtifacts) Save(ctx context.Context, jobID, key, contentType string, data []byte) (*models.ArtifactRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := jobID + "/" + key
	ref := &models.ArtifactRef{
		Key:         key,
		Location:    fmt.Sprintf("/api/jobs/%s/artifacts/%s", jobID, key),
		ContentType: contentType,
		Size:        len(data),
	}
	f.data[id] = data
	f.refs[id] = ref
	return ref, nil
}

func (f *fakeArtifacts) Get(ctx context.Context, jobID, key string) ([]byte, *models.ArtifactRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := jobID + "/" + key
	data, ok := f.data[id]
	if !ok {
		return nil, nil, fmt.Errorf("artifact not found: %s", id)
	}
	return data, f.refs[id], nil
}

func (f *fakeArtifacts) List(ctx context.Context, jobID string) ([]*models.ArtifactRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var refs []*models.ArtifactRef
	for id, ref := range f.refs {
		if len(id) > len(jobID) && id[:len(jobID)] == jobID {
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

func (f *fakeArtifacts) DeleteByJob(ctx context.Context, jobID string) (int, error) {
	return 0, nil
}

// fakeDispatcher records cancellation requests.
type fakeDispatcher struct {
	mu        sync.Mutex
	inFlight  map[string]bool
	cancelled []string
}

func newFakeDispatcher(inFlight ...string) *fakeDispatcher {
	d := &fakeDispatcher{inFlight: make(map[string]bool)}
	for _, id := range inFlight {
		d.inFlight[id] = true
	}
	return d
}

func (f *fakeDispatcher) Start() error { return nil }

func (f *fakeDispatcher) Stop(ctx context.Context) error { return nil }

func (f *fakeDispatcher) ActiveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inFlight)
}

func (f *fakeDispatcher) Cancel(jobID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, jobID)
	return f.inFlight[jobID]
}

// fakeMonitor serves canned quality statistics and alerts.
type fakeMonitor struct {
	stats  models.QualityStatistics
	alerts []models.Alert
}

func (f *fakeMonitor) Record(record models.QualityRecord) []models.Alert { return nil }

func (f *fakeMonitor) Statistics() models.QualityStatistics { return f.stats }

func (f *fakeMonitor) RecentAlerts(limit int) []models.Alert {
	if limit < len(f.alerts) {
		return f.alerts[:limit]
	}
	return f.alerts
}

func seedJob(f *fakeJobs, id string, status models.JobStatus) *models.Job {
	job := models.NewJob(&models.JobRequest{
		Keyword:    "cloud security best practices",
		CompanyURL: "https://example.com",
	})
	job.ID = id
	job.Status = status
	job.CreatedAt = time.Now().Add(-time.Minute)
	f.SaveJob(context.Background(), job)
	return job
}

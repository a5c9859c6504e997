package stages

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
	"github.com/ternarybob/scriptor/internal/pipeline"
)

// newTestContext builds a job context the way the engine would.
func newTestContext() *pipeline.Context {
	job := models.NewJob(&models.JobRequest{
		Keyword:    "cloud security best practices",
		CompanyURL: "https://example.com",
		BatchID:    "batch-1",
	})
	job.ID = "job-test"
	return pipeline.NewContext(job, arbor.NewLogger())
}

// testPrompts builds a built-ins-only prompt library.
func testPrompts(t *testing.T) *PromptLibrary {
	t.Helper()
	lib, err := LoadPromptLibrary("", arbor.NewLogger())
	if err != nil {
		t.Fatalf("load prompt library: %v", err)
	}
	return lib
}

func sampleDraft() *models.ArticleDraft {
	return &models.ArticleDraft{
		Headline:     "Cloud Security Best Practices",
		Teaser:       "A practical guide to securing cloud workloads end to end.",
		DirectAnswer: "Start with least privilege, encrypt everything, and monitor continuously [1].",
		Intro: "Cloud security spans identity, network, and workload controls. Teams that treat it " +
			"as a shared responsibility catch misconfigurations before attackers do, and the " +
			"practices below turn that principle into a concrete operating model for any provider.",
		Sections: []models.ArticleSection{
			{Title: "Identity and Access", Content: "Enforce least privilege across all roles [1]. " +
				"Review grants quarterly and remove standing admin access wherever a just-in-time " +
				"elevation flow can replace it. Service accounts deserve the same scrutiny as humans."},
			{Title: "Network Controls", Content: "Segment networks and restrict egress [2]. Default-deny " +
				"rules between tiers stop lateral movement, and egress allowlists catch exfiltration " +
				"attempts that ingress filtering never sees."},
		},
		KeyTakeaways: []string{
			"Apply least privilege everywhere.",
			"Encrypt data in transit and at rest.",
			"Monitor continuously for drift.",
		},
	}
}

// fakeLLM returns scripted responses in order, recording each request.
type fakeLLM struct {
	mu        sync.Mutex
	responses []string
	err       error
	requests  []*interfaces.GenerateRequest
}

func (f *fakeLLM) Generate(ctx context.Context, req *interfaces.GenerateRequest) (*interfaces.GenerateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.responses) == 0 {
		return nil, fmt.Errorf("fakeLLM: no scripted response")
	}
	text := f.responses[0]
	f.responses = f.responses[1:]
	return &interfaces.GenerateResult{Text: text, Provider: interfaces.ProviderGemini, Model: "fake"}, nil
}

func (f *fakeLLM) HealthCheck(ctx context.Context) error { return nil }
func (f *fakeLLM) Close() error                          { return nil }

func (f *fakeLLM) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// fakeValidator answers liveness probes from a fixed table.
type fakeValidator struct {
	results map[string]*interfaces.HeadResult
	err     error
	probed  []string
}

func (f *fakeValidator) Head(ctx context.Context, url string) (*interfaces.HeadResult, error) {
	f.probed = append(f.probed, url)
	if f.err != nil {
		return nil, f.err
	}
	if res, ok := f.results[url]; ok {
		return res, nil
	}
	return &interfaces.HeadResult{StatusCode: 200, FinalURL: url}, nil
}

// fakeImages returns a canned result or error.
type fakeImages struct {
	enabled bool
	err     error
	lastReq *interfaces.ImageRequest
}

func (f *fakeImages) GenerateImage(ctx context.Context, jobID string, req *interfaces.ImageRequest) (*models.ImageResult, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.ImageResult{
		URL:     fmt.Sprintf("/api/jobs/%s/artifacts/%s", jobID, req.Key),
		AltText: req.AltText,
	}, nil
}

func (f *fakeImages) Enabled() bool { return f.enabled }
func (f *fakeImages) Close() error  { return nil }

// fakeLinks returns canned candidates.
type fakeLinks struct {
	candidates []models.InternalLink
	err        error
	lastLimit  int
}

func (f *fakeLinks) Candidates(ctx context.Context, companyURL, keyword string, limit int) ([]models.InternalLink, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.candidates, nil
}

// fakeArtifacts records stored artifacts in memory.
type fakeArtifacts struct {
	mu    sync.Mutex
	saved map[string][]byte
	err   error
}

func newFakeArtifacts() *fakeArtifacts {
	return &fakeArtifacts{saved: make(map[string][]byte)}
}

func (f *fakeArtifacts) Save(ctx context.Context, jobID, key, contentType string, data []byte) (*models.ArtifactRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.saved[key] = data
	return &models.ArtifactRef{
		Key:         key,
		Location:    fmt.Sprintf("/api/jobs/%s/artifacts/%s", jobID, key),
		ContentType: contentType,
		Size:        len(data),
	}, nil
}

func (f *fakeArtifacts) Get(ctx context.Context, jobID, key string) ([]byte, *models.ArtifactRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.saved[key]
	if !ok {
		return nil, nil, fmt.Errorf("artifact %s not found", key)
	}
	return data, &models.ArtifactRef{Key: key}, nil
}

func (f *fakeArtifacts) List(ctx context.Context, jobID string) ([]*models.ArtifactRef, error) {
	return nil, nil
}

func (f *fakeArtifacts) DeleteByJob(ctx context.Context, jobID string) (int, error) {
	return 0, nil
}

// fakeRenderer returns fixed bytes per format.
type fakeRenderer struct {
	htmlErr error
	mdErr   error
	pdfErr  error
}

func (f *fakeRenderer) RenderHTML(article models.ValidatedArticle) ([]byte, error) {
	if f.htmlErr != nil {
		return nil, f.htmlErr
	}
	return []byte("<html>article</html>"), nil
}

func (f *fakeRenderer) RenderMarkdown(article models.ValidatedArticle) ([]byte, error) {
	if f.mdErr != nil {
		return nil, f.mdErr
	}
	return []byte("# article"), nil
}

func (f *fakeRenderer) RenderPDF(article models.ValidatedArticle) ([]byte, error) {
	if f.pdfErr != nil {
		return nil, f.pdfErr
	}
	return []byte("%PDF-fake"), nil
}

// fakeChecker records the body it was handed and returns a canned report.
type fakeChecker struct {
	report   *models.SimilarityReport
	err      error
	lastBody string
}

func (f *fakeChecker) Check(ctx context.Context, jobID, batchID, keyword, body string) (*models.SimilarityReport, error) {
	f.lastBody = body
	return f.report, f.err
}

func (f *fakeChecker) PurgeExpired() int { return 0 }

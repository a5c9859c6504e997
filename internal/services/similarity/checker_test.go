package similarity

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/common"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello  World", "hello world"},
		{"  Tabs\tand\nnewlines  ", "tabs and newlines"},
		{"UPPER", "upper"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeText(tt.in); got != tt.want {
			t.Errorf("NormalizeText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestJaccard(t *testing.T) {
	a := Shingles("cloud security best practices for modern teams")
	b := Shingles("cloud security best practices for modern teams")
	c := Shingles("a completely different topic about databases")

	if sim := Jaccard(a, b); sim != 1.0 {
		t.Errorf("identical texts Jaccard = %f, want 1.0", sim)
	}
	if sim := Jaccard(a, c); sim > 0.1 {
		t.Errorf("unrelated texts Jaccard = %f, want near 0", sim)
	}
	if sim := Jaccard(map[uint64]struct{}{}, map[uint64]struct{}{}); sim != 1.0 {
		t.Errorf("empty sets Jaccard = %f, want 1.0", sim)
	}
	if sim := Jaccard(a, map[uint64]struct{}{}); sim != 0.0 {
		t.Errorf("one empty set Jaccard = %f, want 0.0", sim)
	}
}

func TestJaccard_SharedPhrasing(t *testing.T) {
	a := Shingles("zero trust architecture requires continuous verification of every request")
	b := Shingles("zero trust architecture requires continuous verification of all traffic flows")

	sim := Jaccard(a, b)
	if sim <= 0.3 || sim >= 1.0 {
		t.Errorf("overlapping phrasing Jaccard = %f, want mid-range", sim)
	}
}

func TestCosine(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{0, 1, 0}
	c := []float32{2, 0, 0}

	if sim := Cosine(a, a); math.Abs(sim-1.0) > 1e-9 {
		t.Errorf("self cosine = %f, want 1.0", sim)
	}
	if sim := Cosine(a, b); sim != 0.0 {
		t.Errorf("orthogonal cosine = %f, want 0.0", sim)
	}
	if sim := Cosine(a, c); math.Abs(sim-1.0) > 1e-9 {
		t.Errorf("parallel cosine = %f, want 1.0", sim)
	}
	if sim := Cosine(a, []float32{1, 2}); sim != 0.0 {
		t.Errorf("mismatched length cosine = %f, want 0.0", sim)
	}
}

func TestUnitNormalize(t *testing.T) {
	v := UnitNormalize([]float32{3, 4})
	length := math.Sqrt(float64(v[0])*float64(v[0]) + float64(v[1])*float64(v[1]))
	if math.Abs(length-1.0) > 1e-6 {
		t.Errorf("normalized length = %f, want 1.0", length)
	}

	zero := UnitNormalize([]float32{0, 0})
	if zero[0] != 0 || zero[1] != 0 {
		t.Error("zero vector must pass through unchanged")
	}
}

// fakeEmbedder returns a constant vector, or fails when broken.
type fakeEmbedder struct {
	vec    []float32
	broken bool
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.broken {
		return nil, fmt.Errorf("embedding backend offline")
	}
	return f.vec, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v, err := f.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int { return len(f.vec) }
func (f *fakeEmbedder) Close() error   { return nil }

func newTestChecker(embedder *fakeEmbedder) *Service {
	cfg := common.NewDefaultConfig()
	if embedder == nil {
		return NewService(cfg, nil, arbor.NewLogger())
	}
	return NewService(cfg, embedder, arbor.NewLogger())
}

func TestCheck_FirstInBatchUnflagged(t *testing.T) {
	checker := newTestChecker(nil)

	report, err := checker.Check(context.Background(), "job-1", "batch-a", "cloud security", "some article body text about cloud security")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if report.Compared != 0 {
		t.Errorf("compared = %d, want 0 for first entry", report.Compared)
	}
	if report.Flagged {
		t.Error("first article in batch must not be flagged")
	}
	if checker.BatchSize("batch-a") != 1 {
		t.Errorf("batch size = %d, want 1", checker.BatchSize("batch-a"))
	}
}

func TestCheck_NearDuplicateFlagged(t *testing.T) {
	checker := newTestChecker(nil)
	body := "cloud security best practices involve defense in depth, least privilege access, and continuous monitoring of all workloads"

	if _, err := checker.Check(context.Background(), "job-1", "batch-a", "cloud security", body); err != nil {
		t.Fatalf("first Check failed: %v", err)
	}

	report, err := checker.Check(context.Background(), "job-2", "batch-a", "cloud security", body)
	if err != nil {
		t.Fatalf("second Check failed: %v", err)
	}

	if report.Compared != 1 {
		t.Errorf("compared = %d, want 1", report.Compared)
	}
	if report.CharSim != 1.0 {
		t.Errorf("char_sim = %f, want 1.0 for identical body", report.CharSim)
	}
	if !report.Flagged {
		t.Error("identical article must be flagged")
	}
	if report.NearestJobID != "job-1" {
		t.Errorf("nearest_job_id = %s, want job-1", report.NearestJobID)
	}
}

func TestCheck_DistinctArticlesUnflagged(t *testing.T) {
	checker := newTestChecker(nil)

	if _, err := checker.Check(context.Background(), "job-1", "batch-a", "kubernetes", "kubernetes orchestrates containers across a cluster of nodes with declarative manifests"); err != nil {
		t.Fatalf("first Check failed: %v", err)
	}

	report, err := checker.Check(context.Background(), "job-2", "batch-a", "databases", "relational databases enforce schemas and transactions while document stores trade consistency for flexibility")
	if err != nil {
		t.Fatalf("second Check failed: %v", err)
	}

	if report.Flagged {
		t.Errorf("distinct articles flagged, hybrid = %f", report.Hybrid)
	}
}

func TestCheck_HybridWeighting(t *testing.T) {
	// Same embedding (sem_sim = 1.0), different text: hybrid = 0.4*char + 0.6*1.0.
	embedder := &fakeEmbedder{vec: []float32{1, 2, 3}}
	checker := newTestChecker(embedder)

	if _, err := checker.Check(context.Background(), "job-1", "batch-a", "kw", "an article entirely about container scheduling and cluster workloads"); err != nil {
		t.Fatalf("first Check failed: %v", err)
	}
	report, err := checker.Check(context.Background(), "job-2", "batch-a", "kw", "a piece on relational database indexing strategies and query planning")
	if err != nil {
		t.Fatalf("second Check failed: %v", err)
	}

	if report.SemSim == nil {
		t.Fatal("sem_sim must be set when both embeddings exist")
	}
	wantHybrid := charWeight*report.CharSim + semWeight*(*report.SemSim)
	if math.Abs(report.Hybrid-wantHybrid) > 1e-9 {
		t.Errorf("hybrid = %f, want %f", report.Hybrid, wantHybrid)
	}
	// Identical embeddings force sem_sim 1.0, which alone exceeds the bar.
	if !report.Flagged {
		t.Errorf("hybrid = %f with sem_sim 1.0 should flag", report.Hybrid)
	}
}

func TestCheck_EmbeddingFailureFallsBack(t *testing.T) {
	checker := newTestChecker(&fakeEmbedder{broken: true})
	body := "identical body text for both jobs in this batch about api gateways"

	if _, err := checker.Check(context.Background(), "job-1", "batch-a", "kw", body); err == nil {
		t.Error("expected advisory error from broken embedder")
	}

	report, err := checker.Check(context.Background(), "job-2", "batch-a", "kw", body)
	if err == nil {
		t.Error("expected advisory error from broken embedder")
	}
	if report == nil {
		t.Fatal("report must still be produced on embedding failure")
	}
	if report.SemSim != nil {
		t.Error("sem_sim must be nil without embeddings")
	}
	if report.Hybrid != report.CharSim {
		t.Errorf("hybrid = %f, want char-only %f", report.Hybrid, report.CharSim)
	}
	if !report.Flagged {
		t.Error("identical bodies must flag on char similarity alone")
	}
}

func TestCheck_UnbatchedJobNotRetained(t *testing.T) {
	checker := newTestChecker(nil)

	report, err := checker.Check(context.Background(), "job-1", "", "kw", "body text")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if report.Compared != 0 || report.Flagged {
		t.Error("unbatched job must produce an empty, unflagged report")
	}
	if checker.BatchSize("") != 0 {
		t.Error("unbatched jobs must not be retained")
	}
}

func TestMemoryStore_FIFOEviction(t *testing.T) {
	store := newMemoryStore(3, time.Hour)

	for i := 0; i < 5; i++ {
		entry := batchEntry{JobID: fmt.Sprintf("job-%d", i), AddedAt: time.Now()}
		store.compareAndAppend("batch-a", entry, func(prior []batchEntry) {})
	}

	if count := store.entryCount("batch-a"); count != 3 {
		t.Errorf("entry count = %d, want capacity 3", count)
	}

	// Oldest two evicted: remaining are job-2, job-3, job-4.
	var jobs []string
	store.compareAndAppend("batch-a", batchEntry{JobID: "probe"}, func(prior []batchEntry) {
		for _, e := range prior {
			jobs = append(jobs, e.JobID)
		}
	})
	if len(jobs) != 3 || jobs[0] != "job-2" || jobs[2] != "job-4" {
		t.Errorf("retained jobs = %v, want [job-2 job-3 job-4]", jobs)
	}
}

func TestMemoryStore_PurgeExpired(t *testing.T) {
	store := newMemoryStore(10, 10*time.Millisecond)

	store.compareAndAppend("batch-old", batchEntry{JobID: "job-1"}, func([]batchEntry) {})
	time.Sleep(25 * time.Millisecond)
	store.compareAndAppend("batch-new", batchEntry{JobID: "job-2"}, func([]batchEntry) {})

	removed := store.purgeExpired()
	if removed != 1 {
		t.Errorf("purged = %d, want 1", removed)
	}
	if store.entryCount("batch-old") != 0 {
		t.Error("expired batch must be gone")
	}
	if store.entryCount("batch-new") != 1 {
		t.Error("fresh batch must survive purge")
	}
}

func TestCheck_Deterministic(t *testing.T) {
	body := "deterministic fingerprinting of the same body yields the same report"
	first := newTestChecker(nil)
	second := newTestChecker(nil)

	for _, checker := range []*Service{first, second} {
		if _, err := checker.Check(context.Background(), "job-1", "batch-a", "kw", "an earlier article about service meshes and traffic routing"); err != nil {
			t.Fatalf("seed Check failed: %v", err)
		}
	}

	r1, err := first.Check(context.Background(), "job-2", "batch-a", "kw", body)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	r2, err := second.Check(context.Background(), "job-2", "batch-a", "kw", body)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	if r1.CharSim != r2.CharSim || r1.Hybrid != r2.Hybrid || r1.NearestJobID != r2.NearestJobID {
		t.Errorf("reports differ across identical runs: %+v vs %+v", r1, r2)
	}
}

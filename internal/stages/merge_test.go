package stages

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
	"github.com/ternarybob/scriptor/internal/pipeline"
)

// mergeReadyContext builds a context with every band output populated, the
// way the merge stage sees one after a clean parallel band.
func mergeReadyContext() *pipeline.Context {
	ec := newTestContext()
	ec.Attempt = 1
	ec.Language = "en"
	ec.Draft = sampleDraft()
	ec.Metadata = &models.ArticleMetadata{
		MetaTitle:       "Cloud Security Best Practices",
		MetaDescription: "How to secure cloud workloads with identity, network, and monitoring controls.",
	}
	ec.Citations = []models.Citation{
		{Number: 1, Title: "NIST Cloud Guide", URL: "https://nist.test/guide"},
		{Number: 2, Title: "CIS Benchmarks", URL: "https://cis.test/benchmarks"},
	}
	ec.Images = []models.ImageResult{
		{URL: "/api/jobs/job-test/artifacts/image_01_attempt_01.png", AltText: "Illustration for Cloud Security Best Practices"},
	}
	ec.TOC = []models.TocEntry{
		{Anchor: "identity-and-access", Label: "Identity and Access"},
		{Anchor: "network-controls", Label: "Network Controls"},
	}
	ec.FAQ = []models.QAItem{{Question: "Is cloud security a shared responsibility?", Answer: "Yes, between provider and customer."}}
	ec.PAA = []models.QAItem{{Question: "What is least privilege?", Answer: "Granting only the access a role needs."}}
	ec.InternalLinks = []models.InternalLink{{URL: "https://example.com/security", Title: "Security overview"}}
	return ec
}

func runMerge(t *testing.T, ec *pipeline.Context, validator interfaces.URLValidator, imageRequired bool) error {
	t.Helper()
	stage := NewMergeStage(validator, imageRequired, arbor.NewLogger())
	return stage.Execute(context.Background(), ec)
}

func TestMergeStage_HappyPath(t *testing.T) {
	ec := mergeReadyContext()
	if err := runMerge(t, ec, nil, true); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	article := ec.Validated
	if article == nil {
		t.Fatal("Validated article not set")
	}

	if got := article.GetString("headline"); got != "Cloud Security Best Practices" {
		t.Errorf("headline = %q", got)
	}
	if got := article.GetString("section_01_title"); got != "Identity and Access" {
		t.Errorf("section_01_title = %q", got)
	}
	if got := article.GetString("key_takeaway_01"); got != "Apply least privilege everywhere." {
		t.Errorf("key_takeaway_01 = %q", got)
	}
	if got := article.GetString("faq_01_question"); got == "" {
		t.Error("faq_01_question missing")
	}
	if got := article.GetString("paa_01_answer"); got == "" {
		t.Error("paa_01_answer missing")
	}
	if got := article.GetString("meta_title"); got != "Cloud Security Best Practices" {
		t.Errorf("meta_title = %q", got)
	}
	if got := article.GetString("image_01_url"); !strings.HasSuffix(got, "image_01_attempt_01.png") {
		t.Errorf("image_01_url = %q", got)
	}

	// Markers became anchors in the body fields.
	direct := article.GetString("direct_answer")
	if !strings.Contains(direct, `data-cite-num="1"`) || strings.Contains(direct, " [1]") {
		t.Errorf("direct_answer marker not linked: %q", direct)
	}
	section2 := article.GetString("section_02_content")
	if !strings.Contains(section2, `href="https://cis.test/benchmarks"`) {
		t.Errorf("section_02_content missing citation link: %q", section2)
	}

	sources, ok := article["sources"].([]models.Citation)
	if !ok || len(sources) != 2 {
		t.Fatalf("sources = %#v, want 2 citations", article["sources"])
	}
	if len(ec.Citations) != 2 {
		t.Errorf("referenced citations = %d, want 2", len(ec.Citations))
	}
	if _, ok := article["toc"]; !ok {
		t.Error("toc not overlaid")
	}
	if _, ok := article["internal_links"]; !ok {
		t.Error("internal_links not overlaid")
	}
}

func TestMergeStage_OrphanHandling(t *testing.T) {
	ec := mergeReadyContext()
	// Citation 2 has no marker anywhere; marker [9] has no citation.
	ec.Draft.Sections[1].Content = "Segment networks and restrict egress [9]. Default-deny rules stop lateral movement."
	if err := runMerge(t, ec, nil, true); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	article := ec.Validated

	// The unresolvable marker is swept from the text.
	section2 := article.GetString("section_02_content")
	if strings.Contains(section2, "[9]") {
		t.Errorf("orphan marker not swept: %q", section2)
	}

	// The unreferenced citation stays in the rendered sources but not in the
	// exported citation list.
	sources := article["sources"].([]models.Citation)
	if len(sources) != 2 {
		t.Fatalf("sources = %d entries, want 2 (orphans retained)", len(sources))
	}
	if len(ec.Citations) != 1 || ec.Citations[0].Number != 1 {
		t.Errorf("referenced citations = %+v, want only number 1", ec.Citations)
	}
}

func TestMergeStage_TakeawaysSweptNotLinked(t *testing.T) {
	ec := mergeReadyContext()
	ec.Draft.KeyTakeaways[0] = "Apply least privilege everywhere [1]."
	if err := runMerge(t, ec, nil, true); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	got := ec.Validated.GetString("key_takeaway_01")
	if strings.Contains(got, "<a") || strings.Contains(got, "[1]") {
		t.Errorf("takeaway should be plain text with marker removed, got %q", got)
	}
	if got != "Apply least privilege everywhere ." {
		t.Errorf("key_takeaway_01 = %q", got)
	}
}

func TestMergeStage_MissingImageFailsValidation(t *testing.T) {
	ec := mergeReadyContext()
	ec.Images = nil
	err := runMerge(t, ec, nil, true)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, models.ErrArticleValidation) {
		t.Errorf("error not a validation error: %v", err)
	}
	if !strings.Contains(err.Error(), "image_01_url") {
		t.Errorf("error should name the missing field: %v", err)
	}
}

func TestMergeStage_ImageOptionalWhenBackendDisabled(t *testing.T) {
	ec := mergeReadyContext()
	ec.Images = nil
	if err := runMerge(t, ec, nil, false); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if _, ok := ec.Validated["image_01_url"]; ok {
		t.Error("image_01_url should be absent when no image was generated")
	}
}

func TestMergeStage_NoDraft(t *testing.T) {
	ec := newTestContext()
	err := runMerge(t, ec, nil, false)
	if err == nil || !errors.Is(err, models.ErrArticleValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMergeStage_CitationResolution(t *testing.T) {
	t.Run("malformed URL dropped without probing", func(t *testing.T) {
		ec := mergeReadyContext()
		ec.Citations = []models.Citation{{Number: 1, Title: "Broken", URL: "not-a-url"}}
		validator := &fakeValidator{}
		if err := runMerge(t, ec, validator, true); err != nil {
			t.Fatalf("Execute() error: %v", err)
		}
		if len(validator.probed) != 0 {
			t.Errorf("malformed URL should not be probed, probes: %v", validator.probed)
		}
		if _, ok := ec.Validated["sources"]; ok {
			t.Error("sources should be absent when every citation is dropped")
		}
		if strings.Contains(ec.Validated.GetString("direct_answer"), "[1]") {
			t.Error("marker for dropped citation should be swept")
		}
	})

	t.Run("dead link dropped", func(t *testing.T) {
		ec := mergeReadyContext()
		validator := &fakeValidator{results: map[string]*interfaces.HeadResult{
			"https://nist.test/guide":     {StatusCode: 404, FinalURL: "https://nist.test/guide"},
			"https://cis.test/benchmarks": {StatusCode: 200, FinalURL: "https://cis.test/benchmarks"},
		}}
		if err := runMerge(t, ec, validator, true); err != nil {
			t.Fatalf("Execute() error: %v", err)
		}
		sources := ec.Validated["sources"].([]models.Citation)
		if len(sources) != 1 || sources[0].Number != 2 {
			t.Errorf("sources = %+v, want only citation 2", sources)
		}
		if strings.Contains(ec.Validated.GetString("direct_answer"), "data-cite-num") {
			t.Error("marker for dead citation should be swept, not linked")
		}
	})

	t.Run("redirect target adopted", func(t *testing.T) {
		ec := mergeReadyContext()
		validator := &fakeValidator{results: map[string]*interfaces.HeadResult{
			"https://nist.test/guide": {StatusCode: 301, FinalURL: "https://nist.test/guide/v2"},
		}}
		if err := runMerge(t, ec, validator, true); err != nil {
			t.Fatalf("Execute() error: %v", err)
		}
		sources := ec.Validated["sources"].([]models.Citation)
		if sources[0].URL != "https://nist.test/guide/v2" {
			t.Errorf("citation URL = %q, want redirect target", sources[0].URL)
		}
		if !strings.Contains(ec.Validated.GetString("direct_answer"), `href="https://nist.test/guide/v2"`) {
			t.Error("linked anchor should carry the redirect target")
		}
	})

	t.Run("probe transport error keeps citation", func(t *testing.T) {
		ec := mergeReadyContext()
		validator := &fakeValidator{err: fmt.Errorf("dial tcp: connection refused")}
		if err := runMerge(t, ec, validator, true); err != nil {
			t.Fatalf("Execute() error: %v", err)
		}
		sources := ec.Validated["sources"].([]models.Citation)
		if len(sources) != 2 {
			t.Errorf("sources = %d entries, want 2 (fail-open)", len(sources))
		}
	})
}

func TestMergeStage_Deterministic(t *testing.T) {
	render := func() []byte {
		ec := mergeReadyContext()
		if err := runMerge(t, ec, nil, true); err != nil {
			t.Fatalf("Execute() error: %v", err)
		}
		data, err := json.MarshalIndent(ec.Validated, "", "  ")
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		return data
	}

	first := render()
	second := render()
	if string(first) != string(second) {
		t.Error("merged article should be byte-identical across runs with the same inputs")
	}
}

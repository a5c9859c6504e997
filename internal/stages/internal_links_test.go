package stages

import (
	"context"
	"fmt"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/models"
)

func TestInternalLinksStage(t *testing.T) {
	t.Run("candidates written to context", func(t *testing.T) {
		links := &fakeLinks{candidates: []models.InternalLink{
			{URL: "https://example.com/security", Title: "Security overview"},
			{URL: "https://example.com/compliance", Title: "Compliance"},
		}}
		stage := NewInternalLinksStage(links, 5, arbor.NewLogger())
		ec := newTestContext()
		ec.Config = &models.JobConfig{Keyword: "cloud security", CompanyURL: "https://example.com"}

		if err := stage.Execute(context.Background(), ec); err != nil {
			t.Fatalf("Execute() error: %v", err)
		}
		if len(ec.InternalLinks) != 2 {
			t.Errorf("links = %d, want 2", len(ec.InternalLinks))
		}
		if links.lastLimit != 5 {
			t.Errorf("limit = %d, want 5", links.lastLimit)
		}
	})

	t.Run("zero limit defaults to five", func(t *testing.T) {
		links := &fakeLinks{}
		stage := NewInternalLinksStage(links, 0, arbor.NewLogger())
		ec := newTestContext()
		ec.Config = &models.JobConfig{Keyword: "k", CompanyURL: "https://example.com"}

		if err := stage.Execute(context.Background(), ec); err != nil {
			t.Fatalf("Execute() error: %v", err)
		}
		if links.lastLimit != 5 {
			t.Errorf("limit = %d, want default 5", links.lastLimit)
		}
	})

	t.Run("nil provider skips quietly", func(t *testing.T) {
		stage := NewInternalLinksStage(nil, 5, arbor.NewLogger())
		ec := newTestContext()
		ec.Config = &models.JobConfig{Keyword: "k", CompanyURL: "https://example.com"}

		if err := stage.Execute(context.Background(), ec); err != nil {
			t.Fatalf("Execute() error: %v", err)
		}
		if ec.InternalLinks != nil {
			t.Error("links should stay unset without a provider")
		}
	})

	t.Run("provider failure propagates", func(t *testing.T) {
		links := &fakeLinks{err: fmt.Errorf("sitemap unreachable")}
		stage := NewInternalLinksStage(links, 5, arbor.NewLogger())
		ec := newTestContext()
		ec.Config = &models.JobConfig{Keyword: "k", CompanyURL: "https://example.com"}

		if err := stage.Execute(context.Background(), ec); err == nil {
			t.Error("expected error from provider failure")
		}
	})

	t.Run("missing config is an error", func(t *testing.T) {
		stage := NewInternalLinksStage(&fakeLinks{}, 5, arbor.NewLogger())
		ec := newTestContext()
		if err := stage.Execute(context.Background(), ec); err == nil {
			t.Error("expected error for missing config")
		}
	})
}

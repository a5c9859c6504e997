// -----------------------------------------------------------------------
// Persist Stage - Artifact export of the validated article
// -----------------------------------------------------------------------

package stages

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
	"github.com/ternarybob/scriptor/internal/pipeline"
)

// PersistStage exports the validated article: the canonical JSON, the
// rendered HTML, Markdown, and PDF, plus the resolved citation list. It reads
// only the merge outputs, never the quality report, so it can run while the
// engine finishes its reporting. The JSON and HTML exports are the product;
// their failure fails the job. Markdown and PDF are companions and degrade
// to advisory records.
type PersistStage struct {
	renderer  interfaces.Renderer
	artifacts interfaces.ArtifactStorage
	logger    arbor.ILogger
}

var _ pipeline.Stage = (*PersistStage)(nil)

// NewPersistStage creates the persistence stage.
func NewPersistStage(renderer interfaces.Renderer, artifacts interfaces.ArtifactStorage, logger arbor.ILogger) *PersistStage {
	return &PersistStage{renderer: renderer, artifacts: artifacts, logger: logger}
}

func (s *PersistStage) ID() pipeline.StageID { return pipeline.StagePersist }
func (s *PersistStage) Name() string         { return pipeline.StageName(pipeline.StagePersist) }
func (s *PersistStage) Critical() bool       { return pipeline.IsCritical(pipeline.StagePersist) }

// Execute writes StorageResult onto the context.
func (s *PersistStage) Execute(ctx context.Context, ec *pipeline.Context) error {
	if ec.Validated == nil {
		return fmt.Errorf("no validated article to persist")
	}

	var refs []models.ArtifactRef

	articleJSON, err := json.MarshalIndent(ec.Validated, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal article: %w", err)
	}
	ref, err := s.save(ctx, ec, "article.json", "application/json", articleJSON)
	if err != nil {
		return err
	}
	refs = append(refs, *ref)

	htmlBytes, err := s.renderer.RenderHTML(ec.Validated)
	if err != nil {
		return fmt.Errorf("failed to render article html: %w", err)
	}
	ref, err = s.save(ctx, ec, "article.html", "text/html; charset=utf-8", htmlBytes)
	if err != nil {
		return err
	}
	refs = append(refs, *ref)

	citations := ec.Citations
	if citations == nil {
		citations = []models.Citation{}
	}
	citationsJSON, err := json.MarshalIndent(citations, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal citations: %w", err)
	}
	ref, err = s.save(ctx, ec, "citations.json", "application/json", citationsJSON)
	if err != nil {
		return err
	}
	refs = append(refs, *ref)

	if ref := s.companionExport(ctx, ec, "article.md", "text/markdown; charset=utf-8", s.renderer.RenderMarkdown); ref != nil {
		refs = append(refs, *ref)
	}
	if ref := s.companionExport(ctx, ec, "article.pdf", "application/pdf", s.renderer.RenderPDF); ref != nil {
		refs = append(refs, *ref)
	}

	ec.StorageResult = &models.StorageResult{
		Location:  fmt.Sprintf("/api/jobs/%s/artifacts", ec.Job.ID),
		Artifacts: refs,
	}

	s.logger.Info().
		Str("job_id", ec.Job.ID).
		Int("artifacts", len(refs)).
		Msg("Article persisted")
	return nil
}

func (s *PersistStage) save(ctx context.Context, ec *pipeline.Context, key, contentType string, data []byte) (*models.ArtifactRef, error) {
	ref, err := s.artifacts.Save(ctx, ec.Job.ID, key, contentType, data)
	if err != nil {
		return nil, fmt.Errorf("failed to store %s: %w", key, err)
	}
	return ref, nil
}

// companionExport renders and stores a secondary format. Failures are
// recorded as advisory and the export is skipped.
func (s *PersistStage) companionExport(
	ctx context.Context,
	ec *pipeline.Context,
	key, contentType string,
	render func(models.ValidatedArticle) ([]byte, error),
) *models.ArtifactRef {
	data, err := render(ec.Validated)
	if err == nil {
		var ref *models.ArtifactRef
		if ref, err = s.save(ctx, ec, key, contentType, data); err == nil {
			return ref
		}
	}

	ec.AddError(models.ErrorTypeAdvisory, pipeline.StagePersist,
		fmt.Sprintf("companion export %s failed", key), err.Error())
	s.logger.Warn().
		Str("job_id", ec.Job.ID).
		Str("key", key).
		Err(err).
		Msg("Companion export failed, skipping")
	return nil
}

// -----------------------------------------------------------------------
// TOC Stage - Deterministic table of contents from section titles
// -----------------------------------------------------------------------

package stages

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/models"
	"github.com/ternarybob/scriptor/internal/pipeline"
)

// TOCStage derives the table of contents from the draft section titles. No
// external calls: anchors are slugs of the titles, so the same draft always
// yields the same TOC, and the anchors match the rendered section ids.
type TOCStage struct {
	logger arbor.ILogger
}

var _ pipeline.Stage = (*TOCStage)(nil)

// NewTOCStage creates the table of contents stage.
func NewTOCStage(logger arbor.ILogger) *TOCStage {
	return &TOCStage{logger: logger}
}

func (s *TOCStage) ID() pipeline.StageID { return pipeline.StageTOC }
func (s *TOCStage) Name() string         { return pipeline.StageName(pipeline.StageTOC) }
func (s *TOCStage) Critical() bool       { return pipeline.IsCritical(pipeline.StageTOC) }

// Execute writes TOC onto the context.
func (s *TOCStage) Execute(ctx context.Context, ec *pipeline.Context) error {
	if ec.Draft == nil {
		return fmt.Errorf("draft missing, extract did not run")
	}

	ec.TOC = buildTOC(ec.Draft.Sections)
	s.logger.Debug().
		Str("job_id", ec.Job.ID).
		Int("entries", len(ec.TOC)).
		Msg("Table of contents built")
	return nil
}

// buildTOC maps section titles to toc entries with slug anchors.
func buildTOC(sections []models.ArticleSection) []models.TocEntry {
	if len(sections) == 0 {
		return nil
	}
	titles := make([]string, len(sections))
	for i, section := range sections {
		titles[i] = section.Title
	}

	entries := make([]models.TocEntry, len(sections))
	for i, anchor := range models.SectionAnchors(titles) {
		entries[i] = models.TocEntry{Anchor: anchor, Label: titles[i]}
	}
	return entries
}

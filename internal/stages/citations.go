// -----------------------------------------------------------------------
// Citations Stage - Numbered source list from grounding attributions
// -----------------------------------------------------------------------

package stages

import (
	"context"
	"net/url"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
	"github.com/ternarybob/scriptor/internal/pipeline"
)

// CitationsStage builds the numbered citation list from the generation's
// grounding sources: order preserved, duplicates by URL collapsed, capped at
// the article citation limit. URL liveness is checked later during merge.
type CitationsStage struct {
	logger arbor.ILogger
}

var _ pipeline.Stage = (*CitationsStage)(nil)

// NewCitationsStage creates the citations stage.
func NewCitationsStage(logger arbor.ILogger) *CitationsStage {
	return &CitationsStage{logger: logger}
}

func (s *CitationsStage) ID() pipeline.StageID { return pipeline.StageCitations }
func (s *CitationsStage) Name() string         { return pipeline.StageName(pipeline.StageCitations) }
func (s *CitationsStage) Critical() bool       { return pipeline.IsCritical(pipeline.StageCitations) }

// Execute writes Citations onto the context.
func (s *CitationsStage) Execute(ctx context.Context, ec *pipeline.Context) error {
	citations := buildCitationList(ec.Grounding)
	ec.Citations = citations

	s.logger.Debug().
		Str("job_id", ec.Job.ID).
		Int("grounding_sources", len(ec.Grounding)).
		Int("citations", len(citations)).
		Msg("Citation list built")
	return nil
}

// buildCitationList numbers the grounding sources 1..n, deduplicating by URL
// (first occurrence wins) and dropping entries without a URL.
func buildCitationList(sources []interfaces.GroundingSource) []models.Citation {
	var citations []models.Citation
	seen := make(map[string]bool, len(sources))
	for _, source := range sources {
		link := strings.TrimSpace(source.URL)
		if link == "" || seen[link] {
			continue
		}
		seen[link] = true
		citations = append(citations, models.Citation{
			Number: len(citations) + 1,
			Title:  citationTitle(source.Title, link),
			URL:    link,
		})
		if len(citations) == models.MaxCitations {
			break
		}
	}
	return citations
}

// citationTitle falls back to the URL host when the source carries no title.
func citationTitle(title, link string) string {
	title = strings.TrimSpace(title)
	if title != "" {
		return title
	}
	if u, err := url.Parse(link); err == nil && u.Host != "" {
		return u.Host
	}
	return link
}

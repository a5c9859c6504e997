// -----------------------------------------------------------------------
// InternalLinks Stage - Related-page candidates from the company site
// -----------------------------------------------------------------------

package stages

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/pipeline"
)

// InternalLinksStage asks the link provider for pages on the company site
// relevant to the keyword. An empty candidate set is a valid outcome, not a
// failure; internal links are an optional article part.
type InternalLinksStage struct {
	links  interfaces.LinkProvider
	limit  int
	logger arbor.ILogger
}

var _ pipeline.Stage = (*InternalLinksStage)(nil)

// NewInternalLinksStage creates the internal links stage.
func NewInternalLinksStage(links interfaces.LinkProvider, limit int, logger arbor.ILogger) *InternalLinksStage {
	if limit <= 0 {
		limit = 5
	}
	return &InternalLinksStage{links: links, limit: limit, logger: logger}
}

func (s *InternalLinksStage) ID() pipeline.StageID { return pipeline.StageInternalLinks }
func (s *InternalLinksStage) Name() string {
	return pipeline.StageName(pipeline.StageInternalLinks)
}
func (s *InternalLinksStage) Critical() bool {
	return pipeline.IsCritical(pipeline.StageInternalLinks)
}

// Execute writes InternalLinks onto the context.
func (s *InternalLinksStage) Execute(ctx context.Context, ec *pipeline.Context) error {
	if s.links == nil {
		s.logger.Debug().Str("job_id", ec.Job.ID).Msg("Link provider not configured, skipping")
		return nil
	}
	if ec.Config == nil {
		return fmt.Errorf("job config missing, data fetch did not run")
	}

	candidates, err := s.links.Candidates(ctx, ec.Config.CompanyURL, ec.Config.Keyword, s.limit)
	if err != nil {
		return fmt.Errorf("link candidate lookup failed: %w", err)
	}
	ec.InternalLinks = candidates

	s.logger.Debug().
		Str("job_id", ec.Job.ID).
		Int("candidates", len(candidates)).
		Msg("Internal link candidates resolved")
	return nil
}

package interfaces

import (
	"context"

	"github.com/ternarybob/scriptor/internal/models"
)

// LinkProvider supplies internal link candidates for an article from the
// company's own site (sitemap discovery plus page title resolution).
type LinkProvider interface {
	// Candidates returns up to limit link candidates relevant to the keyword,
	// ordered by relevance. An empty result is not an error.
	Candidates(ctx context.Context, companyURL, keyword string, limit int) ([]models.InternalLink, error)
}

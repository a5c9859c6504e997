package interfaces

import (
	"context"

	"github.com/ternarybob/scriptor/internal/models"
)

// QualityScorer evaluates a validated article for answer-engine-optimization
// quality. Scoring is advisory: callers treat scorer failure as a skipped
// gate, never as a pipeline failure.
type QualityScorer interface {
	// Score returns an AEO score in [0,100] and the list of critical issues
	// found. An error means the scorer itself could not produce a verdict.
	Score(ctx context.Context, article models.ValidatedArticle, keyword string) (int, []string, error)
}

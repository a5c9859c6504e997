// -----------------------------------------------------------------------
// Similarity Stage - Batch near-duplicate check on the merged article
// -----------------------------------------------------------------------

package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
	"github.com/ternarybob/scriptor/internal/pipeline"
)

// SimilarityStage hands the article's plain text body to the batch
// similarity checker. Embedding trouble inside the checker degrades to a
// char-only comparison and is recorded as advisory rather than failing the
// stage, since a valid report still comes back.
type SimilarityStage struct {
	checker interfaces.SimilarityChecker
	logger  arbor.ILogger
}

var _ pipeline.Stage = (*SimilarityStage)(nil)

// NewSimilarityStage creates the similarity stage.
func NewSimilarityStage(checker interfaces.SimilarityChecker, logger arbor.ILogger) *SimilarityStage {
	return &SimilarityStage{checker: checker, logger: logger}
}

func (s *SimilarityStage) ID() pipeline.StageID { return pipeline.StageSimilarity }
func (s *SimilarityStage) Name() string         { return pipeline.StageName(pipeline.StageSimilarity) }
func (s *SimilarityStage) Critical() bool       { return pipeline.IsCritical(pipeline.StageSimilarity) }

// Execute writes SimilarityReport onto the context.
func (s *SimilarityStage) Execute(ctx context.Context, ec *pipeline.Context) error {
	if s.checker == nil {
		s.logger.Debug().Str("job_id", ec.Job.ID).Msg("Similarity checker not configured, skipping")
		return nil
	}
	if ec.Validated == nil {
		return fmt.Errorf("no validated article to compare")
	}

	body := articleBodyText(ec.Validated)
	report, err := s.checker.Check(ctx, ec.Job.ID, ec.Job.BatchID, ec.Job.Keyword, body)
	if report != nil {
		ec.SimilarityReport = report
	}
	if err != nil {
		if report == nil {
			return fmt.Errorf("similarity check failed: %w", err)
		}
		ec.AddError(models.ErrorTypeAdvisory, pipeline.StageSimilarity,
			"similarity embedding unavailable, char-only comparison", err.Error())
	}
	return nil
}

// articleBodyText concatenates the article's prose fields in canonical order
// with markup stripped, the input the fingerprint is computed over.
func articleBodyText(article models.ValidatedArticle) string {
	var parts []string
	appendPart := func(text string) {
		if text = strings.TrimSpace(stripTags(text)); text != "" {
			parts = append(parts, text)
		}
	}

	appendPart(article.GetString("headline"))
	for _, key := range article.BodyFieldKeys() {
		appendPart(article.GetString(key))
	}
	for i := 1; i <= models.MaxSections; i++ {
		appendPart(article.GetString(fmt.Sprintf("section_%02d_title", i)))
	}
	return strings.Join(parts, "\n")
}

// stripTags removes HTML tags, keeping text content.
func stripTags(s string) string {
	if !strings.ContainsRune(s, '<') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	inTag := false
	for _, r := range s {
		switch {
		case inTag:
			if r == '>' {
				inTag = false
			}
		case r == '<':
			inTag = true
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

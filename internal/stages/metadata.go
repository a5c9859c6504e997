// -----------------------------------------------------------------------
// Metadata Stage - SEO meta title/description with derived fallback
// -----------------------------------------------------------------------

package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
	"github.com/ternarybob/scriptor/internal/pipeline"
)

var metadataResponseSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"meta_title":       map[string]interface{}{"type": "string"},
		"meta_description": map[string]interface{}{"type": "string"},
	},
	"required": []string{"meta_title", "meta_description"},
}

// MetadataStage produces the SEO metadata through the LLM, falling back to a
// deterministic derivation from the draft when the model call fails. The
// fallback means this stage only errors when the draft itself is missing.
type MetadataStage struct {
	llm     interfaces.LLMService
	prompts *PromptLibrary
	logger  arbor.ILogger
}

var _ pipeline.Stage = (*MetadataStage)(nil)

// NewMetadataStage creates the metadata stage.
func NewMetadataStage(llm interfaces.LLMService, prompts *PromptLibrary, logger arbor.ILogger) *MetadataStage {
	return &MetadataStage{llm: llm, prompts: prompts, logger: logger}
}

func (s *MetadataStage) ID() pipeline.StageID { return pipeline.StageMetadata }
func (s *MetadataStage) Name() string         { return pipeline.StageName(pipeline.StageMetadata) }
func (s *MetadataStage) Critical() bool       { return pipeline.IsCritical(pipeline.StageMetadata) }

// Execute writes Metadata onto the context.
func (s *MetadataStage) Execute(ctx context.Context, ec *pipeline.Context) error {
	if ec.Draft == nil {
		return fmt.Errorf("draft missing, extract did not run")
	}

	meta, err := s.generateMetadata(ctx, ec)
	if err != nil {
		s.logger.Warn().
			Str("job_id", ec.Job.ID).
			Err(err).
			Msg("Metadata generation failed, deriving from draft")
		meta = deriveMetadata(ec.Draft)
	}

	meta.MetaTitle = truncateMeta(meta.MetaTitle, models.MetaTitleMaxLen)
	meta.MetaDescription = truncateMeta(meta.MetaDescription, models.MetaDescriptionMaxLen)
	ec.Metadata = meta

	s.logger.Debug().
		Str("job_id", ec.Job.ID).
		Str("meta_title", meta.MetaTitle).
		Msg("Metadata produced")
	return nil
}

func (s *MetadataStage) generateMetadata(ctx context.Context, ec *pipeline.Context) (*models.ArticleMetadata, error) {
	data := promptData{
		Headline: ec.Draft.Headline,
		Teaser:   ec.Draft.Teaser,
	}
	if ec.Config != nil {
		data.Keyword = ec.Config.Keyword
	}
	prompt, err := s.prompts.Render("metadata", data)
	if err != nil {
		return nil, err
	}

	result, err := s.llm.Generate(ctx, &interfaces.GenerateRequest{
		Messages:     []interfaces.Message{{Role: "user", Content: prompt}},
		OutputSchema: metadataResponseSchema,
		Temperature:  0.3,
	})
	if err != nil {
		return nil, err
	}

	var meta models.ArticleMetadata
	if err := json.Unmarshal([]byte(extractJSONBlock(result.Text)), &meta); err != nil {
		return nil, fmt.Errorf("failed to parse metadata response: %w", err)
	}
	if meta.MetaTitle == "" || meta.MetaDescription == "" {
		return nil, fmt.Errorf("metadata response incomplete")
	}
	return &meta, nil
}

// deriveMetadata builds the fallback metadata from the draft: headline as the
// title, teaser (or direct answer) as the description.
func deriveMetadata(draft *models.ArticleDraft) *models.ArticleMetadata {
	description := draft.Teaser
	if strings.TrimSpace(description) == "" {
		description = draft.DirectAnswer
	}
	return &models.ArticleMetadata{
		MetaTitle:       draft.Headline,
		MetaDescription: description,
	}
}

// truncateMeta bounds a metadata field to max characters, cutting at a word
// boundary where one exists in the second half and marking the cut with an
// ellipsis.
func truncateMeta(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}

	cut := max - 1
	if idx := strings.LastIndex(string(runes[:cut]), " "); idx > max/2 {
		cut = idx
	}
	return strings.TrimRight(string(runes[:cut]), " .,;:") + "…"
}

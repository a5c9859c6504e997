// -----------------------------------------------------------------------
// Extract Stage - Structured draft parsing with one LLM recovery pass
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

// ExtractStage parses the raw generation output into a typed draft. When the
// payload is not usable schema JSON it makes one LLM extraction pass with the
// same schema; failure is advisory since the merge validation catches an
// absent draft anyway.
type ExtractStage struct {
	llm     interfaces.LLMService
	prompts *PromptLibrary
	logger  arbor.ILogger
}

var _ pipeline.Stage = (*ExtractStage)(nil)

// NewExtractStage creates the extraction stage.
func NewExtractStage(llm interfaces.LLMService, prompts *PromptLibrary, logger arbor.ILogger) *ExtractStage {
	return &ExtractStage{llm: llm, prompts: prompts, logger: logger}
}

func (s *ExtractStage) ID() pipeline.StageID { return pipeline.StageExtract }
func (s *ExtractStage) Name() string         { return pipeline.StageName(pipeline.StageExtract) }
func (s *ExtractStage) Critical() bool       { return pipeline.IsCritical(pipeline.StageExtract) }

// Execute writes Draft onto the context.
func (s *ExtractStage) Execute(ctx context.Context, ec *pipeline.Context) error {
	if ec.RawArticle == "" {
		return fmt.Errorf("raw article missing, generate did not run")
	}

	draft, err := parseDraft(ec.RawArticle)
	if err != nil {
		s.logger.Warn().
			Str("job_id", ec.Job.ID).
			Err(err).
			Msg("Raw article is not schema JSON, attempting LLM extraction")

		draft, err = s.recoverDraft(ctx, ec.RawArticle)
		if err != nil {
			return fmt.Errorf("draft extraction failed: %w", err)
		}
	}

	ec.Draft = draft
	s.logger.Debug().
		Str("job_id", ec.Job.ID).
		Str("headline", draft.Headline).
		Int("sections", len(draft.Sections)).
		Msg("Draft extracted")
	return nil
}

// recoverDraft runs the one-shot LLM extraction pass over the raw text.
func (s *ExtractStage) recoverDraft(ctx context.Context, raw string) (*models.ArticleDraft, error) {
	instruction, err := s.prompts.Render("extract", promptData{})
	if err != nil {
		return nil, err
	}

	result, err := s.llm.Generate(ctx, &interfaces.GenerateRequest{
		Messages:          []interfaces.Message{{Role: "user", Content: raw}},
		SystemInstruction: instruction,
		OutputSchema:      articleResponseSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("extraction pass failed: %w", err)
	}
	return parseDraft(result.Text)
}

// parseDraft unmarshals schema JSON into a draft and enforces the article
// cardinality caps. A draft without a headline or without sections is not
// usable and reports an error so the caller can attempt recovery.
func parseDraft(raw string) (*models.ArticleDraft, error) {
	payload := extractJSONBlock(raw)

	var draft models.ArticleDraft
	if err := json.Unmarshal([]byte(payload), &draft); err != nil {
		return nil, fmt.Errorf("failed to unmarshal draft: %w", err)
	}
	if draft.Headline == "" || len(draft.Sections) == 0 {
		return nil, fmt.Errorf("draft missing headline or sections")
	}

	if len(draft.Sections) > models.MaxSections {
		draft.Sections = draft.Sections[:models.MaxSections]
	}
	if len(draft.KeyTakeaways) > models.MaxTakeaways {
		draft.KeyTakeaways = draft.KeyTakeaways[:models.MaxTakeaways]
	}
	return &draft, nil
}

// extractJSONBlock strips markdown code fences and surrounding prose from an
// LLM response, returning the innermost JSON object text.
func extractJSONBlock(response string) string {
	response = strings.TrimSpace(response)

	if strings.HasPrefix(response, "```") {
		var jsonLines []string
		inBlock := false
		for _, line := range strings.Split(response, "\n") {
			if strings.HasPrefix(line, "```") {
				if inBlock {
					break
				}
				inBlock = true
				continue
			}
			if inBlock {
				jsonLines = append(jsonLines, line)
			}
		}
		if len(jsonLines) > 0 {
			return strings.Join(jsonLines, "\n")
		}
	}

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start >= 0 && end > start {
		return response[start : end+1]
	}
	return response
}

// -----------------------------------------------------------------------
// Generate Stage - Search-grounded LLM article generation
// -----------------------------------------------------------------------

package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/pipeline"
)

// articleResponseSchema is the structured-output contract for the generation
// and refinement passes. The extract stage parses the same shape back.
var articleResponseSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"headline":      map[string]interface{}{"type": "string"},
		"teaser":        map[string]interface{}{"type": "string"},
		"direct_answer": map[string]interface{}{"type": "string"},
		"intro":         map[string]interface{}{"type": "string"},
		"sections": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"title":   map[string]interface{}{"type": "string"},
					"content": map[string]interface{}{"type": "string"},
				},
				"required": []string{"title", "content"},
			},
		},
		"key_takeaways": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
	},
	"required": []string{"headline", "teaser", "direct_answer", "intro", "sections"},
}

// GenerateStage produces the raw article through the LLM service with search
// grounding enabled so factual claims carry source attributions.
type GenerateStage struct {
	llm    interfaces.LLMService
	logger arbor.ILogger
}

var _ pipeline.Stage = (*GenerateStage)(nil)

// NewGenerateStage creates the generation stage.
func NewGenerateStage(llm interfaces.LLMService, logger arbor.ILogger) *GenerateStage {
	return &GenerateStage{llm: llm, logger: logger}
}

func (s *GenerateStage) ID() pipeline.StageID { return pipeline.StageGenerate }
func (s *GenerateStage) Name() string         { return pipeline.StageName(pipeline.StageGenerate) }
func (s *GenerateStage) Critical() bool       { return pipeline.IsCritical(pipeline.StageGenerate) }

// Execute writes RawArticle and Grounding onto the context.
func (s *GenerateStage) Execute(ctx context.Context, ec *pipeline.Context) error {
	if strings.TrimSpace(ec.Prompt) == "" {
		return fmt.Errorf("generation prompt missing, prompt build did not run")
	}

	result, err := s.llm.Generate(ctx, &interfaces.GenerateRequest{
		Messages:           []interfaces.Message{{Role: "user", Content: ec.Prompt}},
		SystemInstruction:  ec.SystemInstruction,
		OutputSchema:       articleResponseSchema,
		UseSearchGrounding: true,
	})
	if err != nil {
		return fmt.Errorf("article generation failed: %w", err)
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		return fmt.Errorf("article generation returned empty output")
	}

	ec.RawArticle = text
	ec.Grounding = result.Sources

	s.logger.Info().
		Str("job_id", ec.Job.ID).
		Str("provider", string(result.Provider)).
		Str("model", result.Model).
		Int("attempt", ec.Attempt).
		Int("chars", len(text)).
		Int("grounding_sources", len(result.Sources)).
		Msg("Article generated")
	return nil
}

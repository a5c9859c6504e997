// -----------------------------------------------------------------------
// FAQ Stage - FAQ and People-Also-Ask generation
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

var faqResponseSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"faq": map[string]interface{}{
			"type":  "array",
			"items": qaItemSchema,
		},
		"paa": map[string]interface{}{
			"type":  "array",
			"items": qaItemSchema,
		},
	},
	"required": []string{"faq", "paa"},
}

var qaItemSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"question": map[string]interface{}{"type": "string"},
		"answer":   map[string]interface{}{"type": "string"},
	},
	"required": []string{"question", "answer"},
}

// FAQStage generates the FAQ and people-also-ask blocks for the article,
// capped at their schema cardinalities.
type FAQStage struct {
	llm     interfaces.LLMService
	prompts *PromptLibrary
	logger  arbor.ILogger
}

var _ pipeline.Stage = (*FAQStage)(nil)

// NewFAQStage creates the FAQ/PAA stage.
func NewFAQStage(llm interfaces.LLMService, prompts *PromptLibrary, logger arbor.ILogger) *FAQStage {
	return &FAQStage{llm: llm, prompts: prompts, logger: logger}
}

func (s *FAQStage) ID() pipeline.StageID { return pipeline.StageFAQ }
func (s *FAQStage) Name() string         { return pipeline.StageName(pipeline.StageFAQ) }
func (s *FAQStage) Critical() bool       { return pipeline.IsCritical(pipeline.StageFAQ) }

// Execute writes FAQ and PAA onto the context.
func (s *FAQStage) Execute(ctx context.Context, ec *pipeline.Context) error {
	if ec.Draft == nil {
		return fmt.Errorf("draft missing, extract did not run")
	}

	data := promptData{
		Headline: ec.Draft.Headline,
		Language: ec.Language,
	}
	if ec.Config != nil {
		data.Keyword = ec.Config.Keyword
	}
	prompt, err := s.prompts.Render("faq", data)
	if err != nil {
		return err
	}

	result, err := s.llm.Generate(ctx, &interfaces.GenerateRequest{
		Messages:     []interfaces.Message{{Role: "user", Content: prompt}},
		OutputSchema: faqResponseSchema,
	})
	if err != nil {
		return fmt.Errorf("faq generation failed: %w", err)
	}

	var payload struct {
		FAQ []models.QAItem `json:"faq"`
		PAA []models.QAItem `json:"paa"`
	}
	if err := json.Unmarshal([]byte(extractJSONBlock(result.Text)), &payload); err != nil {
		return fmt.Errorf("failed to parse faq response: %w", err)
	}

	ec.FAQ = capQAItems(payload.FAQ, models.MaxFAQItems)
	ec.PAA = capQAItems(payload.PAA, models.MaxPAAItems)

	s.logger.Debug().
		Str("job_id", ec.Job.ID).
		Int("faq", len(ec.FAQ)).
		Int("paa", len(ec.PAA)).
		Msg("FAQ and PAA generated")
	return nil
}

// capQAItems drops incomplete pairs and bounds the list.
func capQAItems(items []models.QAItem, max int) []models.QAItem {
	var kept []models.QAItem
	for _, item := range items {
		if item.Question == "" || item.Answer == "" {
			continue
		}
		kept = append(kept, item)
		if len(kept) == max {
			break
		}
	}
	return kept
}

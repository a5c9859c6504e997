// -----------------------------------------------------------------------
// Refine Stage - Policy-gated single rewrite pass over the draft
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

// Refinement policy thresholds, in words.
const (
	thinIntroWords    = 40
	shortSectionWords = 60
)

// RefineStage is always invoked; the policy inside decides whether the draft
// needs a rewrite pass. The engine does not gate it. On LLM failure the
// unrefined draft stands and the error is advisory.
type RefineStage struct {
	llm     interfaces.LLMService
	prompts *PromptLibrary
	logger  arbor.ILogger
}

var _ pipeline.Stage = (*RefineStage)(nil)

// NewRefineStage creates the refinement stage.
func NewRefineStage(llm interfaces.LLMService, prompts *PromptLibrary, logger arbor.ILogger) *RefineStage {
	return &RefineStage{llm: llm, prompts: prompts, logger: logger}
}

func (s *RefineStage) ID() pipeline.StageID { return pipeline.StageRefine }
func (s *RefineStage) Name() string         { return pipeline.StageName(pipeline.StageRefine) }
func (s *RefineStage) Critical() bool       { return pipeline.IsCritical(pipeline.StageRefine) }

// Execute overwrites Draft and sets RefinementApplied when the policy fires.
func (s *RefineStage) Execute(ctx context.Context, ec *pipeline.Context) error {
	if ec.Draft == nil {
		return fmt.Errorf("draft missing, extract did not run")
	}

	issues := refinementIssues(ec.Draft)
	if len(issues) == 0 {
		s.logger.Debug().Str("job_id", ec.Job.ID).Msg("Draft healthy, refinement skipped")
		return nil
	}

	draftJSON, err := json.Marshal(ec.Draft)
	if err != nil {
		return fmt.Errorf("failed to marshal draft: %w", err)
	}

	data := promptData{
		Language:  ec.Language,
		Issues:    strings.Join(issues, "; "),
		DraftJSON: string(draftJSON),
	}
	if ec.Config != nil {
		data.Tone = ec.Config.Tone
	}
	prompt, err := s.prompts.Render("refine", data)
	if err != nil {
		return err
	}

	result, err := s.llm.Generate(ctx, &interfaces.GenerateRequest{
		Messages:          []interfaces.Message{{Role: "user", Content: prompt}},
		SystemInstruction: ec.SystemInstruction,
		OutputSchema:      articleResponseSchema,
	})
	if err != nil {
		return fmt.Errorf("refinement pass failed: %w", err)
	}

	refined, err := parseDraft(result.Text)
	if err != nil {
		return fmt.Errorf("refinement output unusable: %w", err)
	}

	ec.Draft = refined
	ec.RefinementApplied = true

	s.logger.Info().
		Str("job_id", ec.Job.ID).
		Str("issues", strings.Join(issues, "; ")).
		Msg("Draft refined")
	return nil
}

// refinementIssues lists what the policy found wrong with the draft: missing
// direct answer, thin intro, or short sections. Empty means no action.
func refinementIssues(draft *models.ArticleDraft) []string {
	var issues []string
	if strings.TrimSpace(draft.DirectAnswer) == "" {
		issues = append(issues, "missing direct answer")
	}
	if wordCount(draft.Intro) < thinIntroWords {
		issues = append(issues, "thin intro")
	}
	short := 0
	for _, section := range draft.Sections {
		if wordCount(section.Content) < shortSectionWords {
			short++
		}
	}
	if short > 0 {
		issues = append(issues, fmt.Sprintf("%d short sections", short))
	}
	return issues
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

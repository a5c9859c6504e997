// -----------------------------------------------------------------------
// PromptBuild Stage - Generation prompt assembly from templates
// -----------------------------------------------------------------------

package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/models"
	"github.com/ternarybob/scriptor/internal/pipeline"
)

// PromptBuildStage renders the generation prompt and system instruction from
// the prompt library, the normalized job config, and the scraped company data.
type PromptBuildStage struct {
	prompts *PromptLibrary
	logger  arbor.ILogger
}

var _ pipeline.Stage = (*PromptBuildStage)(nil)

// NewPromptBuildStage creates the prompt build stage.
func NewPromptBuildStage(prompts *PromptLibrary, logger arbor.ILogger) *PromptBuildStage {
	return &PromptBuildStage{prompts: prompts, logger: logger}
}

func (s *PromptBuildStage) ID() pipeline.StageID { return pipeline.StagePromptBuild }
func (s *PromptBuildStage) Name() string         { return pipeline.StageName(pipeline.StagePromptBuild) }
func (s *PromptBuildStage) Critical() bool       { return pipeline.IsCritical(pipeline.StagePromptBuild) }

// Execute writes Prompt and SystemInstruction onto the context.
func (s *PromptBuildStage) Execute(ctx context.Context, ec *pipeline.Context) error {
	if ec.Config == nil {
		return fmt.Errorf("job config missing, data fetch did not run")
	}

	data := buildPromptData(ec.Config, ec.CompanyData, ec.Language)

	system, err := s.prompts.Render("system", data)
	if err != nil {
		return err
	}
	if extras := strings.TrimSpace(strings.Join(ec.Config.SystemPrompts, "\n")); extras != "" {
		system = system + "\n\n" + extras
	}

	prompt, err := s.prompts.Render("article", data)
	if err != nil {
		return err
	}

	ec.SystemInstruction = system
	ec.Prompt = prompt

	s.logger.Debug().
		Str("job_id", ec.Job.ID).
		Int("prompt_chars", len(prompt)).
		Msg("Generation prompt built")
	return nil
}

// buildPromptData assembles the template data shared by the generation and
// secondary prompt passes.
func buildPromptData(cfg *models.JobConfig, company *models.CompanyData, language string) promptData {
	data := promptData{
		Keyword:     cfg.Keyword,
		CompanyName: cfg.CompanyName,
		CompanyURL:  cfg.CompanyURL,
		Language:    language,
		Country:     cfg.Country,
		WordCount:   cfg.WordCount,
		Tone:        cfg.Tone,
	}
	if company != nil {
		if data.CompanyName == "" {
			data.CompanyName = company.Name
		}
		data.CompanyContext = companyContextBlock(company)
	}
	if data.CompanyContext == "" {
		data.CompanyContext = "(no company context available)"
	}
	return data
}

// companyContextBlock formats the scraped company data for prompt inclusion.
func companyContextBlock(company *models.CompanyData) string {
	var lines []string
	if company.Title != "" {
		lines = append(lines, "Site title: "+company.Title)
	}
	if company.Description != "" {
		lines = append(lines, "About: "+company.Description)
	}
	if len(company.Headings) > 0 {
		lines = append(lines, "Site topics: "+strings.Join(company.Headings, "; "))
	}
	return strings.Join(lines, "\n")
}

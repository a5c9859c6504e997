// -----------------------------------------------------------------------
// Image Stage - Hero image generation through the image backend
// -----------------------------------------------------------------------

package stages

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
	"github.com/ternarybob/scriptor/internal/pipeline"
)

// ImageStage generates the hero image for the article. The artifact key
// carries the regeneration attempt so a retained earlier attempt never points
// at a later attempt's bytes. A disabled backend skips quietly; whether the
// resulting article is acceptable without an image is merge's decision.
type ImageStage struct {
	images interfaces.ImageService
	logger arbor.ILogger
}

var _ pipeline.Stage = (*ImageStage)(nil)

// NewImageStage creates the image generation stage.
func NewImageStage(images interfaces.ImageService, logger arbor.ILogger) *ImageStage {
	return &ImageStage{images: images, logger: logger}
}

func (s *ImageStage) ID() pipeline.StageID { return pipeline.StageImage }
func (s *ImageStage) Name() string         { return pipeline.StageName(pipeline.StageImage) }
func (s *ImageStage) Critical() bool       { return pipeline.IsCritical(pipeline.StageImage) }

// Execute writes Images onto the context.
func (s *ImageStage) Execute(ctx context.Context, ec *pipeline.Context) error {
	if s.images == nil || !s.images.Enabled() {
		s.logger.Debug().Str("job_id", ec.Job.ID).Msg("Image generation disabled, skipping")
		return nil
	}

	prompt, alt := s.heroImageSpec(ec)
	result, err := s.images.GenerateImage(ctx, ec.Job.ID, &interfaces.ImageRequest{
		Prompt:  prompt,
		AltText: alt,
		Slot:    1,
		Key:     fmt.Sprintf("image_%02d_attempt_%02d.png", 1, ec.Attempt),
	})
	if err != nil {
		return fmt.Errorf("hero image generation failed: %w", err)
	}

	ec.Images = []models.ImageResult{*result}
	s.logger.Info().
		Str("job_id", ec.Job.ID).
		Str("url", result.URL).
		Msg("Hero image generated")
	return nil
}

// heroImageSpec builds the generation prompt and alt text from the article
// subject.
func (s *ImageStage) heroImageSpec(ec *pipeline.Context) (prompt, alt string) {
	subject := ""
	if ec.Config != nil {
		subject = ec.Config.Keyword
	}
	if ec.Draft != nil && ec.Draft.Headline != "" {
		subject = ec.Draft.Headline
	}
	if subject == "" {
		subject = ec.Job.Keyword
	}

	prompt = fmt.Sprintf(
		"Professional editorial illustration for an article titled %q. Clean modern style, no text or lettering in the image.",
		subject)
	alt = fmt.Sprintf("Illustration for %s", subject)
	return prompt, alt
}

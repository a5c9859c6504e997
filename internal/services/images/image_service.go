// -----------------------------------------------------------------------
// Image Service - Imagen generation, bytes stored as job artifacts
// -----------------------------------------------------------------------

package images

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
)

// Service implements ImageService using the Imagen API. Generated bytes are
// written to artifact storage and the article references the artifact URL.
type Service struct {
	apiKey    string
	model     string
	enabled   bool
	timeout   time.Duration
	artifacts interfaces.ArtifactStorage
	logger    arbor.ILogger
	client    *genai.Client
}

// NewService creates an Imagen-backed image service.
func NewService(cfg *common.Config, artifacts interfaces.ArtifactStorage, logger arbor.ILogger) interfaces.ImageService {
	timeout := 180 * time.Second
	if d, err := time.ParseDuration(cfg.Images.Timeout); err == nil && d > 0 {
		timeout = d
	}

	model := cfg.Images.Model
	if model == "" {
		model = "imagen-3.0-generate-002"
	}

	return &Service{
		apiKey:    cfg.Gemini.APIKey,
		model:     model,
		enabled:   cfg.Images.Enabled,
		timeout:   timeout,
		artifacts: artifacts,
		logger:    logger,
	}
}

// Enabled reports whether image generation is configured on.
func (s *Service) Enabled() bool {
	return s.enabled && s.apiKey != ""
}

func (s *Service) getClient(ctx context.Context) (*genai.Client, error) {
	if s.client != nil {
		return s.client, nil
	}

	if s.apiKey == "" {
		return nil, fmt.Errorf("gemini API key not configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Imagen client: %w", err)
	}

	s.client = client
	return client, nil
}

// GenerateImage generates one image for the prompt and stores the bytes as a
// job artifact under req.Key. The returned URL is the artifact's serving path.
func (s *Service) GenerateImage(ctx context.Context, jobID string, req *interfaces.ImageRequest) (*models.ImageResult, error) {
	if !s.Enabled() {
		return nil, fmt.Errorf("image generation is disabled")
	}
	if req == nil || req.Prompt == "" {
		return nil, fmt.Errorf("image prompt cannot be empty")
	}

	client, err := s.getClient(ctx)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	resp, err := client.Models.GenerateImages(callCtx, s.model, req.Prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("image generation failed: %w", err)
	}

	if resp == nil || len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return nil, fmt.Errorf("no image returned from API")
	}

	generated := resp.GeneratedImages[0].Image
	if len(generated.ImageBytes) == 0 {
		return nil, fmt.Errorf("empty image bytes returned from API")
	}

	contentType := generated.MIMEType
	if contentType == "" {
		contentType = "image/png"
	}

	key := req.Key
	if key == "" {
		key = fmt.Sprintf("image_%02d.png", req.Slot)
	}

	ref, err := s.artifacts.Save(ctx, jobID, key, contentType, generated.ImageBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to store generated image: %w", err)
	}

	s.logger.Info().
		Str("job_id", jobID).
		Str("key", key).
		Str("model", s.model).
		Int("size_bytes", len(generated.ImageBytes)).
		Dur("duration", time.Since(start)).
		Msg("Generated article image")

	return &models.ImageResult{
		URL:     fmt.Sprintf("/api/jobs/%s/artifacts/%s", jobID, ref.Key),
		AltText: req.AltText,
	}, nil
}

// Close releases the client reference.
func (s *Service) Close() error {
	s.client = nil
	return nil
}

package interfaces

import (
	"context"

	"github.com/ternarybob/scriptor/internal/models"
)

// ImageRequest describes a single image to generate for an article.
type ImageRequest struct {
	// Prompt is the full generation prompt including style guidance.
	Prompt string

	// AltText is the accessibility description persisted alongside the image.
	AltText string

	// Slot is the 1-based position of the image in the article (image_01,
	// image_02, ...).
	Slot int

	// Key is the artifact key the image bytes are stored under. Keys carry
	// the regeneration attempt so a retained earlier attempt never points at
	// a later attempt's bytes.
	Key string
}

// ImageService defines the interface for article image generation
type ImageService interface {
	// GenerateImage produces one image and stores it through the artifact
	// store, returning the stored location and alt text. A disabled service
	// returns ErrImageGenerationDisabled.
	GenerateImage(ctx context.Context, jobID string, req *ImageRequest) (*models.ImageResult, error)

	// Enabled reports whether image generation is configured and active.
	Enabled() bool

	// Close releases client resources.
	Close() error
}

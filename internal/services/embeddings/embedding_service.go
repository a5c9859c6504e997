// -----------------------------------------------------------------------
// Embedding Service - Gemini embedding client for similarity checks
// -----------------------------------------------------------------------

package embeddings

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/interfaces"
)

// Service implements EmbeddingService using the Gemini embedding API.
type Service struct {
	apiKey    string
	model     string
	dimension int
	timeout   time.Duration
	logger    arbor.ILogger
	client    *genai.Client
}

// NewService creates a Gemini-backed embedding service. The client is created
// lazily on first use so construction never needs network access.
func NewService(cfg *common.Config, logger arbor.ILogger) interfaces.EmbeddingService {
	timeout := 30 * time.Second
	if d, err := time.ParseDuration(cfg.Embeddings.Timeout); err == nil && d > 0 {
		timeout = d
	}

	dimension := cfg.Embeddings.Dimension
	if dimension <= 0 {
		dimension = 768
	}

	return &Service{
		apiKey:    cfg.Gemini.APIKey,
		model:     cfg.Gemini.EmbedModel,
		dimension: dimension,
		timeout:   timeout,
		logger:    logger,
	}
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
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	s.client = client
	return client, nil
}

// Embed generates a vector embedding for the given text.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	client, err := s.getClient(ctx)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	outputDim := int32(s.dimension)
	embeddingConfig := &genai.EmbedContentConfig{
		OutputDimensionality: &outputDim,
	}

	start := time.Now()
	result, err := client.Models.EmbedContent(callCtx, s.model,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, embeddingConfig)
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}

	var embedding []float32
	if result != nil && len(result.Embeddings) > 0 {
		embedding = result.Embeddings[0].Values
	}
	if embedding == nil {
		return nil, fmt.Errorf("no embedding returned from API")
	}
	if len(embedding) != s.dimension {
		return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", s.dimension, len(embedding))
	}

	s.logger.Debug().
		Str("model", s.model).
		Int("embedding_dim", len(embedding)).
		Int("text_length", len(text)).
		Dur("duration", time.Since(start)).
		Msg("Generated embedding")

	return embedding, nil
}

// EmbedBatch generates embeddings for multiple texts sequentially. A failure
// on any text aborts the batch.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, 0, len(texts))
	for i, text := range texts {
		embedding, err := s.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d of %d: %w", i+1, len(texts), err)
		}
		embeddings = append(embeddings, embedding)
	}
	return embeddings, nil
}

// Dimension returns the embedding vector dimension.
func (s *Service) Dimension() int {
	return s.dimension
}

// Close releases the client reference. The genai client does not require an
// explicit close.
func (s *Service) Close() error {
	s.client = nil
	return nil
}

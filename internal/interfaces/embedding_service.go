package interfaces

import "context"

// EmbeddingService defines the interface for generating text embeddings
// used in semantic similarity comparison.
type EmbeddingService interface {
	// Embed generates an embedding vector for the given text.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - text: Input text to generate embedding for
	//
	// Returns:
	//   - []float32: Embedding vector (768 dimensions by default)
	//   - error: Error if embedding generation fails
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in a single call.
	// The result slice is index-aligned with the input.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the vector dimension this service produces.
	Dimension() int

	// Close releases client resources.
	Close() error
}

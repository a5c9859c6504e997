package interfaces

import (
	"context"
)

// ProviderType identifies which backing AI provider served a request
type ProviderType string

const (
	// ProviderGemini uses the Google Gemini API
	ProviderGemini ProviderType = "gemini"
	// ProviderClaude uses the Anthropic Claude API
	ProviderClaude ProviderType = "claude"
)

// Message represents a single message in a generation conversation
type Message struct {
	// Role identifies the message sender: "user", "assistant", or "system"
	Role string

	// Content contains the text content of the message
	Content string
}

// GenerateRequest represents a provider-agnostic content generation request.
// Model strings may carry a provider prefix ("gemini/..." or "claude/...");
// an empty model selects the configured default provider and model.
type GenerateRequest struct {
	Messages          []Message
	Model             string
	Temperature       float32
	MaxTokens         int
	SystemInstruction string

	// OutputSchema, when non-nil, requests structured JSON output matching
	// the schema. Providers without schema support fall back to prompt-level
	// JSON instructions.
	OutputSchema map[string]interface{}

	// UseSearchGrounding enables web search grounding for providers that
	// support it. Grounded responses carry source attributions in the result.
	UseSearchGrounding bool
}

// GroundingSource is a single web source attribution returned by a
// search-grounded generation.
type GroundingSource struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// GenerateResult represents a provider-agnostic content generation response
type GenerateResult struct {
	Text     string
	Provider ProviderType
	Model    string

	// Sources holds grounding attributions when search grounding was used,
	// in the order the provider reported them. Empty otherwise.
	Sources []GroundingSource
}

// LLMService defines the interface for language model text generation.
// Implementations route to cloud providers based on the requested model
// and apply rate limiting and retry with backoff internally.
type LLMService interface {
	// Generate produces a completion for the given request. The call blocks
	// until the provider responds, the context is cancelled, or retries are
	// exhausted.
	Generate(ctx context.Context, request *GenerateRequest) (*GenerateResult, error)

	// HealthCheck verifies the service can reach its configured provider.
	HealthCheck(ctx context.Context) error

	// Close releases provider clients and connections.
	Close() error
}

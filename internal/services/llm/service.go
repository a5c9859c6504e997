package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/interfaces"
)

// Service routes generation requests to Gemini or Claude based on the
// requested model. Clients are created lazily; each provider carries its own
// rate limiter and retry policy.
type Service struct {
	llmConfig    *common.LLMConfig
	geminiConfig *common.GeminiConfig
	claudeConfig *common.ClaudeConfig
	logger       arbor.ILogger

	geminiClient  *genai.Client
	claudeClient  anthropic.Client
	claudeReady   bool
	geminiLimiter *rate.Limiter
	claudeLimiter *rate.Limiter
}

// NewService creates the provider-routing LLM service.
func NewService(cfg *common.Config, logger arbor.ILogger) *Service {
	return &Service{
		llmConfig:     &cfg.LLM,
		geminiConfig:  &cfg.Gemini,
		claudeConfig:  &cfg.Claude,
		logger:        logger,
		geminiLimiter: newLimiter(cfg.Gemini.RateLimit),
		claudeLimiter: newLimiter(cfg.Claude.RateLimit),
	}
}

// newLimiter builds a limiter from a min-interval duration string. An empty
// or invalid interval disables limiting.
func newLimiter(interval string) *rate.Limiter {
	d, err := time.ParseDuration(interval)
	if err != nil || d <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(d), 1)
}

// DetectProvider determines the provider type from a model string.
// Model strings can be:
// - "claude-sonnet-4-20250514" -> Claude
// - "claude/claude-sonnet-4-20250514" -> Claude (with prefix)
// - "gemini-2.5-flash" -> Gemini
// - "gemini/gemini-2.5-flash" -> Gemini (with prefix)
// - Empty string -> uses default provider from config
func (s *Service) DetectProvider(model string) interfaces.ProviderType {
	if model == "" {
		return interfaces.ProviderType(s.llmConfig.DefaultProvider)
	}

	model = strings.ToLower(model)

	if strings.HasPrefix(model, "claude/") || strings.HasPrefix(model, "anthropic/") {
		return interfaces.ProviderClaude
	}
	if strings.HasPrefix(model, "gemini/") || strings.HasPrefix(model, "google/") {
		return interfaces.ProviderGemini
	}

	if strings.HasPrefix(model, "claude-") {
		return interfaces.ProviderClaude
	}
	if strings.HasPrefix(model, "gemini-") {
		return interfaces.ProviderGemini
	}

	return interfaces.ProviderType(s.llmConfig.DefaultProvider)
}

// NormalizeModel removes provider prefix from model name if present
func (s *Service) NormalizeModel(model string) string {
	prefixes := []string{"claude/", "anthropic/", "gemini/", "google/"}
	for _, prefix := range prefixes {
		if strings.HasPrefix(strings.ToLower(model), prefix) {
			return model[len(prefix):]
		}
	}
	return model
}

// Generate produces a completion using the appropriate provider
func (s *Service) Generate(ctx context.Context, request *interfaces.GenerateRequest) (*interfaces.GenerateResult, error) {
	if request == nil || (len(request.Messages) == 0 && request.SystemInstruction == "") {
		return nil, fmt.Errorf("generate request has no messages")
	}

	provider := s.DetectProvider(request.Model)
	model := s.NormalizeModel(request.Model)

	s.logger.Debug().
		Str("provider", string(provider)).
		Str("model", model).
		Int("message_count", len(request.Messages)).
		Bool("search_grounding", request.UseSearchGrounding).
		Msg("Generating content with provider")

	switch provider {
	case interfaces.ProviderClaude:
		return s.generateWithClaude(ctx, request, model)
	case interfaces.ProviderGemini:
		return s.generateWithGemini(ctx, request, model)
	default:
		return s.generateWithGemini(ctx, request, model)
	}
}

// HealthCheck verifies the default provider's client can be created.
func (s *Service) HealthCheck(ctx context.Context) error {
	switch interfaces.ProviderType(s.llmConfig.DefaultProvider) {
	case interfaces.ProviderClaude:
		if s.claudeConfig.APIKey == "" {
			return fmt.Errorf("claude api key not configured")
		}
		_, err := s.getClaudeClient()
		return err
	default:
		if s.geminiConfig.APIKey == "" {
			return fmt.Errorf("gemini api key not configured")
		}
		_, err := s.getGeminiClient(ctx)
		return err
	}
}

// Close releases all provider clients
func (s *Service) Close() error {
	s.geminiClient = nil
	s.claudeClient = anthropic.Client{}
	s.claudeReady = false
	return nil
}

// getGeminiClient returns the Gemini client, creating one if necessary
func (s *Service) getGeminiClient(ctx context.Context) (*genai.Client, error) {
	if s.geminiClient != nil {
		return s.geminiClient, nil
	}

	if s.geminiConfig.APIKey == "" {
		return nil, fmt.Errorf("gemini api key not configured (set GEMINI_API_KEY or gemini.api_key)")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.geminiConfig.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	s.geminiClient = client
	return client, nil
}

// getClaudeClient returns the Claude client, creating one if necessary
func (s *Service) getClaudeClient() (anthropic.Client, error) {
	if s.claudeReady {
		return s.claudeClient, nil
	}

	if s.claudeConfig.APIKey == "" {
		return anthropic.Client{}, fmt.Errorf("anthropic api key not configured (set ANTHROPIC_API_KEY or claude.api_key)")
	}

	client := anthropic.NewClient(
		option.WithAPIKey(s.claudeConfig.APIKey),
	)

	s.claudeClient = client
	s.claudeReady = true
	return client, nil
}

// waitForLimiter blocks until the provider's rate limiter admits the call.
func waitForLimiter(ctx context.Context, limiter *rate.Limiter) error {
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

// generationTimeout returns the configured per-call timeout for a provider.
func generationTimeout(timeout string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(timeout); err == nil && d > 0 {
		return d
	}
	return fallback
}

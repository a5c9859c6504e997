// -----------------------------------------------------------------------
// AEO Scorer - LLM-backed answer-engine-optimization quality scoring
// -----------------------------------------------------------------------

package scorer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
)

// scoringSystemPrompt frames the rubric. The model returns numbers and issue
// strings; everything downstream treats the rubric as opaque policy.
const scoringSystemPrompt = `You are an exacting content quality auditor for answer-engine-optimized (AEO) articles.
Score the article from 0 to 100 against these criteria:
- Direct answer quality: the direct_answer must resolve the keyword's question in under 50 words.
- Structure: headline, teaser, intro and sections must be present, coherent, and non-repetitive.
- Evidence: claims should carry citations; uncited strong claims are critical issues.
- Scannability: headings, takeaways and FAQ must match the article body.
- Language: no filler, no hedging, no model self-reference.
List each critical issue as a short imperative sentence. Minor issues lower the score but are not listed.`

// scoreResponse is the schema-constrained scorer output.
type scoreResponse struct {
	Score          int      `json:"score"`
	CriticalIssues []string `json:"critical_issues"`
}

// scoreResponseSchema constrains the LLM output to a parseable verdict.
var scoreResponseSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"score": map[string]interface{}{
			"type":        "integer",
			"description": "Overall AEO quality score from 0 to 100",
			"minimum":     float64(0),
			"maximum":     float64(100),
		},
		"critical_issues": map[string]interface{}{
			"type":        "array",
			"description": "Critical quality problems, empty when none",
			"items":       map[string]interface{}{"type": "string"},
		},
	},
	"required": []interface{}{"score", "critical_issues"},
}

// Service implements QualityScorer with an LLM judgement call.
type Service struct {
	llm     interfaces.LLMService
	model   string
	enabled bool
	logger  arbor.ILogger
}

// NewService creates an LLM-backed quality scorer. When disabled the engine
// receives a nil scorer and skips the gate entirely, so Enabled is checked at
// wiring time.
func NewService(cfg *common.Config, llm interfaces.LLMService, logger arbor.ILogger) *Service {
	return &Service{
		llm:     llm,
		model:   cfg.Scorer.Model,
		enabled: cfg.Scorer.Enabled,
		logger:  logger,
	}
}

// Enabled reports whether scoring is configured on.
func (s *Service) Enabled() bool {
	return s.enabled && s.llm != nil
}

// Score rates the article against the AEO rubric. Returns the score, the
// critical issue list, and an error when the scorer itself failed (the caller
// treats that as gate-skipped, not as a zero score).
func (s *Service) Score(ctx context.Context, article models.ValidatedArticle, keyword string) (int, []string, error) {
	if !s.Enabled() {
		return 0, nil, fmt.Errorf("scorer is disabled")
	}

	articleJSON, err := json.Marshal(article)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to serialize article for scoring: %w", err)
	}

	userPrompt := fmt.Sprintf("Target keyword: %q\n\nArticle fields (JSON):\n%s", keyword, string(articleJSON))

	start := time.Now()
	result, err := s.llm.Generate(ctx, &interfaces.GenerateRequest{
		Messages: []interfaces.Message{
			{Role: "user", Content: userPrompt},
		},
		Model:             s.model,
		SystemInstruction: scoringSystemPrompt,
		Temperature:       0.1,
		OutputSchema:      scoreResponseSchema,
	})
	if err != nil {
		return 0, nil, fmt.Errorf("scoring call failed: %w", err)
	}

	verdict, err := parseScoreResponse(result.Text)
	if err != nil {
		return 0, nil, err
	}

	s.logger.Info().
		Str("keyword", keyword).
		Int("aeo_score", verdict.Score).
		Int("critical_issues", len(verdict.CriticalIssues)).
		Dur("duration", time.Since(start)).
		Msg("Scored article")

	return verdict.Score, verdict.CriticalIssues, nil
}

// parseScoreResponse decodes the scorer verdict, tolerating markdown fences
// some models wrap around JSON despite schema instructions.
func parseScoreResponse(text string) (*scoreResponse, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var verdict scoreResponse
	if err := json.Unmarshal([]byte(cleaned), &verdict); err != nil {
		return nil, fmt.Errorf("scorer returned unparseable verdict: %w", err)
	}

	if verdict.Score < 0 {
		verdict.Score = 0
	}
	if verdict.Score > 100 {
		verdict.Score = 100
	}

	return &verdict, nil
}

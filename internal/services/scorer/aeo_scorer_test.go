package scorer

import (
	"context"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
)

// fakeLLM returns a canned response and records the last request.
type fakeLLM struct {
	text    string
	lastReq *interfaces.GenerateRequest
}

func (f *fakeLLM) Generate(ctx context.Context, req *interfaces.GenerateRequest) (*interfaces.GenerateResult, error) {
	f.lastReq = req
	return &interfaces.GenerateResult{Text: f.text, Provider: "gemini", Model: "test"}, nil
}

func (f *fakeLLM) HealthCheck(ctx context.Context) error { return nil }
func (f *fakeLLM) Close() error                          { return nil }

func TestParseScoreResponse(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantScore  int
		wantIssues int
		wantErr    bool
	}{
		{
			name:       "plain json",
			text:       `{"score": 84, "critical_issues": []}`,
			wantScore:  84,
			wantIssues: 0,
		},
		{
			name:       "fenced json",
			text:       "```json\n{\"score\": 42, \"critical_issues\": [\"missing citations\", \"weak direct answer\"]}\n```",
			wantScore:  42,
			wantIssues: 2,
		},
		{
			name:      "out of range clamped",
			text:      `{"score": 150, "critical_issues": []}`,
			wantScore: 100,
		},
		{
			name:    "not json",
			text:    "the article is pretty good",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict, err := parseScoreResponse(tt.text)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected parse error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseScoreResponse failed: %v", err)
			}
			if verdict.Score != tt.wantScore {
				t.Errorf("score = %d, want %d", verdict.Score, tt.wantScore)
			}
			if len(verdict.CriticalIssues) != tt.wantIssues {
				t.Errorf("issues = %d, want %d", len(verdict.CriticalIssues), tt.wantIssues)
			}
		})
	}
}

func TestScore_UsesSchemaAndKeyword(t *testing.T) {
	llm := &fakeLLM{text: `{"score": 77, "critical_issues": ["thin intro"]}`}
	cfg := common.NewDefaultConfig()
	service := NewService(cfg, llm, arbor.NewLogger())

	article := models.ValidatedArticle{"headline": "Zero Trust Explained"}
	score, issues, err := service.Score(context.Background(), article, "zero trust")
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if score != 77 {
		t.Errorf("score = %d, want 77", score)
	}
	if len(issues) != 1 || issues[0] != "thin intro" {
		t.Errorf("issues = %v, want [thin intro]", issues)
	}

	if llm.lastReq == nil {
		t.Fatal("LLM was not called")
	}
	if llm.lastReq.OutputSchema == nil {
		t.Error("scoring request must carry a response schema")
	}
	if llm.lastReq.SystemInstruction == "" {
		t.Error("scoring request must carry the rubric system prompt")
	}
}

func TestScore_DisabledScorer(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Scorer.Enabled = false
	service := NewService(cfg, &fakeLLM{}, arbor.NewLogger())

	if service.Enabled() {
		t.Error("Enabled() = true for disabled scorer")
	}
	if _, _, err := service.Score(context.Background(), models.ValidatedArticle{}, "kw"); err == nil {
		t.Error("expected error from disabled scorer")
	}
}

package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/models"
)

func faqResponse(faqCount, paaCount int) string {
	payload := map[string][]models.QAItem{"faq": {}, "paa": {}}
	for i := 0; i < faqCount; i++ {
		payload["faq"] = append(payload["faq"], models.QAItem{
			Question: fmt.Sprintf("FAQ question %d?", i+1),
			Answer:   fmt.Sprintf("FAQ answer %d.", i+1),
		})
	}
	for i := 0; i < paaCount; i++ {
		payload["paa"] = append(payload["paa"], models.QAItem{
			Question: fmt.Sprintf("PAA question %d?", i+1),
			Answer:   fmt.Sprintf("PAA answer %d.", i+1),
		})
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

func TestFAQStage(t *testing.T) {
	t.Run("faq and paa parsed from response", func(t *testing.T) {
		llm := &fakeLLM{responses: []string{faqResponse(3, 2)}}
		stage := NewFAQStage(llm, testPrompts(t), arbor.NewLogger())
		ec := newTestContext()
		ec.Language = "en"
		ec.Draft = sampleDraft()

		if err := stage.Execute(context.Background(), ec); err != nil {
			t.Fatalf("Execute() error: %v", err)
		}
		if len(ec.FAQ) != 3 {
			t.Errorf("faq = %d items, want 3", len(ec.FAQ))
		}
		if len(ec.PAA) != 2 {
			t.Errorf("paa = %d items, want 2", len(ec.PAA))
		}
		if ec.FAQ[0].Question != "FAQ question 1?" {
			t.Errorf("faq[0] = %+v", ec.FAQ[0])
		}
	})

	t.Run("overlong lists capped", func(t *testing.T) {
		llm := &fakeLLM{responses: []string{faqResponse(10, 10)}}
		stage := NewFAQStage(llm, testPrompts(t), arbor.NewLogger())
		ec := newTestContext()
		ec.Draft = sampleDraft()

		if err := stage.Execute(context.Background(), ec); err != nil {
			t.Fatalf("Execute() error: %v", err)
		}
		if len(ec.FAQ) != models.MaxFAQItems {
			t.Errorf("faq = %d items, want %d", len(ec.FAQ), models.MaxFAQItems)
		}
		if len(ec.PAA) != models.MaxPAAItems {
			t.Errorf("paa = %d items, want %d", len(ec.PAA), models.MaxPAAItems)
		}
	})

	t.Run("generation failure is an error", func(t *testing.T) {
		llm := &fakeLLM{err: fmt.Errorf("quota exhausted")}
		stage := NewFAQStage(llm, testPrompts(t), arbor.NewLogger())
		ec := newTestContext()
		ec.Draft = sampleDraft()

		if err := stage.Execute(context.Background(), ec); err == nil {
			t.Error("expected error")
		}
		if ec.FAQ != nil || ec.PAA != nil {
			t.Error("faq/paa should stay unset on failure")
		}
	})

	t.Run("missing draft is an error", func(t *testing.T) {
		stage := NewFAQStage(&fakeLLM{}, testPrompts(t), arbor.NewLogger())
		ec := newTestContext()
		if err := stage.Execute(context.Background(), ec); err == nil {
			t.Error("expected error for missing draft")
		}
	})
}

func TestCapQAItems(t *testing.T) {
	items := []models.QAItem{
		{Question: "q1", Answer: "a1"},
		{Question: "q2", Answer: ""},
		{Question: "", Answer: "a3"},
		{Question: "q4", Answer: "a4"},
		{Question: "q5", Answer: "a5"},
	}

	got := capQAItems(items, 2)
	if len(got) != 2 {
		t.Fatalf("kept %d items, want 2", len(got))
	}
	if got[0].Question != "q1" || got[1].Question != "q4" {
		t.Errorf("incomplete pairs not dropped: %+v", got)
	}

	if capQAItems(nil, 4) != nil {
		t.Error("nil input should stay nil")
	}
}

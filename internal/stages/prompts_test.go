package stages

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ternarybob/arbor"
)

func TestPromptLibrary(t *testing.T) {
	t.Run("built-in templates render", func(t *testing.T) {
		lib := testPrompts(t)
		for name := range builtinPrompts {
			out, err := lib.Render(name, promptData{
				Keyword:     "cloud security",
				CompanyName: "Example Corp",
				Language:    "en",
				WordCount:   1500,
			})
			if err != nil {
				t.Errorf("Render(%q) error: %v", name, err)
			}
			if strings.TrimSpace(out) == "" {
				t.Errorf("Render(%q) produced empty output", name)
			}
		}
	})

	t.Run("unknown template name is an error", func(t *testing.T) {
		lib := testPrompts(t)
		if _, err := lib.Render("nonexistent", promptData{}); err == nil {
			t.Error("expected error for unknown template")
		}
	})

	t.Run("yaml overrides replace built-ins", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "prompts.yaml")
		override := "article: |\n  Custom article prompt for {{.Keyword}}.\nsystem: \"\"\n"
		if err := os.WriteFile(path, []byte(override), 0o644); err != nil {
			t.Fatal(err)
		}

		lib, err := LoadPromptLibrary(path, arbor.NewLogger())
		if err != nil {
			t.Fatalf("LoadPromptLibrary() error: %v", err)
		}

		out, err := lib.Render("article", promptData{Keyword: "cloud security"})
		if err != nil {
			t.Fatalf("Render() error: %v", err)
		}
		if !strings.Contains(out, "Custom article prompt for cloud security.") {
			t.Errorf("override not applied: %q", out)
		}

		// Empty override bodies keep the built-in.
		system, err := lib.Render("system", promptData{Language: "en"})
		if err != nil {
			t.Fatalf("Render(system) error: %v", err)
		}
		if !strings.Contains(system, "senior content writer") {
			t.Errorf("empty override should keep the built-in: %q", system)
		}
	})

	t.Run("missing file falls back to built-ins", func(t *testing.T) {
		lib, err := LoadPromptLibrary(filepath.Join(t.TempDir(), "absent.yaml"), arbor.NewLogger())
		if err != nil {
			t.Fatalf("LoadPromptLibrary() error: %v", err)
		}
		if _, err := lib.Render("article", promptData{}); err != nil {
			t.Errorf("built-in should render: %v", err)
		}
	})

	t.Run("malformed yaml is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "prompts.yaml")
		if err := os.WriteFile(path, []byte("article: [unclosed"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadPromptLibrary(path, arbor.NewLogger()); err == nil {
			t.Error("expected error for malformed yaml")
		}
	})

	t.Run("malformed template is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "prompts.yaml")
		if err := os.WriteFile(path, []byte("article: \"{{.Unclosed\"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadPromptLibrary(path, arbor.NewLogger()); err == nil {
			t.Error("expected error for unparseable template")
		}
	})
}

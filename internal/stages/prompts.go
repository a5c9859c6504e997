// -----------------------------------------------------------------------
// Prompt Library - Built-in generation prompts with YAML override support
// -----------------------------------------------------------------------

package stages

import (
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/ternarybob/arbor"
	"gopkg.in/yaml.v3"
)

// promptData carries everything a prompt template may reference. Fields not
// relevant to a given template are simply left empty.
type promptData struct {
	Keyword        string
	CompanyName    string
	CompanyURL     string
	CompanyContext string
	Language       string
	Country        string
	WordCount      int
	Tone           string

	// Fields for the secondary passes.
	Headline  string
	Teaser    string
	DraftJSON string
	Issues    string
}

const systemPrompt = `You are a senior content writer producing long-form, answer-engine-optimized articles.
Write factual, well-structured prose in {{.Language}}. Answer the reader's question directly
before elaborating. Prefer short paragraphs, concrete examples, and plain language over
marketing filler. Never invent statistics; attribute factual claims to sources using numeric
citation markers like [1].`

const articlePrompt = `Write a long-form article targeting the keyword "{{.Keyword}}" for {{.CompanyName}} ({{.CompanyURL}}).

Company context:
{{.CompanyContext}}

Requirements:
- Language: {{.Language}}{{if .Country}}, audience located in {{.Country}}{{end}}
- Target length: about {{.WordCount}} words
- Tone: {{.Tone}}
- "direct_answer" must answer the keyword's underlying question in at most 50 words
- 5 to 9 sections, each with a descriptive title and substantial content
- Exactly 3 key takeaways
- Place numeric citation markers like [1], [2] after factual claims drawn from web sources

Return only JSON matching the response schema, with no commentary around it.`

const extractPrompt = `You convert raw article text into structured JSON. Extract the headline, teaser,
direct answer, intro, sections, and key takeaways from the text exactly as written,
preserving citation markers like [1]. Return only JSON matching the response schema.`

const refinePrompt = `The article draft below has weaknesses: {{.Issues}}.

Rewrite the draft to fix them while preserving everything that already works: keep the
language ({{.Language}}), tone ({{.Tone}}), section structure, factual content, and every
citation marker like [1] exactly where it is. Expand thin passages with concrete detail;
do not pad.

Draft:
{{.DraftJSON}}

Return only JSON matching the response schema.`

const metadataPrompt = `Write SEO metadata for an article titled "{{.Headline}}" targeting the keyword "{{.Keyword}}".

Teaser: {{.Teaser}}

Rules:
- meta_title: at most 60 characters, contains the keyword or a close variant
- meta_description: at most 160 characters, compelling, answers the search intent

Return only JSON matching the response schema.`

const faqPrompt = `For an article titled "{{.Headline}}" targeting the keyword "{{.Keyword}}", write:
- up to 6 FAQ entries: the questions a reader who found this article would still ask
- up to 4 "people also ask" entries: adjacent questions searchers ask around this keyword

Answers are 2-4 sentences, factual, in {{.Language}}. Return only JSON matching the
response schema.`

// builtinPrompts maps template names to their default bodies. A prompts.yaml
// file may override any subset of them.
var builtinPrompts = map[string]string{
	"system":   systemPrompt,
	"article":  articlePrompt,
	"extract":  extractPrompt,
	"refine":   refinePrompt,
	"metadata": metadataPrompt,
	"faq":      faqPrompt,
}

// PromptLibrary resolves named prompt templates. Resolution order per name:
// user override from the prompts file, then the built-in default.
type PromptLibrary struct {
	templates map[string]*template.Template
}

// LoadPromptLibrary builds the library from the built-in prompts plus any
// overrides in the YAML file at path (a flat name -> template mapping). A
// missing file is not an error; a file that exists but fails to parse is.
func LoadPromptLibrary(path string, logger arbor.ILogger) (*PromptLibrary, error) {
	bodies := make(map[string]string, len(builtinPrompts))
	for name, body := range builtinPrompts {
		bodies[name] = body
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			overrides := make(map[string]string)
			if err := yaml.Unmarshal(data, &overrides); err != nil {
				return nil, fmt.Errorf("failed to parse prompts file %s: %w", path, err)
			}
			for name, body := range overrides {
				if strings.TrimSpace(body) == "" {
					continue
				}
				bodies[name] = body
			}
			logger.Info().Str("path", path).Int("overrides", len(overrides)).Msg("Prompt overrides loaded")
		case os.IsNotExist(err):
			logger.Debug().Str("path", path).Msg("No prompts file, using built-in prompts")
		default:
			return nil, fmt.Errorf("failed to read prompts file %s: %w", path, err)
		}
	}

	lib := &PromptLibrary{templates: make(map[string]*template.Template, len(bodies))}
	for name, body := range bodies {
		tmpl, err := template.New(name).Parse(body)
		if err != nil {
			return nil, fmt.Errorf("failed to parse prompt template %q: %w", name, err)
		}
		lib.templates[name] = tmpl
	}
	return lib, nil
}

// Render executes the named template against the given data.
func (l *PromptLibrary) Render(name string, data promptData) (string, error) {
	tmpl, ok := l.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt template %q", name)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to render prompt %q: %w", name, err)
	}
	return b.String(), nil
}

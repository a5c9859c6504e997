// -----------------------------------------------------------------------
// Article - Draft structure, parallel enrichments, validated flat article
// -----------------------------------------------------------------------

package models

import (
	"encoding/gob"
	"fmt"
	"sort"
	"strings"
)

func init() {
	// Register types with gob for BadgerDB serialization: the validated
	// article map holds these inside interface values.
	gob.Register(ValidatedArticle{})
	gob.Register(Citation{})
	gob.Register([]Citation{})
	gob.Register(TocEntry{})
	gob.Register([]TocEntry{})
	gob.Register(InternalLink{})
	gob.Register([]InternalLink{})
	gob.Register(map[string]any{})
	gob.Register([]any{})
}

// JobConfig is the normalized generation configuration produced by the
// data fetch stage: job options with defaults applied.
type JobConfig struct {
	Keyword       string   `json:"keyword"`
	CompanyURL    string   `json:"company_url"`
	CompanyName   string   `json:"company_name"`
	Language      string   `json:"language"`
	Country       string   `json:"country"`
	WordCount     int      `json:"word_count"`
	Tone          string   `json:"tone"`
	SystemPrompts []string `json:"system_prompts,omitempty"`
}

// CompanyData holds context extracted from the company website
type CompanyData struct {
	URL         string   `json:"url"`
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Headings    []string `json:"headings,omitempty"`
}

// ArticleSection is one titled body section of a draft
type ArticleSection struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ArticleDraft is the structured article extracted from the raw LLM output.
// Enrichments (citations, links, toc, metadata, faq, images) are merged in later.
type ArticleDraft struct {
	Headline     string           `json:"headline"`
	Teaser       string           `json:"teaser"`
	DirectAnswer string           `json:"direct_answer"`
	Intro        string           `json:"intro"`
	Sections     []ArticleSection `json:"sections"`
	KeyTakeaways []string         `json:"key_takeaways,omitempty"`
}

// Citation is one numbered source reference
type Citation struct {
	Number int    `json:"n"`
	Title  string `json:"title"`
	URL    string `json:"url"`
}

// QAItem is one question/answer pair (FAQ or PAA)
type QAItem struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// TocEntry is one table-of-contents row
type TocEntry struct {
	Anchor string `json:"anchor"`
	Label  string `json:"label"`
}

// AnchorSlug derives a URL-fragment anchor from a section title: lowercased,
// alphanumeric runs kept, everything between them collapsed to single hyphens.
// An empty result falls back to the positional anchor for ordinal (1-based).
func AnchorSlug(title string, ordinal int) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pending && b.Len() > 0 {
				b.WriteByte('-')
			}
			pending = false
			b.WriteRune(r)
		default:
			pending = true
		}
	}
	if b.Len() == 0 {
		return fmt.Sprintf("section-%02d", ordinal)
	}
	return b.String()
}

// SectionAnchors derives one unique anchor per section title. Duplicate slugs
// get a numeric suffix so document ids stay unique. The derivation is
// deterministic, which keeps the table of contents and the rendered section
// ids in agreement.
func SectionAnchors(titles []string) []string {
	anchors := make([]string, len(titles))
	seen := make(map[string]bool, len(titles))
	for i, title := range titles {
		base := AnchorSlug(title, i+1)
		slug := base
		for n := 2; seen[slug]; n++ {
			slug = fmt.Sprintf("%s-%d", base, n)
		}
		seen[slug] = true
		anchors[i] = slug
	}
	return anchors
}

// InternalLink is one related-page candidate from the site
type InternalLink struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// ArticleMetadata holds SEO metadata produced by the metadata stage
type ArticleMetadata struct {
	MetaTitle       string `json:"meta_title"`       // <= 60 chars
	MetaDescription string `json:"meta_description"` // <= 160 chars
}

// ImageResult is the output of the image generation stage
type ImageResult struct {
	URL     string `json:"url"`
	AltText string `json:"alt_text"`
}

// StorageResult reports where a job's artifacts were persisted
type StorageResult struct {
	Location  string        `json:"location"`
	Artifacts []ArtifactRef `json:"artifacts"`
}

// Maximum cardinalities of the optional article parts
const (
	MaxSections  = 9
	MaxTakeaways = 3
	MaxPAAItems  = 4
	MaxFAQItems  = 6
	MaxImages    = 3
	MaxCitations = 12
)

// MetaTitleMaxLen and MetaDescriptionMaxLen bound the SEO metadata fields
const (
	MetaTitleMaxLen       = 60
	MetaDescriptionMaxLen = 160
)

// ValidatedArticle is the flat, merged, link-resolved article consumed by
// persistence and rendering. Keys are snake_case field names; values are
// strings, numbers, or arrays (arrays are joined to strings only at export).
// JSON serialization is deterministic (map keys marshal sorted).
type ValidatedArticle map[string]any

// RequiredArticleFields lists the fields that must be non-empty after merge
var RequiredArticleFields = []string{
	"headline",
	"teaser",
	"direct_answer",
	"intro",
	"meta_title",
	"meta_description",
	"section_01_title",
	"section_01_content",
	"image_01_url",
	"image_01_alt_text",
}

// BodyFieldKeys returns the article keys whose text is subject to citation
// marker linking, in deterministic order.
func (a ValidatedArticle) BodyFieldKeys() []string {
	keys := []string{"teaser", "direct_answer", "intro"}
	for i := 1; i <= MaxSections; i++ {
		key := fmt.Sprintf("section_%02d_content", i)
		if _, ok := a[key]; ok {
			keys = append(keys, key)
		}
	}
	return keys
}

// GetString returns the field as a string, or "" when absent or non-string
func (a ValidatedArticle) GetString(key string) string {
	if v, ok := a[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// SetIfAbsent writes the field only when it is missing or empty.
// The merge overlay relies on this: earlier writes win.
func (a ValidatedArticle) SetIfAbsent(key string, value any) {
	if existing, ok := a[key]; ok {
		if s, isStr := existing.(string); !isStr || s != "" {
			return
		}
	}
	a[key] = value
}

// MissingRequired returns the required fields that are absent or empty,
// sorted for stable error messages.
func (a ValidatedArticle) MissingRequired() []string {
	var missing []string
	for _, key := range RequiredArticleFields {
		v, ok := a[key]
		if !ok {
			missing = append(missing, key)
			continue
		}
		if s, isStr := v.(string); isStr && s == "" {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	return missing
}

// Clone returns a shallow copy (array values are shared; callers treat
// arrays as immutable once merged)
func (a ValidatedArticle) Clone() ValidatedArticle {
	c := make(ValidatedArticle, len(a))
	for k, v := range a {
		c[k] = v
	}
	return c
}

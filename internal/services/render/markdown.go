// -----------------------------------------------------------------------
// Markdown Renderer - derived from the HTML rendering
// -----------------------------------------------------------------------

package render

import (
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"

	"github.com/ternarybob/scriptor/internal/models"
)

// RenderMarkdown converts the rendered HTML document to Markdown. Deriving
// from the HTML keeps the two exports structurally identical, citation
// anchors included.
func (s *Service) RenderMarkdown(article models.ValidatedArticle) ([]byte, error) {
	html, err := s.RenderHTML(article)
	if err != nil {
		return nil, err
	}

	converter := md.NewConverter("", true, nil)
	converted, err := converter.ConvertString(string(html))
	if err != nil {
		s.logger.Warn().Err(err).Msg("HTML to markdown conversion failed, using fallback")
		return []byte(stripHTMLTags(string(html))), nil
	}

	trimmed := strings.TrimSpace(converted)
	if trimmed == "" {
		return nil, fmt.Errorf("markdown conversion produced empty output")
	}

	s.logger.Debug().
		Int("markdown_size", len(trimmed)).
		Msg("Rendered article markdown")

	return []byte(trimmed + "\n"), nil
}

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	spaceRunPattern   = regexp.MustCompile(`[ \t]{2,}`)
	newlineRunPattern = regexp.MustCompile(`\n{3,}`)
)

// stripHTMLTags is the conversion fallback: drop tags, collapse whitespace.
func stripHTMLTags(html string) string {
	text := tagPattern.ReplaceAllString(html, " ")
	text = spaceRunPattern.ReplaceAllString(text, " ")
	text = newlineRunPattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

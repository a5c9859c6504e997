package interfaces

import (
	"github.com/ternarybob/scriptor/internal/models"
)

// Renderer converts a validated article into export formats for persistence.
type Renderer interface {
	// RenderHTML produces a standalone HTML document.
	RenderHTML(article models.ValidatedArticle) ([]byte, error)

	// RenderMarkdown produces a Markdown rendition of the article body.
	RenderMarkdown(article models.ValidatedArticle) ([]byte, error)

	// RenderPDF produces a PDF rendition of the article.
	RenderPDF(article models.ValidatedArticle) ([]byte, error)
}

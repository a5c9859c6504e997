// -----------------------------------------------------------------------
// Render Service - HTML, Markdown and PDF exports of a validated article
// -----------------------------------------------------------------------

package render

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/interfaces"
)

// Service implements interfaces.Renderer. HTML is the primary rendering;
// Markdown is derived from the HTML, and PDF from the Markdown.
type Service struct {
	logger arbor.ILogger
}

// Compile-time assertion
var _ interfaces.Renderer = (*Service)(nil)

// NewService creates the article renderer.
func NewService(logger arbor.ILogger) *Service {
	return &Service{logger: logger}
}

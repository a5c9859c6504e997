// -----------------------------------------------------------------------
// PDF Renderer - goldmark AST walked onto an fpdf page
// -----------------------------------------------------------------------

package render

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"

	"github.com/ternarybob/scriptor/internal/models"
)

// RenderPDF converts the article to PDF by parsing its Markdown export and
// walking the goldmark AST onto an fpdf document.
func (s *Service) RenderPDF(article models.ValidatedArticle) ([]byte, error) {
	markdown, err := s.RenderMarkdown(article)
	if err != nil {
		return nil, err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	pdf.SetFont("Arial", "", 10)

	pdf.SetTitle(article.GetString("meta_title"), true)
	pdf.SetSubject(article.GetString("meta_description"), true)

	md := goldmark.New(
		goldmark.WithExtensions(extension.Linkify),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)

	source := markdown
	doc := md.Parser().Parse(text.NewReader(source))

	renderer := &pdfRenderer{
		pdf:    pdf,
		source: source,
		font:   "Arial",
		size:   10,
	}
	if err := renderer.render(doc); err != nil {
		return nil, fmt.Errorf("failed to lay out PDF: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF output: %w", err)
	}

	s.logger.Debug().
		Int("pdf_size", buf.Len()).
		Msg("Rendered article PDF")

	return buf.Bytes(), nil
}

// pdfRenderer walks the markdown AST and writes fpdf primitives. Articles
// use headings, paragraphs, emphasis, lists, links and blockquotes; tables
// and code blocks never appear in generated articles, so they fall through
// as plain text.
type pdfRenderer struct {
	pdf       *fpdf.Fpdf
	source    []byte
	font      string
	size      float64
	bold      bool
	italic    bool
	inList    bool
	listLevel int
}

func (r *pdfRenderer) render(node ast.Node) error {
	return ast.Walk(node, r.walk)
}

func (r *pdfRenderer) updateFont() {
	style := ""
	if r.bold {
		style += "B"
	}
	if r.italic {
		style += "I"
	}
	r.pdf.SetFont(r.font, style, r.size)
}

func (r *pdfRenderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch n.Kind() {
	case ast.KindHeading:
		return r.handleHeading(n.(*ast.Heading), entering)
	case ast.KindParagraph:
		if !entering {
			r.pdf.Ln(7)
		}
	case ast.KindText:
		if entering {
			r.pdf.Write(5, string(n.Text(r.source)))
		}
	case ast.KindEmphasis:
		r.handleEmphasis(n.(*ast.Emphasis), entering)
	case ast.KindLink:
		if entering {
			link := n.(*ast.Link)
			r.writeLink(string(link.Destination), string(link.Text(r.source)))
			return ast.WalkSkipChildren, nil
		}
	case ast.KindAutoLink:
		if entering {
			link := n.(*ast.AutoLink)
			r.writeLink(string(link.URL(r.source)), string(link.Label(r.source)))
			return ast.WalkSkipChildren, nil
		}
	case ast.KindList:
		r.handleList(entering)
	case ast.KindListItem:
		if entering {
			r.pdf.Ln(5)
			indent := float64(r.listLevel) * 5.0
			r.pdf.SetX(15 + indent)
			r.pdf.Write(5, "- ")
		}
	case ast.KindBlockquote:
		if entering {
			r.pdf.SetTextColor(90, 90, 90)
		} else {
			r.pdf.SetTextColor(0, 0, 0)
			r.pdf.Ln(2)
		}
	case ast.KindThematicBreak:
		if entering {
			r.pdf.Ln(3)
			r.pdf.Line(15, r.pdf.GetY(), 195, r.pdf.GetY())
			r.pdf.Ln(3)
		}
	}
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) handleHeading(n *ast.Heading, entering bool) (ast.WalkStatus, error) {
	if entering {
		r.pdf.Ln(6)
		size := 16.0
		switch n.Level {
		case 1:
			size = 16
		case 2:
			size = 13
		case 3:
			size = 11
		default:
			size = 10
		}
		r.pdf.SetFont(r.font, "B", size)
	} else {
		r.pdf.Ln(6)
		r.updateFont()
	}
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) handleEmphasis(n *ast.Emphasis, entering bool) {
	if n.Level == 2 {
		r.bold = entering
	} else {
		r.italic = entering
	}
	r.updateFont()
}

// writeLink renders a clickable, blue link span and restores the style.
func (r *pdfRenderer) writeLink(url, label string) {
	if label == "" {
		label = url
	}
	r.pdf.SetTextColor(0, 0, 200)
	r.pdf.WriteLinkString(5, label, url)
	r.pdf.SetTextColor(0, 0, 0)
}

func (r *pdfRenderer) handleList(entering bool) {
	if entering {
		r.inList = true
		r.listLevel++
	} else {
		r.listLevel--
		if r.listLevel == 0 {
			r.inList = false
			r.pdf.Ln(4)
		}
	}
}

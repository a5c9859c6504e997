// -----------------------------------------------------------------------
// HTML Renderer - article map to a standalone HTML document
// -----------------------------------------------------------------------

package render

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/ternarybob/scriptor/internal/models"
)

// articleTemplate renders the full article document. Body fields carry
// pre-linked citation anchors, so they are injected as template.HTML; scalar
// metadata goes through normal escaping.
const articleTemplate = `<!DOCTYPE html>
<html lang="{{.Language}}">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.MetaTitle}}</title>
<meta name="description" content="{{.MetaDescription}}">
</head>
<body>
<article>
<header>
<h1>{{.Headline}}</h1>
<p class="teaser">{{.Teaser}}</p>
</header>
<section class="direct-answer">
<p>{{.DirectAnswer}}</p>
</section>
{{if .Images}}{{with index .Images 0}}<figure class="hero">
<img src="{{.URL}}" alt="{{.Alt}}">
</figure>
{{end}}{{end}}{{if .TOC}}<nav class="toc" aria-label="Table of contents">
<ul>
{{range .TOC}}<li><a href="#{{.Anchor}}">{{.Label}}</a></li>
{{end}}</ul>
</nav>
{{end}}<section class="intro">
{{.Intro}}
</section>
{{range $i, $s := .Sections}}<section id="{{$s.Anchor}}">
<h2>{{$s.Title}}</h2>
{{$s.Content}}
{{sectionImage $.Images $i}}</section>
{{end}}{{if .Takeaways}}<section class="key-takeaways">
<h2>Key Takeaways</h2>
<ul>
{{range .Takeaways}}<li>{{.}}</li>
{{end}}</ul>
</section>
{{end}}{{if .PAA}}<section class="paa">
<h2>People Also Ask</h2>
{{range .PAA}}<details>
<summary>{{.Question}}</summary>
<p>{{.Answer}}</p>
</details>
{{end}}</section>
{{end}}{{if .FAQ}}<section class="faq">
<h2>Frequently Asked Questions</h2>
{{range .FAQ}}<details>
<summary>{{.Question}}</summary>
<p>{{.Answer}}</p>
</details>
{{end}}</section>
{{end}}{{if .InternalLinks}}<section class="related">
<h2>Related Reading</h2>
<ul>
{{range .InternalLinks}}<li><a href="{{.URL}}">{{.Title}}</a></li>
{{end}}</ul>
</section>
{{end}}{{if .Sources}}<section class="sources">
<h2>Sources</h2>
<ol>
{{range .Sources}}<li id="cite-{{.Number}}"><a href="{{.URL}}" target="_blank" rel="noopener noreferrer">{{.Title}}</a></li>
{{end}}</ol>
</section>
{{end}}</article>
</body>
</html>
`

var compiledArticleTemplate = template.Must(
	template.New("article").Funcs(template.FuncMap{
		// sectionImage interleaves the non-hero images after sections:
		// image 2 follows the first section, image 3 the second.
		"sectionImage": func(images []imageView, sectionIdx int) template.HTML {
			imageIdx := sectionIdx + 1
			if imageIdx < 1 || imageIdx >= len(images) {
				return ""
			}
			img := images[imageIdx]
			return template.HTML(fmt.Sprintf(
				"<figure>\n<img src=%q alt=%q>\n</figure>\n",
				img.URL, img.Alt))
		},
	}).Parse(articleTemplate),
)

// RenderHTML renders the article as a standalone HTML document.
func (s *Service) RenderHTML(article models.ValidatedArticle) ([]byte, error) {
	if len(article) == 0 {
		return nil, fmt.Errorf("cannot render empty article")
	}

	view := buildView(article)

	var buf bytes.Buffer
	if err := compiledArticleTemplate.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("failed to render article HTML: %w", err)
	}

	s.logger.Debug().
		Int("html_size", buf.Len()).
		Int("sections", len(view.Sections)).
		Int("sources", len(view.Sources)).
		Msg("Rendered article HTML")

	return buf.Bytes(), nil
}

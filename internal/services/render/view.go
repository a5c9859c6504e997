package render

import (
	"encoding/json"
	"fmt"
	"html/template"

	"github.com/ternarybob/scriptor/internal/models"
)

// articleView is the ordered projection of the flat article map consumed by
// the HTML template.
type articleView struct {
	Language        string
	Headline        string
	Teaser          template.HTML
	DirectAnswer    template.HTML
	Intro           template.HTML
	MetaTitle       string
	MetaDescription string
	Sections        []sectionView
	Takeaways       []string
	PAA             []qaView
	FAQ             []qaView
	Images          []imageView
	Sources         []models.Citation
	TOC             []models.TocEntry
	InternalLinks   []models.InternalLink
}

type sectionView struct {
	Anchor  string
	Title   string
	Content template.HTML
}

type qaView struct {
	Question string
	Answer   template.HTML
}

type imageView struct {
	URL string
	Alt string
}

// buildView assembles the view from the flat map. Section/QA/image fields
// are gathered in numeric order; gaps terminate the scan for that group.
func buildView(article models.ValidatedArticle) *articleView {
	view := &articleView{
		Language:        article.GetString("language"),
		Headline:        article.GetString("headline"),
		Teaser:          template.HTML(article.GetString("teaser")),
		DirectAnswer:    template.HTML(article.GetString("direct_answer")),
		Intro:           template.HTML(article.GetString("intro")),
		MetaTitle:       article.GetString("meta_title"),
		MetaDescription: article.GetString("meta_description"),
	}
	if view.Language == "" {
		view.Language = "en"
	}

	var titles []string
	for i := 1; i <= models.MaxSections; i++ {
		title := article.GetString(fmt.Sprintf("section_%02d_title", i))
		content := article.GetString(fmt.Sprintf("section_%02d_content", i))
		if title == "" && content == "" {
			break
		}
		titles = append(titles, title)
		view.Sections = append(view.Sections, sectionView{
			Title:   title,
			Content: template.HTML(content),
		})
	}
	for i, anchor := range models.SectionAnchors(titles) {
		view.Sections[i].Anchor = anchor
	}

	for i := 1; i <= models.MaxTakeaways; i++ {
		takeaway := article.GetString(fmt.Sprintf("key_takeaway_%02d", i))
		if takeaway == "" {
			break
		}
		view.Takeaways = append(view.Takeaways, takeaway)
	}

	for i := 1; i <= models.MaxPAAItems; i++ {
		q := article.GetString(fmt.Sprintf("paa_%02d_question", i))
		a := article.GetString(fmt.Sprintf("paa_%02d_answer", i))
		if q == "" {
			break
		}
		view.PAA = append(view.PAA, qaView{Question: q, Answer: template.HTML(a)})
	}

	for i := 1; i <= models.MaxFAQItems; i++ {
		q := article.GetString(fmt.Sprintf("faq_%02d_question", i))
		a := article.GetString(fmt.Sprintf("faq_%02d_answer", i))
		if q == "" {
			break
		}
		view.FAQ = append(view.FAQ, qaView{Question: q, Answer: template.HTML(a)})
	}

	for i := 1; i <= models.MaxImages; i++ {
		url := article.GetString(fmt.Sprintf("image_%02d_url", i))
		if url == "" {
			break
		}
		view.Images = append(view.Images, imageView{
			URL: url,
			Alt: article.GetString(fmt.Sprintf("image_%02d_alt_text", i)),
		})
	}

	coerceSlice(article["sources"], &view.Sources)
	coerceSlice(article["toc"], &view.TOC)
	coerceSlice(article["internal_links"], &view.InternalLinks)

	return view
}

// coerceSlice converts an article array value into its typed form. Values
// arrive either as typed slices (same-process merge output) or as generic
// []interface{} after a JSON round trip through storage; a marshal/unmarshal
// hop handles both without per-type switches.
func coerceSlice(value any, out any) {
	if value == nil {
		return
	}

	switch v := value.(type) {
	case []models.Citation:
		if dst, ok := out.(*[]models.Citation); ok {
			*dst = v
			return
		}
	case []models.TocEntry:
		if dst, ok := out.(*[]models.TocEntry); ok {
			*dst = v
			return
		}
	case []models.InternalLink:
		if dst, ok := out.(*[]models.InternalLink); ok {
			*dst = v
			return
		}
	}

	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = json.Unmarshal(data, out)
}

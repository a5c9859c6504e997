// -----------------------------------------------------------------------
// Merge Stage - Overlay, citation linking, marker sweep, validation
// -----------------------------------------------------------------------

package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
	"github.com/ternarybob/scriptor/internal/pipeline"
)

// MergeStage assembles the final article: draft fields as the base, parallel
// outputs overlaid into disjoint flat keys, citation markers linked to
// anchors, unresolved markers swept, then the required-field validation.
// It is the only stage that builds the validated article, and it runs alone,
// so the whole merge is a deterministic function of its inputs (and the URL
// validator's answers).
type MergeStage struct {
	validator     interfaces.URLValidator
	imageRequired bool
	logger        arbor.ILogger
}

var _ pipeline.Stage = (*MergeStage)(nil)

// NewMergeStage creates the merge stage. A nil validator disables the
// citation liveness probe; imageRequired controls whether the hero image
// fields participate in required-field validation.
func NewMergeStage(validator interfaces.URLValidator, imageRequired bool, logger arbor.ILogger) *MergeStage {
	return &MergeStage{validator: validator, imageRequired: imageRequired, logger: logger}
}

func (s *MergeStage) ID() pipeline.StageID { return pipeline.StageMerge }
func (s *MergeStage) Name() string         { return pipeline.StageName(pipeline.StageMerge) }
func (s *MergeStage) Critical() bool       { return pipeline.IsCritical(pipeline.StageMerge) }

// Execute writes Validated onto the context and narrows Citations to the
// entries actually referenced by the article text.
func (s *MergeStage) Execute(ctx context.Context, ec *pipeline.Context) error {
	if ec.Draft == nil {
		return fmt.Errorf("no draft to merge: %w", models.ErrArticleValidation)
	}

	article := overlayArticle(ec)

	resolved := s.resolveCitations(ctx, ec)
	referenced := s.linkCitations(article, resolved)
	sweepMarkers(article)

	if len(resolved) > 0 {
		// The rendered sources section keeps every live citation, orphans
		// included; the exported citation list carries only referenced ones.
		article["sources"] = resolved
	}
	ec.Citations = referenced

	if err := s.validateArticle(article); err != nil {
		return err
	}

	ec.Validated = article
	s.logger.Info().
		Str("job_id", ec.Job.ID).
		Int("attempt", ec.Attempt).
		Int("fields", len(article)).
		Int("citations", len(referenced)).
		Msg("Article merged")
	return nil
}

// overlayArticle flattens the draft into the base article and overlays each
// populated parallel output. The flat keys are disjoint by construction;
// SetIfAbsent keeps the first write authoritative regardless.
func overlayArticle(ec *pipeline.Context) models.ValidatedArticle {
	draft := ec.Draft
	article := models.ValidatedArticle{
		"language":      ec.Language,
		"headline":      draft.Headline,
		"teaser":        draft.Teaser,
		"direct_answer": draft.DirectAnswer,
		"intro":         draft.Intro,
	}

	sections := draft.Sections
	if len(sections) > models.MaxSections {
		sections = sections[:models.MaxSections]
	}
	for i, section := range sections {
		article[fmt.Sprintf("section_%02d_title", i+1)] = section.Title
		article[fmt.Sprintf("section_%02d_content", i+1)] = section.Content
	}

	takeaways := draft.KeyTakeaways
	if len(takeaways) > models.MaxTakeaways {
		takeaways = takeaways[:models.MaxTakeaways]
	}
	for i, takeaway := range takeaways {
		article[fmt.Sprintf("key_takeaway_%02d", i+1)] = takeaway
	}

	if ec.Metadata != nil {
		article.SetIfAbsent("meta_title", truncateMeta(ec.Metadata.MetaTitle, models.MetaTitleMaxLen))
		article.SetIfAbsent("meta_description", truncateMeta(ec.Metadata.MetaDescription, models.MetaDescriptionMaxLen))
	}

	for i, qa := range capQAItems(ec.PAA, models.MaxPAAItems) {
		article.SetIfAbsent(fmt.Sprintf("paa_%02d_question", i+1), qa.Question)
		article.SetIfAbsent(fmt.Sprintf("paa_%02d_answer", i+1), qa.Answer)
	}
	for i, qa := range capQAItems(ec.FAQ, models.MaxFAQItems) {
		article.SetIfAbsent(fmt.Sprintf("faq_%02d_question", i+1), qa.Question)
		article.SetIfAbsent(fmt.Sprintf("faq_%02d_answer", i+1), qa.Answer)
	}

	images := ec.Images
	if len(images) > models.MaxImages {
		images = images[:models.MaxImages]
	}
	for i, image := range images {
		article.SetIfAbsent(fmt.Sprintf("image_%02d_url", i+1), image.URL)
		article.SetIfAbsent(fmt.Sprintf("image_%02d_alt_text", i+1), image.AltText)
	}

	if len(ec.TOC) > 0 {
		article.SetIfAbsent("toc", ec.TOC)
	}
	if len(ec.InternalLinks) > 0 {
		article.SetIfAbsent("internal_links", ec.InternalLinks)
	}
	return article
}

// resolveCitations filters the citation list down to usable entries:
// malformed URLs are dropped outright; when a validator is wired, dead links
// (4xx/5xx) are dropped and redirect targets are adopted. Probe transport
// errors keep the citation, fail-open.
func (s *MergeStage) resolveCitations(ctx context.Context, ec *pipeline.Context) []models.Citation {
	var resolved []models.Citation
	for _, citation := range ec.Citations {
		if !validCitationURL(citation.URL) {
			s.logger.Warn().
				Str("job_id", ec.Job.ID).
				Str("url", citation.URL).
				Int("n", citation.Number).
				Msg("Citation URL malformed, dropping")
			continue
		}

		if s.validator != nil {
			probe, err := s.validator.Head(ctx, citation.URL)
			switch {
			case err != nil:
				s.logger.Debug().
					Str("job_id", ec.Job.ID).
					Str("url", citation.URL).
					Err(err).
					Msg("Citation probe failed, keeping citation")
			case probe.StatusCode >= 200 && probe.StatusCode < 400:
				if probe.FinalURL != "" && probe.FinalURL != citation.URL && validCitationURL(probe.FinalURL) {
					citation.URL = probe.FinalURL
				}
			default:
				s.logger.Warn().
					Str("job_id", ec.Job.ID).
					Str("url", citation.URL).
					Int("status", probe.StatusCode).
					Msg("Citation URL dead, dropping")
				continue
			}
		}
		resolved = append(resolved, citation)
	}
	return resolved
}

// linkCitations replaces every [N] marker in the body fields with the anchor
// for citation N, returning the citations that were referenced at least once.
func (s *MergeStage) linkCitations(article models.ValidatedArticle, citations []models.Citation) []models.Citation {
	anchors := make(map[int]string, len(citations))
	for _, citation := range citations {
		anchors[citation.Number] = citationAnchor(citation.Number, citation.URL)
	}

	referenced := make(map[int]bool, len(anchors))
	for _, key := range article.BodyFieldKeys() {
		text := article.GetString(key)
		if text == "" {
			continue
		}
		article[key] = rewriteMarkers(text, func(num int) (string, bool) {
			anchor, ok := anchors[num]
			if !ok {
				return "", false
			}
			referenced[num] = true
			return anchor, true
		})
	}

	var kept []models.Citation
	for _, citation := range citations {
		if referenced[citation.Number] {
			kept = append(kept, citation)
		}
	}
	return kept
}

// sweepMarkers removes every marker still visible outside anchors: linked
// markers now live inside their anchor, so whatever the scanner sees is
// unresolved. Key takeaways render as plain text, so they are swept but
// never linked.
func sweepMarkers(article models.ValidatedArticle) {
	keys := article.BodyFieldKeys()
	for i := 1; i <= models.MaxTakeaways; i++ {
		key := fmt.Sprintf("key_takeaway_%02d", i)
		if _, ok := article[key]; ok {
			keys = append(keys, key)
		}
	}

	for _, key := range keys {
		text := article.GetString(key)
		if text == "" {
			continue
		}
		swept := rewriteMarkers(text, func(int) (string, bool) { return "", true })
		article[key] = strings.TrimSpace(swept)
	}
}

// validateArticle runs the required-field check. When the image backend is
// disabled the hero image fields are exempt; everything else is mandatory.
func (s *MergeStage) validateArticle(article models.ValidatedArticle) error {
	missing := article.MissingRequired()
	if !s.imageRequired {
		var rest []string
		for _, field := range missing {
			if !strings.HasPrefix(field, "image_") {
				rest = append(rest, field)
			}
		}
		missing = rest
	}
	if len(missing) > 0 {
		return fmt.Errorf("required fields missing [%s]: %w",
			strings.Join(missing, ", "), models.ErrArticleValidation)
	}
	return nil
}

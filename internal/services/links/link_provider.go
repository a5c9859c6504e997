// -----------------------------------------------------------------------
// Link Provider - sitemap.xml discovery and keyword-ranked candidates
// -----------------------------------------------------------------------

package links

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/httpclient"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
)

// maxSitemapBytes caps how much sitemap XML is read; anything larger is
// truncated rather than rejected.
const maxSitemapBytes = 4 << 20

// maxChildSitemaps bounds how many child sitemaps of a sitemap index are
// fetched.
const maxChildSitemaps = 3

// Service implements LinkProvider by fetching the site's sitemap.xml and
// ranking its URLs against the article keyword.
type Service struct {
	sitemapOverride string
	maxCandidates   int
	client          *http.Client
	logger          arbor.ILogger
}

// NewService creates a sitemap-backed link provider.
func NewService(cfg *common.Config, logger arbor.ILogger) interfaces.LinkProvider {
	timeout := 10 * time.Second
	if d, err := time.ParseDuration(cfg.Links.FetchTimeout); err == nil && d > 0 {
		timeout = d
	}

	maxCandidates := cfg.Links.MaxCandidates
	if maxCandidates <= 0 {
		maxCandidates = 5
	}

	return &Service{
		sitemapOverride: cfg.Links.SitemapURL,
		maxCandidates:   maxCandidates,
		client:          httpclient.NewDefaultHTTPClient(timeout),
		logger:          logger,
	}
}

// sitemapURLSet is the <urlset> document of a standard sitemap.
type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	URLs    []sitemapLoc `xml:"url"`
}

// sitemapIndex is the <sitemapindex> document pointing at child sitemaps.
type sitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Sitemaps []sitemapLoc `xml:"sitemap"`
}

type sitemapLoc struct {
	Loc string `xml:"loc"`
}

// scoredCandidate pairs a page URL with its keyword relevance score.
type scoredCandidate struct {
	pageURL string
	score   int
}

// Candidates returns up to limit internal-link candidates from the company's
// sitemap, ranked by keyword relevance. Page titles are resolved from the
// pages themselves, falling back to a slug-derived title when a page cannot
// be fetched.
func (s *Service) Candidates(ctx context.Context, companyURL, keyword string, limit int) ([]models.InternalLink, error) {
	if companyURL == "" {
		return nil, fmt.Errorf("company URL is required for link discovery")
	}
	if limit <= 0 || limit > s.maxCandidates {
		limit = s.maxCandidates
	}

	base, err := url.Parse(companyURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid company URL %q", companyURL)
	}

	sitemapURL := s.sitemapOverride
	if sitemapURL == "" {
		sitemapURL = strings.TrimRight(companyURL, "/") + "/sitemap.xml"
	}

	pageURLs, err := s.fetchSitemap(ctx, sitemapURL, 0)
	if err != nil {
		return nil, fmt.Errorf("sitemap fetch failed: %w", err)
	}

	scored := rankByKeyword(pageURLs, keyword, base)
	if len(scored) == 0 {
		s.logger.Debug().
			Str("sitemap_url", sitemapURL).
			Str("keyword", keyword).
			Msg("No relevant sitemap entries for keyword")
		return nil, nil
	}

	if len(scored) > limit {
		scored = scored[:limit]
	}

	links := make([]models.InternalLink, 0, len(scored))
	for _, candidate := range scored {
		links = append(links, models.InternalLink{
			URL:   candidate.pageURL,
			Title: s.resolveTitle(ctx, candidate.pageURL),
		})
	}

	s.logger.Info().
		Str("sitemap_url", sitemapURL).
		Int("sitemap_entries", len(pageURLs)).
		Int("candidates", len(links)).
		Msg("Resolved internal link candidates")

	return links, nil
}

// fetchSitemap downloads and parses a sitemap document. Sitemap index files
// recurse one level into the first few child sitemaps.
func (s *Service) fetchSitemap(ctx context.Context, sitemapURL string, depth int) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build sitemap request: %w", err)
	}
	req.Header.Set("User-Agent", httpclient.UserAgent)
	req.Header.Set("Accept", "application/xml, text/xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sitemap returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSitemapBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read sitemap body: %w", err)
	}

	var urlSet sitemapURLSet
	if err := xml.Unmarshal(data, &urlSet); err == nil && len(urlSet.URLs) > 0 {
		pageURLs := make([]string, 0, len(urlSet.URLs))
		for _, entry := range urlSet.URLs {
			if loc := strings.TrimSpace(entry.Loc); loc != "" {
				pageURLs = append(pageURLs, loc)
			}
		}
		return pageURLs, nil
	}

	// Not a urlset; try a sitemap index, one level deep.
	var index sitemapIndex
	if err := xml.Unmarshal(data, &index); err == nil && len(index.Sitemaps) > 0 && depth == 0 {
		var pageURLs []string
		for i, child := range index.Sitemaps {
			if i >= maxChildSitemaps {
				break
			}
			childURLs, childErr := s.fetchSitemap(ctx, strings.TrimSpace(child.Loc), depth+1)
			if childErr != nil {
				s.logger.Warn().Err(childErr).Str("sitemap_url", child.Loc).Msg("Failed to fetch child sitemap")
				continue
			}
			pageURLs = append(pageURLs, childURLs...)
		}
		return pageURLs, nil
	}

	return nil, fmt.Errorf("sitemap at %s is not a recognized urlset or index", sitemapURL)
}

// resolveTitle fetches a page and extracts its <title>. Falls back to a
// humanized slug when the page cannot be fetched or has no title.
func (s *Service) resolveTitle(ctx context.Context, pageURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err == nil {
		req.Header.Set("User-Agent", httpclient.UserAgent)
		if resp, doErr := s.client.Do(req); doErr == nil {
			defer resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				if doc, parseErr := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, 1<<20)); parseErr == nil {
					if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
						return title
					}
				}
			}
		}
	}

	return TitleFromSlug(pageURL)
}

// rankByKeyword scores sitemap URLs against the keyword and returns them
// sorted by descending relevance. URLs with no matching token, the site root,
// and URLs on other hosts are dropped. Ordering is deterministic: score,
// then path length, then lexicographic.
func rankByKeyword(pageURLs []string, keyword string, base *url.URL) []scoredCandidate {
	tokens := keywordTokens(keyword)
	if len(tokens) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(pageURLs))
	var scored []scoredCandidate
	for _, pageURL := range pageURLs {
		parsed, err := url.Parse(pageURL)
		if err != nil || parsed.Host == "" {
			continue
		}
		if !strings.EqualFold(parsed.Host, base.Host) {
			continue
		}

		path := strings.Trim(parsed.Path, "/")
		if path == "" {
			continue // site root is never an internal link target
		}
		if seen[pageURL] {
			continue
		}
		seen[pageURL] = true

		haystack := slugWords(path)
		score := 0
		for _, token := range tokens {
			if strings.Contains(haystack, token) {
				score++
			}
		}
		if score == 0 {
			continue
		}

		scored = append(scored, scoredCandidate{pageURL: pageURL, score: score})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		if len(scored[i].pageURL) != len(scored[j].pageURL) {
			return len(scored[i].pageURL) < len(scored[j].pageURL)
		}
		return scored[i].pageURL < scored[j].pageURL
	})

	return scored
}

// keywordTokens splits a keyword into lowercase match tokens, dropping stop
// words and very short fragments.
func keywordTokens(keyword string) []string {
	var tokens []string
	for _, token := range strings.Fields(strings.ToLower(keyword)) {
		token = strings.Trim(token, ".,!?\"'")
		if len(token) < 3 {
			continue
		}
		if stopWords[token] {
			continue
		}
		tokens = append(tokens, token)
	}
	return tokens
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"that": true, "this": true, "your": true, "how": true, "what": true,
	"are": true, "can": true,
}

// slugWords normalizes a URL path for substring matching: separators become
// spaces and everything is lowercased.
func slugWords(path string) string {
	replacer := strings.NewReplacer("-", " ", "_", " ", "/", " ", ".", " ")
	return replacer.Replace(strings.ToLower(path))
}

// TitleFromSlug derives a human-readable title from the last path segment of
// a URL ("/blog/cloud-security-guide" -> "Cloud Security Guide").
func TitleFromSlug(pageURL string) string {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}

	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	last := segments[len(segments)-1]
	if idx := strings.LastIndex(last, "."); idx > 0 {
		last = last[:idx]
	}
	if last == "" {
		return parsed.Host
	}

	words := strings.Fields(slugWords(last))
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}

// -----------------------------------------------------------------------
// DataFetch Stage - Job option normalization and company site scrape
// -----------------------------------------------------------------------

package stages

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/httpclient"
	"github.com/ternarybob/scriptor/internal/models"
	"github.com/ternarybob/scriptor/internal/pipeline"
)

const (
	companyFetchTimeout = 10 * time.Second

	defaultWordCount = 1500
	defaultTone      = "professional"
	maxHeadings      = 12
)

// DataFetchStage normalizes the job options into a generation config and
// scrapes the company site for article context. An unreachable company URL
// fails the job: without company context the article cannot be grounded.
type DataFetchStage struct {
	client *http.Client
	logger arbor.ILogger
}

var _ pipeline.Stage = (*DataFetchStage)(nil)

// NewDataFetchStage creates the data fetch stage with a bounded HTTP client.
func NewDataFetchStage(logger arbor.ILogger) *DataFetchStage {
	return &DataFetchStage{
		client: httpclient.NewDefaultHTTPClient(companyFetchTimeout),
		logger: logger,
	}
}

func (s *DataFetchStage) ID() pipeline.StageID { return pipeline.StageDataFetch }
func (s *DataFetchStage) Name() string         { return pipeline.StageName(pipeline.StageDataFetch) }
func (s *DataFetchStage) Critical() bool       { return pipeline.IsCritical(pipeline.StageDataFetch) }

// Execute writes Config, Language, and CompanyData onto the context.
func (s *DataFetchStage) Execute(ctx context.Context, ec *pipeline.Context) error {
	cfg := normalizeJobConfig(ec.Job)
	ec.Config = cfg
	ec.Language = cfg.Language

	company, err := s.fetchCompanyData(ctx, cfg)
	if err != nil {
		return fmt.Errorf("company data fetch failed: %w", err)
	}
	ec.CompanyData = company

	s.logger.Info().
		Str("job_id", ec.Job.ID).
		Str("company", company.Name).
		Str("url", company.URL).
		Int("headings", len(company.Headings)).
		Msg("Company data fetched")
	return nil
}

// normalizeJobConfig applies submission defaults: language "en", word count
// 1500, tone "professional".
func normalizeJobConfig(job *models.Job) *models.JobConfig {
	cfg := &models.JobConfig{
		Keyword:       strings.TrimSpace(job.Keyword),
		CompanyURL:    strings.TrimSpace(job.CompanyURL),
		CompanyName:   strings.TrimSpace(job.CompanyName),
		Language:      strings.ToLower(strings.TrimSpace(job.Language)),
		Country:       strings.ToUpper(strings.TrimSpace(job.Country)),
		WordCount:     job.WordCount,
		Tone:          strings.TrimSpace(job.Tone),
		SystemPrompts: job.SystemPrompts,
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.WordCount <= 0 {
		cfg.WordCount = defaultWordCount
	}
	if cfg.Tone == "" {
		cfg.Tone = defaultTone
	}
	return cfg
}

// fetchCompanyData loads the company page and extracts title, description,
// and headings through goquery.
func (s *DataFetchStage) fetchCompanyData(ctx context.Context, cfg *models.JobConfig) (*models.CompanyData, error) {
	parsed, err := url.Parse(cfg.CompanyURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("invalid company url %q", cfg.CompanyURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.CompanyURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", httpclient.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", cfg.CompanyURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("company url %s returned status %d", cfg.CompanyURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse company page: %w", err)
	}

	data := &models.CompanyData{
		URL:         cfg.CompanyURL,
		Title:       strings.TrimSpace(doc.Find("title").First().Text()),
		Description: pageDescription(doc),
	}

	doc.Find("h1, h2, h3").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.Join(strings.Fields(sel.Text()), " ")
		if text != "" {
			data.Headings = append(data.Headings, text)
		}
		return len(data.Headings) < maxHeadings
	})

	data.Name = companyName(cfg, doc, data.Title, parsed.Host)
	return data, nil
}

func pageDescription(doc *goquery.Document) string {
	if desc, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok && strings.TrimSpace(desc) != "" {
		return strings.TrimSpace(desc)
	}
	if desc, ok := doc.Find(`meta[property="og:description"]`).First().Attr("content"); ok {
		return strings.TrimSpace(desc)
	}
	return ""
}

// companyName resolves the display name: explicit submission value, og:site_name,
// page title, then the bare host.
func companyName(cfg *models.JobConfig, doc *goquery.Document, title, host string) string {
	if cfg.CompanyName != "" {
		return cfg.CompanyName
	}
	if name, ok := doc.Find(`meta[property="og:site_name"]`).First().Attr("content"); ok && strings.TrimSpace(name) != "" {
		return strings.TrimSpace(name)
	}
	if title != "" {
		return title
	}
	return host
}

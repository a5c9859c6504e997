package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/scriptor/internal/models"
)

// Score floors mirrored from the service quality monitor so both surfaces
// report the same bands.
const (
	criticalScoreFloor = 50
	lowScoreFloor      = 70
)

// formatJobQueued formats the generate_article receipt as markdown
func formatJobQueued(job *models.Job) string {
	var sb strings.Builder
	sb.WriteString("## Article Job Queued\n\n")
	sb.WriteString(fmt.Sprintf("**Job ID:** %s\n", job.ID))
	sb.WriteString(fmt.Sprintf("**Keyword:** %s\n", job.Keyword))
	sb.WriteString(fmt.Sprintf("**Company URL:** %s\n", job.CompanyURL))
	if job.WordCount > 0 {
		sb.WriteString(fmt.Sprintf("**Target words:** %d\n", job.WordCount))
	}
	if job.BatchID != "" {
		sb.WriteString(fmt.Sprintf("**Batch:** %s\n", job.BatchID))
	}
	sb.WriteString(fmt.Sprintf("**Status:** %s\n", job.Status))
	sb.WriteString(fmt.Sprintf("**Created:** %s\n\n", job.CreatedAt.Format(time.RFC3339)))
	sb.WriteString("The job runs when the Scriptor service next claims pending work. ")
	sb.WriteString("Use get_job_status to follow progress and get_article to fetch the result.\n")
	return sb.String()
}

// formatJobStatus formats one job's lifecycle state as markdown
func formatJobStatus(job *models.Job) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Job %s\n\n", job.ID))
	sb.WriteString(fmt.Sprintf("**Keyword:** %s\n", job.Keyword))
	sb.WriteString(fmt.Sprintf("**Status:** %s\n", job.Status))
	sb.WriteString(fmt.Sprintf("**Progress:** %d%%\n", job.Progress))
	if job.CurrentStage != "" {
		sb.WriteString(fmt.Sprintf("**Current stage:** %s\n", job.CurrentStage))
	}
	if job.Attempt > 1 {
		sb.WriteString(fmt.Sprintf("**Attempt:** %d\n", job.Attempt))
	}
	if job.AEOScore != nil {
		sb.WriteString(fmt.Sprintf("**AEO score:** %d\n", *job.AEOScore))
	}
	sb.WriteString(fmt.Sprintf("**Created:** %s\n", job.CreatedAt.Format(time.RFC3339)))
	if job.StartedAt != nil {
		sb.WriteString(fmt.Sprintf("**Started:** %s\n", job.StartedAt.Format(time.RFC3339)))
	}
	if job.CompletedAt != nil {
		sb.WriteString(fmt.Sprintf("**Completed:** %s\n", job.CompletedAt.Format(time.RFC3339)))
	}
	if job.Error != "" {
		sb.WriteString(fmt.Sprintf("\n**Error:** %s\n", job.Error))
		if job.ErrorDetails != "" {
			sb.WriteString(fmt.Sprintf("**Details:** %s\n", job.ErrorDetails))
		}
	}
	if len(job.Errors) > 0 {
		sb.WriteString("\n### Stage errors\n")
		for _, se := range job.Errors {
			sb.WriteString(fmt.Sprintf("- `%s` (attempt %d): %s\n", se.Module, se.Attempt, se.Message))
		}
	}
	return sb.String()
}

// formatArticle renders a completed job's article as markdown
func formatArticle(job *models.Job, refs []*models.ArtifactRef) string {
	article := job.Result
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# %s\n\n", article.GetString("headline")))
	sb.WriteString(fmt.Sprintf("**Job:** %s | **Keyword:** %s", job.ID, job.Keyword))
	if job.AEOScore != nil {
		sb.WriteString(fmt.Sprintf(" | **AEO score:** %d", *job.AEOScore))
	}
	sb.WriteString("\n\n")

	if teaser := article.GetString("teaser"); teaser != "" {
		sb.WriteString(fmt.Sprintf("*%s*\n\n", teaser))
	}
	if answer := article.GetString("direct_answer"); answer != "" {
		sb.WriteString(fmt.Sprintf("> %s\n\n", answer))
	}

	if entries, ok := article["toc"].([]models.TocEntry); ok && len(entries) > 0 {
		sb.WriteString("## Contents\n\n")
		for _, entry := range entries {
			sb.WriteString(fmt.Sprintf("- [%s](#%s)\n", entry.Label, entry.Anchor))
		}
		sb.WriteString("\n")
	}

	if intro := article.GetString("intro"); intro != "" {
		sb.WriteString(intro)
		sb.WriteString("\n\n")
	}

	for i := 1; i <= models.MaxSections; i++ {
		title := article.GetString(fmt.Sprintf("section_%02d_title", i))
		content := article.GetString(fmt.Sprintf("section_%02d_content", i))
		if title == "" && content == "" {
			continue
		}
		if title != "" {
			sb.WriteString(fmt.Sprintf("## %s\n\n", title))
		}
		if content != "" {
			sb.WriteString(content)
			sb.WriteString("\n\n")
		}
	}

	writeTakeaways(&sb, article)
	writeImages(&sb, article)
	writeQASection(&sb, article, "People Also Ask", "paa", models.MaxPAAItems)
	writeQASection(&sb, article, "FAQ", "faq", models.MaxFAQItems)
	writeSources(&sb, article)

	if len(refs) > 0 {
		sb.WriteString("## Artifacts\n\n")
		for _, ref := range refs {
			sb.WriteString(fmt.Sprintf("- `%s` (%s, %d bytes)\n", ref.Key, ref.ContentType, ref.Size))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func writeTakeaways(sb *strings.Builder, article models.ValidatedArticle) {
	var takeaways []string
	for i := 1; i <= models.MaxTakeaways; i++ {
		if t := article.GetString(fmt.Sprintf("key_takeaway_%02d", i)); t != "" {
			takeaways = append(takeaways, t)
		}
	}
	if len(takeaways) == 0 {
		return
	}
	sb.WriteString("## Key Takeaways\n\n")
	for _, t := range takeaways {
		sb.WriteString(fmt.Sprintf("- %s\n", t))
	}
	sb.WriteString("\n")
}

func writeImages(sb *strings.Builder, article models.ValidatedArticle) {
	for i := 1; i <= models.MaxImages; i++ {
		url := article.GetString(fmt.Sprintf("image_%02d_url", i))
		if url == "" {
			continue
		}
		alt := article.GetString(fmt.Sprintf("image_%02d_alt_text", i))
		sb.WriteString(fmt.Sprintf("![%s](%s)\n\n", alt, url))
	}
}

func writeQASection(sb *strings.Builder, article models.ValidatedArticle, heading, prefix string, max int) {
	var items []models.QAItem
	for i := 1; i <= max; i++ {
		question := article.GetString(fmt.Sprintf("%s_%02d_question", prefix, i))
		answer := article.GetString(fmt.Sprintf("%s_%02d_answer", prefix, i))
		if question == "" || answer == "" {
			continue
		}
		items = append(items, models.QAItem{Question: question, Answer: answer})
	}
	if len(items) == 0 {
		return
	}
	sb.WriteString(fmt.Sprintf("## %s\n\n", heading))
	for _, item := range items {
		sb.WriteString(fmt.Sprintf("**%s**\n\n%s\n\n", item.Question, item.Answer))
	}
}

func writeSources(sb *strings.Builder, article models.ValidatedArticle) {
	sources, ok := article["sources"].([]models.Citation)
	if !ok || len(sources) == 0 {
		return
	}
	sb.WriteString("## Sources\n\n")
	for _, citation := range sources {
		sb.WriteString(fmt.Sprintf("%d. [%s](%s)\n", citation.Number, citation.Title, citation.URL))
	}
	sb.WriteString("\n")
}

// formatJobList formats a job listing as markdown
func formatJobList(jobs []*models.Job, status string) string {
	var sb strings.Builder
	if status != "" {
		sb.WriteString(fmt.Sprintf("## Jobs (%s, %d)\n\n", status, len(jobs)))
	} else {
		sb.WriteString(fmt.Sprintf("## Jobs (%d)\n\n", len(jobs)))
	}

	if len(jobs) == 0 {
		sb.WriteString("No jobs found.\n")
		return sb.String()
	}

	for i, job := range jobs {
		sb.WriteString(fmt.Sprintf("### %d. %s\n", i+1, job.Keyword))
		sb.WriteString(fmt.Sprintf("**ID:** %s\n", job.ID))
		sb.WriteString(fmt.Sprintf("**Status:** %s (%d%%)\n", job.Status, job.Progress))
		if job.AEOScore != nil {
			sb.WriteString(fmt.Sprintf("**AEO score:** %d\n", *job.AEOScore))
		}
		if job.Error != "" {
			sb.WriteString(fmt.Sprintf("**Error:** %s\n", job.Error))
		}
		sb.WriteString(fmt.Sprintf("**Created:** %s\n\n", job.CreatedAt.Format(time.RFC3339)))
	}

	return sb.String()
}

// formatQualityStatistics aggregates AEO scores across scored jobs
func formatQualityStatistics(jobs []*models.Job) string {
	var (
		scored   int
		sum      int
		min, max int
		low      int
		critical int
		byStatus = make(map[models.JobStatus]int)
	)

	for _, job := range jobs {
		byStatus[job.Status]++
		if job.AEOScore == nil {
			continue
		}
		score := *job.AEOScore
		if scored == 0 || score < min {
			min = score
		}
		if scored == 0 || score > max {
			max = score
		}
		scored++
		sum += score
		if score < lowScoreFloor {
			low++
		}
		if score < criticalScoreFloor {
			critical++
		}
	}

	var sb strings.Builder
	sb.WriteString("## Quality Statistics\n\n")
	sb.WriteString(fmt.Sprintf("**Jobs inspected:** %d\n", len(jobs)))
	sb.WriteString(fmt.Sprintf("**Pending:** %d | **Running:** %d | **Completed:** %d | **Failed:** %d\n\n",
		byStatus[models.JobStatusPending], byStatus[models.JobStatusRunning],
		byStatus[models.JobStatusCompleted], byStatus[models.JobStatusFailed]))

	if scored == 0 {
		sb.WriteString("No scored jobs yet.\n")
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("**Scored jobs:** %d\n", scored))
	sb.WriteString(fmt.Sprintf("**Mean AEO:** %.1f\n", float64(sum)/float64(scored)))
	sb.WriteString(fmt.Sprintf("**Range:** %d - %d\n", min, max))
	sb.WriteString(fmt.Sprintf("**Below quality floor (%d):** %d (%.0f%%)\n",
		lowScoreFloor, low, 100*float64(low)/float64(scored)))
	sb.WriteString(fmt.Sprintf("**Below critical floor (%d):** %d\n", criticalScoreFloor, critical))
	return sb.String()
}

package main

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
)

// handleGenerateArticle implements the generate_article tool
func handleGenerateArticle(jobs interfaces.JobStorage, logger arbor.ILogger) server.ToolHandlerFunc {
	validate := validator.New()
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		keyword, err := request.RequireString("keyword")
		if err != nil || keyword == "" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent("Error: keyword parameter is required"),
				},
			}, nil
		}

		companyURL, err := request.RequireString("company_url")
		if err != nil || companyURL == "" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent("Error: company_url parameter is required"),
				},
			}, nil
		}

		req := &models.JobRequest{
			Keyword:     keyword,
			CompanyURL:  companyURL,
			CompanyName: request.GetString("company_name", ""),
			Language:    request.GetString("language", ""),
			Country:     request.GetString("country", ""),
			WordCount:   request.GetInt("word_count", 0),
			Tone:        request.GetString("tone", ""),
			BatchID:     request.GetString("batch_id", ""),
		}
		if err := validate.Struct(req); err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("Validation error: %v", err)),
				},
			}, nil
		}

		job := models.NewJob(req)
		if err := jobs.SaveJob(ctx, job); err != nil {
			logger.Error().Err(err).Msg("Failed to save job")
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("Failed to queue job: %v", err)),
				},
			}, nil
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(formatJobQueued(job)),
			},
		}, nil
	}
}

// handleGetJobStatus implements the get_job_status tool
func handleGetJobStatus(jobs interfaces.JobStorage, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jobID, err := request.RequireString("job_id")
		if err != nil || jobID == "" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent("Error: job_id parameter is required"),
				},
			}, nil
		}

		job, err := jobs.GetJob(ctx, jobID)
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("Job not found: %s", jobID)),
				},
			}, nil
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(formatJobStatus(job)),
			},
		}, nil
	}
}

// handleGetArticle implements the get_article tool
func handleGetArticle(jobs interfaces.JobStorage, artifacts interfaces.ArtifactStorage, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jobID, err := request.RequireString("job_id")
		if err != nil || jobID == "" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent("Error: job_id parameter is required"),
				},
			}, nil
		}

		job, err := jobs.GetJob(ctx, jobID)
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("Job not found: %s", jobID)),
				},
			}, nil
		}

		if job.Status != models.JobStatusCompleted || job.Result == nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("Job %s is %s; the article is only available once the job completes", job.ID, job.Status)),
				},
			}, nil
		}

		refs, err := artifacts.List(ctx, job.ID)
		if err != nil {
			logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to list artifacts")
			refs = nil
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(formatArticle(job, refs)),
			},
		}, nil
	}
}

// handleListJobs implements the list_jobs tool
func handleListJobs(jobs interfaces.JobStorage, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := request.GetInt("limit", 20)
		if limit > 100 {
			limit = 100
		}
		status := request.GetString("status", "")

		list, err := jobs.ListJobs(ctx, &interfaces.ListOptions{
			Status: status,
			Limit:  limit,
		})
		if err != nil {
			logger.Error().Err(err).Msg("Failed to list jobs")
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("Failed to list jobs: %v", err)),
				},
			}, nil
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(formatJobList(list, status)),
			},
		}, nil
	}
}

// handleQualityStatistics implements the quality_statistics tool.
// The in-process quality monitor belongs to the running service, so the
// statistics are recomputed here from the scored jobs on disk.
func handleQualityStatistics(jobs interfaces.JobStorage, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		list, err := jobs.ListJobs(ctx, &interfaces.ListOptions{Limit: 500})
		if err != nil {
			logger.Error().Err(err).Msg("Failed to list jobs")
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("Failed to list jobs: %v", err)),
				},
			}, nil
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(formatQualityStatistics(list)),
			},
		}, nil
	}
}

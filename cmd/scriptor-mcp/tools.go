package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createGenerateArticleTool returns the generate_article tool definition
func createGenerateArticleTool() mcp.Tool {
	return mcp.NewTool("generate_article",
		mcp.WithDescription("Queue a long-form article generation job. The job is picked up when the Scriptor service next runs."),
		mcp.WithString("keyword",
			mcp.Required(),
			mcp.Description("Primary keyword the article targets"),
		),
		mcp.WithString("company_url",
			mcp.Required(),
			mcp.Description("Company website URL used for internal linking and brand context"),
		),
		mcp.WithString("company_name",
			mcp.Description("Company display name (derived from the URL when omitted)"),
		),
		mcp.WithNumber("word_count",
			mcp.Description("Target word count (300-6000, default per service config)"),
		),
		mcp.WithString("language",
			mcp.Description("ISO 639-1 language code, e.g. en, de (default: en)"),
		),
		mcp.WithString("country",
			mcp.Description("ISO 3166-1 country code, e.g. us, gb"),
		),
		mcp.WithString("tone",
			mcp.Description("Writing tone, e.g. professional, conversational"),
		),
		mcp.WithString("batch_id",
			mcp.Description("Batch identifier grouping related jobs for similarity checks"),
		),
	)
}

// createGetJobStatusTool returns the get_job_status tool definition
func createGetJobStatusTool() mcp.Tool {
	return mcp.NewTool("get_job_status",
		mcp.WithDescription("Get the lifecycle status and progress of an article job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("Job ID returned by generate_article"),
		),
	)
}

// createGetArticleTool returns the get_article tool definition
func createGetArticleTool() mcp.Tool {
	return mcp.NewTool("get_article",
		mcp.WithDescription("Retrieve the generated article of a completed job as markdown"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("Job ID of a completed job"),
		),
	)
}

// createListJobsTool returns the list_jobs tool definition
func createListJobsTool() mcp.Tool {
	return mcp.NewTool("list_jobs",
		mcp.WithDescription("List article jobs, newest first, optionally filtered by status"),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 20, max: 100)"),
		),
		mcp.WithString("status",
			mcp.Description("Filter: pending, running, completed, failed"),
		),
	)
}

// createQualityStatisticsTool returns the quality_statistics tool definition
func createQualityStatisticsTool() mcp.Tool {
	return mcp.NewTool("quality_statistics",
		mcp.WithDescription("Aggregate AEO quality statistics across scored jobs"),
	)
}

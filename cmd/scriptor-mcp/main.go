package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"
	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/storage"
)

func main() {
	// Load configuration
	configPath := os.Getenv("SCRIPTOR_CONFIG")
	if configPath == "" {
		configPath = "scriptor.toml"
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			// No config file in the working directory; built-in defaults apply
			configPath = ""
		}
	}

	var config *common.Config
	var err error
	if configPath != "" {
		config, err = common.LoadFromFile(configPath)
	} else {
		config, err = common.LoadFromFiles()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize minimal logger for MCP server (console only, no file output)
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:             arbor_models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString("warn") // Minimal logging to avoid cluttering MCP stdio

	// Initialize storage. Badger holds an exclusive lock, so the MCP server
	// runs against the job store only while the main service is stopped.
	storageManager, err := storage.NewStorageManager(logger, config)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer storageManager.Close()

	jobStorage := storageManager.JobStorage()
	artifactStorage := storageManager.ArtifactStorage()

	// Create MCP server
	mcpServer := server.NewMCPServer(
		"scriptor",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	// Register tools
	mcpServer.AddTool(createGenerateArticleTool(), handleGenerateArticle(jobStorage, logger))
	mcpServer.AddTool(createGetJobStatusTool(), handleGetJobStatus(jobStorage, logger))
	mcpServer.AddTool(createGetArticleTool(), handleGetArticle(jobStorage, artifactStorage, logger))
	mcpServer.AddTool(createListJobsTool(), handleListJobs(jobStorage, logger))
	mcpServer.AddTool(createQualityStatisticsTool(), handleQualityStatistics(jobStorage, logger))

	// Serve over stdio
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server error")
	}
}

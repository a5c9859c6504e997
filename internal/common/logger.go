package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
)

const logTimeFormat = "15:04:05"

var (
	globalLogger arbor.ILogger
	loggerMutex  sync.RWMutex
)

// InitLogger builds the process logger from the logging config and stores it
// as the global instance. Outputs are additive: "stdout" (or "console") and
// "file" may both be active.
func InitLogger(config *Config) arbor.ILogger {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	logger := arbor.NewLogger()

	if wantsOutput(config.Logging.Output, "file") {
		if path, err := defaultLogFile(); err != nil {
			fmt.Printf("Warning: file logging disabled: %v\n", err)
		} else {
			logger = logger.WithFileWriter(fileWriterConfig(path))
		}
	}
	if wantsOutput(config.Logging.Output, "stdout", "console") {
		logger = logger.WithConsoleWriter(consoleWriterConfig())
	}
	logger = logger.WithLevelFromString(config.Logging.Level)

	globalLogger = logger
	return logger
}

// GetLogger returns the process-wide logger, creating a console-only one if
// InitLogger has not run yet.
func GetLogger() arbor.ILogger {
	loggerMutex.RLock()
	logger := globalLogger
	loggerMutex.RUnlock()
	if logger != nil {
		return logger
	}

	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	if globalLogger == nil {
		globalLogger = arbor.NewLogger().WithConsoleWriter(consoleWriterConfig())
	}
	return globalLogger
}

// wantsOutput reports whether the configured output list names any of the
// given targets.
func wantsOutput(outputs []string, names ...string) bool {
	for _, output := range outputs {
		for _, name := range names {
			if output == name {
				return true
			}
		}
	}
	return false
}

// defaultLogFile resolves logs/<binary>.log beside the executable, creating
// the directory on first use. Naming the file after the binary keeps the
// service and the MCP server out of each other's logs.
func defaultLogFile() (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable path: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(execPath), ".exe")
	dir := filepath.Join(filepath.Dir(execPath), "logs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create logs directory: %w", err)
	}
	return filepath.Join(dir, name+".log"), nil
}

func consoleWriterConfig() models.WriterConfiguration {
	return models.WriterConfiguration{
		Type:       models.LogWriterTypeConsole,
		TimeFormat: logTimeFormat,
		TextOutput: true,
	}
}

func fileWriterConfig(path string) models.WriterConfiguration {
	return models.WriterConfiguration{
		Type:       models.LogWriterTypeFile,
		FileName:   path,
		TimeFormat: logTimeFormat,
		MaxSize:    100 * 1024 * 1024, // 100 MB
		MaxBackups: 3,
		TextOutput: true,
	}
}

// -----------------------------------------------------------------------
// Configuration - TOML files, environment overrides, CLI flag overrides
// -----------------------------------------------------------------------

package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the root configuration for the scriptor service.
// Priority: CLI flags > environment variables > last config file > ... > defaults.
type Config struct {
	Environment string           `toml:"environment"`
	Server      ServerConfig     `toml:"server"`
	Storage     StorageConfig    `toml:"storage"`
	Logging     LoggingConfig    `toml:"logging"`
	Engine      EngineConfig     `toml:"engine"`
	LLM         LLMConfig        `toml:"llm"`
	Gemini      GeminiConfig     `toml:"gemini"`
	Claude      ClaudeConfig     `toml:"claude"`
	Embeddings  EmbeddingsConfig `toml:"embeddings"`
	Images      ImagesConfig     `toml:"images"`
	Links       LinksConfig      `toml:"links"`
	Scorer      ScorerConfig     `toml:"scorer"`
	Similarity  SimilarityConfig `toml:"similarity"`
	Dispatch    DispatchConfig   `toml:"dispatch"`
	Scheduler   SchedulerConfig  `toml:"scheduler"`
	WebSocket   WebSocketConfig  `toml:"websocket"`
	Prompts     PromptsConfig    `toml:"prompts"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// StorageConfig contains storage backend settings
type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig contains Badger database settings
type BadgerConfig struct {
	Path           string `toml:"path"`
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string   `toml:"level"`  // debug|info|warn|error
	Output []string `toml:"output"` // stdout, file
}

// EngineConfig contains workflow engine settings. The five fields map to the
// engine environment variables of the same (upper snake) names.
type EngineConfig struct {
	MaxRegenerationAttempts int     `toml:"max_regeneration_attempts"` // MAX_REGENERATION_ATTEMPTS
	AEOGateThreshold        int     `toml:"aeo_gate_threshold"`        // AEO_GATE_THRESHOLD
	BatchMemoryCapacity     int     `toml:"batch_memory_capacity"`     // BATCH_MEMORY_CAPACITY
	ParallelStageLimit      int     `toml:"parallel_stage_limit"`      // PARALLEL_STAGE_LIMIT (0 = unbounded)
	StageTimeoutDefault     string  `toml:"stage_timeout_default"`     // STAGE_TIMEOUT_DEFAULT
	SimilarityThreshold     float64 `toml:"similarity_threshold"`
}

// StageTimeout parses the default stage timeout, falling back to 120s.
func (e *EngineConfig) StageTimeout() time.Duration {
	if d, err := time.ParseDuration(e.StageTimeoutDefault); err == nil && d > 0 {
		return d
	}
	return 120 * time.Second
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig selects the text-generation provider
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"` // "gemini" or "claude"
}

// GeminiConfig contains Google Gemini settings
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	EmbedModel  string  `toml:"embed_model"`
	Timeout     string  `toml:"timeout"`    // generation timeout, duration string
	RateLimit   string  `toml:"rate_limit"` // min interval between calls
	Temperature float32 `toml:"temperature"`
}

// ClaudeConfig contains Anthropic Claude settings
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Timeout     string  `toml:"timeout"`
	RateLimit   string  `toml:"rate_limit"`
	Temperature float32 `toml:"temperature"`
}

// EmbeddingsConfig contains embedding client settings
type EmbeddingsConfig struct {
	Dimension int    `toml:"dimension"`
	Timeout   string `toml:"timeout"`
}

// ImagesConfig contains image generation settings
type ImagesConfig struct {
	Enabled bool   `toml:"enabled"`
	Model   string `toml:"model"`
	Timeout string `toml:"timeout"`
}

// LinksConfig contains internal-link provider settings
type LinksConfig struct {
	SitemapURL    string `toml:"sitemap_url"` // optional override; default <company_url>/sitemap.xml
	MaxCandidates int    `toml:"max_candidates"`
	FetchTimeout  string `toml:"fetch_timeout"`
}

// ScorerConfig contains quality scorer settings
type ScorerConfig struct {
	Enabled bool   `toml:"enabled"`
	Model   string `toml:"model"`
}

// SimilarityConfig contains batch similarity settings
type SimilarityConfig struct {
	BatchTTL string `toml:"batch_ttl"`
}

// DispatchConfig contains job dispatcher settings
type DispatchConfig struct {
	Concurrency  int    `toml:"concurrency"`
	PollInterval string `toml:"poll_interval"`
}

// SchedulerConfig contains maintenance scheduler settings
type SchedulerConfig struct {
	Schedule     string `toml:"schedule"`      // cron expression
	JobRetention string `toml:"job_retention"` // duration string
}

// WebSocketConfig contains WebSocket event stream settings
type WebSocketConfig struct {
	MinLevel          string            `toml:"min_level"`
	ExcludePatterns   []string          `toml:"exclude_patterns"`
	AllowedEvents     []string          `toml:"allowed_events"`
	ThrottleIntervals map[string]string `toml:"throttle_intervals"`
}

// PromptsConfig locates the prompt template file
type PromptsConfig struct {
	Path string `toml:"path"`
}

// NewDefaultConfig creates a configuration with default values.
// Only user-facing settings are exposed in scriptor.toml; technical parameters
// are hardcoded here for production stability.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Engine: EngineConfig{
			MaxRegenerationAttempts: 3,
			AEOGateThreshold:        80,
			BatchMemoryCapacity:     100,
			ParallelStageLimit:      0, // unbounded fan-out
			StageTimeoutDefault:     "120s",
			SimilarityThreshold:     0.70,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
		},
		Gemini: GeminiConfig{
			APIKey:      "", // user must provide (GEMINI_API_KEY or config)
			Model:       "gemini-2.0-flash",
			EmbedModel:  "gemini-embedding-001",
			Timeout:     "120s",
			RateLimit:   "4s", // 15 RPM free tier
			Temperature: 0.7,
		},
		Claude: ClaudeConfig{
			APIKey:      "", // user must provide (ANTHROPIC_API_KEY or config)
			Model:       "claude-haiku-3-5-20241022",
			MaxTokens:   8192,
			Timeout:     "120s",
			RateLimit:   "1s",
			Temperature: 0.7,
		},
		Embeddings: EmbeddingsConfig{
			Dimension: 768,
			Timeout:   "30s",
		},
		Images: ImagesConfig{
			Enabled: true,
			Model:   "imagen-3.0-generate-002",
			Timeout: "180s",
		},
		Links: LinksConfig{
			MaxCandidates: 5,
			FetchTimeout:  "10s",
		},
		Scorer: ScorerConfig{
			Enabled: true,
		},
		Similarity: SimilarityConfig{
			BatchTTL: "24h",
		},
		Dispatch: DispatchConfig{
			Concurrency:  2,
			PollInterval: "1s",
		},
		Scheduler: SchedulerConfig{
			Schedule:     "*/5 * * * *",
			JobRetention: "168h", // 7 days
		},
		WebSocket: WebSocketConfig{
			MinLevel:      "info",
			AllowedEvents: []string{},
			ThrottleIntervals: map[string]string{
				"job_progress": "500ms",
			},
		},
		Prompts: PromptsConfig{
			Path: "prompts.yaml",
		},
	}
}

// LoadFromFile loads configuration from a single file plus env overrides.
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env. Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("SCRIPTOR_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("SCRIPTOR_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("SCRIPTOR_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if badgerPath := os.Getenv("SCRIPTOR_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	if level := os.Getenv("SCRIPTOR_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("SCRIPTOR_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Engine variables use their canonical (unprefixed) names.
	if v := os.Getenv("MAX_REGENERATION_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			config.Engine.MaxRegenerationAttempts = n
		}
	}
	if v := os.Getenv("AEO_GATE_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 100 {
			config.Engine.AEOGateThreshold = n
		}
	}
	if v := os.Getenv("BATCH_MEMORY_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Engine.BatchMemoryCapacity = n
		}
	}
	if v := os.Getenv("PARALLEL_STAGE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			config.Engine.ParallelStageLimit = n
		}
	}
	if v := os.Getenv("STAGE_TIMEOUT_DEFAULT"); v != "" {
		if _, err := time.ParseDuration(v); err == nil {
			config.Engine.StageTimeoutDefault = v
		}
	}

	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		config.Gemini.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		config.Claude.APIKey = key
	}

	if concurrency := os.Getenv("SCRIPTOR_DISPATCH_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil && c > 0 {
			config.Dispatch.Concurrency = c
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// IsDevelopment returns true when running in a development environment
func (c *Config) IsDevelopment() bool {
	return strings.ToLower(c.Environment) == "development"
}

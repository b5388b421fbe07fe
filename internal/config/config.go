package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	SonarCloud SonarCloudConfig
	OpenAI     OpenAIConfig
	Logging    LoggingConfig
	Run        RunConfig
}

// SonarCloudConfig holds SonarCloud API configuration
type SonarCloudConfig struct {
	Organization string        // Organization key
	Token        string        // API token, sent as the Basic auth username
	BaseURL      string        // SonarCloud base URL
	Timeout      time.Duration // Request timeout
	PageSize     int           // Issues requested per page (max 500)
	MaxRetries   int           // Extra attempts per request; 0 means a single attempt
}

// OpenAIConfig holds completion service configuration
type OpenAIConfig struct {
	APIKey      string        // OpenAI API key
	BaseURL     string        // API base URL, including the /v1 suffix
	Model       string        // Chat model used for fixes
	Temperature float64       // Sampling temperature
	Timeout     time.Duration // Request timeout
	MaxRetries  int           // Extra attempts per request; 0 means a single attempt
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string // debug, info, warn, error, none
	Format     string // text or json
	Output     string // stdout, stderr, or file path
	AddSource  bool   // Include source code position in logs
	TimeFormat string // Time format for logs (empty uses RFC3339)
}

// RunConfig controls a single fix run
type RunConfig struct {
	RepoPath       string // Path inside the git repository to fix
	Branch         string // Branch override; empty uses the checked-out branch
	DryRun         bool   // Report planned fixes without calling the model or writing files
	SkipVendored   bool   // Skip vendored, generated and binary files
	StripCodeFence bool   // Unwrap model answers that are a single fenced code block
	ShowSummary    bool   // Print the summary table after the run
}

// New returns a Config populated with defaults
func New() *Config {
	return &Config{
		SonarCloud: SonarCloudConfig{
			BaseURL:  "https://sonarcloud.io",
			Timeout:  30 * time.Second,
			PageSize: 100,
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4",
			Timeout: 300 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			TimeFormat: time.RFC3339,
		},
		Run: RunConfig{
			RepoPath:    ".",
			ShowSummary: true,
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.validateSonarCloud(); err != nil {
		return fmt.Errorf("SonarCloud config: %w", err)
	}

	if err := c.validateOpenAI(); err != nil {
		return fmt.Errorf("OpenAI config: %w", err)
	}

	if err := c.validateLogging(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if c.Run.RepoPath == "" {
		return fmt.Errorf("run config: repository path cannot be empty")
	}

	return nil
}

// ParseLogLevel parses a log level string to a slog.Level
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "none":
		// Set to a very high level that won't be triggered
		return slog.Level(9999)
	default:
		return slog.LevelInfo
	}
}

func (c *Config) validateSonarCloud() error {
	if c.SonarCloud.Organization == "" {
		return fmt.Errorf("organization cannot be empty (set --sonarcloud-org or SONARCLOUD_ORG)")
	}

	if c.SonarCloud.Token == "" {
		return fmt.Errorf("token cannot be empty (set --sonarcloud-token or SONARCLOUD_TOKEN)")
	}

	if err := validateURL(c.SonarCloud.BaseURL); err != nil {
		return fmt.Errorf("base URL: %w", err)
	}

	if c.SonarCloud.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	if c.SonarCloud.PageSize <= 0 || c.SonarCloud.PageSize > 500 {
		return fmt.Errorf("page size must be between 1 and 500")
	}

	if c.SonarCloud.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative")
	}

	return nil
}

func (c *Config) validateOpenAI() error {
	// The key is only needed when a completion request can happen
	if c.OpenAI.APIKey == "" && !c.Run.DryRun {
		return fmt.Errorf("API key cannot be empty (set --openai-api-key or OPENAI_API_KEY)")
	}

	if err := validateURL(c.OpenAI.BaseURL); err != nil {
		return fmt.Errorf("base URL: %w", err)
	}

	if c.OpenAI.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}

	if c.OpenAI.Temperature < 0 || c.OpenAI.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}

	if c.OpenAI.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	if c.OpenAI.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative")
	}

	return nil
}

func (c *Config) validateLogging() error {
	level := strings.ToLower(c.Logging.Level)
	if level != "debug" && level != "info" && level != "warn" && level != "error" && level != "none" {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	format := strings.ToLower(c.Logging.Format)
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme in %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}

// getEnvString returns a string from the environment variable
func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns an int from the environment variable
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool returns a bool from the environment variable
func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration returns a time.Duration from the environment variable
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvFloat returns a float64 from the environment variable
func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getTimeFormat converts a named time format to its actual format string
func getTimeFormat(name string) string {
	switch name {
	case "RFC3339":
		return time.RFC3339
	case "RFC3339Nano":
		return time.RFC3339Nano
	case "Kitchen":
		return time.Kitchen
	case "DateTime":
		return time.DateTime
	case "Date":
		return time.DateOnly
	case "Time":
		return time.TimeOnly
	default:
		return name
	}
}

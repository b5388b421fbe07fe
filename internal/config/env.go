package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
)

// LoadFromEnv loads configuration from environment variables.
// An optional .env file is read first: the file named by ENV_FILE_PATH when
// set, otherwise .env in the current directory if present. Values already in
// the environment win over the file.
func LoadFromEnv() (*Config, error) {
	if envFilePath := getEnvString("ENV_FILE_PATH", ""); envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			return nil, fmt.Errorf("failed to load env file from %s: %w", envFilePath, err)
		}
	} else {
		_ = godotenv.Load() // Ignore errors if file doesn't exist
	}

	cfg := New()

	cfg.SonarCloud = SonarCloudConfig{
		Organization: getEnvString("SONARCLOUD_ORG", ""),
		Token:        getEnvString("SONARCLOUD_TOKEN", ""),
		BaseURL:      getEnvString("SONARFIX_SONAR_BASE_URL", cfg.SonarCloud.BaseURL),
		Timeout:      getEnvDuration("SONARFIX_SONAR_TIMEOUT", cfg.SonarCloud.Timeout),
		PageSize:     getEnvInt("SONARFIX_SONAR_PAGE_SIZE", cfg.SonarCloud.PageSize),
		MaxRetries:   getEnvInt("SONARFIX_SONAR_MAX_RETRIES", 0),
	}

	cfg.OpenAI = OpenAIConfig{
		APIKey:      getEnvString("OPENAI_API_KEY", ""),
		BaseURL:     getEnvString("SONARFIX_OPENAI_BASE_URL", cfg.OpenAI.BaseURL),
		Model:       getEnvString("SONARFIX_OPENAI_MODEL", cfg.OpenAI.Model),
		Temperature: getEnvFloat("SONARFIX_OPENAI_TEMPERATURE", 0),
		Timeout:     getEnvDuration("SONARFIX_OPENAI_TIMEOUT", cfg.OpenAI.Timeout),
		MaxRetries:  getEnvInt("SONARFIX_OPENAI_MAX_RETRIES", 0),
	}

	cfg.Logging = LoggingConfig{
		Level:      getEnvString("SONARFIX_LOG_LEVEL", cfg.Logging.Level),
		Format:     getEnvString("SONARFIX_LOG_FORMAT", cfg.Logging.Format),
		Output:     getEnvString("SONARFIX_LOG_OUTPUT", cfg.Logging.Output),
		AddSource:  getEnvBool("SONARFIX_LOG_ADD_SOURCE", false),
		TimeFormat: getTimeFormat(getEnvString("SONARFIX_LOG_TIME_FORMAT", time.RFC3339)),
	}

	cfg.Run = RunConfig{
		RepoPath:       getEnvString("SONARFIX_REPO", cfg.Run.RepoPath),
		DryRun:         getEnvBool("SONARFIX_DRY_RUN", false),
		SkipVendored:   getEnvBool("SONARFIX_SKIP_VENDORED", cfg.Run.SkipVendored),
		StripCodeFence: getEnvBool("SONARFIX_STRIP_CODE_FENCE", cfg.Run.StripCodeFence),
		ShowSummary:    getEnvBool("SONARFIX_SHOW_SUMMARY", cfg.Run.ShowSummary),
	}

	return cfg, nil
}

// Overrides carries values set explicitly on the command line
type Overrides struct {
	Organization *string
	Token        *string
	OpenAIKey    *string
	Model        *string
	RepoPath     *string
	Branch       *string
	DryRun       *bool
}

// ApplyOverrides copies every non-nil override into the config
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Organization != nil {
		c.SonarCloud.Organization = *o.Organization
	}
	if o.Token != nil {
		c.SonarCloud.Token = *o.Token
	}
	if o.OpenAIKey != nil {
		c.OpenAI.APIKey = *o.OpenAIKey
	}
	if o.Model != nil {
		c.OpenAI.Model = *o.Model
	}
	if o.RepoPath != nil {
		c.Run.RepoPath = *o.RepoPath
	}
	if o.Branch != nil {
		c.Run.Branch = *o.Branch
	}
	if o.DryRun != nil {
		c.Run.DryRun = *o.DryRun
	}
}

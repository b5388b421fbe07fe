// Package app provides the application initialization and lifecycle management
package app

import (
	"fmt"
	"io"
	"os"

	"github.com/tildaslashalef/sonarfix/internal/config"
	"github.com/tildaslashalef/sonarfix/internal/fix"
	"github.com/tildaslashalef/sonarfix/internal/fixer"
	"github.com/tildaslashalef/sonarfix/internal/git"
	"github.com/tildaslashalef/sonarfix/internal/llm"
	"github.com/tildaslashalef/sonarfix/internal/loggy"
	"github.com/tildaslashalef/sonarfix/internal/parser"
	"github.com/tildaslashalef/sonarfix/internal/sonar"
	"github.com/urfave/cli/v2"
)

// App represents the application instance with its dependencies
type App struct {
	Config *config.Config
	Git    *git.Service
	Sonar  *sonar.Client
	LLM    llm.Client
	Fixer  *fixer.Service
	Fix    *fix.Service
}

// New initializes a new application instance from a validated configuration.
// Run output (skip/fix lines) goes to out.
func New(cfg *config.Config, out io.Writer) (*App, error) {
	if err := initLogger(cfg); err != nil {
		return nil, err
	}

	loggy.Info("Application initializing",
		"version", os.Getenv("VERSION"),
		"log_level", cfg.Logging.Level,
		"dry_run", cfg.Run.DryRun,
	)

	app, err := initServices(cfg, out)
	if err != nil {
		return nil, err
	}

	loggy.Debug("Application initialized successfully")
	return app, nil
}

// initLogger initializes the logging system
func initLogger(cfg *config.Config) error {
	err := loggy.Init(loggy.Config{
		Level:      config.ParseLogLevel(cfg.Logging.Level),
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// initServices builds every collaborator explicitly and hands them to the orchestrator
func initServices(cfg *config.Config, out io.Writer) (*App, error) {
	logger := loggy.GetGlobalLogger()

	gitService := git.NewService(logger)
	if err := gitService.Open(cfg.Run.RepoPath); err != nil {
		return nil, fmt.Errorf("failed to open repository %s: %w", cfg.Run.RepoPath, err)
	}

	sonarClient := sonar.NewClient(cfg.SonarCloud, logger)

	llmClient := llm.NewOpenAIClient(cfg.OpenAI, logger)
	loggy.Debug("Initialized LLM client", "base_url", cfg.OpenAI.BaseURL, "model", cfg.OpenAI.Model)

	fixerService := fixer.NewService(llmClient, fixer.Options{
		Model:          cfg.OpenAI.Model,
		Temperature:    cfg.OpenAI.Temperature,
		StripCodeFence: cfg.Run.StripCodeFence,
	}, logger)

	fixService := fix.NewService(
		gitService,
		sonarClient,
		fixerService,
		parser.NewDetector(logger),
		fix.Options{
			Organization: cfg.SonarCloud.Organization,
			Branch:       cfg.Run.Branch,
			DryRun:       cfg.Run.DryRun,
			SkipVendored: cfg.Run.SkipVendored,
		},
		out,
		logger,
	)

	return &App{
		Config: cfg,
		Git:    gitService,
		Sonar:  sonarClient,
		LLM:    llmClient,
		Fixer:  fixerService,
		Fix:    fixService,
	}, nil
}

// FromContext retrieves the App instance from the CLI context
func FromContext(c *cli.Context) (*App, error) {
	if c.App.Metadata == nil {
		return nil, fmt.Errorf("app metadata not found in context")
	}

	app, ok := c.App.Metadata["app"].(*App)
	if !ok {
		return nil, fmt.Errorf("app instance not found in context")
	}

	return app, nil
}

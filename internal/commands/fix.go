package commands

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/sonarfix/internal/app"
	"github.com/tildaslashalef/sonarfix/internal/config"
	"github.com/tildaslashalef/sonarfix/internal/loggy"
)

// Flags returns the command-line flags of the fix action
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "sonarcloud-org",
			Usage:   "SonarCloud organization",
			EnvVars: []string{"SONARCLOUD_ORG"},
		},
		&cli.StringFlag{
			Name:    "sonarcloud-token",
			Usage:   "SonarCloud token",
			EnvVars: []string{"SONARCLOUD_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "openai-api-key",
			Usage:   "OpenAI API key",
			EnvVars: []string{"OPENAI_API_KEY"},
		},
		&cli.BoolFlag{
			Name:    "dry-run",
			Usage:   "Show the issues found to be fixed without calling the model or changing files",
			EnvVars: []string{"SONARFIX_DRY_RUN"},
		},
		&cli.StringFlag{
			Name:    "repo",
			Aliases: []string{"C"},
			Usage:   "Path inside the git repository to fix",
			Value:   ".",
			EnvVars: []string{"SONARFIX_REPO"},
		},
		&cli.StringFlag{
			Name:    "model",
			Aliases: []string{"m"},
			Usage:   "Chat model used to generate fixes",
			Value:   "gpt-4",
			EnvVars: []string{"SONARFIX_OPENAI_MODEL"},
		},
		&cli.StringFlag{
			Name:    "branch",
			Aliases: []string{"b"},
			Usage:   "Branch to fetch issues for (default: the checked-out branch)",
		},
	}
}

// Before loads the configuration, applies command-line overrides and stores
// the initialized application in the CLI metadata.
func Before(c *cli.Context) error {
	cfg, err := LoadConfig(c)
	if err != nil {
		return err
	}

	application, err := app.New(cfg, c.App.Writer)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	c.App.Metadata = map[string]interface{}{
		"app": application,
	}
	return nil
}

// LoadConfig builds the validated configuration for a CLI invocation
func LoadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	cfg.ApplyOverrides(overridesFromContext(c))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// overridesFromContext collects the flags the user actually set
func overridesFromContext(c *cli.Context) config.Overrides {
	var o config.Overrides

	stringFlag := func(name string) *string {
		if !c.IsSet(name) {
			return nil
		}
		v := c.String(name)
		return &v
	}

	o.Organization = stringFlag("sonarcloud-org")
	o.Token = stringFlag("sonarcloud-token")
	o.OpenAIKey = stringFlag("openai-api-key")
	o.Model = stringFlag("model")
	o.RepoPath = stringFlag("repo")
	o.Branch = stringFlag("branch")

	if c.IsSet("dry-run") {
		v := c.Bool("dry-run")
		o.DryRun = &v
	}

	return o
}

// FixAction runs one fixing pass and prints the summary
func FixAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	summary, err := application.Fix.Run(c.Context)
	if err != nil {
		return err
	}

	if application.Config.Run.ShowSummary {
		fmt.Fprintln(c.App.Writer)
		summary.Print(c.App.Writer, !color.NoColor)
	}

	if started, err := summary.Started(); err == nil {
		loggy.Info("Run complete",
			"run_id", summary.RunID,
			"started", started.Format(time.RFC3339),
			"elapsed", time.Since(started).Round(time.Millisecond))
	}
	return nil
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/sonarfix/internal/commands"
)

// Version information - populated at build time
var (
	Version    = "dev"
	BuildTime  = "unknown"
	CommitHash = "unknown"
	Author     = "unknown"
	Email      = "unknown"
)

func main() {
	cliApp := &cli.App{
		Name:  "sonarfix",
		Usage: "Fix SonarCloud issues with a language model",
		Description: "sonarfix looks up the SonarCloud project of the current git checkout, " +
			"fetches its unresolved issues for the checked-out branch and asks an OpenAI " +
			"chat model to rewrite each affected file, one rule at a time.\n\n" +
			"Files with uncommitted modifications are never touched. The model's reply " +
			"is written as-is apart from trailing whitespace; set SONARFIX_STRIP_CODE_FENCE=true " +
			"to unwrap replies that are a single Markdown code block and " +
			"SONARFIX_SKIP_VENDORED=true to leave vendored, generated and binary files alone.",
		Version: Version + " (" + CommitHash + ")",
		Compiled: func() time.Time {
			t, err := time.Parse(time.RFC3339, BuildTime)
			if err != nil {
				return time.Now()
			}
			return t
		}(),
		Authors: []*cli.Author{
			{
				Name:  Author,
				Email: Email,
			},
		},
		Flags:  commands.Flags(),
		Before: commands.Before,
		Action: commands.FixAction,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cliApp.RunContext(ctx, os.Args)
	stop()

	if err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

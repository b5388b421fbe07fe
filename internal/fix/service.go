// Package fix drives a fixing run: it resolves the SonarCloud project for a
// checkout, groups the open issues and rewrites files one rule at a time.
package fix

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tildaslashalef/sonarfix/internal/loggy"
	"github.com/tildaslashalef/sonarfix/internal/sonar"
)

// RepositoryInspector answers questions about the local checkout
type RepositoryInspector interface {
	Root() string
	RemoteURL() (string, error)
	CurrentBranch() (string, error)
	IsModified(path string) (bool, error)
}

// IssueSource fetches projects, issues and rules from SonarCloud
type IssueSource interface {
	FindProject(ctx context.Context, organization, remoteURL string) (*sonar.Project, error)
	ListIssues(ctx context.Context, organization, projectKey, branch string) ([]sonar.Issue, error)
	RuleDetails(ctx context.Context, organization, ruleKey string) (*sonar.Rule, error)
}

// FixGenerator produces replacement file contents for one rule bucket
type FixGenerator interface {
	RequestFix(ctx context.Context, issues []sonar.Issue, fileContents string, rule *sonar.Rule) (string, error)
}

// Classifier labels files and flags the ones that must not be rewritten
type Classifier interface {
	Language(path string, data []byte) string
	SkipReason(path string, data []byte) string
}

// Options control a run
type Options struct {
	Organization string
	Branch       string // overrides the checked-out branch when set
	DryRun       bool
	SkipVendored bool
}

// Service orchestrates a fixing run
type Service struct {
	repo       RepositoryInspector
	issues     IssueSource
	fixer      FixGenerator
	classifier Classifier
	opts       Options
	out        io.Writer
	logger     *loggy.Logger
}

// NewService creates a new orchestrator. classifier may be nil, which
// disables language labels and vendored-file skipping.
func NewService(
	repo RepositoryInspector,
	issues IssueSource,
	fixer FixGenerator,
	classifier Classifier,
	opts Options,
	out io.Writer,
	logger *loggy.Logger,
) *Service {
	return &Service{
		repo:       repo,
		issues:     issues,
		fixer:      fixer,
		classifier: classifier,
		opts:       opts,
		out:        out,
		logger:     logger,
	}
}

// Run performs one pass over every unresolved issue of the current branch.
// Resolution failures abort the run; failures on a single file or rule are
// logged, recorded in the summary and do not stop the loop.
func (s *Service) Run(ctx context.Context) (*Summary, error) {
	ctx, runID := loggy.WithRunID(ctx, s.logger)
	logger := loggy.FromContext(ctx)

	summary := &Summary{RunID: runID, DryRun: s.opts.DryRun}

	remoteURL, err := s.repo.RemoteURL()
	if err != nil {
		return nil, fmt.Errorf("resolving repository: %w", err)
	}

	project, err := s.issues.FindProject(ctx, s.opts.Organization, remoteURL)
	if err != nil {
		return nil, fmt.Errorf("resolving project: %w", err)
	}
	summary.Project = project.Key

	branch := s.opts.Branch
	if branch == "" {
		branch, err = s.repo.CurrentBranch()
		if err != nil {
			return nil, fmt.Errorf("resolving branch: %w", err)
		}
	}
	summary.Branch = branch

	issues, err := s.issues.ListIssues(ctx, s.opts.Organization, project.Key, branch)
	if err != nil {
		return nil, fmt.Errorf("listing issues: %w", err)
	}

	grouping := GroupIssues(issues)
	logger.Info("Starting fix run",
		"project", project.Key,
		"branch", branch,
		"issues", len(issues),
		"files", len(grouping.Files),
		"buckets", grouping.Buckets(),
		"dry_run", s.opts.DryRun)

	for _, file := range grouping.Files {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("fixing issues: %w", err)
		}
		s.processFile(ctx, logger, file, summary)
	}
	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("fixing issues: %w", err)
	}

	logger.Info("Fix run finished",
		"fixed", summary.Count(OutcomeFixed),
		"planned", summary.Count(OutcomePlanned),
		"skipped", summary.Count(OutcomeSkipped),
		"failed", summary.Count(OutcomeFailed))

	return summary, nil
}

// processFile handles every rule bucket of one file
func (s *Service) processFile(ctx context.Context, logger *loggy.Logger, file *FileGroup, summary *Summary) {
	logger = logger.With("file", file.Path)

	modified, err := s.repo.IsModified(file.Path)
	if err != nil {
		logger.WithError(err).Error("Unable to check file status")
		s.recordAll(summary, file, "", OutcomeFailed, err.Error())
		return
	}
	if modified {
		fmt.Fprintln(s.out, "skipping:", file.Path)
		logger.Info("Skipping file with local modifications")
		s.recordAll(summary, file, "", OutcomeSkipped, "local modifications")
		return
	}

	language, reason := s.classify(logger, file.Path)
	if reason != "" {
		fmt.Fprintln(s.out, "skipping:", file.Path)
		logger.Info("Skipping file", "reason", reason)
		s.recordAll(summary, file, language, OutcomeSkipped, reason)
		return
	}

	for _, bucket := range file.Rules {
		if ctx.Err() != nil {
			return
		}

		result := Result{
			File:     file.Path,
			Rule:     bucket.Rule,
			Issues:   len(bucket.Issues),
			Language: language,
		}

		fmt.Fprintf(s.out, "fixing: %s in %s\n", bucket.Rule, file.Path)
		if err := s.fixBucket(ctx, logger, file.Path, bucket); err != nil {
			logger.WithError(err).Error("Unable to fix issue", "rule", bucket.Rule)
			result.Outcome = OutcomeFailed
			result.Reason = err.Error()
		} else if s.opts.DryRun {
			result.Outcome = OutcomePlanned
		} else {
			result.Outcome = OutcomeFixed
		}

		summary.record(result)
	}
}

// fixBucket reads the file, looks up the rule and, outside dry runs, replaces
// the file with the generated fix. The file is read again for every bucket so
// that each rule sees the previous rule's rewrite.
func (s *Service) fixBucket(ctx context.Context, logger *loggy.Logger, path string, bucket *RuleGroup) error {
	fullPath := s.resolve(path)

	info, err := os.Stat(fullPath)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	contents, err := os.ReadFile(fullPath)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	rule, err := s.issues.RuleDetails(ctx, s.opts.Organization, bucket.Rule)
	if err != nil {
		return fmt.Errorf("fetching rule details: %w", err)
	}

	if s.opts.DryRun {
		return nil
	}

	updated, err := s.fixer.RequestFix(ctx, bucket.Issues, string(contents), rule)
	if err != nil {
		return err
	}

	if err := os.WriteFile(fullPath, []byte(updated), info.Mode().Perm()); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	logger.Debug("File rewritten", "rule", bucket.Rule, "bytes", len(updated))
	return nil
}

// classify returns the language label and, when skipping is enabled, the
// reason the file must be left alone. Read errors are left to fixBucket.
func (s *Service) classify(logger *loggy.Logger, path string) (string, string) {
	if s.classifier == nil {
		return "", ""
	}

	data, err := os.ReadFile(s.resolve(path))
	if err != nil {
		logger.Debug("Unable to classify file", "error", err)
		return "", ""
	}

	language := s.classifier.Language(path, data)
	if !s.opts.SkipVendored {
		return language, ""
	}
	return language, s.classifier.SkipReason(path, data)
}

func (s *Service) resolve(path string) string {
	return filepath.Join(s.repo.Root(), filepath.FromSlash(path))
}

func (s *Service) recordAll(summary *Summary, file *FileGroup, language string, outcome Outcome, reason string) {
	for _, bucket := range file.Rules {
		summary.record(Result{
			File:     file.Path,
			Rule:     bucket.Rule,
			Issues:   len(bucket.Issues),
			Language: language,
			Outcome:  outcome,
			Reason:   reason,
		})
	}
}

package fix

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tildaslashalef/sonarfix/internal/config"
	"github.com/tildaslashalef/sonarfix/internal/git"
	"github.com/tildaslashalef/sonarfix/internal/loggy"
	"github.com/tildaslashalef/sonarfix/internal/parser"
	"github.com/tildaslashalef/sonarfix/internal/sonar"
)

type fakeRepo struct {
	root      string
	remoteURL string
	remoteErr error
	branch    string
	modified  map[string]bool
	statusErr error
}

func (r *fakeRepo) Root() string { return r.root }

func (r *fakeRepo) RemoteURL() (string, error) { return r.remoteURL, r.remoteErr }

func (r *fakeRepo) CurrentBranch() (string, error) { return r.branch, nil }

func (r *fakeRepo) IsModified(path string) (bool, error) {
	if r.statusErr != nil {
		return false, r.statusErr
	}
	return r.modified[path], nil
}

type fakeSource struct {
	project    *sonar.Project
	projectErr error
	issues     []sonar.Issue
	issuesErr  error
	rules      map[string]*sonar.Rule
	ruleCalls  []string

	listedBranch string
}

func (s *fakeSource) FindProject(_ context.Context, _, _ string) (*sonar.Project, error) {
	return s.project, s.projectErr
}

func (s *fakeSource) ListIssues(_ context.Context, _, _, branch string) ([]sonar.Issue, error) {
	s.listedBranch = branch
	return s.issues, s.issuesErr
}

func (s *fakeSource) RuleDetails(_ context.Context, _, ruleKey string) (*sonar.Rule, error) {
	s.ruleCalls = append(s.ruleCalls, ruleKey)
	rule, ok := s.rules[ruleKey]
	if !ok {
		return nil, sonar.ErrRuleNotFound
	}
	return rule, nil
}

type fixCall struct {
	rule     string
	lines    []int
	contents string
}

type fakeFixer struct {
	calls   []fixCall
	failFor map[string]error
	// respond builds the replacement from the current contents
	respond func(contents, rule string) string
}

func (f *fakeFixer) RequestFix(_ context.Context, issues []sonar.Issue, fileContents string, rule *sonar.Rule) (string, error) {
	call := fixCall{rule: rule.Key, contents: fileContents}
	for _, issue := range issues {
		call.lines = append(call.lines, issue.Line)
	}
	f.calls = append(f.calls, call)

	if err := f.failFor[rule.Key]; err != nil {
		return "", err
	}
	if f.respond != nil {
		return f.respond(fileContents, rule.Key), nil
	}
	return fileContents + "// fixed " + rule.Key + "\n", nil
}

type fixture struct {
	repo   *fakeRepo
	source *fakeSource
	fixer  *fakeFixer
	out    *bytes.Buffer
}

func newFixture(t *testing.T, files map[string]string, issues []sonar.Issue) *fixture {
	t.Helper()

	root := t.TempDir()
	for name, content := range files {
		full := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	}

	rules := make(map[string]*sonar.Rule)
	for _, issue := range issues {
		rules[issue.Rule] = &sonar.Rule{Key: issue.Rule, MdDesc: "desc " + issue.Rule}
	}

	return &fixture{
		repo: &fakeRepo{
			root:      root,
			remoteURL: "https://github.com/acme/repo.git",
			branch:    "main",
			modified:  map[string]bool{},
		},
		source: &fakeSource{
			project: &sonar.Project{Key: "acme_repo"},
			issues:  issues,
			rules:   rules,
		},
		fixer: &fakeFixer{failFor: map[string]error{}},
		out:   &bytes.Buffer{},
	}
}

func (f *fixture) service(opts Options, classifier Classifier) *Service {
	opts.Organization = "acme"
	return NewService(f.repo, f.source, f.fixer, classifier, opts, f.out, loggy.NewNoopLogger())
}

func (f *fixture) read(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.repo.root, filepath.FromSlash(name)))
	require.NoError(t, err)
	return string(data)
}

func TestRun_FixesEveryBucket(t *testing.T) {
	f := newFixture(t,
		map[string]string{"a.go": "package a\n", "b.go": "package b\n"},
		[]sonar.Issue{
			newIssue("1", "a.go", "go:S100", 3),
			newIssue("2", "b.go", "go:S200", 4),
			newIssue("3", "a.go", "go:S100", 9),
			newIssue("4", "a.go", "go:S300", 1),
		})

	summary, err := f.service(Options{}, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t,
		"fixing: go:S100 in a.go\n"+
			"fixing: go:S300 in a.go\n"+
			"fixing: go:S200 in b.go\n",
		f.out.String())

	require.Len(t, f.fixer.calls, 3)
	assert.Equal(t, []int{3, 9}, f.fixer.calls[0].lines)

	assert.Equal(t, "package a\n// fixed go:S100\n// fixed go:S300\n", f.read(t, "a.go"))
	assert.Equal(t, "package b\n// fixed go:S200\n", f.read(t, "b.go"))

	assert.Equal(t, 3, summary.Count(OutcomeFixed))
	assert.Equal(t, "acme_repo", summary.Project)
	assert.Equal(t, "main", summary.Branch)
	assert.NotEmpty(t, summary.RunID)
}

func TestRun_EachRuleSeesPreviousRewrite(t *testing.T) {
	f := newFixture(t,
		map[string]string{"a.go": "v0\n"},
		[]sonar.Issue{
			newIssue("1", "a.go", "r1", 1),
			newIssue("2", "a.go", "r2", 1),
		})
	f.fixer.respond = func(contents, rule string) string {
		return strings.TrimSpace(contents) + "+" + rule + "\n"
	}

	_, err := f.service(Options{}, nil).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, f.fixer.calls, 2)
	assert.Equal(t, "v0\n", f.fixer.calls[0].contents)
	assert.Equal(t, "v0+r1\n", f.fixer.calls[1].contents)
	assert.Equal(t, "v0+r1+r2\n", f.read(t, "a.go"))
}

func TestRun_DryRun(t *testing.T) {
	files := map[string]string{"a.go": "package a\n", "dirty.go": "package dirty\n", "b.go": "package b\n"}
	issues := []sonar.Issue{
		newIssue("1", "a.go", "go:S100", 3),
		newIssue("2", "dirty.go", "go:S100", 1),
		newIssue("3", "b.go", "go:S200", 7),
		newIssue("4", "a.go", "go:S300", 2),
	}

	live := newFixture(t, files, issues)
	live.repo.modified["dirty.go"] = true
	_, err := live.service(Options{}, nil).Run(context.Background())
	require.NoError(t, err)

	dry := newFixture(t, files, issues)
	dry.repo.modified["dirty.go"] = true
	summary, err := dry.service(Options{DryRun: true}, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, live.out.String(), dry.out.String(), "dry run prints the same lines")
	assert.Empty(t, dry.fixer.calls, "dry run never requests a completion")
	for name, content := range files {
		assert.Equal(t, content, dry.read(t, name), "dry run never writes %s", name)
	}

	assert.Equal(t, []string{"go:S100", "go:S300", "go:S200"}, dry.source.ruleCalls, "rules still looked up")
	assert.Equal(t, 3, summary.Count(OutcomePlanned))
	assert.Equal(t, 1, summary.Count(OutcomeSkipped))
	assert.True(t, summary.DryRun)
}

func TestRun_ModifiedFileGate(t *testing.T) {
	f := newFixture(t,
		map[string]string{"dirty.go": "package dirty\n", "clean.go": "package clean\n"},
		[]sonar.Issue{
			newIssue("1", "dirty.go", "go:S100", 1),
			newIssue("2", "dirty.go", "go:S200", 2),
			newIssue("3", "clean.go", "go:S100", 3),
		})
	f.repo.modified["dirty.go"] = true

	summary, err := f.service(Options{}, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "skipping: dirty.go\nfixing: go:S100 in clean.go\n", f.out.String())
	require.Len(t, f.fixer.calls, 1)
	assert.Equal(t, "package clean\n", f.fixer.calls[0].contents)
	assert.Equal(t, "package dirty\n", f.read(t, "dirty.go"))
	assert.Equal(t, 2, summary.Count(OutcomeSkipped))
}

func TestRun_ContinuesAfterFailures(t *testing.T) {
	f := newFixture(t,
		map[string]string{"a.go": "package a\n", "b.go": "package b\n"},
		[]sonar.Issue{
			newIssue("1", "a.go", "go:Missing", 1),
			newIssue("2", "a.go", "go:S100", 2),
			newIssue("3", "gone.go", "go:S100", 1),
			newIssue("4", "b.go", "go:Broken", 3),
			newIssue("5", "b.go", "go:S200", 4),
		})
	delete(f.source.rules, "go:Missing")
	f.fixer.failFor["go:Broken"] = errors.New("model unavailable")

	summary, err := f.service(Options{}, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t,
		"fixing: go:Missing in a.go\n"+
			"fixing: go:S100 in a.go\n"+
			"fixing: go:S100 in gone.go\n"+
			"fixing: go:Broken in b.go\n"+
			"fixing: go:S200 in b.go\n",
		f.out.String())

	assert.Equal(t, "package a\n// fixed go:S100\n", f.read(t, "a.go"))
	assert.Equal(t, "package b\n// fixed go:S200\n", f.read(t, "b.go"))

	assert.Equal(t, 2, summary.Count(OutcomeFixed))
	assert.Equal(t, 3, summary.Count(OutcomeFailed))

	reasons := map[string]string{}
	for _, r := range summary.Results {
		if r.Outcome == OutcomeFailed {
			reasons[r.File+" "+r.Rule] = r.Reason
		}
	}
	assert.Contains(t, reasons["a.go go:Missing"], sonar.ErrRuleNotFound.Error())
	assert.Contains(t, reasons["gone.go go:S100"], "reading file")
	assert.Contains(t, reasons["b.go go:Broken"], "model unavailable")
}

func TestRun_StatusErrorFailsFileOnly(t *testing.T) {
	f := newFixture(t,
		map[string]string{"a.go": "package a\n"},
		[]sonar.Issue{newIssue("1", "a.go", "go:S100", 1)})
	f.repo.statusErr = errors.New("index locked")

	summary, err := f.service(Options{}, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, f.fixer.calls)
	assert.Equal(t, 1, summary.Count(OutcomeFailed))
}

func TestRun_FatalErrors(t *testing.T) {
	t.Run("no remote", func(t *testing.T) {
		f := newFixture(t, nil, nil)
		f.repo.remoteErr = git.ErrNoRemote

		_, err := f.service(Options{}, nil).Run(context.Background())
		assert.ErrorIs(t, err, git.ErrNoRemote)
	})

	t.Run("project not found", func(t *testing.T) {
		f := newFixture(t, nil, nil)
		f.source.project = nil
		f.source.projectErr = sonar.ErrProjectNotFound

		_, err := f.service(Options{}, nil).Run(context.Background())
		assert.ErrorIs(t, err, sonar.ErrProjectNotFound)
	})

	t.Run("no issue list", func(t *testing.T) {
		f := newFixture(t, nil, nil)
		f.source.issuesErr = sonar.ErrNoIssues

		_, err := f.service(Options{}, nil).Run(context.Background())
		assert.ErrorIs(t, err, sonar.ErrNoIssues)
		assert.Empty(t, f.out.String())
	})
}

func TestRun_NoIssues(t *testing.T) {
	f := newFixture(t, nil, []sonar.Issue{})

	summary, err := f.service(Options{}, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, summary.Results)
	assert.Empty(t, f.out.String())
}

func TestRun_BranchOverride(t *testing.T) {
	f := newFixture(t, nil, []sonar.Issue{})

	summary, err := f.service(Options{Branch: "release/1.2"}, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "release/1.2", f.source.listedBranch)
	assert.Equal(t, "release/1.2", summary.Branch)
}

func TestRun_PreservesFileMode(t *testing.T) {
	f := newFixture(t,
		map[string]string{"run.sh": "#!/bin/sh\necho hi\n"},
		[]sonar.Issue{newIssue("1", "run.sh", "shelldre:S100", 2)})
	full := filepath.Join(f.repo.root, "run.sh")
	require.NoError(t, os.Chmod(full, 0755))

	_, err := f.service(Options{}, nil).Run(context.Background())
	require.NoError(t, err)

	info, err := os.Stat(full)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())
}

func TestRun_SkipsVendoredFiles(t *testing.T) {
	files := map[string]string{
		"vendor/lib/lib.go": "package lib\n",
		"main.go":           "package main\n",
	}
	issues := []sonar.Issue{
		newIssue("1", "vendor/lib/lib.go", "go:S100", 1),
		newIssue("2", "main.go", "go:S100", 1),
	}
	classifier := parser.NewDetector(loggy.NewNoopLogger())

	t.Run("enabled", func(t *testing.T) {
		f := newFixture(t, files, issues)

		summary, err := f.service(Options{SkipVendored: true}, classifier).Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, "skipping: vendor/lib/lib.go\nfixing: go:S100 in main.go\n", f.out.String())
		require.Len(t, f.fixer.calls, 1)
		assert.Equal(t, "package lib\n", f.read(t, "vendor/lib/lib.go"))

		for _, r := range summary.Results {
			assert.Equal(t, "Go", r.Language)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		f := newFixture(t, files, issues)

		_, err := f.service(Options{SkipVendored: false}, classifier).Run(context.Background())
		require.NoError(t, err)
		assert.Len(t, f.fixer.calls, 2)
	})
}

func TestRun_DefaultConfigFixesVendorLikeFiles(t *testing.T) {
	longLine := "var data = [" + strings.Repeat("1, ", 200) + "1];\n"
	files := map[string]string{
		"src/app.js":     longLine + longLine,
		"cache/store.go": "package cache\n",
		"dist/app.js":    "console.log(1);\n",
	}
	issues := []sonar.Issue{
		newIssue("1", "src/app.js", "javascript:S1481", 1),
		newIssue("2", "cache/store.go", "go:S100", 1),
		newIssue("3", "dist/app.js", "javascript:S2228", 1),
	}
	f := newFixture(t, files, issues)

	opts := Options{SkipVendored: config.New().Run.SkipVendored}
	summary, err := f.service(opts, parser.NewDetector(loggy.NewNoopLogger())).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t,
		"fixing: javascript:S1481 in src/app.js\n"+
			"fixing: go:S100 in cache/store.go\n"+
			"fixing: javascript:S2228 in dist/app.js\n",
		f.out.String())
	assert.Len(t, f.fixer.calls, 3)
	assert.Equal(t, 3, summary.Count(OutcomeFixed))
	assert.Zero(t, summary.Count(OutcomeSkipped))
}

func TestRun_RunID(t *testing.T) {
	files := map[string]string{"a.go": "package a\n"}
	issues := []sonar.Issue{newIssue("1", "a.go", "go:S100", 1)}

	t.Run("started time from fresh ID", func(t *testing.T) {
		f := newFixture(t, files, issues)
		summary, err := f.service(Options{}, nil).Run(context.Background())
		require.NoError(t, err)

		started, err := summary.Started()
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now(), started, 5*time.Second)
	})

	t.Run("caller supplied ID", func(t *testing.T) {
		f := newFixture(t, files, issues)
		ctx, id := loggy.WithRunID(context.Background(), loggy.NewNoopLogger())

		summary, err := f.service(Options{}, nil).Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, id, summary.RunID)
	})
}

func TestRun_Cancelled(t *testing.T) {
	f := newFixture(t,
		map[string]string{"a.go": "package a\n"},
		[]sonar.Issue{newIssue("1", "a.go", "go:S100", 1)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.service(Options{}, nil).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.fixer.calls)
}

func TestSummaryPrint(t *testing.T) {
	t.Run("table and totals", func(t *testing.T) {
		summary := &Summary{
			Project: "acme_repo",
			Branch:  "main",
			Results: []Result{
				{File: "a.go", Rule: "go:S100", Issues: 2, Language: "Go", Outcome: OutcomeFixed},
				{File: "b.go", Rule: "go:S200", Issues: 1, Outcome: OutcomeFailed, Reason: strings.Repeat("x", 200)},
			},
		}

		var buf bytes.Buffer
		summary.Print(&buf, false)
		out := buf.String()

		assert.Contains(t, out, "acme_repo @ main")
		assert.Contains(t, out, "go:S100")
		assert.Contains(t, out, "...")
		assert.NotContains(t, out, strings.Repeat("x", 100))
		assert.Contains(t, out, "1 fixed, 0 planned, 0 skipped, 1 failed")
		assert.NotContains(t, out, "\x1b[", "no colors when disabled")
	})

	t.Run("reason at column width kept whole", func(t *testing.T) {
		reason := strings.Repeat("y", reasonWidth)
		summary := &Summary{Results: []Result{
			{File: "a.go", Rule: "go:S100", Issues: 1, Outcome: OutcomeFailed, Reason: reason},
		}}

		var buf bytes.Buffer
		summary.Print(&buf, false)
		assert.Contains(t, buf.String(), reason)
	})

	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		(&Summary{}).Print(&buf, false)
		assert.Equal(t, "no unresolved issues\n", buf.String())
	})
}

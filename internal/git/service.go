package git

import (
	"fmt"
	"path"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/tildaslashalef/sonarfix/internal/loggy"
)

// Service provides read-only Git operations on one repository
type Service struct {
	logger *loggy.Logger
	repo   *git.Repository
	root   string
}

// NewService creates a new Git service
func NewService(logger *loggy.Logger) *Service {
	return &Service{
		logger: logger,
	}
}

// Open opens the repository containing path, walking up to the enclosing .git directory
func (s *Service) Open(repoPath string) error {
	repo, err := git.PlainOpenWithOptions(repoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return fmt.Errorf("opening git repo: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}

	s.repo = repo
	s.root = worktree.Filesystem.Root()
	s.logger.Debug("Opened git repository", "path", repoPath, "root", s.root)
	return nil
}

// ensureRepo ensures the repository is opened before performing operations
func (s *Service) ensureRepo() error {
	if s.repo == nil {
		return fmt.Errorf("git repository not opened")
	}
	return nil
}

// Root returns the absolute path of the worktree root
func (s *Service) Root() string {
	return s.root
}

// Remotes lists the configured remotes sorted by name
func (s *Service) Remotes() ([]Remote, error) {
	if err := s.ensureRepo(); err != nil {
		return nil, err
	}

	gitRemotes, err := s.repo.Remotes()
	if err != nil {
		return nil, fmt.Errorf("listing remotes: %w", err)
	}

	remotes := make([]Remote, 0, len(gitRemotes))
	for _, r := range gitRemotes {
		cfg := r.Config()
		remotes = append(remotes, Remote{Name: cfg.Name, URLs: cfg.URLs})
	}
	sortRemotes(remotes)

	return remotes, nil
}

// RemoteURL returns the fetch URL of origin, or of the first remote when there is no origin
func (s *Service) RemoteURL() (string, error) {
	remotes, err := s.Remotes()
	if err != nil {
		return "", fmt.Errorf("fetching git repository URL: %w", err)
	}

	url, err := ResolveRemote(remotes)
	if err != nil {
		return "", fmt.Errorf("fetching git repository URL: %w", err)
	}

	s.logger.Debug("Resolved remote URL", "url", url, "remotes", len(remotes))
	return url, nil
}

// CurrentBranch returns the abbreviated name of the checked-out branch, or
// HEAD when detached. It works on repositories without commits.
func (s *Service) CurrentBranch() (string, error) {
	if err := s.ensureRepo(); err != nil {
		return "", err
	}

	head, err := s.repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return "", fmt.Errorf("reading HEAD: %w", err)
	}

	if head.Type() == plumbing.SymbolicReference && head.Target().IsBranch() {
		return head.Target().Short(), nil
	}

	return DetachedHead, nil
}

// IsModified reports whether the repo-relative path has uncommitted
// modifications in the index or the working tree.
func (s *Service) IsModified(filePath string) (bool, error) {
	modified, err := s.ModifiedFiles()
	if err != nil {
		return false, fmt.Errorf("checking file modification status: %w", err)
	}

	_, ok := modified[normalizePath(filePath)]
	return ok, nil
}

// ModifiedFiles returns the set of tracked files whose content differs from HEAD
func (s *Service) ModifiedFiles() (map[string]struct{}, error) {
	if err := s.ensureRepo(); err != nil {
		return nil, err
	}

	worktree, err := s.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("getting worktree: %w", err)
	}

	status, err := worktree.Status()
	if err != nil {
		return nil, fmt.Errorf("getting worktree status: %w", err)
	}

	modified := make(map[string]struct{})
	for filePath, fileStatus := range status {
		if fileStatus.Worktree == git.Modified || fileStatus.Staging == git.Modified {
			modified[filePath] = struct{}{}
		}
	}

	s.logger.Debug("Worktree status retrieved", "entries", len(status), "modified", len(modified))
	return modified, nil
}

// normalizePath converts a path to the slash-separated, cleaned form go-git uses as status keys
func normalizePath(p string) string {
	return path.Clean(filepath.ToSlash(p))
}

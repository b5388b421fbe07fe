// Package git inspects the local repository sonarfix runs against
package git

import (
	"errors"
	"sort"
)

// DefaultRemote is the remote preferred when resolving the repository URL
const DefaultRemote = "origin"

// DetachedHead is reported as the branch name when HEAD is not on a branch
const DetachedHead = "HEAD"

// ErrNoRemote is returned when the repository has no usable remote
var ErrNoRemote = errors.New("no remote repository found")

// Remote is a named reference to another repository location
type Remote struct {
	Name string
	URLs []string
}

// FetchURL returns the URL used to fetch from the remote
func (r Remote) FetchURL() string {
	if len(r.URLs) == 0 {
		return ""
	}
	return r.URLs[0]
}

// ResolveRemote picks the remote named origin, falling back to the first
// remote in the list, and returns its fetch URL.
func ResolveRemote(remotes []Remote) (string, error) {
	if len(remotes) == 0 {
		return "", ErrNoRemote
	}

	chosen := remotes[0]
	for _, r := range remotes {
		if r.Name == DefaultRemote {
			chosen = r
			break
		}
	}

	url := chosen.FetchURL()
	if url == "" {
		return "", ErrNoRemote
	}
	return url, nil
}

// sortRemotes orders remotes by name, the order `git remote` lists them in
func sortRemotes(remotes []Remote) {
	sort.SliceStable(remotes, func(i, j int) bool {
		return remotes[i].Name < remotes[j].Name
	})
}

// Package sonar is a client for the SonarCloud Web API endpoints sonarfix needs
package sonar

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrProjectNotFound is returned when the project search has no components
	ErrProjectNotFound = errors.New("project not found")
	// ErrNoIssues is returned when an issue search response has no issue list
	ErrNoIssues = errors.New("no issues found")
	// ErrRuleNotFound is returned when a rule lookup has no rule
	ErrRuleNotFound = errors.New("no rule found")
)

// Project is a SonarCloud project (a "component" in search results)
type Project struct {
	Key          string `json:"key"`
	Name         string `json:"name"`
	Organization string `json:"organization,omitempty"`
	Qualifier    string `json:"qualifier,omitempty"`
	Visibility   string `json:"visibility,omitempty"`
}

// TextRange locates an issue inside its file
type TextRange struct {
	StartLine   int `json:"startLine"`
	EndLine     int `json:"endLine"`
	StartOffset int `json:"startOffset"`
	EndOffset   int `json:"endOffset"`
}

// Issue is an unresolved finding reported by SonarCloud
type Issue struct {
	Key       string     `json:"key"`
	Rule      string     `json:"rule"`
	Component string     `json:"component"`
	Project   string     `json:"project,omitempty"`
	Line      int        `json:"line,omitempty"`
	Message   string     `json:"message,omitempty"`
	Severity  string     `json:"severity,omitempty"`
	Type      string     `json:"type,omitempty"`
	Status    string     `json:"status,omitempty"`
	TextRange *TextRange `json:"textRange,omitempty"`
}

// FilePath returns the repository-relative path encoded in the component
// key, which has the form "<projectKey>:<path>".
func (i Issue) FilePath() string {
	if _, path, ok := strings.Cut(i.Component, ":"); ok {
		return path
	}
	return i.Component
}

// Rule is the descriptive metadata of a static-analysis rule
type Rule struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Lang     string `json:"lang,omitempty"`
	LangName string `json:"langName,omitempty"`
	Severity string `json:"severity,omitempty"`
	Type     string `json:"type,omitempty"`
	MdDesc   string `json:"mdDesc,omitempty"`
	HTMLDesc string `json:"htmlDesc,omitempty"`
}

// Description returns the markdown description, falling back to the HTML one
func (r Rule) Description() string {
	if r.MdDesc != "" {
		return r.MdDesc
	}
	return r.HTMLDesc
}

// Paging is the pagination block SonarCloud attaches to search responses
type Paging struct {
	PageIndex int `json:"pageIndex"`
	PageSize  int `json:"pageSize"`
	Total     int `json:"total"`
}

type projectSearchResponse struct {
	Paging     Paging    `json:"paging"`
	Components []Project `json:"components"`
}

type issueSearchResponse struct {
	Total  int     `json:"total"`
	P      int     `json:"p"`
	Ps     int     `json:"ps"`
	Paging *Paging `json:"paging,omitempty"`
	// nil when the field is absent, empty when the search matched nothing
	Issues []Issue `json:"issues"`
}

// total prefers the paging block and falls back to the legacy top-level field
func (r issueSearchResponse) total() int {
	if r.Paging != nil {
		return r.Paging.Total
	}
	return r.Total
}

type ruleShowResponse struct {
	Rule *Rule `json:"rule"`
}

// APIError is a non-2xx response from the SonarCloud API
type APIError struct {
	StatusCode int
	Messages   []string
	Body       string
}

func (e *APIError) Error() string {
	if len(e.Messages) > 0 {
		return fmt.Sprintf("sonarcloud API error (status %d): %s", e.StatusCode, strings.Join(e.Messages, "; "))
	}
	if e.Body != "" {
		return fmt.Sprintf("sonarcloud API error (status %d): %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("sonarcloud API error (status %d)", e.StatusCode)
}

type apiErrorResponse struct {
	Errors []struct {
		Msg string `json:"msg"`
	} `json:"errors"`
}

package sonar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-querystring/query"
	"github.com/tildaslashalef/sonarfix/internal/config"
	"github.com/tildaslashalef/sonarfix/internal/loggy"
)

// maxResultWindow is the deepest result SonarCloud lets a search page into
const maxResultWindow = 10000

// Client talks to the SonarCloud Web API using HTTP Basic auth with the
// token as username and an empty password.
type Client struct {
	baseURL    string
	token      string
	pageSize   int
	maxRetries int
	httpClient *http.Client
	logger     *loggy.Logger
}

// NewClient creates a new SonarCloud client from config
func NewClient(cfg config.SonarCloudConfig, logger *loggy.Logger) *Client {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		token:      cfg.Token,
		pageSize:   pageSize,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type projectSearchOptions struct {
	Organization string `url:"organization"`
	Query        string `url:"q"`
}

type issueSearchOptions struct {
	ComponentKeys string `url:"componentKeys"`
	Organization  string `url:"organization,omitempty"`
	Branch        string `url:"branch,omitempty"`
	Resolved      bool   `url:"resolved"`
	Page          int    `url:"p"`
	PageSize      int    `url:"ps"`
}

type ruleShowOptions struct {
	Key          string `url:"key"`
	Organization string `url:"organization"`
}

// RepoName derives the repository name from a remote URL: the last path
// segment without a trailing ".git".
func RepoName(remoteURL string) string {
	name := strings.TrimRight(strings.TrimSpace(remoteURL), "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	// scp-like remotes without a path, e.g. git@host:repo.git
	if i := strings.LastIndex(name, ":"); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, ".git")
}

// FindProject returns the first project of the organization matching the
// repository name derived from remoteURL.
func (c *Client) FindProject(ctx context.Context, organization, remoteURL string) (*Project, error) {
	opts := projectSearchOptions{
		Organization: organization,
		Query:        RepoName(remoteURL),
	}

	var resp projectSearchResponse
	if err := c.get(ctx, "/api/projects/search", opts, &resp); err != nil {
		return nil, fmt.Errorf("fetching project: %w", err)
	}

	if len(resp.Components) == 0 {
		return nil, fmt.Errorf("fetching project %q in %q: %w", opts.Query, organization, ErrProjectNotFound)
	}

	project := resp.Components[0]
	c.logger.Debug("Found SonarCloud project",
		"query", opts.Query,
		"key", project.Key,
		"matches", len(resp.Components))

	return &project, nil
}

// ListIssues returns every unresolved issue of the project on the given
// branch. An empty list is a valid result; ErrNoIssues means the response
// carried no issue list at all.
func (c *Client) ListIssues(ctx context.Context, organization, projectKey, branch string) ([]Issue, error) {
	opts := issueSearchOptions{
		ComponentKeys: projectKey,
		Organization:  organization,
		Branch:        branch,
		Resolved:      false,
		Page:          1,
		PageSize:      c.pageSize,
	}

	var issues []Issue
	for {
		var resp issueSearchResponse
		if err := c.get(ctx, "/api/issues/search", opts, &resp); err != nil {
			return nil, fmt.Errorf("fetching issues: %w", err)
		}

		if resp.Issues == nil {
			return nil, fmt.Errorf("fetching issues for %q: %w", projectKey, ErrNoIssues)
		}

		issues = append(issues, resp.Issues...)
		total := resp.total()

		c.logger.Debug("Fetched issue page",
			"project", projectKey,
			"branch", branch,
			"page", opts.Page,
			"received", len(resp.Issues),
			"total", total)

		if len(resp.Issues) == 0 || len(issues) >= total {
			break
		}
		if opts.Page*opts.PageSize >= maxResultWindow {
			c.logger.Warn("Issue search truncated at the SonarCloud result window",
				"project", projectKey,
				"fetched", len(issues),
				"total", total)
			break
		}
		opts.Page++
	}

	if issues == nil {
		issues = []Issue{}
	}
	return issues, nil
}

// RuleDetails fetches the metadata of a rule
func (c *Client) RuleDetails(ctx context.Context, organization, ruleKey string) (*Rule, error) {
	opts := ruleShowOptions{Key: ruleKey, Organization: organization}

	var resp ruleShowResponse
	if err := c.get(ctx, "/api/rules/show", opts, &resp); err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("fetching rule %q: %w: %w", ruleKey, ErrRuleNotFound, err)
		}
		return nil, fmt.Errorf("fetching rule: %w", err)
	}

	if resp.Rule == nil {
		return nil, fmt.Errorf("fetching rule %q: %w", ruleKey, ErrRuleNotFound)
	}

	return resp.Rule, nil
}

// get issues a GET request with the encoded options and decodes the JSON body.
// Client errors (4xx) are not retried.
func (c *Client) get(ctx context.Context, path string, opts interface{}, response interface{}) error {
	values, err := query.Values(opts)
	if err != nil {
		return fmt.Errorf("encoding query: %w", err)
	}
	url := c.baseURL + path + "?" + values.Encode()

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("creating request: %w", err))
		}
		req.SetBasicAuth(c.token, "")
		req.Header.Set("Accept", "application/json")

		c.logger.Debug("Sending SonarCloud request", "method", req.Method, "url", url)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(fmt.Errorf("sending request: %w", err))
			}
			return fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response body: %w", err)
		}

		c.logger.Debug("SonarCloud API response",
			"status_code", resp.StatusCode,
			"content_length", len(body))

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			apiErr := handleErrorResponse(resp.StatusCode, body)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return backoff.Permanent(apiErr)
			}
			return apiErr
		}

		if err := json.NewDecoder(bytes.NewReader(body)).Decode(response); err != nil {
			return backoff.Permanent(fmt.Errorf("decoding response: %w", err))
		}

		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(max(c.maxRetries, 0))),
		ctx,
	)
	return backoff.Retry(operation, policy)
}

// handleErrorResponse turns an error body into an *APIError, keeping the
// messages SonarCloud reports in its errors array.
func handleErrorResponse(statusCode int, body []byte) error {
	apiErr := &APIError{StatusCode: statusCode}

	var parsed apiErrorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && len(parsed.Errors) > 0 {
		for _, e := range parsed.Errors {
			apiErr.Messages = append(apiErr.Messages, e.Msg)
		}
		return apiErr
	}

	apiErr.Body = strings.TrimSpace(string(body))
	return apiErr
}

// IsNotFound reports whether err is a SonarCloud 404
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

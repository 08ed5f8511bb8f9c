// Package github provides a small client for the GitHub REST API: account
// lookup, organization search and repository listing.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/maroofsyyed/Duesense1/internal/resilience"
)

const defaultBaseURL = "https://api.github.com"

// ErrNotFound is returned when an account does not exist.
var ErrNotFound = eris.New("github: not found")

// Client defines the GitHub operations used for enrichment.
type Client interface {
	GetAccount(ctx context.Context, login string) (*Account, error)
	SearchOrgs(ctx context.Context, query string) ([]Account, error)
	ListRepos(ctx context.Context, login string, limit int) ([]Repo, error)
}

// Account is a GitHub user or organization.
type Account struct {
	Login       string    `json:"login"`
	Type        string    `json:"type"` // "User" or "Organization"
	Name        string    `json:"name"`
	Blog        string    `json:"blog"`
	PublicRepos int       `json:"public_repos"`
	Followers   int       `json:"followers"`
	CreatedAt   time.Time `json:"created_at"`
	HTMLURL     string    `json:"html_url"`
}

// Repo is a public repository.
type Repo struct {
	Name            string    `json:"name"`
	FullName        string    `json:"full_name"`
	Description     string    `json:"description"`
	Language        string    `json:"language"`
	StargazersCount int       `json:"stargazers_count"`
	ForksCount      int       `json:"forks_count"`
	Fork            bool      `json:"fork"`
	Archived        bool      `json:"archived"`
	PushedAt        time.Time `json:"pushed_at"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithRateLimit caps outgoing requests per second. Zero disables limiting.
func WithRateLimit(perSec float64) Option {
	return func(c *httpClient) {
		if perSec > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSec), 2)
		} else {
			c.limiter = nil
		}
	}
}

type httpClient struct {
	token   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a GitHub client. An empty token makes anonymous calls,
// which GitHub limits to 60 per hour; the default limiter stays well under.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 20 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(1), 2),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) GetAccount(ctx context.Context, login string) (*Account, error) {
	var acct Account
	if err := c.get(ctx, "/users/"+url.PathEscape(login), &acct); err != nil {
		return nil, eris.Wrapf(err, "github: get account %s", login)
	}
	return &acct, nil
}

func (c *httpClient) SearchOrgs(ctx context.Context, query string) ([]Account, error) {
	var out struct {
		Items []Account `json:"items"`
	}
	q := url.Values{"q": {query + " type:org"}, "per_page": {"5"}}
	if err := c.get(ctx, "/search/users?"+q.Encode(), &out); err != nil {
		return nil, eris.Wrapf(err, "github: search orgs %q", query)
	}
	return out.Items, nil
}

func (c *httpClient) ListRepos(ctx context.Context, login string, limit int) ([]Repo, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	var repos []Repo
	path := fmt.Sprintf("/users/%s/repos?sort=pushed&per_page=%d", url.PathEscape(login), limit)
	if err := c.get(ctx, path, &repos); err != nil {
		return nil, eris.Wrapf(err, "github: list repos %s", login)
	}
	return repos, nil
}

func (c *httpClient) get(ctx context.Context, path string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "rate limiter")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response")
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0":
		return resilience.NewTransientError(eris.Errorf("rate limit exhausted: %s", string(body)), http.StatusTooManyRequests)
	case resp.StatusCode != http.StatusOK:
		return resilience.Classify(eris.Errorf("unexpected status %d: %s", resp.StatusCode, string(body)), resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "unmarshal response")
	}
	return nil
}

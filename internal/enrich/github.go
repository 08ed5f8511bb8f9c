package enrich

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/rotisserie/eris"

	"github.com/maroofsyyed/Duesense1/internal/model"
	"github.com/maroofsyyed/Duesense1/pkg/github"
)

const (
	maxRepos     = 30
	activeWindow = 90 * 24 * time.Hour
)

type repoSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Language    string `json:"language"`
	Stars       int    `json:"stars"`
	Forks       int    `json:"forks"`
}

type githubPayload struct {
	Found       bool          `json:"found"`
	Query       string        `json:"query"`
	Login       string        `json:"login,omitempty"`
	Name        string        `json:"name,omitempty"`
	HTMLURL     string        `json:"html_url,omitempty"`
	PublicRepos int           `json:"public_repos"`
	Followers   int           `json:"followers"`
	CreatedAt   string        `json:"created_at,omitempty"`
	TotalStars  int           `json:"total_stars"`
	TotalForks  int           `json:"total_forks"`
	ActiveRepos int           `json:"active_repos"`
	Languages   []string      `json:"languages"`
	TopRepos    []repoSummary `json:"top_repos"`
}

// GitHubSource finds the company's GitHub organization and summarizes its
// public repositories.
type GitHubSource struct {
	client github.Client
	now    func() time.Time
}

// NewGitHubSource creates the github source.
func NewGitHubSource(client github.Client) *GitHubSource {
	return &GitHubSource{client: client, now: time.Now}
}

// Name implements Source.
func (s *GitHubSource) Name() string { return "github" }

// Lookup implements Source.
func (s *GitHubSource) Lookup(ctx context.Context, b *model.ExtractionBundle) (map[string]any, error) {
	name, err := companyName(b)
	if err != nil {
		return nil, err
	}

	p := githubPayload{Query: name, Languages: []string{}, TopRepos: []repoSummary{}}

	candidates, err := s.client.SearchOrgs(ctx, name)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: github search")
	}
	login := matchOrg(candidates, name, domain(b))
	if login == "" {
		return toPayload(p)
	}

	acct, err := s.client.GetAccount(ctx, login)
	if errors.Is(err, github.ErrNotFound) {
		return toPayload(p)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: github account %s", login)
	}

	p.Found = true
	p.Login = acct.Login
	p.Name = acct.Name
	p.HTMLURL = acct.HTMLURL
	p.PublicRepos = acct.PublicRepos
	p.Followers = acct.Followers
	if !acct.CreatedAt.IsZero() {
		p.CreatedAt = acct.CreatedAt.UTC().Format(time.RFC3339)
	}

	repos, err := s.client.ListRepos(ctx, login, maxRepos)
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: github repos %s", login)
	}
	s.summarize(&p, repos)
	return toPayload(p)
}

func (s *GitHubSource) summarize(p *githubPayload, repos []github.Repo) {
	langs := map[string]int{}
	var own []github.Repo
	cutoff := s.now().Add(-activeWindow)
	for _, r := range repos {
		if r.Fork {
			continue
		}
		own = append(own, r)
		p.TotalStars += r.StargazersCount
		p.TotalForks += r.ForksCount
		if !r.Archived && r.PushedAt.After(cutoff) {
			p.ActiveRepos++
		}
		if r.Language != "" {
			langs[r.Language]++
		}
	}

	for l := range langs {
		p.Languages = append(p.Languages, l)
	}
	sort.Slice(p.Languages, func(i, j int) bool {
		a, b := p.Languages[i], p.Languages[j]
		if langs[a] != langs[b] {
			return langs[a] > langs[b]
		}
		return a < b
	})

	sort.SliceStable(own, func(i, j int) bool { return own[i].StargazersCount > own[j].StargazersCount })
	for i, r := range own {
		if i == 5 {
			break
		}
		p.TopRepos = append(p.TopRepos, repoSummary{
			Name:        r.Name,
			Description: r.Description,
			Language:    r.Language,
			Stars:       r.StargazersCount,
			Forks:       r.ForksCount,
		})
	}
}

// matchOrg picks the organization whose login or display name matches the
// company name, or whose blog is on the company domain.
func matchOrg(candidates []github.Account, name, domain string) string {
	want := squash(name)
	for _, c := range candidates {
		if squash(c.Login) == want || (c.Name != "" && squash(c.Name) == want) {
			return c.Login
		}
	}
	if domain != "" {
		for _, c := range candidates {
			if c.Blog != "" && strings.Contains(strings.ToLower(c.Blog), domain) {
				return c.Login
			}
		}
	}
	return ""
}

// squash lowercases s and drops everything but letters and digits.
func squash(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

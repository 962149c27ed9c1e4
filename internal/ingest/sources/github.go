package sources

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/lueurxax/signal-digest/internal/core/domain"
)

const (
	// DefaultGitHubAPIURL is the public REST endpoint.
	DefaultGitHubAPIURL = "https://api.github.com"

	maxReleases     = 10
	githubTag       = "release"
	acceptGitHub    = "application/vnd.github+json"
	githubRateBurst = 2
)

var errInvalidRepo = stderrors.New("feed url does not name an owner/repo")

// GitHubConfig configures the releases source.
type GitHubConfig struct {
	APIURL    string
	Token     string
	RateLimit float64 // Requests per second, <= 0 for unlimited
}

// GitHubSource lists the latest releases of a repository.
type GitHubSource struct {
	fetcher Fetcher
	apiURL  string
	token   string
	limiter *rate.Limiter
	now     func() time.Time
}

type githubRelease struct {
	Name        string `json:"name"`
	TagName     string `json:"tag_name"`
	HTMLURL     string `json:"html_url"`
	Body        string `json:"body"`
	PublishedAt string `json:"published_at"`
}

// NewGitHubSource creates a releases source.
func NewGitHubSource(fetcher Fetcher, cfg GitHubConfig) *GitHubSource {
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = DefaultGitHubAPIURL
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	return &GitHubSource{
		fetcher: fetcher,
		apiURL:  apiURL,
		token:   cfg.Token,
		limiter: rate.NewLimiter(limit, githubRateBurst),
		now:     time.Now,
	}
}

// Type returns the feed type.
func (s *GitHubSource) Type() string {
	return TypeGitHubReleases
}

// Fetch requests the ten most recent releases.
func (s *GitHubSource) Fetch(ctx context.Context, feed Feed) ([]domain.Item, error) {
	owner, repo, err := ParseRepo(feed.URL)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("github rate limiter: %w", err)
	}

	endpoint := fmt.Sprintf("%s/repos/%s/%s/releases?per_page=%d", s.apiURL, owner, repo, maxReleases)

	headers := http.Header{"Accept": []string{acceptGitHub}}
	if s.token != "" {
		headers.Set("Authorization", "Bearer "+s.token)
	}

	body, err := s.fetcher.FetchWithHeaders(ctx, endpoint, headers)
	if err != nil {
		return nil, err
	}

	var releases []githubRelease
	if err := json.Unmarshal(body, &releases); err != nil {
		return nil, fmt.Errorf("decode releases: %w", err)
	}

	if len(releases) > maxReleases {
		releases = releases[:maxReleases]
	}

	now := s.now()
	items := make([]domain.Item, 0, len(releases))

	for _, rel := range releases {
		title := rel.Name
		if title == "" {
			title = rel.TagName
		}

		items = append(items, CreateItem(Entry{
			Title:     title,
			URL:       rel.HTMLURL,
			Summary:   rel.Body,
			Published: rel.PublishedAt,
			Tags:      []string{githubTag},
		}, feed.Name, now))
	}

	return items, nil
}

// ParseRepo extracts owner and repository from a repository URL or a bare
// "owner/repo" path.
func ParseRepo(raw string) (owner, repo string, err error) {
	path := strings.TrimSpace(raw)

	if strings.Contains(path, "://") {
		u, perr := url.Parse(path)
		if perr != nil {
			return "", "", fmt.Errorf("%w: %q", errInvalidRepo, raw)
		}

		path = u.Path
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q", errInvalidRepo, raw)
	}

	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}

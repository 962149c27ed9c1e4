// Package sources fetches feed entries from the supported feed types and
// normalizes them into items.
package sources

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/araddon/dateparse"
	"github.com/rs/zerolog"

	"github.com/lueurxax/signal-digest/internal/core/domain"
	"github.com/lueurxax/signal-digest/internal/core/errors"
	"github.com/lueurxax/signal-digest/internal/core/links"
)

// Feed types.
const (
	TypeRSS            = "rss"
	TypeGitHubReleases = "github_releases"
	TypeArxiv          = "arxiv"
)

const (
	// MaxSummaryChars caps the stored feed summary.
	MaxSummaryChars = 500

	logKeyFeed = "feed"
	logKeyType = "feed_type"
)

// Feed is one entry of the feeds file.
type Feed struct {
	Name string `json:"name"`
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Fetcher retrieves a URL body. links.WebFetcher implements it.
type Fetcher interface {
	FetchWithHeaders(ctx context.Context, rawURL string, headers http.Header) ([]byte, error)
}

// Source turns one feed into items.
type Source interface {
	Type() string
	Fetch(ctx context.Context, feed Feed) ([]domain.Item, error)
}

// Registry maps feed types to sources.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
	logger  *zerolog.Logger
}

// NewRegistry creates a registry holding the given sources.
func NewRegistry(logger *zerolog.Logger, srcs ...Source) *Registry {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	r := &Registry{sources: make(map[string]Source), logger: logger}
	for _, s := range srcs {
		r.Register(s)
	}

	return r
}

// Register adds or replaces the source for its feed type.
func (r *Registry) Register(s Source) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sources[s.Type()] = s

	r.logger.Debug().Str(logKeyType, s.Type()).Msg("registered feed source")
}

// Types returns the registered feed types in lexical order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.sources))
	for t := range r.sources {
		types = append(types, t)
	}

	sort.Strings(types)

	return types
}

// Fetch dispatches the feed to the source registered for its type.
func (r *Registry) Fetch(ctx context.Context, feed Feed) ([]domain.Item, error) {
	r.mu.RLock()
	s, ok := r.sources[feed.Type]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownFeedType, feed.Type)
	}

	items, err := s.Fetch(ctx, feed)
	if err != nil {
		return nil, fmt.Errorf("fetch %s feed %q: %w", feed.Type, feed.Name, err)
	}

	return items, nil
}

// Entry is the raw data a source extracted for one item.
type Entry struct {
	Title     string
	URL       string
	Summary   string
	Published string
	Tags      []string
}

// CreateItem normalizes an entry: the summary is capped at MaxSummaryChars
// runes, the published time is parsed (now when missing or unparsable) and the
// domain is derived from the URL.
func CreateItem(e Entry, source string, now time.Time) domain.Item {
	published, ok := ParsePublished(e.Published)
	if !ok {
		published = now.UTC()
	}

	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}

	return domain.Item{
		Title:     e.Title,
		URL:       e.URL,
		Summary:   clipRunes(e.Summary, MaxSummaryChars),
		Published: published,
		Tags:      tags,
		Source:    source,
		Domain:    links.DomainOf(e.URL),
	}
}

// ParsePublished parses a feed or API timestamp. Values without a zone are
// taken as UTC. It reports false for empty or unparsable input.
func ParsePublished(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}

	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t, true
	}

	t, err := dateparse.ParseIn(v, time.UTC)
	if err != nil {
		return time.Time{}, false
	}

	return t, true
}

func clipRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}

	return string(runes[:limit])
}

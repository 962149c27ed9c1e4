package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/lueurxax/signal-digest/internal/core/domain"
	"github.com/lueurxax/signal-digest/internal/platform/htmlutils"
)

const (
	// DefaultArxivURL is the arXiv export API query endpoint.
	DefaultArxivURL = "https://export.arxiv.org/api/query"

	// DefaultArxivMaxResults is the page size requested per feed.
	DefaultArxivMaxResults = 25

	arxivTag    = "arxiv"
	acceptAtom  = "application/atom+xml"
	httpPrefix  = "http://"
	httpsPrefix = "https://"
)

// ArxivSource searches the arXiv export API. The feed url is the search query;
// a full http(s) URL is fetched as is.
type ArxivSource struct {
	fetcher    Fetcher
	baseURL    string
	maxResults int
	now        func() time.Time
}

// NewArxivSource creates an arXiv source.
func NewArxivSource(fetcher Fetcher, baseURL string, maxResults int) *ArxivSource {
	if baseURL == "" {
		baseURL = DefaultArxivURL
	}

	if maxResults <= 0 {
		maxResults = DefaultArxivMaxResults
	}

	return &ArxivSource{fetcher: fetcher, baseURL: baseURL, maxResults: maxResults, now: time.Now}
}

// Type returns the feed type.
func (s *ArxivSource) Type() string {
	return TypeArxiv
}

// Fetch runs the query and parses the Atom response.
func (s *ArxivSource) Fetch(ctx context.Context, feed Feed) ([]domain.Item, error) {
	body, err := s.fetcher.FetchWithHeaders(ctx, s.QueryURL(feed.URL), http.Header{"Accept": []string{acceptAtom}})
	if err != nil {
		return nil, err
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse arxiv response: %w", err)
	}

	// arXiv wraps titles and abstracts over several lines.
	for _, e := range parsed.Items {
		e.Title = htmlutils.CollapseWhitespace(e.Title)
		e.Description = htmlutils.CollapseWhitespace(e.Description)
	}

	return feedItems(parsed, feed.Name, []string{arxivTag}, s.maxResults, s.now()), nil
}

// QueryURL returns the request URL for a feed query.
func (s *ArxivSource) QueryURL(query string) string {
	query = strings.TrimSpace(query)
	if strings.HasPrefix(query, httpPrefix) || strings.HasPrefix(query, httpsPrefix) {
		return query
	}

	params := url.Values{}
	params.Set("search_query", query)
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(s.maxResults))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")

	return s.baseURL + "?" + params.Encode()
}

package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/lueurxax/signal-digest/internal/core/domain"
)

const acceptFeed = "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8"

// RSSSource reads RSS and Atom web feeds.
type RSSSource struct {
	fetcher Fetcher
	limit   int
	now     func() time.Time
}

// NewRSSSource creates an RSS source. limit <= 0 keeps every entry.
func NewRSSSource(fetcher Fetcher, limit int) *RSSSource {
	return &RSSSource{fetcher: fetcher, limit: limit, now: time.Now}
}

// Type returns the feed type.
func (s *RSSSource) Type() string {
	return TypeRSS
}

// Fetch downloads and parses the feed.
func (s *RSSSource) Fetch(ctx context.Context, feed Feed) ([]domain.Item, error) {
	body, err := s.fetcher.FetchWithHeaders(ctx, feed.URL, http.Header{"Accept": []string{acceptFeed}})
	if err != nil {
		return nil, err
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	return feedItems(parsed, feed.Name, nil, s.limit, s.now()), nil
}

// feedItems converts parsed feed entries. Shared with the arXiv source.
func feedItems(parsed *gofeed.Feed, source string, tags []string, limit int, now time.Time) []domain.Item {
	entries := parsed.Items
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	items := make([]domain.Item, 0, len(entries))

	for _, e := range entries {
		items = append(items, CreateItem(Entry{
			Title:     e.Title,
			URL:       e.Link,
			Summary:   entrySummary(e),
			Published: entryPublished(e),
			Tags:      append([]string(nil), tags...),
		}, source, now))
	}

	return items
}

func entrySummary(e *gofeed.Item) string {
	if e.Description != "" {
		return e.Description
	}

	return e.Content
}

func entryPublished(e *gofeed.Item) string {
	switch {
	case e.PublishedParsed != nil:
		return e.PublishedParsed.Format(time.RFC3339)
	case e.Published != "":
		return e.Published
	case e.UpdatedParsed != nil:
		return e.UpdatedParsed.Format(time.RFC3339)
	default:
		return e.Updated
	}
}

// Package ingest fetches every configured feed, drops items already in the
// store and persists the new ones.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/signal-digest/internal/core/domain"
	"github.com/lueurxax/signal-digest/internal/core/errors"
	"github.com/lueurxax/signal-digest/internal/core/links"
	"github.com/lueurxax/signal-digest/internal/ingest/sources"
	"github.com/lueurxax/signal-digest/internal/platform/observability"
	"github.com/lueurxax/signal-digest/internal/platform/worker"
	"github.com/lueurxax/signal-digest/internal/process/dedup"
	"github.com/lueurxax/signal-digest/internal/storage"
)

const (
	logKeyFeed     = "feed"
	logKeyFeedType = "feed_type"
	logKeyCount    = "count"
	logKeyNew      = "new"
	logKeyFailed   = "failed"

	poolName = "ingest"
)

// Fetcher dispatches a feed to its source. sources.Registry implements it.
type Fetcher interface {
	Fetch(ctx context.Context, feed sources.Feed) ([]domain.Item, error)
}

// PageFetcher downloads article pages for summary enrichment.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// Config tunes the ingest run.
type Config struct {
	FeedsPath string
	Workers   int
	Timeout   time.Duration
	// EnrichEmptySummaries fills empty feed summaries from the article page.
	EnrichEmptySummaries bool
}

// Result reports the store after the run and the items it added.
type Result struct {
	All         []domain.Item
	New         []domain.Item
	FailedFeeds int
}

// Service runs ingestion.
type Service struct {
	cfg     Config
	json    *storage.JSONStore
	items   *storage.ItemStore
	fetcher Fetcher
	pages   PageFetcher
	logger  *zerolog.Logger
}

// New creates an ingest service. pages may be nil when enrichment is off.
func New(cfg Config, json *storage.JSONStore, items *storage.ItemStore, fetcher Fetcher, pages PageFetcher, logger *zerolog.Logger) *Service {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Service{cfg: cfg, json: json, items: items, fetcher: fetcher, pages: pages, logger: logger}
}

// LoadFeeds reads the feeds file. A missing file yields no feeds.
func (s *Service) LoadFeeds() ([]sources.Feed, error) {
	var feeds []sources.Feed

	found, err := s.json.Load(s.cfg.FeedsPath, &feeds)
	if err != nil {
		return nil, fmt.Errorf("load feeds: %w", err)
	}

	if !found {
		s.logger.Warn().Str("path", s.cfg.FeedsPath).Msg("feeds file not found, nothing to fetch")
	}

	return feeds, nil
}

// Run fetches all feeds concurrently, deduplicates against the store and
// saves the store with the new items appended.
func (s *Service) Run(ctx context.Context) (Result, error) {
	feeds, err := s.LoadFeeds()
	if err != nil {
		return Result{}, err
	}

	stored, err := s.items.Load()
	if err != nil {
		return Result{}, fmt.Errorf("load store: %w", err)
	}

	fetched, failed, err := s.fetchAll(ctx, feeds)
	if err != nil {
		return Result{}, err
	}

	seen := dedup.NewSet(stored)

	var fresh []domain.Item

	for _, batch := range fetched {
		for _, item := range batch {
			item.URL = links.CanonicalizeURL(item.URL)
			item.Hash = links.HashURL(item.URL)

			if item.Domain == "" {
				item.Domain = links.DomainOf(item.URL)
			}

			if seen.Add(item.Hash) {
				fresh = append(fresh, item)
			}
		}
	}

	if s.cfg.EnrichEmptySummaries && s.pages != nil {
		s.enrich(ctx, fresh)
	}

	all := make([]domain.Item, 0, len(stored)+len(fresh))
	all = append(all, stored...)
	all = append(all, fresh...)

	if err := s.items.Save(all); err != nil {
		return Result{}, fmt.Errorf("save store: %w", err)
	}

	observability.ItemsIngested.Add(float64(len(fresh)))

	s.logger.Info().
		Int("feeds", len(feeds)).
		Int(logKeyFailed, failed).
		Int(logKeyNew, len(fresh)).
		Int("total", len(all)).
		Msg("ingest complete")

	return Result{All: all, New: fresh, FailedFeeds: failed}, nil
}

// fetchAll returns one batch per feed in feed order.
func (s *Service) fetchAll(ctx context.Context, feeds []sources.Feed) ([][]domain.Item, int, error) {
	batches := make([][]domain.Item, len(feeds))
	tasks := make([]worker.Task, 0, len(feeds))

	for i, feed := range feeds {
		tasks = append(tasks, worker.Task{
			Name: feed.Name,
			Run: func(ctx context.Context) error {
				items, err := s.fetchFeed(ctx, feed)
				if err != nil {
					return err
				}

				batches[i] = items

				return nil
			},
		})
	}

	failed, err := worker.NewPool(poolName, s.cfg.Workers, s.logger).Run(ctx, tasks)
	if err != nil {
		return nil, failed, err
	}

	return batches, failed, nil
}

func (s *Service) fetchFeed(ctx context.Context, feed sources.Feed) ([]domain.Item, error) {
	start := time.Now()

	var items []domain.Item

	err := worker.RunWithTimeout(ctx, s.cfg.Timeout, func(ctx context.Context) error {
		var ferr error
		items, ferr = s.fetcher.Fetch(ctx, feed)

		return ferr
	})

	observability.FeedFetchDuration.WithLabelValues(feed.Type).Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, errors.ErrUnknownFeedType) {
			s.logger.Warn().Str(logKeyFeed, feed.Name).Str(logKeyFeedType, feed.Type).Msg("unknown feed type")
		} else {
			observability.FeedFetchErrors.WithLabelValues(feed.Type).Inc()
		}

		return nil, err
	}

	observability.ItemsFetched.WithLabelValues(feed.Type).Add(float64(len(items)))

	s.logger.Debug().
		Str(logKeyFeed, feed.Name).
		Str(logKeyFeedType, feed.Type).
		Int(logKeyCount, len(items)).
		Msg("feed fetched")

	return items, nil
}

// enrich fills empty summaries from the readable text of the article page.
// Failures leave the summary empty.
func (s *Service) enrich(ctx context.Context, items []domain.Item) {
	var tasks []worker.Task

	for i := range items {
		if strings.TrimSpace(items[i].Summary) != "" || items[i].URL == "" {
			continue
		}

		tasks = append(tasks, worker.Task{
			Name: items[i].URL,
			Run: func(ctx context.Context) error {
				return worker.RunWithTimeout(ctx, s.cfg.Timeout, func(ctx context.Context) error {
					body, err := s.pages.Fetch(ctx, items[i].URL)
					if err != nil {
						return fmt.Errorf("fetch page: %w", err)
					}

					article, err := links.ReadArticle(body, items[i].URL)
					if err != nil {
						return fmt.Errorf("read article: %w", err)
					}

					items[i].Summary = article.Summary(sources.MaxSummaryChars)

					return nil
				})
			},
		})
	}

	if len(tasks) == 0 {
		return
	}

	failed, err := worker.NewPool(poolName+"-enrich", s.cfg.Workers, s.logger).Run(ctx, tasks)
	if err != nil {
		s.logger.Warn().Err(err).Msg("summary enrichment interrupted")
	}

	s.logger.Info().Int(logKeyCount, len(tasks)).Int(logKeyFailed, failed).Msg("enriched empty summaries")
}

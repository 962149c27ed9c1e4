package storage

import (
	"fmt"
	"time"

	"github.com/araddon/dateparse"

	"github.com/lueurxax/signal-digest/internal/core/domain"
	"github.com/lueurxax/signal-digest/internal/core/links"
)

// storedItem mirrors domain.Item with a lenient published field so stores
// written by older deployments (naive ISO timestamps, missing domain) load.
type storedItem struct {
	Title     string   `json:"title"`
	URL       string   `json:"url"`
	Summary   string   `json:"summary"`
	Published string   `json:"published"`
	Tags      []string `json:"tags"`
	Source    string   `json:"source"`
	Hash      string   `json:"hash,omitempty"`
	Domain    string   `json:"domain"`
	Signal    *float64 `json:"signal,omitempty"`
}

// ItemStore is the persistent list of every item ever ingested.
type ItemStore struct {
	path  string
	store *JSONStore
}

// NewItemStore binds an item store to a JSON file.
func NewItemStore(path string, store *JSONStore) *ItemStore {
	return &ItemStore{path: path, store: store}
}

// Path returns the backing file.
func (s *ItemStore) Path() string {
	return s.path
}

// Load returns all stored items. A missing file is an empty store. Items
// without a domain get it derived from their URL, and an unparseable
// published time is logged and left zero.
func (s *ItemStore) Load() ([]domain.Item, error) {
	var rows []storedItem

	if _, err := s.store.Load(s.path, &rows); err != nil {
		return nil, err
	}

	items := make([]domain.Item, 0, len(rows))

	for i, r := range rows {
		published, err := parseStoredTime(r.Published)
		if err != nil {
			s.store.logger.Warn().Err(err).Int("row", i).Str("url", r.URL).Msg("stored item has unparseable published time")
		}

		d := r.Domain
		if d == "" && r.URL != "" {
			d = links.DomainOf(r.URL)
		}

		items = append(items, domain.Item{
			Title:     r.Title,
			URL:       r.URL,
			Summary:   r.Summary,
			Published: published,
			Tags:      r.Tags,
			Source:    r.Source,
			Hash:      r.Hash,
			Domain:    d,
			Signal:    r.Signal,
		})
	}

	return items, nil
}

// Save replaces the stored list.
func (s *ItemStore) Save(items []domain.Item) error {
	if items == nil {
		items = []domain.Item{}
	}

	return s.store.Save(s.path, items)
}

func parseStoredTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}

	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t, nil
	}

	t, err := dateparse.ParseIn(v, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse published %q: %w", v, err)
	}

	return t, nil
}

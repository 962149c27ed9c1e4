// Package dedup drops items whose canonical URL hash was already seen.
package dedup

import (
	"github.com/rs/zerolog"

	"github.com/lueurxax/signal-digest/internal/core/domain"
)

// Log key constants for deduplication.
const (
	logKeySkippedURL = "skipped_url"
	logKeyHash       = "hash"
)

// Set tracks item hashes that are already persisted or accepted.
type Set struct {
	seen map[string]struct{}
}

// NewSet seeds a set with the hashes of existing items. Items with an
// empty hash are ignored.
func NewSet(existing []domain.Item) *Set {
	s := &Set{seen: make(map[string]struct{}, len(existing))}

	for _, it := range existing {
		if it.Hash != "" {
			s.seen[it.Hash] = struct{}{}
		}
	}

	return s
}

// Add records the hash and reports whether it was new.
func (s *Set) Add(hash string) bool {
	if _, ok := s.seen[hash]; ok {
		return false
	}

	s.seen[hash] = struct{}{}

	return true
}

// Contains reports whether the hash was seen.
func (s *Set) Contains(hash string) bool {
	_, ok := s.seen[hash]
	return ok
}

// Len returns the number of distinct hashes.
func (s *Set) Len() int {
	return len(s.seen)
}

// Filter returns the items whose hash is not in the set yet, in input order,
// and adds their hashes. Later duplicates within the batch are dropped too.
func (s *Set) Filter(items []domain.Item, logger *zerolog.Logger) []domain.Item {
	result := make([]domain.Item, 0, len(items))

	for _, item := range items {
		if !s.Add(item.Hash) {
			if logger != nil {
				logger.Debug().
					Str(logKeySkippedURL, item.URL).
					Str(logKeyHash, item.Hash).
					Msg("Skipping duplicate item")
			}

			continue
		}

		result = append(result, item)
	}

	return result
}

package storage

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/signal-digest/internal/core/domain"
)

type doc struct {
	Version int `json:"version"`
}

func TestJSONStore_LoadMissing(t *testing.T) {
	s := NewJSONStore(DefaultBackups, nil)

	var d doc

	found, err := s.Load(filepath.Join(t.TempDir(), "missing.json"), &d)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestJSONStore_LoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	var d doc

	_, err := NewJSONStore(0, nil).Load(path, &d)
	require.Error(t, err)
}

func TestJSONStore_SaveRotatesBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "store.json")
	s := NewJSONStore(3, nil)

	for v := 1; v <= 5; v++ {
		require.NoError(t, s.Save(path, doc{Version: v}))
	}

	var current doc

	found, err := s.Load(path, &current)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 5, current.Version)

	// newest backup first: bak0=4, bak1=3, bak2=2; version 1 rotated out
	for i, want := range []int{4, 3, 2} {
		var b doc

		found, err := s.Load(fmt.Sprintf("%s.bak%d", path, i), &b)
		require.NoError(t, err)
		require.True(t, found, "bak%d missing", i)
		assert.Equal(t, want, b.Version, "bak%d", i)
	}

	_, err = os.Stat(path + ".bak3")
	assert.True(t, os.IsNotExist(err))

	_, err = os.Stat(path + tmpSuffix)
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")
}

func TestJSONStore_NoRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	s := NewJSONStore(0, nil)

	require.NoError(t, s.Save(path, doc{Version: 1}))
	require.NoError(t, s.Save(path, doc{Version: 2}))

	_, err := os.Stat(path + ".bak0")
	assert.True(t, os.IsNotExist(err))
}

func TestItemStore_RoundTripAndBackfill(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.json")
	legacy := `[
  {"title": "Old", "url": "https://www.openai.com/blog/x", "summary": "s",
   "published": "2024-05-01T10:00:00", "tags": [], "source": "OpenAI", "hash": "h1"}
]`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o600))

	store := NewItemStore(path, NewJSONStore(DefaultBackups, nil))

	items, err := store.Load()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "openai.com", items[0].Domain)
	assert.True(t, items[0].Published.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))

	items = append(items, domain.Item{
		Title:     "Новое",
		URL:       "https://github.com/a/b",
		Published: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Source:    "GitHub",
		Hash:      "h2",
		Domain:    "github.com",
	})
	require.NoError(t, store.Save(items))

	reloaded, err := store.Load()
	require.NoError(t, err)
	require.Len(t, reloaded, 2)
	assert.Equal(t, "Новое", reloaded[1].Title)
	assert.True(t, reloaded[1].Published.Equal(items[1].Published))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Новое", "non-ASCII text is written verbatim")
}

func TestItemStore_LoadMissingFile(t *testing.T) {
	store := NewItemStore(filepath.Join(t.TempDir(), "none.json"), NewJSONStore(DefaultBackups, nil))

	items, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestItemStore_UnparseablePublishedKeepsLoading(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.json")
	rows := `[
  {"title": "Good", "url": "https://a.com/1", "published": "2025-01-02T03:04:05Z", "source": "a", "domain": "a.com"},
  {"title": "Vague", "url": "https://b.com/1", "published": "yesterday-ish", "source": "b", "domain": "b.com"}
]`
	require.NoError(t, os.WriteFile(path, []byte(rows), 0o600))

	var buf bytes.Buffer

	logger := zerolog.New(&buf)

	items, err := NewItemStore(path, NewJSONStore(DefaultBackups, &logger)).Load()
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.True(t, items[0].Published.Equal(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)))
	assert.Equal(t, "Vague", items[1].Title)
	assert.True(t, items[1].Published.IsZero())

	assert.Contains(t, buf.String(), "https://b.com/1")
	assert.Contains(t, buf.String(), `"row":1`)
}

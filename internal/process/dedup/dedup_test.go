package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lueurxax/signal-digest/internal/core/domain"
)

func TestSet_Filter(t *testing.T) {
	existing := []domain.Item{{Hash: "a"}, {Hash: ""}}
	s := NewSet(existing)

	assert.Equal(t, 1, s.Len())

	got := s.Filter([]domain.Item{
		{Hash: "a", URL: "dup of store"},
		{Hash: "b", URL: "new"},
		{Hash: "b", URL: "dup in batch"},
		{Hash: "c", URL: "new too"},
	}, nil)

	assert.Len(t, got, 2)
	assert.Equal(t, "new", got[0].URL)
	assert.Equal(t, "new too", got[1].URL)
	assert.True(t, s.Contains("c"))
	assert.Equal(t, 3, s.Len())
}

func TestSet_Add(t *testing.T) {
	s := NewSet(nil)

	assert.True(t, s.Add("x"))
	assert.False(t, s.Add("x"))
}

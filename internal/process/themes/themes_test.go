package themes

import (
	"context"
	stderrors "errors"
	"maps"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/signal-digest/internal/core/domain"
	"github.com/lueurxax/signal-digest/internal/core/embeddings"
)

func TestDetect(t *testing.T) {
	items := []domain.Item{
		{Title: "New AGENT framework", Summary: "tool use"},
		{Title: "Cutting latency", Summary: "with speculative decoding"},
		{Title: "Unrelated", Summary: "gardening tips"},
	}

	got := Detect(items)

	assert.Len(t, got, len(KeywordThemes))
	assert.True(t, got["Agents & Orchestration"])
	assert.True(t, got["Model Efficiency (Pruning/Distill/Latency)"])
	assert.False(t, got["Evaluation & QA"])
	assert.False(t, got["Multimodal & VLM"])
	assert.False(t, got["Safety & Alignment"])

	assert.Equal(t, []string{"Agents & Orchestration", "Model Efficiency (Pruning/Distill/Latency)"}, DetectedNames(got))
}

func TestDetectEmpty(t *testing.T) {
	got := Detect(nil)

	for _, th := range KeywordThemes {
		assert.False(t, got[th.Name])
	}

	assert.Empty(t, DetectedNames(got))
}

func TestKMeansSeparatesGroups(t *testing.T) {
	vecs := [][]float64{
		{0, 0}, {0.1, 0}, {0, 0.1},
		{10, 10}, {10.1, 10}, {10, 10.1},
	}

	labels := KMeans(vecs, 2, 10, DefaultSeed)

	assert.Equal(t, labels[0], labels[1])
	assert.Equal(t, labels[0], labels[2])
	assert.Equal(t, labels[3], labels[4])
	assert.Equal(t, labels[3], labels[5])
	assert.NotEqual(t, labels[0], labels[3])
	assert.Equal(t, 0, labels[0], "first vector seeds the first centre")

	assert.Greater(t, Silhouette(vecs, labels, 2), 0.9)
}

func TestKMeansDeterministic(t *testing.T) {
	vecs := [][]float64{{1, 0}, {0, 1}, {1, 1}, {0.5, 0.2}, {0.9, 0.8}, {0.1, 0.9}}

	first := KMeans(vecs, 3, 10, 7)
	for range 5 {
		assert.Equal(t, first, KMeans(vecs, 3, 10, 7))
	}
}

func TestKMeansTrivial(t *testing.T) {
	assert.Empty(t, KMeans(nil, 3, 10, 1))
	assert.Equal(t, []int{0, 0, 0}, KMeans([][]float64{{1}, {2}, {3}}, 1, 10, 1))
}

func TestSilhouetteEdgeCases(t *testing.T) {
	tests := []struct {
		name   string
		vecs   [][]float64
		labels []int
		k      int
		want   float64
	}{
		{name: "single cluster", vecs: [][]float64{{0}, {1}}, labels: []int{0, 0}, k: 1, want: 0},
		{name: "single point", vecs: [][]float64{{0}}, labels: []int{0}, k: 2, want: 0},
		{name: "identical points", vecs: [][]float64{{1}, {1}}, labels: []int{0, 1}, k: 2, want: 0},
		{name: "singletons", vecs: [][]float64{{0}, {4}}, labels: []int{0, 1}, k: 2, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Silhouette(tt.vecs, tt.labels, tt.k), 1e-9)
		})
	}
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Open weights", Label("  Open   weights model released"))
	assert.Equal(t, "Solo", Label("Solo"))
	assert.Empty(t, Label(""))
}

type staticEmbedder struct {
	vecs  map[string][]float64
	calls int
	err   error
}

func (s *staticEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	s.calls++

	if s.err != nil {
		return nil, s.err
	}

	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = s.vecs[text]
	}

	return out, nil
}

func clusterItems() ([]domain.Item, *staticEmbedder) {
	items := []domain.Item{
		{Title: "Agent tooling update", Summary: "a"},
		{Title: "Agent planner notes", Summary: "b"},
		{Title: "Vision encoder paper", Summary: "c"},
		{Title: "Vision benchmark results", Summary: "d"},
	}

	emb := &staticEmbedder{vecs: map[string][]float64{
		items[0].Text(): {1, 0},
		items[1].Text(): {0.95, 0.05},
		items[2].Text(): {0, 1},
		items[3].Text(): {0.05, 0.95},
	}}

	return items, emb
}

func TestClusterGroupsSimilarItems(t *testing.T) {
	items, emb := clusterItems()
	c := NewClusterer(emb, DefaultSeed, 0, nil)

	got, err := c.Cluster(context.Background(), items, 2, 2)
	require.NoError(t, err)

	require.Len(t, got, 2)
	require.Contains(t, got, "Agent tooling")
	require.Contains(t, got, "Vision encoder")
	assert.Len(t, got["Agent tooling"], 2)
	assert.Len(t, got["Vision encoder"], 2)
}

func TestClusterPartitionsItems(t *testing.T) {
	items := []domain.Item{
		{Title: "alpha one", Summary: "retrieval augmented generation"},
		{Title: "beta two", Summary: "retrieval augmented search"},
		{Title: "gamma three", Summary: "robot arm control"},
		{Title: "delta four", Summary: "robot gripper control"},
		{Title: "epsilon five", Summary: "protein folding"},
	}

	c := NewClusterer(embeddings.NewHashedEmbedder(0), DefaultSeed, 10, nil)

	first, err := c.Cluster(context.Background(), items, 2, 4)
	require.NoError(t, err)

	total := 0
	for label, members := range first {
		assert.NotEmpty(t, label)
		assert.NotEmpty(t, members)
		total += len(members)
	}

	assert.Equal(t, len(items), total)

	second, err := c.Cluster(context.Background(), items, 2, 4)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestClusterEmptyInput(t *testing.T) {
	emb := &staticEmbedder{}
	c := NewClusterer(emb, DefaultSeed, 10, nil)

	got, err := c.Cluster(context.Background(), nil, 2, 6)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, emb.calls)
}

func TestClusterPrefersSmallerKOnTie(t *testing.T) {
	items := []domain.Item{{Title: "same a"}, {Title: "same b"}, {Title: "same c"}}
	emb := &staticEmbedder{vecs: map[string][]float64{
		items[0].Text(): {1, 1},
		items[1].Text(): {1, 1},
		items[2].Text(): {1, 1},
	}}

	got, err := NewClusterer(emb, DefaultSeed, 10, nil).Cluster(context.Background(), items, 2, 3)
	require.NoError(t, err)

	total := 0
	for _, members := range got {
		total += len(members)
	}

	assert.Equal(t, len(items), total)
	assert.Len(t, got, 1)
}

func TestClusterSingleItemKeepsOneGroup(t *testing.T) {
	items := []domain.Item{{Title: "Only entry here", Summary: "x"}}
	c := NewClusterer(embeddings.NewHashedEmbedder(0), DefaultSeed, 10, nil)

	got, err := c.Cluster(context.Background(), items, 2, 6)
	require.NoError(t, err)
	assert.Equal(t, map[string][]domain.Item{"Only entry": items}, got)
}

func TestClusterEmbedError(t *testing.T) {
	items, emb := clusterItems()
	emb.err = stderrors.New("boom")

	_, err := NewClusterer(emb, DefaultSeed, 10, nil).Cluster(context.Background(), items, 2, 4)
	require.Error(t, err)
	assert.ErrorIs(t, err, emb.err)
}

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func TestCacheRefreshInterval(t *testing.T) {
	items, emb := clusterItems()
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	cache := NewClusterCache(NewClusterer(emb, DefaultSeed, 10, nil), 2, 4, clock.Now)
	ctx := context.Background()

	first, err := cache.Refresh(ctx, items, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, emb.calls)

	clock.now = clock.now.Add(30 * time.Minute)
	second, err := cache.Refresh(ctx, items, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, emb.calls, "within interval serves cached clusters")
	assert.Equal(t, first, second)

	clock.now = clock.now.Add(31 * time.Minute)
	_, err = cache.Refresh(ctx, items, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, emb.calls)

	_, err = cache.Refresh(ctx, items, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, emb.calls, "zero interval forces recomputation")

	assert.Equal(t, first, cache.Clusters())
}

func TestCacheKeepsPreviousOnError(t *testing.T) {
	calls := 0
	errCompute := stderrors.New("embed down")
	want := map[string][]domain.Item{"a b": {{Title: "a b"}}}

	cache := NewCache(func(context.Context, []domain.Item) (map[string][]domain.Item, error) {
		calls++
		if calls > 1 {
			return nil, errCompute
		}

		return want, nil
	}, nil)

	_, err := cache.Refresh(context.Background(), nil, 0)
	require.NoError(t, err)

	_, err = cache.Refresh(context.Background(), nil, 0)
	require.ErrorIs(t, err, errCompute)
	assert.Equal(t, want, cache.Clusters())
}

func TestCacheResultsAreCopies(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	calls := 0

	cache := NewCache(func(context.Context, []domain.Item) (map[string][]domain.Item, error) {
		calls++

		return map[string][]domain.Item{"a b": {{Title: "a b"}}}, nil
	}, clock.Now)

	got, err := cache.Refresh(context.Background(), nil, time.Hour)
	require.NoError(t, err)

	delete(got, "a b")
	got["injected"] = nil

	snapshot := cache.Clusters()
	snapshot["other"] = nil

	hit, err := cache.Refresh(context.Background(), nil, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"a b"}, slices.Sorted(maps.Keys(hit)))
	assert.Equal(t, []string{"a b"}, slices.Sorted(maps.Keys(cache.Clusters())))

	clock.now = clock.now.Add(time.Hour)
	_, err = cache.Refresh(context.Background(), nil, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "recomputes once exactly interval has elapsed")
}

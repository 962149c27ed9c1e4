package themes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/signal-digest/internal/core/domain"
	"github.com/lueurxax/signal-digest/internal/core/embeddings"
	"github.com/lueurxax/signal-digest/internal/platform/observability"
)

// Clustering defaults.
const (
	DefaultKMin = 2
	DefaultKMax = 6
	DefaultSeed = 42

	labelTokens = 2
)

// Clusterer groups items by k-means over their embeddings.
type Clusterer struct {
	embedder embeddings.Embedder
	seed     uint64
	maxIter  int
	logger   *zerolog.Logger
}

// NewClusterer creates a clusterer. maxIter <= 0 uses DefaultMaxIterations.
func NewClusterer(embedder embeddings.Embedder, seed uint64, maxIter int, logger *zerolog.Logger) *Clusterer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	return &Clusterer{embedder: embedder, seed: seed, maxIter: maxIter, logger: logger}
}

// Cluster embeds items and keeps the k in [kMin, min(kMax, n)] with the
// strictly highest silhouette score, so ties go to the smaller k. Clusters are
// labelled by the first two title tokens of their first member.
func (c *Clusterer) Cluster(ctx context.Context, items []domain.Item, kMin, kMax int) (map[string][]domain.Item, error) {
	if len(items) == 0 {
		return map[string][]domain.Item{}, nil
	}

	start := time.Now()

	defer func() {
		observability.ClusteringDuration.Observe(time.Since(start).Seconds())
	}()

	texts := make([]string, len(items))
	for i, it := range items {
		texts[i] = it.Text()
	}

	vecs, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed items: %w", err)
	}

	if len(vecs) != len(items) {
		return nil, fmt.Errorf("embed items: got %d vectors for %d items", len(vecs), len(items))
	}

	bestK, bestScore := 1, -1.0
	bestLabels := make([]int, len(items))

	for k := kMin; k <= min(kMax, len(items)); k++ {
		labels := KMeans(vecs, k, c.maxIter, c.seed)

		score := Silhouette(vecs, labels, k)
		if score > bestScore {
			bestK, bestScore, bestLabels = k, score, labels
		}
	}

	clusters := groupByLabel(items, bestLabels, bestK)

	observability.ThemeClusters.Set(float64(len(clusters)))
	observability.ThemeSilhouette.Set(max(bestScore, 0))

	c.logger.Debug().
		Int("items", len(items)).
		Int("k", bestK).
		Float64("silhouette", bestScore).
		Int("clusters", len(clusters)).
		Msg("themes clustered")

	return clusters, nil
}

func groupByLabel(items []domain.Item, labels []int, k int) map[string][]domain.Item {
	members := make([][]domain.Item, max(k, 1))

	for i, it := range items {
		members[labels[i]] = append(members[labels[i]], it)
	}

	clusters := make(map[string][]domain.Item, len(members))

	for _, group := range members {
		if len(group) == 0 {
			continue
		}

		label := Label(group[0].Title)
		clusters[label] = append(clusters[label], group...)
	}

	return clusters
}

// Label returns the first two whitespace-separated tokens of a title.
func Label(title string) string {
	tokens := strings.Fields(title)
	if len(tokens) > labelTokens {
		tokens = tokens[:labelTokens]
	}

	return strings.Join(tokens, " ")
}

package embeddings

import (
	"context"
	"crypto/sha1" //nolint:gosec // token hashing, not a security boundary
	"encoding/binary"
	"math"
	"math/big"
	"strings"
)

// DefaultHashedDimensions is the vector size of the hashed embedder.
const DefaultHashedDimensions = 32

// HashedEmbedder is a deterministic bag-of-words embedder: every lower-cased
// whitespace token adds one to bucket sha1(token) mod dim, then the vector is
// L2-normalized. An all-zero vector is returned unchanged.
type HashedEmbedder struct {
	dim int
}

// NewHashedEmbedder creates a hashed embedder. Non-positive dims use the default.
func NewHashedEmbedder(dim int) *HashedEmbedder {
	if dim <= 0 {
		dim = DefaultHashedDimensions
	}

	return &HashedEmbedder{dim: dim}
}

// Name returns the provider identifier.
func (h *HashedEmbedder) Name() ProviderName {
	return ProviderHashed
}

// Model returns the model label used for metrics.
func (h *HashedEmbedder) Model() string {
	return "sha1-bow"
}

// IsAvailable always returns true.
func (h *HashedEmbedder) IsAvailable() bool {
	return true
}

// Priority returns the provider priority.
func (h *HashedEmbedder) Priority() int {
	return PriorityFallback
}

// Dimensions returns the vector size.
func (h *HashedEmbedder) Dimensions() int {
	return h.dim
}

// Embed never fails.
func (h *HashedEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))

	for i, text := range texts {
		out[i] = h.vector(text)
	}

	return out, nil
}

func (h *HashedEmbedder) vector(text string) []float64 {
	vec := make([]float64, h.dim)

	for _, tok := range strings.Fields(strings.ToLower(text)) {
		vec[h.bucket(tok)]++
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}

	norm = math.Sqrt(norm)
	if norm == 0 {
		norm = 1
	}

	for i := range vec {
		vec[i] /= norm
	}

	return vec
}

// bucket reduces the full 160-bit digest modulo dim. Power-of-two dims only
// need the low bits of the digest.
func (h *HashedEmbedder) bucket(tok string) int {
	sum := sha1.Sum([]byte(tok)) //nolint:gosec // see import

	if h.dim&(h.dim-1) == 0 {
		low := binary.BigEndian.Uint64(sum[len(sum)-8:])
		return int(low & uint64(h.dim-1))
	}

	n := new(big.Int).SetBytes(sum[:])

	return int(n.Mod(n, big.NewInt(int64(h.dim))).Int64())
}

// Package embeddings turns item text into vectors for theme clustering.
//
// Two providers exist: the OpenAI embeddings API and a deterministic hashed
// bag-of-words. The Registry tries them in priority order behind per-provider
// breakers, so clustering always gets vectors.
package embeddings

import (
	"context"
	"time"
)

// ProviderName identifies an embedding provider.
type ProviderName string

const (
	ProviderOpenAI ProviderName = "openai"
	ProviderHashed ProviderName = "hashed"
)

// Registry order: higher runs first.
const (
	PriorityPrimary  = 100
	PriorityFallback = 0
)

const (
	defaultCircuitThreshold = 5
	defaultCircuitReset     = time.Minute

	errRateLimiterFmt = "rate limiter: %w"
)

// Embedder maps texts to vectors, one per input in the same order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Provider is an Embedder that can sit in a Registry.
type Provider interface {
	Embedder
	Name() ProviderName
	// Model is the label used in metrics.
	Model() string
	// IsAvailable is false when the provider lacks configuration.
	IsAvailable() bool
	Priority() int
}

// CircuitBreakerConfig configures a Breaker: it opens after Threshold
// consecutive failures and lets a trial call through after ResetAfter.
type CircuitBreakerConfig struct {
	Threshold  int
	ResetAfter time.Duration
}

// DefaultCircuitBreakerConfig opens after five failures for one minute.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{Threshold: defaultCircuitThreshold, ResetAfter: defaultCircuitReset}
}

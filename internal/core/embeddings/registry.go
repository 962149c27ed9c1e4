package embeddings

import (
	"context"
	stderrors "errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/signal-digest/internal/core/errors"
	"github.com/lueurxax/signal-digest/internal/platform/observability"
)

// Registry errors.
var (
	ErrNoProvidersAvailable = stderrors.New("no embedding providers available")
	ErrAllProvidersFailed   = stderrors.New("all embedding providers failed")
)

const (
	logKeyProvider = "provider"

	statusSuccess = "success"
	statusError   = "error"
)

type entry struct {
	provider Provider
	breaker  *Breaker
}

// Registry is an Embedder that walks its providers from the highest priority
// down and returns the first usable result.
type Registry struct {
	mu      sync.RWMutex
	entries []entry
	logger  *zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zerolog.Logger) *Registry {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Registry{logger: logger}
}

// Register adds p, replacing a provider of the same name.
func (r *Registry) Register(p Provider, cfg CircuitBreakerConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = slices.DeleteFunc(r.entries, func(e entry) bool { return e.provider.Name() == p.Name() })
	r.entries = append(r.entries, entry{provider: p, breaker: NewBreaker(cfg, r.logger)})

	slices.SortStableFunc(r.entries, func(a, b entry) int {
		return b.provider.Priority() - a.provider.Priority()
	})

	r.logger.Info().
		Str(logKeyProvider, string(p.Name())).
		Int("priority", p.Priority()).
		Bool("available", p.IsAvailable()).
		Msg("registered embedding provider")
}

// ProviderNames lists providers in the order they are tried.
func (r *Registry) ProviderNames() []ProviderName {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]ProviderName, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.provider.Name()
	}

	return names
}

// Embed returns vectors from the first provider that answers with one vector
// per text. Providers behind an open breaker are skipped.
func (r *Registry) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	r.mu.RLock()
	entries := slices.Clone(r.entries)
	r.mu.RUnlock()

	var (
		errs    []error
		primary ProviderName
	)

	for _, e := range entries {
		if !e.provider.IsAvailable() {
			continue
		}

		if primary == "" {
			primary = e.provider.Name()
		}

		vectors, err := r.try(ctx, e, texts)
		if err != nil {
			errs = append(errs, err)

			if ctx.Err() != nil {
				break
			}

			continue
		}

		if name := e.provider.Name(); name != primary {
			observability.EmbeddingFallbacks.WithLabelValues(string(primary), string(name)).Inc()
			r.logger.Info().
				Str(logKeyProvider, string(name)).
				Str("from_provider", string(primary)).
				Msg("used fallback embedding provider")
		}

		return vectors, nil
	}

	if primary == "" {
		return nil, ErrNoProvidersAvailable
	}

	return nil, errors.Join(append([]error{ErrAllProvidersFailed}, errs...)...)
}

func (r *Registry) try(ctx context.Context, e entry, texts []string) ([][]float64, error) {
	name := string(e.provider.Name())

	if err := e.breaker.Allow(); err != nil {
		r.logger.Debug().Str(logKeyProvider, name).Msg("skipping embedding provider, circuit open")

		return nil, err
	}

	start := time.Now()
	vectors, err := e.provider.Embed(ctx, texts)
	observability.EmbeddingLatency.WithLabelValues(name, e.provider.Model()).Observe(time.Since(start).Seconds())

	if err == nil && len(vectors) != len(texts) {
		err = fmt.Errorf("%w: %d vectors for %d texts", errors.ErrEmptyResponse, len(vectors), len(texts))
	}

	if err != nil {
		e.breaker.Failure(name)
		observability.EmbeddingRequests.WithLabelValues(name, e.provider.Model(), statusError).Inc()
		r.logger.Warn().Err(err).Str(logKeyProvider, name).Msg("embedding provider failed, trying fallback")

		return nil, fmt.Errorf("%s: %w", name, err)
	}

	e.breaker.Success()
	observability.EmbeddingRequests.WithLabelValues(name, e.provider.Model(), statusSuccess).Inc()

	return vectors, nil
}

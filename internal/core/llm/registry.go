package llm

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/signal-digest/internal/core/embeddings"
	"github.com/lueurxax/signal-digest/internal/core/errors"
	"github.com/lueurxax/signal-digest/internal/platform/observability"
)

// Registry errors.
var (
	ErrNoProvidersAvailable = stderrors.New("no LLM providers available")
	ErrAllProvidersFailed   = stderrors.New("all LLM providers failed")
)

const (
	logKeyProvider = "provider"
	logKeyModel    = "model"
	logKeyTask     = "task"
	logKeyAttempt  = "attempt"

	statusSuccess = "success"
	statusError   = "error"

	// DefaultRetries is the number of attempts per provider.
	DefaultRetries = 2
)

// Registry tries providers in priority order with per-provider retries,
// circuit breakers and a shared response cache.
type Registry struct {
	mu              sync.RWMutex
	providers       map[ProviderName]Provider
	order           []ProviderName // Priority order (highest first)
	circuitBreakers map[ProviderName]*embeddings.Breaker
	cache           *Cache
	retries         int
	logger          *zerolog.Logger
}

// NewRegistry creates a provider registry. A nil cache disables caching.
func NewRegistry(cache *Cache, retries int, logger *zerolog.Logger) *Registry {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	if retries < 1 {
		retries = DefaultRetries
	}

	return &Registry{
		providers:       make(map[ProviderName]Provider),
		circuitBreakers: make(map[ProviderName]*embeddings.Breaker),
		cache:           cache,
		retries:         retries,
		logger:          logger,
	}
}

// Register adds a provider to the registry.
func (r *Registry) Register(p Provider, cfg embeddings.CircuitBreakerConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if _, exists := r.providers[name]; !exists {
		r.order = append(r.order, name)
	}

	r.providers[name] = p
	r.circuitBreakers[name] = embeddings.NewBreaker(cfg, r.logger)

	sort.SliceStable(r.order, func(i, j int) bool {
		return r.providers[r.order[i]].Priority() > r.providers[r.order[j]].Priority()
	})

	r.logger.Info().
		Str(logKeyProvider, string(name)).
		Int("priority", p.Priority()).
		Bool("available", p.IsAvailable()).
		Msg("registered LLM provider")
}

// ProviderCount returns the number of registered providers.
func (r *Registry) ProviderCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.providers)
}

// Chat returns the first non-empty response. Cached responses are returned
// without contacting any provider.
func (r *Registry) Chat(ctx context.Context, task Task, messages []Message) (string, error) {
	providers := r.activeProviders()
	if len(providers) == 0 {
		return "", ErrNoProvidersAvailable
	}

	key := Key(messages, map[string]any{"model": joinModels(providers)})
	if cached, ok := r.cache.Get(key); ok {
		observability.LLMCacheHits.Inc()

		return cached, nil
	}

	var errs []error

	for _, p := range providers {
		content, err := r.tryProvider(ctx, p, task, messages)
		if err == nil {
			r.cache.Set(key, content)

			return content, nil
		}

		errs = append(errs, err)

		if ctx.Err() != nil {
			break
		}
	}

	return "", errors.Join(append([]error{ErrAllProvidersFailed}, errs...)...)
}

func (r *Registry) tryProvider(ctx context.Context, p Provider, task Task, messages []Message) (string, error) {
	name := string(p.Name())
	cb := r.getCircuitBreaker(p.Name())

	var lastErr error

	for attempt := 1; attempt <= r.retries; attempt++ {
		if err := cb.Allow(); err != nil {
			r.logger.Debug().
				Str(logKeyProvider, name).
				Str(logKeyTask, string(task)).
				Msg("skipping provider - circuit breaker open")

			return "", err
		}

		start := time.Now()
		content, err := p.Chat(ctx, messages)
		observability.LLMRequestLatency.WithLabelValues(name, p.Model(), string(task)).Observe(time.Since(start).Seconds())

		if err == nil && strings.TrimSpace(content) == "" {
			err = errors.ErrEmptyResponse
		}

		if err == nil {
			cb.Success()
			observability.LLMRequests.WithLabelValues(name, p.Model(), string(task), statusSuccess).Inc()

			return content, nil
		}

		cb.Failure(name)
		observability.LLMRequests.WithLabelValues(name, p.Model(), string(task), statusError).Inc()

		lastErr = fmt.Errorf("%s attempt %d: %w", name, attempt, err)

		r.logger.Warn().
			Err(err).
			Str(logKeyProvider, name).
			Str(logKeyModel, p.Model()).
			Str(logKeyTask, string(task)).
			Int(logKeyAttempt, attempt).
			Msg("LLM provider failed")

		if ctx.Err() != nil {
			break
		}
	}

	return "", lastErr
}

func (r *Registry) activeProviders() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	active := make([]Provider, 0, len(r.order))

	for _, name := range r.order {
		if p := r.providers[name]; p.IsAvailable() {
			active = append(active, p)
		}
	}

	return active
}

func (r *Registry) getCircuitBreaker(name ProviderName) *embeddings.Breaker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.circuitBreakers[name]
}

func joinModels(providers []Provider) string {
	models := make([]string, len(providers))
	for i, p := range providers {
		models[i] = p.Model()
	}

	return strings.Join(models, "+")
}

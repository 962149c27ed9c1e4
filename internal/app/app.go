// Package app wires configuration into the digest components and exposes the
// operational modes:
//
//   - Run mode: produce one issue and exit
//   - Train mode: fit the ranking model on the interaction log
//   - Record mode: log a click or open for a stored item
//   - Schedule mode: produce issues on a cron schedule until stopped
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/signal-digest/internal/core/domain"
	"github.com/lueurxax/signal-digest/internal/core/embeddings"
	"github.com/lueurxax/signal-digest/internal/core/errors"
	"github.com/lueurxax/signal-digest/internal/core/links"
	"github.com/lueurxax/signal-digest/internal/core/llm"
	"github.com/lueurxax/signal-digest/internal/ingest"
	"github.com/lueurxax/signal-digest/internal/ingest/sources"
	"github.com/lueurxax/signal-digest/internal/output/digest"
	"github.com/lueurxax/signal-digest/internal/output/publish"
	"github.com/lueurxax/signal-digest/internal/platform/config"
	"github.com/lueurxax/signal-digest/internal/platform/observability"
	"github.com/lueurxax/signal-digest/internal/platform/schedule"
	"github.com/lueurxax/signal-digest/internal/process/pipeline"
	"github.com/lueurxax/signal-digest/internal/process/ranking"
	"github.com/lueurxax/signal-digest/internal/process/themes"
	"github.com/lueurxax/signal-digest/internal/storage"
)

const (
	llmAPIKeyMock   = "mock"
	logFieldBaseURL = "base_url"
	logFieldURL     = "url"
	logFieldEvent   = "event"

	modeTrain  = "train"
	modeRecord = "record"
)

// App holds the configuration shared by every mode.
type App struct {
	cfg    *config.Config
	style  config.StyleConfig
	logger *zerolog.Logger
}

// New loads the style file and creates an App.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	style, err := config.LoadStyle(cfg.StylePath)
	if err != nil {
		return nil, err
	}

	return &App{cfg: cfg, style: style, logger: logger}, nil
}

// RunDigest produces one issue.
func (a *App) RunDigest(ctx context.Context) error {
	p, err := a.buildPipeline()
	if err != nil {
		return err
	}

	res, err := p.Run(ctx)
	if err != nil {
		return err
	}

	a.logger.Info().Str("path", res.Path).Int("selected", len(res.Selected)).Msg("issue ready")

	return nil
}

// RunSchedule produces an issue on every activation of the configured cron
// schedule until ctx is canceled. Components are built once so caches persist
// between runs. With HEALTH_PORT set, health and metrics are served meanwhile
// and readiness fails while the last run failed.
func (a *App) RunSchedule(ctx context.Context) error {
	p, err := a.buildPipeline()
	if err != nil {
		return err
	}

	var (
		mu      sync.Mutex
		lastErr error
	)

	runner, err := schedule.NewRunner(a.cfg.Schedule, a.cfg.ScheduleTimezone, func(ctx context.Context) {
		_, runErr := p.Run(ctx)
		if runErr != nil {
			a.logger.Error().Err(runErr).Msg("scheduled digest run failed")
		}

		mu.Lock()
		lastErr = runErr
		mu.Unlock()
	}, a.logger)
	if err != nil {
		return fmt.Errorf("scheduler init: %w", err)
	}

	if a.cfg.HealthPort > 0 {
		srv := observability.NewServer(a.cfg.HealthPort, func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()

			return lastErr
		}, a.logger)

		go func() {
			if err := srv.Start(ctx); err != nil {
				a.logger.Error().Err(err).Msg("health check server error")
			}
		}()
	}

	return runner.Run(ctx)
}

// RunTrain fits the ranking model and writes the artifact.
func (a *App) RunTrain() error {
	start := time.Now()

	defer a.finishMode(modeTrain, start)

	trainer := ranking.NewTrainer(a.cfg.InteractionLogPath, a.cfg.ModelPath, a.logger)

	path, err := trainer.Train(a.cfg.TrainEpochs, a.cfg.TrainLearningRate)
	if err != nil {
		return fmt.Errorf("train ranking model: %w", err)
	}

	a.logger.Info().Str("path", path).Msg("model artifact written")

	return nil
}

// RunRecord logs an interaction for rawURL. The item is looked up in the store
// by canonical URL; unknown URLs are recorded with their domain as source.
func (a *App) RunRecord(rawURL, event string) error {
	start := time.Now()

	defer a.finishMode(modeRecord, start)

	rawURL = strings.TrimSpace(rawURL)
	event = strings.ToLower(strings.TrimSpace(event))

	if rawURL == "" || event == "" {
		return fmt.Errorf("%w: record needs --url and --event", errors.ErrInvalidInput)
	}

	item, err := a.lookupItem(rawURL)
	if err != nil {
		return err
	}

	tracker := ranking.NewTracker(a.cfg.InteractionLogPath, ranking.NewExtractor(nil), a.logger)

	if err := tracker.Record(item, domain.EventKind(event)); err != nil {
		return fmt.Errorf("record interaction: %w", err)
	}

	a.logger.Info().Str(logFieldURL, item.URL).Str(logFieldEvent, event).Msg("interaction recorded")

	return nil
}

func (a *App) lookupItem(rawURL string) (domain.Item, error) {
	canonical := links.CanonicalizeURL(rawURL)

	items, err := storage.NewItemStore(a.cfg.StorePath, a.jsonStore()).Load()
	if err != nil {
		return domain.Item{}, fmt.Errorf("load store: %w", err)
	}

	for _, it := range items {
		if it.URL == canonical {
			return it, nil
		}
	}

	a.logger.Warn().Str(logFieldURL, canonical).Msg("url not in store, recording without item metadata")

	d := links.DomainOf(canonical)

	return domain.Item{
		URL:       canonical,
		Hash:      links.HashURL(canonical),
		Source:    d,
		Domain:    d,
		Published: time.Now().UTC(),
		Tags:      []string{},
	}, nil
}

func (a *App) finishMode(mode string, start time.Time) {
	observability.RunDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())

	if err := observability.WriteTextfile(a.cfg.MetricsTextfile); err != nil {
		a.logger.Warn().Err(err).Msg("failed to write metrics textfile")
	}
}

func (a *App) jsonStore() *storage.JSONStore {
	return storage.NewJSONStore(a.cfg.StoreBackups, a.logger)
}

func (a *App) buildPipeline() (*pipeline.Pipeline, error) {
	cfg := a.cfg
	jsonStore := a.jsonStore()

	web := links.NewWebFetcher(links.FetcherConfig{
		Timeout:   cfg.FetchTimeout,
		UserAgent: cfg.UserAgent,
		Retries:   cfg.FetchRetries,
		HostRPS:   cfg.FetchHostRPS,
	}, a.logger)

	registry := sources.NewRegistry(a.logger,
		sources.NewRSSSource(web, cfg.FeedItemLimit),
		sources.NewGitHubSource(web, sources.GitHubConfig{
			APIURL:    cfg.GitHubAPIURL,
			Token:     cfg.GitHubToken,
			RateLimit: cfg.GitHubRateLimitRPS,
		}),
		sources.NewArxivSource(web, cfg.ArxivBaseURL, cfg.ArxivMaxResults),
	)

	ingester := ingest.New(ingest.Config{
		FeedsPath:            cfg.FeedsPath,
		Workers:              cfg.FetchWorkers,
		Timeout:              cfg.FetchTimeout,
		EnrichEmptySummaries: cfg.EnrichEmptySummaries,
	}, jsonStore, storage.NewItemStore(cfg.StorePath, jsonStore), registry, web, a.logger)

	extractor := ranking.NewExtractor(nil)
	tracker := ranking.NewTracker(cfg.InteractionLogPath, extractor, a.logger)

	var recorder ranking.ImpressionRecorder
	if cfg.LogImpressions {
		recorder = tracker
	}

	scorer := ranking.NewScorer(extractor, tracker, ranking.NewModelCache(cfg.ModelPath, a.logger), recorder, a.logger)

	client := a.llmClient()

	deps := pipeline.Deps{
		Ingester: ingester,
		Ranker:   scorer,
		Writer: digest.NewWriter(client, a.style, digest.WriterConfig{
			Summaries: cfg.LLMSummaries,
			Impacts:   cfg.LLMImpacts,
		}, a.logger),
		Formatter: digest.NewFormatter(client, a.style, cfg.FormatterEnabled, a.logger),
		Emitter:   digest.NewEmitter(cfg.OutDir, a.logger),
	}

	if cfg.ThemeMode != config.ThemeModeKeyword {
		clusterer := themes.NewClusterer(a.embedder(), uint64(cfg.ClusterSeed), cfg.ClusterMaxIterations, a.logger) //nolint:gosec // seed bits only
		deps.Clusters = themes.NewClusterCache(clusterer, cfg.ClusterKMin, cfg.ClusterKMax, nil)
	}

	if cfg.TelegramEnabled() {
		publisher, err := publish.NewTelegramPublisher(cfg.TelegramBotToken, cfg.TelegramChatID, a.logger)
		if err != nil {
			return nil, fmt.Errorf("telegram init: %w", err)
		}

		deps.Publisher = publisher
	}

	topK := cfg.DigestTopK
	if a.style.MaxTopSignals > 0 {
		topK = min(topK, a.style.MaxTopSignals)
	}

	return pipeline.New(pipeline.Settings{
		TopK:                 topK,
		PerDomainCap:         a.style.PerDomainCap,
		ThemeMode:            cfg.ThemeMode,
		ThemeRefreshInterval: cfg.ThemeRefreshInterval,
		MetricsTextfile:      cfg.MetricsTextfile,
		Profile:              a.style.Profile,
	}, deps, a.logger), nil
}

// llmClient returns nil when no key is configured, which disables every LLM
// feature. The mock key selects the local echo provider.
func (a *App) llmClient() llm.Client {
	cfg := a.cfg
	if cfg.LLMAPIKey == "" {
		a.logger.Info().Msg("LLM_API_KEY not set, LLM features disabled")
		return nil
	}

	var cache *llm.Cache
	if cfg.LLMCacheEnabled {
		cache = llm.NewCache()
	}

	registry := llm.NewRegistry(cache, cfg.LLMRetries, a.logger)
	breaker := embeddings.CircuitBreakerConfig{Threshold: cfg.LLMCircuitThreshold, ResetAfter: cfg.LLMCircuitTimeout}

	if cfg.LLMAPIKey == llmAPIKeyMock {
		registry.Register(llm.NewLocalProvider(), breaker)
		return registry
	}

	registry.Register(llm.NewOpenAIProvider(llm.OpenAIConfig{
		APIKey:      cfg.LLMAPIKey,
		BaseURL:     cfg.LLMBaseURL,
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemperature,
		MaxTokens:   cfg.LLMMaxCompletionTokens,
		Timeout:     cfg.LLMTimeout,
		RateLimit:   cfg.LLMRateLimitRPS,
	}), breaker)

	a.logger.Info().Str(logFieldBaseURL, cfg.LLMBaseURL).Str("model", cfg.LLMModel).Msg("LLM client configured")

	return registry
}

// embedder prefers remote embeddings when configured and always keeps the
// hashed embedder as fallback.
func (a *App) embedder() embeddings.Embedder {
	cfg := a.cfg
	registry := embeddings.NewRegistry(a.logger)

	if cfg.EmbeddingsRemote && cfg.LLMAPIKey != "" && cfg.LLMAPIKey != llmAPIKeyMock {
		registry.Register(embeddings.NewOpenAIProvider(embeddings.OpenAIConfig{
			APIKey:    cfg.LLMAPIKey,
			BaseURL:   cfg.LLMBaseURL,
			Model:     cfg.EmbeddingModel,
			RateLimit: cfg.LLMRateLimitRPS,
		}), embeddings.DefaultCircuitBreakerConfig())
	}

	registry.Register(embeddings.NewHashedEmbedder(cfg.HashedEmbeddingDim), embeddings.DefaultCircuitBreakerConfig())

	return registry
}

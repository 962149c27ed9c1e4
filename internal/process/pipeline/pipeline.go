// Package pipeline runs one digest issue end to end: ingest, rank, select,
// theme, write, format, emit and publish.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lueurxax/signal-digest/internal/core/domain"
	"github.com/lueurxax/signal-digest/internal/ingest"
	"github.com/lueurxax/signal-digest/internal/platform/config"
	"github.com/lueurxax/signal-digest/internal/platform/observability"
	"github.com/lueurxax/signal-digest/internal/process/ranking"
	"github.com/lueurxax/signal-digest/internal/process/themes"
)

// LogFieldRunID correlates all log lines of one run.
const LogFieldRunID = "run_id"

const modeRun = "run"

// Ingester refreshes the item store. *ingest.Service implements it.
type Ingester interface {
	Run(ctx context.Context) (ingest.Result, error)
}

// Ranker scores and orders items. *ranking.Scorer implements it.
type Ranker interface {
	Rank(items []domain.Item, profile *domain.Profile) []domain.Item
}

// ClusterSource returns embedding clusters. *themes.Cache implements it.
type ClusterSource interface {
	Refresh(ctx context.Context, items []domain.Item, interval time.Duration) (map[string][]domain.Item, error)
}

// BulletWriter writes summary lines and impacts. *digest.Writer implements it.
type BulletWriter interface {
	TopBullets(ctx context.Context, items []domain.Item) []domain.Bullet
	Impacts(ctx context.Context, items []domain.Item) string
}

// Formatter renders a draft. *digest.Formatter implements it.
type Formatter interface {
	Beautify(ctx context.Context, draft domain.IssueDraft) domain.IssueFinal
}

// Emitter persists the issue. *digest.Emitter implements it.
type Emitter interface {
	Write(issue domain.IssueFinal, date time.Time) (string, error)
}

// Publisher delivers the issue. *publish.TelegramPublisher implements it.
type Publisher interface {
	Publish(ctx context.Context, markdown string) error
}

// Settings tunes selection and theming.
type Settings struct {
	TopK                 int
	PerDomainCap         int
	ThemeMode            string
	ThemeRefreshInterval time.Duration
	MetricsTextfile      string
	Profile              *domain.Profile
}

// Deps are the stages of a run. Clusters and Publisher are optional.
type Deps struct {
	Ingester  Ingester
	Ranker    Ranker
	Clusters  ClusterSource
	Writer    BulletWriter
	Formatter Formatter
	Emitter   Emitter
	Publisher Publisher
}

// Result summarizes a completed run.
type Result struct {
	RunID    string
	Path     string
	Selected []domain.Item
	Issue    domain.IssueFinal
	NewItems int
}

// Pipeline produces digest issues.
type Pipeline struct {
	settings Settings
	deps     Deps
	now      func() time.Time
	logger   *zerolog.Logger
}

// New creates a pipeline.
func New(settings Settings, deps Deps, logger *zerolog.Logger) *Pipeline {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Pipeline{settings: settings, deps: deps, now: time.Now, logger: logger}
}

// Run produces one issue. Delivery failures are logged and do not fail the
// run because the issue is already on disk.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	start := p.now()
	runID := uuid.New().String()
	logger := p.logger.With().Str(LogFieldRunID, runID).Logger()

	defer func() {
		observability.RunDuration.WithLabelValues(modeRun).Observe(time.Since(start).Seconds())

		if err := observability.WriteTextfile(p.settings.MetricsTextfile); err != nil {
			logger.Warn().Err(err).Msg("failed to write metrics textfile")
		}
	}()

	ingested, err := p.deps.Ingester.Run(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("ingest: %w", err)
	}

	ranked := p.deps.Ranker.Rank(ingested.All, p.settings.Profile)
	selected := ranking.Select(ranked, p.settings.TopK, p.settings.PerDomainCap)

	logger.Info().
		Int("candidates", len(ranked)).
		Int("selected", len(selected)).
		Msg("items selected")

	detected, clusters := p.themes(ctx, selected, &logger)

	bullets := p.deps.Writer.TopBullets(ctx, selected)
	impacts := p.deps.Writer.Impacts(ctx, selected)

	draft := domain.IssueDraft{
		Date:       start,
		TopSignals: selected,
		Bullets:    bullets,
		ImpactsMD:  impacts,
		Themes:     detected,
		Clusters:   clusters,
	}

	issue := p.deps.Formatter.Beautify(ctx, draft)

	path, err := p.deps.Emitter.Write(issue, start)
	if err != nil {
		return Result{}, fmt.Errorf("emit: %w", err)
	}

	if p.deps.Publisher != nil {
		if err := p.deps.Publisher.Publish(ctx, issue.Markdown); err != nil {
			logger.Error().Err(err).Msg("failed to publish issue")
		}
	}

	logger.Info().
		Str("path", path).
		Int("words", issue.WordCount).
		Bool("polished", issue.Polished).
		Dur("elapsed", time.Since(start)).
		Msg("digest run complete")

	return Result{RunID: runID, Path: path, Selected: selected, Issue: issue, NewItems: len(ingested.New)}, nil
}

// themes applies the configured theme mode. A clustering failure degrades
// the run to keyword themes only.
func (p *Pipeline) themes(ctx context.Context, items []domain.Item, logger *zerolog.Logger) (map[string]bool, map[string][]domain.Item) {
	mode := p.settings.ThemeMode

	var detected map[string]bool
	if mode != config.ThemeModeCluster {
		detected = themes.Detect(items)
	}

	if mode == config.ThemeModeKeyword || p.deps.Clusters == nil {
		return detected, nil
	}

	clusters, err := p.deps.Clusters.Refresh(ctx, items, p.settings.ThemeRefreshInterval)
	if err != nil {
		logger.Warn().Err(err).Msg("clustering failed, using keyword themes")

		if detected == nil {
			detected = themes.Detect(items)
		}

		return detected, nil
	}

	return detected, clusters
}

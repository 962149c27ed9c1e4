// Package digest assembles, formats, validates and writes the newsletter.
package digest

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/signal-digest/internal/core/domain"
	"github.com/lueurxax/signal-digest/internal/core/llm"
	"github.com/lueurxax/signal-digest/internal/platform/config"
	"github.com/lueurxax/signal-digest/internal/platform/htmlutils"
)

const (
	logKeyURL   = "url"
	logKeyPath  = "path"
	logKeyWords = "words"
)

// Writer produces per-item summaries and the Predicted Impacts section.
type Writer struct {
	client    llm.Client
	style     config.StyleConfig
	summaries bool
	impacts   bool
	logger    *zerolog.Logger
}

// WriterConfig switches the LLM-backed parts of the writer.
type WriterConfig struct {
	Summaries bool
	Impacts   bool
}

// NewWriter creates a writer. A nil client disables both LLM features.
func NewWriter(client llm.Client, style config.StyleConfig, cfg WriterConfig, logger *zerolog.Logger) *Writer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	if client == nil {
		cfg = WriterConfig{}
	}

	return &Writer{
		client:    client,
		style:     style,
		summaries: cfg.Summaries,
		impacts:   cfg.Impacts,
		logger:    logger,
	}
}

// TopBullets pairs each item with its summary line. The feed summary is used
// when its word count is within the style bounds; otherwise an LLM synopsis
// when enabled, else the empty string.
func (w *Writer) TopBullets(ctx context.Context, items []domain.Item) []domain.Bullet {
	bullets := make([]domain.Bullet, 0, len(items))

	for _, it := range items {
		feedSummary := htmlutils.CollapseWhitespace(it.Summary)

		line := ""

		if w.withinBounds(htmlutils.WordCount(feedSummary)) {
			line = feedSummary
		} else if w.summaries {
			line = w.synopsis(ctx, it)
		}

		bullets = append(bullets, domain.Bullet{Item: it, Summary: line})
	}

	return bullets
}

func (w *Writer) synopsis(ctx context.Context, it domain.Item) string {
	content, err := w.client.Chat(ctx, llm.TaskSummarize, llm.SummarizeMessages(it, w.style.SummaryMaxWords))
	if err != nil {
		w.logger.Warn().Err(err).Str(logKeyURL, it.URL).Msg("synopsis failed")
		return ""
	}

	return htmlutils.TruncateWords(content, w.style.SummaryMaxWords)
}

// Impacts returns the Predicted Impacts Markdown, or "" when disabled or the
// request fails.
func (w *Writer) Impacts(ctx context.Context, items []domain.Item) string {
	if !w.impacts || len(items) == 0 {
		return ""
	}

	content, err := w.client.Chat(ctx, llm.TaskImpacts, llm.ImpactsMessages(items))
	if err != nil {
		w.logger.Warn().Err(err).Int("items", len(items)).Msg("impacts generation failed")
		return ""
	}

	return strings.TrimSpace(content)
}

func (w *Writer) withinBounds(words int) bool {
	return words >= w.style.SummaryMinWords && words <= w.style.SummaryMaxWords
}

// Build assembles the draft of an issue.
func Build(date time.Time, top []domain.Item, bullets []domain.Bullet, impactsMD string,
	themes map[string]bool, clusters map[string][]domain.Item,
) domain.IssueDraft {
	return domain.IssueDraft{
		Date:       date,
		TopSignals: top,
		Bullets:    bullets,
		ImpactsMD:  impactsMD,
		Themes:     themes,
		Clusters:   clusters,
	}
}

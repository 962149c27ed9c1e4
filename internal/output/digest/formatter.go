package digest

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lueurxax/signal-digest/internal/core/domain"
	"github.com/lueurxax/signal-digest/internal/core/llm"
	"github.com/lueurxax/signal-digest/internal/platform/config"
	"github.com/lueurxax/signal-digest/internal/platform/htmlutils"
)

// Formatter turns a draft into the final issue, optionally polished by an LLM.
type Formatter struct {
	client  llm.Client
	style   config.StyleConfig
	enabled bool
	logger  *zerolog.Logger
}

// NewFormatter creates a formatter. Polishing runs only when enabled and a
// client is given.
func NewFormatter(client llm.Client, style config.StyleConfig, enabled bool, logger *zerolog.Logger) *Formatter {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Formatter{client: client, style: style, enabled: enabled && client != nil, logger: logger}
}

// Beautify renders the pre-lint document and, when enabled, asks the LLM to
// reformat it. Output failing validation is discarded in favour of the
// pre-lint document.
func (f *Formatter) Beautify(ctx context.Context, draft domain.IssueDraft) domain.IssueFinal {
	preLinted, refs := PreLint(draft, f.style)

	final := preLinted
	polished := false

	if f.enabled {
		if out, ok := f.polish(ctx, preLinted, refs, draft.TopSignals); ok {
			final, polished = out, true
		}
	}

	return domain.IssueFinal{
		Markdown:  final,
		WordCount: htmlutils.WordCount(final),
		Polished:  polished,
	}
}

func (f *Formatter) polish(ctx context.Context, preLinted string, refs []llm.Ref, items []domain.Item) (string, bool) {
	messages := llm.ReformatMessages(preLinted, refs, llm.FormatStyle{
		SummaryMinWords: f.style.SummaryMinWords,
		SummaryMaxWords: f.style.SummaryMaxWords,
		WrapCol:         f.style.WrapCol,
		SectionSep:      f.style.SectionSep,
	})

	out, err := f.client.Chat(ctx, llm.TaskReformat, messages)
	if err != nil {
		f.logger.Warn().Err(err).Msg("reformat failed, using pre-linted issue")
		return "", false
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return "", false
	}

	if problems := Validate(out, items, f.style); len(problems) > 0 {
		f.logger.Warn().Strs("problems", problems).Msg("reformatted issue failed validation, using pre-linted issue")
		return "", false
	}

	return out, true
}

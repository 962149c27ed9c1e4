package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lueurxax/signal-digest/internal/core/domain"
)

// Commentary is the group for domains not listed in any domain group.
const Commentary = "Commentary"

// StyleConfig holds the editorial settings of the rendered digest.
type StyleConfig struct {
	WrapCol          int                 `yaml:"wrap_col"`
	Grouping         []string            `yaml:"grouping"`
	DomainGroups     map[string][]string `yaml:"domain_groups"`
	SummaryMinWords  int                 `yaml:"summary_min_words"`
	SummaryMaxWords  int                 `yaml:"summary_max_words"`
	SectionSep       string              `yaml:"section_sep"`
	RequireSummaries bool                `yaml:"require_summaries"`
	MaxTopSignals    int                 `yaml:"max_top_signals"`
	PerDomainCap     int                 `yaml:"per_domain_cap"`
	Title            string              `yaml:"title"`
	Profile          *domain.Profile     `yaml:"profile"`
}

// DefaultStyle returns the house style used when no style file exists.
func DefaultStyle() StyleConfig {
	return StyleConfig{
		WrapCol:  100,
		Grouping: []string{"Research", "Industry", "Open Source", Commentary},
		DomainGroups: map[string][]string{
			"Research":    {"arxiv.org", "research.google", "openreview.net"},
			"Industry":    {"openai.com", "anthropic.com", "meta.ai", "google.ai"},
			"Open Source": {"github.com"},
		},
		SummaryMinWords:  12,
		SummaryMaxWords:  38,
		SectionSep:       "---",
		RequireSummaries: true,
		MaxTopSignals:    14,
		PerDomainCap:     3,
		Title:            "Signal.ai",
	}
}

// LoadStyle reads the YAML style file at path. Missing files yield the defaults;
// keys absent from the file keep their default values.
func LoadStyle(path string) (StyleConfig, error) {
	style := DefaultStyle()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return style, nil
		}

		return style, fmt.Errorf("read style file: %w", err)
	}

	if err := yaml.Unmarshal(data, &style); err != nil {
		return style, fmt.Errorf("parse style yaml: %w", err)
	}

	if style.PerDomainCap < 1 {
		return style, fmt.Errorf("%w: per_domain_cap must be >= 1", errInvalidConfig)
	}

	if style.SummaryMinWords > style.SummaryMaxWords {
		return style, fmt.Errorf("%w: summary word bounds [%d, %d]", errInvalidConfig, style.SummaryMinWords, style.SummaryMaxWords)
	}

	return style, nil
}

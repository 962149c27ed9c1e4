package digest

import (
	"fmt"
	"html"
	"regexp"
	"sort"
	"strings"

	"github.com/lueurxax/signal-digest/internal/core/domain"
	"github.com/lueurxax/signal-digest/internal/core/links"
	"github.com/lueurxax/signal-digest/internal/core/llm"
	"github.com/lueurxax/signal-digest/internal/platform/config"
	"github.com/lueurxax/signal-digest/internal/platform/htmlutils"
)

// Section headings of the rendered issue.
const (
	HeadingTopSignals = "## Top Signals"
	HeadingImpacts    = "## Predicted Impacts"
	HeadingThemes     = "## Themes"

	rewriteRequired = "[rewrite required]"
	summaryIndent   = "  "
	dateLayout      = "2006-01-02"
	ellipsis        = "…"

	// titleReserve covers the "- " bullet prefix and the ellipsis.
	titleReserve = 3
)

var tagPattern = regexp.MustCompile(`<[^<]+?>`)

// PreLint renders the draft deterministically and returns the document with
// the locked title/URL references of the top signals.
func PreLint(draft domain.IssueDraft, style config.StyleConfig) (string, []llm.Ref) {
	lines := []string{
		fmt.Sprintf("# %s — %s\n", style.Title, draft.Date.Format(dateLayout)),
		HeadingTopSignals,
	}

	summaries := make(map[string]string, len(draft.Bullets))
	for _, b := range draft.Bullets {
		summaries[itemKey(b.Item)] = b.Summary
	}

	grouped := GroupItems(draft.TopSignals, style)

	for _, group := range style.Grouping {
		items, ok := grouped[group]
		if !ok {
			continue
		}

		lines = append(lines, "\n### "+group)

		for _, it := range items {
			lines = append(lines, titleLine(it, style.WrapCol), summaryBlock(summaries[itemKey(it)], style))
		}
	}

	lines = append(lines, "\n"+style.SectionSep+"\n", HeadingImpacts, draft.ImpactsMD)

	if themes := renderThemes(draft); themes != "" {
		lines = append(lines, "\n"+HeadingThemes, themes)
	}

	refs := make([]llm.Ref, 0, len(draft.TopSignals))
	for _, it := range draft.TopSignals {
		refs = append(refs, llm.Ref{Title: strings.TrimSpace(it.Title), URL: it.URL})
	}

	return strings.Join(lines, "\n"), refs
}

// GroupItems assigns every item to the first domain group, in grouping order,
// with a pattern contained in its domain. Unmatched items go to Commentary.
func GroupItems(items []domain.Item, style config.StyleConfig) map[string][]domain.Item {
	groups := make(map[string][]domain.Item)

	for _, it := range items {
		name := groupOf(it.Domain, style)
		groups[name] = append(groups[name], it)
	}

	return groups
}

func groupOf(itemDomain string, style config.StyleConfig) string {
	for _, group := range style.Grouping {
		for _, pattern := range style.DomainGroups[group] {
			if strings.Contains(itemDomain, pattern) {
				return group
			}
		}
	}

	return config.Commentary
}

func titleLine(it domain.Item, wrapCol int) string {
	title := html.UnescapeString(htmlutils.CollapseWhitespace(it.Title))
	suffix := fmt.Sprintf(" [%s](%s)", links.SiteLabel(it.URL, it.Source), it.URL)

	available := max(wrapCol-len([]rune(suffix))-titleReserve, 0)
	if runes := []rune(title); len(runes) > available {
		title = string(runes[:available]) + ellipsis
	}

	return "- " + title + suffix
}

func summaryBlock(summary string, style config.StyleConfig) string {
	summary = html.UnescapeString(htmlutils.CollapseWhitespace(stripTags(summary)))

	words := htmlutils.WordCount(summary)
	if words < style.SummaryMinWords || words > style.SummaryMaxWords {
		return summaryIndent + rewriteRequired
	}

	return htmlutils.Wrap(summary, style.WrapCol, summaryIndent)
}

// stripTags drops anything shaped like a tag without decoding entities.
func stripTags(s string) string {
	return tagPattern.ReplaceAllString(s, "")
}

func renderThemes(draft domain.IssueDraft) string {
	var lines []string

	for _, th := range detectedThemes(draft.Themes) {
		lines = append(lines, "- "+th)
	}

	labels := make([]string, 0, len(draft.Clusters))
	for label := range draft.Clusters {
		labels = append(labels, label)
	}

	sort.Strings(labels)

	for _, label := range labels {
		lines = append(lines, fmt.Sprintf("- %s (%d)", label, len(draft.Clusters[label])))
	}

	return strings.Join(lines, "\n")
}

func detectedThemes(themes map[string]bool) []string {
	names := make([]string, 0, len(themes))

	for name, hit := range themes {
		if hit {
			names = append(names, name)
		}
	}

	sort.Strings(names)

	return names
}

func itemKey(it domain.Item) string {
	if it.Hash != "" {
		return it.Hash
	}

	return it.URL
}

package digest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lueurxax/signal-digest/internal/core/domain"
	"github.com/lueurxax/signal-digest/internal/platform/config"
	"github.com/lueurxax/signal-digest/internal/platform/htmlutils"
)

var (
	itemLinkPattern = regexp.MustCompile(`- ([^\[\]]+)\[[^\[\]]+\]\((https?://[^\s\)]+)\)`)
	anyLinkPattern  = regexp.MustCompile(`https?://`)
)

// Validate checks a formatted issue against the selected items and the house
// style. It returns one message per problem; an empty result means valid.
func Validate(markdown string, items []domain.Item, style config.StyleConfig) []string {
	var problems []string

	refs := make(map[string]struct{}, len(items))
	for _, it := range items {
		refs[it.URL] = struct{}{}
	}

	matches := itemLinkPattern.FindAllStringSubmatch(markdown, -1)
	found := make(map[string]struct{}, len(matches))

	for _, m := range matches {
		found[m[2]] = struct{}{}
	}

	if len(matches) != len(items) {
		problems = append(problems, fmt.Sprintf("item count mismatch: expected %d, found %d", len(items), len(matches)))
	}

	for _, it := range items {
		if _, ok := found[it.URL]; !ok {
			problems = append(problems, "missing URL: "+it.URL)
		}
	}

	if len(anyLinkPattern.FindAllStringIndex(markdown, -1)) > len(refs) {
		problems = append(problems, "extra links introduced")
	}

	problems = append(problems, styleProblems(markdown, style)...)

	if strings.Contains(markdown, "<") && strings.Contains(strings.ToLower(markdown), "a href") {
		problems = append(problems, "HTML tags found")
	}

	return problems
}

func styleProblems(markdown string, style config.StyleConfig) []string {
	var problems []string

	lines := strings.Split(markdown, "\n")
	inTop := false

	for i, line := range lines {
		if strings.HasPrefix(line, HeadingTopSignals) {
			inTop = true
		}

		if strings.HasPrefix(line, HeadingImpacts) || strings.TrimSpace(line) == style.SectionSep {
			inTop = false
			continue
		}

		if !inTop {
			continue
		}

		if strings.HasPrefix(strings.TrimSpace(line), "-") {
			if p := summaryProblem(lines, i, style); p != "" {
				problems = append(problems, p)
			}
		}

		if n := len([]rune(line)); n > style.WrapCol {
			problems = append(problems, fmt.Sprintf("line exceeds %d characters: %q", style.WrapCol, line))
		}
	}

	return problems
}

func summaryProblem(lines []string, i int, style config.StyleConfig) string {
	if i+1 >= len(lines) || strings.TrimSpace(lines[i+1]) == "" {
		return "missing summary for item: " + lines[i]
	}

	summary := strings.TrimSpace(lines[i+1])
	if summary == rewriteRequired {
		return ""
	}

	words := htmlutils.WordCount(summary)
	if words < style.SummaryMinWords || words > style.SummaryMaxWords {
		return fmt.Sprintf("summary word count out of bounds (%d) for item: %s", words, lines[i])
	}

	return ""
}

package llm

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/lueurxax/signal-digest/internal/core/domain"
)

const (
	synopsisInputChars = 600
	impactsInputChars  = 300
	ellipsis           = "…"
)

// Ref is a locked title and URL the formatter must keep verbatim.
type Ref struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// FormatStyle carries the house-style bounds quoted in the reformat prompt.
type FormatStyle struct {
	SummaryMinWords int
	SummaryMaxWords int
	WrapCol         int
	SectionSep      string
}

const reformatSystemFmt = `You are a precise newsletter formatter. You must:
1.  Keep the same items, titles, and URLs (do not add, remove, or alter them).
2.  Produce clean Markdown only, no HTML.
3.  Use the given section order and grouping.
4.  For each Top Signal: one title line and one single-line summary (%d–%d words), neutral and journalistic.
5.  Wrap lines to %d columns; insert a blank line between bullets.
6.  Do not introduce any new links, footnotes, or emojis.`

const reformatUserFmt = "# INPUT: LOCKED REFS (DO NOT CHANGE)\n```json\n%s\n```\n\n" +
	"# INPUT: DRAFT (CLEANUP & REFORMAT ONLY)\n```markdown\n%s\n```\n\n" +
	"# TASK\n" +
	"- Reformat the draft into the final house style.\n" +
	"- Where a summary is poor or marked [rewrite required], rewrite it concisely (%d–%d words).\n" +
	"- Keep titles and URLs exactly as in LOCKED REFS.\n" +
	"- Group sections as shown; insert '%s' before \"## Predicted Impacts\".\n" +
	"- Output only the final Markdown."

// ReformatMessages builds the polish request for a pre-linted draft.
func ReformatMessages(draft string, refs []Ref, style FormatStyle) []Message {
	return []Message{
		{Role: RoleSystem, Content: fmt.Sprintf(reformatSystemFmt, style.SummaryMinWords, style.SummaryMaxWords, style.WrapCol)},
		{Role: RoleUser, Content: fmt.Sprintf(reformatUserFmt, refsJSON(refs), draft,
			style.SummaryMinWords, style.SummaryMaxWords, style.SectionSep)},
	}
}

func refsJSON(refs []Ref) string {
	if refs == nil {
		refs = []Ref{}
	}

	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")

	if err := enc.Encode(refs); err != nil {
		return "[]"
	}

	return strings.TrimRight(buf.String(), "\n")
}

// SummarizeMessages builds the one-line synopsis request for an item.
func SummarizeMessages(item domain.Item, maxWords int) []Message {
	system := "You are a copy editor. Write a single-line, neutral, journalistic synopsis under " +
		fmt.Sprintf("%d words. No fluff. Start directly with the finding or action.", maxWords)

	user := fmt.Sprintf("Title: %s\nSource: %s\nURL: %s\nExisting summary (may be poor): %s",
		strings.TrimSpace(item.Title), item.Source, item.URL, clip(oneLine(item.Summary), synopsisInputChars))

	return []Message{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: user},
	}
}

// ImpactsMessages builds the Predicted Impacts request for the top signals.
func ImpactsMessages(items []domain.Item) []Message {
	lines := make([]string, 0, len(items))

	for _, it := range items {
		lines = append(lines, fmt.Sprintf("- Title: %s\n  Source: %s\n  URL: %s\n  Summary: %s",
			strings.TrimSpace(it.Title), it.Source, it.URL, clip(oneLine(it.Summary), impactsInputChars)))
	}

	system := "You are an editor producing a concise, neutral, journalistic Predicted Impacts section " +
		"for an AI newsletter. Write 3-5 bullets, 1 sentence each, with concrete who/what/so-what. " +
		"Avoid hype and long-term speculation. Output only Markdown bullets."

	user := "Given these Top Signals, write the Predicted Impacts bullets in Markdown. " +
		"Limit to about 180 words total.\n\nTop Signals:\n" + strings.Join(lines, "\n")

	return []Message{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: user},
	}
}

func oneLine(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "\n", " ")
}

// clip keeps at most limit runes, replacing the tail with an ellipsis.
func clip(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}

	return strings.TrimRight(string(runes[:limit-3]), " \t\r\n") + ellipsis
}

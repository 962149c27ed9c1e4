// Package htmlutils provides text cleanup helpers for feed content and digest delivery.
//
// The package handles:
//   - HTML tag stripping and entity decoding for feed summaries
//   - Whitespace normalization and greedy line wrapping
//   - UTF-16 aware message splitting (Telegram's native length unit)
package htmlutils

import (
	"html"
	"strings"
	"unicode/utf16"

	xhtml "golang.org/x/net/html"
)

// utf16Len returns the number of UTF-16 code units needed to encode the string.
// Telegram counts message length in UTF-16 code units, not Unicode code points.
// Characters outside the BMP (emoji, etc.) require surrogate pairs (2 code units).
func utf16Len(s string) int {
	return len(utf16.Encode([]rune(s)))
}

// utf16Slice safely slices a string by UTF-16 code unit count.
// It returns the portion of the string that fits within the specified UTF-16 length.
func utf16Slice(s string, maxUnits int) string {
	runes := []rune(s)
	units := 0

	for i, r := range runes {
		runeUnits := 1
		if r > 0xFFFF {
			runeUnits = 2 // Surrogate pair needed
		}

		if units+runeUnits > maxUnits {
			return string(runes[:i])
		}

		units += runeUnits
	}

	return s
}

// StripHTMLTags removes all HTML tags from text, keeping only the content.
// Entities are decoded and the result is trimmed.
func StripHTMLTags(text string) string {
	if !strings.ContainsAny(text, "<&") {
		return strings.TrimSpace(text)
	}

	if !strings.Contains(text, "<") {
		return strings.TrimSpace(html.UnescapeString(text))
	}

	var sb strings.Builder

	z := xhtml.NewTokenizer(strings.NewReader(text))

	for {
		tt := z.Next()
		if tt == xhtml.ErrorToken {
			// io.EOF or malformed input; keep what was collected.
			break
		}

		if tt == xhtml.TextToken {
			sb.Write(z.Text())
		}
	}

	// Text tokens arrive with entities already decoded.
	return strings.TrimSpace(sb.String())
}

// CleanText strips markup, decodes entities and collapses whitespace runs to single spaces.
func CleanText(text string) string {
	return CollapseWhitespace(StripHTMLTags(text))
}

// CollapseWhitespace replaces every whitespace run with a single space and trims the ends.
func CollapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// WordCount returns the number of whitespace separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// TruncateWords keeps the first maxWords words. When words are dropped the
// result ends with an ellipsis.
func TruncateWords(text string, maxWords int) string {
	words := strings.Fields(text)
	if maxWords <= 0 || len(words) <= maxWords {
		return strings.Join(words, " ")
	}

	return strings.Join(words[:maxWords], " ") + "…"
}

// Wrap fills text greedily into lines of at most width runes, each line
// prefixed by indent. The indent counts towards the width. Words longer than
// the available space are broken.
func Wrap(text string, width int, indent string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	avail := width - len([]rune(indent))
	if avail < 1 {
		avail = 1
	}

	var (
		lines   []string
		current []rune
	)

	flush := func() {
		if len(current) > 0 {
			lines = append(lines, indent+string(current))
			current = current[:0]
		}
	}

	for _, w := range words {
		word := []rune(w)

		if len(current) > 0 && len(current)+1+len(word) <= avail {
			current = append(current, ' ')
			current = append(current, word...)

			continue
		}

		flush()

		for len(word) > avail {
			lines = append(lines, indent+string(word[:avail]))
			word = word[avail:]
		}

		current = append(current, word...)
	}

	flush()

	return strings.Join(lines, "\n")
}

// splitAfter defines markers where we split AFTER the marker (marker stays in current part)
var splitAfter = []string{
	"\n---\n", // Section separator
	"\n\n",    // Paragraph break
}

// splitBefore defines markers where we split BEFORE the content (only newline stays in current part).
// Markdown headers should start the next message, not end the current one.
var splitBefore = []string{
	"\n## ",
	"\n### ",
}

// SplitMessage splits text into parts of at most limit UTF-16 code units.
// It prefers section and paragraph boundaries, then lines, then spaces.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 || text == "" {
		return nil
	}

	var parts []string

	remaining := text
	for remaining != "" {
		part, rest := findBestSplit(remaining, limit)
		if strings.TrimSpace(part) != "" {
			parts = append(parts, strings.TrimRight(part, "\n"))
		}

		remaining = rest
	}

	return parts
}

func findBestSplit(text string, maxUnits int) (toWrite, remainder string) {
	textLen := utf16Len(text)
	if textLen <= maxUnits {
		return text, ""
	}

	searchText := utf16Slice(text, maxUnits)

	if toWrite, remainder := trySplitAfter(searchText, text); toWrite != "" {
		return toWrite, remainder
	}

	if toWrite, remainder := trySplitBefore(searchText, text); toWrite != "" {
		return toWrite, remainder
	}

	if pos := strings.LastIndex(searchText, "\n"); pos > 0 {
		return searchText[:pos+1], text[pos+1:]
	}

	if pos := strings.LastIndex(searchText, " "); pos > 0 {
		return searchText[:pos+1], text[pos+1:]
	}

	return searchText, text[len(searchText):]
}

func trySplitAfter(searchText, fullText string) (string, string) {
	for _, sep := range splitAfter {
		if pos := strings.LastIndex(searchText, sep); pos > 0 {
			splitAt := pos + len(sep)
			return searchText[:splitAt], fullText[splitAt:]
		}
	}

	return "", ""
}

func trySplitBefore(searchText, fullText string) (string, string) {
	for _, sep := range splitBefore {
		if pos := strings.LastIndex(searchText, sep); pos > 0 {
			splitAt := pos + 1
			return searchText[:splitAt], fullText[splitAt:]
		}
	}

	return "", ""
}

// Package themes groups digest items by topic, either by fixed keyword
// categories or by clustering their embeddings.
package themes

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/lueurxax/signal-digest/internal/core/domain"
)

// Theme is a keyword category.
type Theme struct {
	Name     string
	Keywords []string
}

// KeywordThemes are the fixed categories in display order.
var KeywordThemes = []Theme{
	{Name: "Agents & Orchestration", Keywords: []string{"agent", "orchestr"}},
	{Name: "Model Efficiency (Pruning/Distill/Latency)", Keywords: []string{"pruning", "distill", "latency", "throughput"}},
	{Name: "Evaluation & QA", Keywords: []string{"evaluation", "eval", "benchmark"}},
	{Name: "Multimodal & VLM", Keywords: []string{"multimodal", "vision", "vlm", "image"}},
	{Name: "Safety & Alignment", Keywords: []string{"safety", "alignment", "rlhf", "dpo"}},
}

// Detect reports for every keyword theme whether any item's lower-cased
// title and summary contain one of its keywords.
func Detect(items []domain.Item) map[string]bool {
	texts := make([]string, len(items))
	caser := cases.Lower(language.Und)

	for i, it := range items {
		texts[i] = caser.String(it.Text())
	}

	found := make(map[string]bool, len(KeywordThemes))

	for _, th := range KeywordThemes {
		found[th.Name] = containsAny(texts, th.Keywords)
	}

	return found
}

// DetectedNames returns the names of detected themes in display order.
func DetectedNames(detected map[string]bool) []string {
	var names []string

	for _, th := range KeywordThemes {
		if detected[th.Name] {
			names = append(names, th.Name)
		}
	}

	return names
}

func containsAny(texts, keywords []string) bool {
	for _, text := range texts {
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				return true
			}
		}
	}

	return false
}

// Package ranking scores items, selects the digest top set and trains the
// logistic ranking model from the interaction log.
package ranking

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/lueurxax/signal-digest/internal/core/domain"
)

const (
	fullNoveltyDays    = 3.0
	noveltyWindowDays  = 7.0
	unknownNovelty     = 0.5
	unknownAuthority   = 0.6
	engagementPrior    = 0.3
	githubEngagement   = 0.15
	githubDomainMarker = "github.com"
	hoursPerDay        = 24
)

// Authority is the publisher trust table keyed by domain.
var Authority = map[string]float64{
	"openai.com":      1.0,
	"deepmind.google": 0.95,
	"anthropic.com":   0.95,
	"arxiv.org":       0.85,
	"github.com":      0.90,
	"huggingface.co":  0.90,
	"research.google": 0.95,
	"ai.facebook.com": 0.90,
}

// BoostTerms are the topical terms counted by the keyword feature.
var BoostTerms = []string{
	"agent", "agents", "retrieval", "evaluation", "eval", "multimodal",
	"safety", "inference", "latency", "throughput", "tokenization",
	"memory", "orchestration", "pruning", "distillation", "long context",
}

// Extractor computes ranking features relative to its clock.
type Extractor struct {
	now func() time.Time
}

// NewExtractor creates an extractor. A nil clock uses time.Now.
func NewExtractor(now func() time.Time) *Extractor {
	if now == nil {
		now = time.Now
	}

	return &Extractor{now: now}
}

// Extract returns the feature vector of an item.
func (e *Extractor) Extract(item domain.Item) domain.FeatureVector {
	return domain.FeatureVector{
		Novelty:     e.Novelty(item.Published),
		Authority:   AuthorityOf(item.Domain),
		KeywordHits: float64(KeywordHits(item.Text())),
		Engagement:  EngagementPrior(item.Domain),
	}
}

// Novelty is 1 for the first three days, decays linearly to 0 at seven days
// and stays 0 afterwards. Unknown publish times score 0.5.
func (e *Extractor) Novelty(published time.Time) float64 {
	if published.IsZero() {
		return unknownNovelty
	}

	days := e.now().Sub(published).Hours() / hoursPerDay
	if days < 0 {
		days = 0
	}

	switch {
	case days <= fullNoveltyDays:
		return 1.0
	case days <= noveltyWindowDays:
		return max(0, 1.0-(days-fullNoveltyDays)/(noveltyWindowDays-fullNoveltyDays))
	default:
		return 0.0
	}
}

// AuthorityOf returns the table value for a domain, 0.6 when unknown.
func AuthorityOf(d string) float64 {
	if v, ok := Authority[d]; ok {
		return v
	}

	return unknownAuthority
}

// KeywordHits counts the distinct boost terms contained in text.
func KeywordHits(text string) int {
	lower := lowerText(text)
	hits := 0

	for _, term := range BoostTerms {
		if strings.Contains(lower, term) {
			hits++
		}
	}

	return hits
}

// EngagementPrior is the base engagement before interaction boosts.
func EngagementPrior(d string) float64 {
	if strings.Contains(d, githubDomainMarker) {
		return engagementPrior + githubEngagement
	}

	return engagementPrior
}

// lowerText lower-cases with Unicode rules. A Caser is stateful, so each call
// gets its own.
func lowerText(s string) string {
	return cases.Lower(language.Und).String(s)
}

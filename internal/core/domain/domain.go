package domain

import "time"

// Item represents a normalized feed entry.
type Item struct {
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Summary   string    `json:"summary"`
	Published time.Time `json:"published"`
	Tags      []string  `json:"tags"`
	Source    string    `json:"source"`
	Hash      string    `json:"hash,omitempty"`
	Domain    string    `json:"domain"`
	Signal    *float64  `json:"signal,omitempty"`
}

// Text returns the title and summary joined by a single space.
func (i Item) Text() string {
	return i.Title + " " + i.Summary
}

// SignalValue returns the assigned signal or zero when the item is unscored.
func (i Item) SignalValue() float64 {
	if i.Signal == nil {
		return 0
	}

	return *i.Signal
}

// SetSignal assigns the ranking signal.
func (i *Item) SetSignal(v float64) {
	i.Signal = &v
}

// HasTag reports whether the item carries any of the given tags.
func (i Item) HasTag(set map[string]struct{}) bool {
	for _, t := range i.Tags {
		if _, ok := set[t]; ok {
			return true
		}
	}

	return false
}

// Feature names in model order, after the intercept.
const (
	FeatureNovelty     = "novelty"
	FeatureAuthority   = "authority"
	FeatureKeywordHits = "keyword_hits"
	FeatureEngagement  = "engagement"
)

// FeatureVector holds the ranking features of an item.
type FeatureVector struct {
	Novelty     float64 `json:"novelty"`
	Authority   float64 `json:"authority"`
	KeywordHits float64 `json:"keyword_hits"`
	Engagement  float64 `json:"engagement"`
}

// ModelInput returns [1, novelty, authority, keyword_hits, engagement].
func (f FeatureVector) ModelInput() []float64 {
	return []float64{1, f.Novelty, f.Authority, f.KeywordHits, f.Engagement}
}

// ModelFeatureNames lists the model input columns including the intercept.
var ModelFeatureNames = []string{"intercept", FeatureNovelty, FeatureAuthority, FeatureKeywordHits, FeatureEngagement}

// EventKind is the type of an interaction event.
type EventKind string

// Known interaction kinds. Other values are accepted and stored verbatim.
const (
	EventImpression EventKind = "impression"
	EventView       EventKind = "view"
	EventClick      EventKind = "click"
	EventOpen       EventKind = "open"
)

// Positive reports whether the event counts as a positive training label.
func (k EventKind) Positive() bool {
	return k == EventClick || k == EventOpen
}

// InteractionEvent is one row of the interaction log.
type InteractionEvent struct {
	Timestamp time.Time
	ItemURL   string
	Source    string
	Themes    []string
	Kind      EventKind
	Features  FeatureVector
}

// Profile describes reader preferences used for personalized boosts.
type Profile struct {
	Sources []string `yaml:"sources"`
	Themes  []string `yaml:"themes"`
}

// IsEmpty reports whether the profile has no preferences.
func (p *Profile) IsEmpty() bool {
	return p == nil || (len(p.Sources) == 0 && len(p.Themes) == 0)
}

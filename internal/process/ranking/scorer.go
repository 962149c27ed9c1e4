package ranking

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/lueurxax/signal-digest/internal/core/domain"
	"github.com/lueurxax/signal-digest/internal/platform/observability"
)

// BackendSource supplies the active scoring backend. ModelCache implements it.
type BackendSource interface {
	Backend() Backend
}

// Booster supplies the interaction boost of an item. Tracker implements it.
type Booster interface {
	Boost(item domain.Item) float64
}

// Scorer combines features, engagement boosts and the active backend.
type Scorer struct {
	extractor *Extractor
	booster   Booster
	backends  BackendSource
	recorder  ImpressionRecorder
	logger    *zerolog.Logger
}

// NewScorer creates a scorer. booster and recorder may be nil; a nil recorder
// disables impression logging.
func NewScorer(extractor *Extractor, booster Booster, backends BackendSource, recorder ImpressionRecorder, logger *zerolog.Logger) *Scorer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	if extractor == nil {
		extractor = NewExtractor(nil)
	}

	return &Scorer{extractor: extractor, booster: booster, backends: backends, recorder: recorder, logger: logger}
}

// Features returns the boosted feature vector used for scoring.
func (s *Scorer) Features(item domain.Item, profile *domain.Profile) domain.FeatureVector {
	f := s.extractor.Extract(item)

	if s.booster != nil {
		f.Engagement += s.booster.Boost(item)
	}

	f.Engagement += PersonalizedBoost(item, profile)

	return f
}

// Score returns the signal of an item and logs an impression.
func (s *Scorer) Score(item domain.Item, profile *domain.Profile) float64 {
	f := s.Features(item, profile)

	if s.recorder != nil {
		if err := s.recorder.RecordImpression(item, f); err != nil {
			s.logger.Warn().Err(err).Str("url", item.URL).Msg("failed to log impression")
		}
	}

	backend := s.backend()
	observability.ItemsScored.WithLabelValues(backend.Name()).Inc()

	return backend.Score(f)
}

func (s *Scorer) backend() Backend {
	if s.backends == nil {
		return Heuristic{}
	}

	return s.backends.Backend()
}

// Rank scores every item and returns a copy sorted by signal then publish
// time, both descending. Equal keys keep input order.
func (s *Scorer) Rank(items []domain.Item, profile *domain.Profile) []domain.Item {
	ranked := make([]domain.Item, len(items))
	copy(ranked, items)

	for i := range ranked {
		ranked[i].SetSignal(s.Score(ranked[i], profile))
	}

	SortBySignal(ranked)

	return ranked
}

// SortBySignal orders items by signal then publish time, both descending.
func SortBySignal(items []domain.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		si, sj := items[i].SignalValue(), items[j].SignalValue()
		if si != sj {
			return si > sj
		}

		return items[i].Published.After(items[j].Published)
	})
}

// Select admits items in order while their domain is below perDomainCap and
// stops after k items.
func Select(ranked []domain.Item, k, perDomainCap int) []domain.Item {
	if k <= 0 {
		return []domain.Item{}
	}

	picked := make([]domain.Item, 0, min(k, len(ranked)))
	perDomain := make(map[string]int)

	for _, it := range ranked {
		if perDomain[it.Domain] >= perDomainCap {
			continue
		}

		picked = append(picked, it)
		perDomain[it.Domain]++

		if len(picked) >= k {
			break
		}
	}

	observability.ItemsSelected.Set(float64(len(picked)))

	return picked
}

package ranking

import (
	"bytes"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/lueurxax/signal-digest/internal/core/domain"
	"github.com/lueurxax/signal-digest/internal/core/errors"
	"github.com/lueurxax/signal-digest/internal/platform/observability"
)

// ModelVersion is written into every artifact.
const ModelVersion = 1

// Model is the persisted logistic ranking model.
type Model struct {
	Version   int       `json:"version"`
	Features  []string  `json:"features"`
	Weights   []float64 `json:"weights"`
	TrainedAt time.Time `json:"trained_at"`
}

// Backend turns a feature vector into a signal.
type Backend interface {
	Name() string
	Score(f domain.FeatureVector) float64
}

// Heuristic is the fixed-weight backend used without a trained model.
type Heuristic struct{}

// Name returns the backend label.
func (Heuristic) Name() string { return "heuristic" }

// Score returns 0.35*novelty + 0.30*authority + 0.25*min(1, hits/4) + 0.10*engagement.
func (Heuristic) Score(f domain.FeatureVector) float64 {
	keyword := math.Min(1.0, f.KeywordHits/4.0)

	return 0.35*f.Novelty + 0.30*f.Authority + 0.25*keyword + 0.10*f.Engagement
}

// Logistic scores with sigmoid(w · [1, features]).
type Logistic struct {
	Weights []float64
}

// Name returns the backend label.
func (Logistic) Name() string { return "logistic" }

// Score returns the logistic probability.
func (l Logistic) Score(f domain.FeatureVector) float64 {
	return sigmoid(dot(l.Weights, f.ModelInput()))
}

// ModelCache loads the model artifact lazily and reloads it only when its
// modification time changes.
type ModelCache struct {
	path     string
	stat     func(string) (fs.FileInfo, error)
	readFile func(string) ([]byte, error)
	logger   *zerolog.Logger

	mu      sync.Mutex
	mtime   time.Time
	cached  bool
	backend Backend
	loads   int
}

// NewModelCache creates a cache for the artifact at path.
func NewModelCache(path string, logger *zerolog.Logger) *ModelCache {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &ModelCache{path: path, stat: os.Stat, readFile: os.ReadFile, logger: logger}
}

// Backend returns the logistic backend when a valid artifact exists and the
// heuristic otherwise.
func (c *ModelCache) Backend() Backend {
	c.mu.Lock()
	defer c.mu.Unlock()

	info, err := c.stat(c.path)
	if err != nil {
		if c.cached || c.backend == nil {
			c.logger.Info().Str(logKeyPath, c.path).Msg("no ranking model, using heuristic scoring")
		}

		c.cached = false
		c.backend = Heuristic{}

		return c.backend
	}

	if c.cached && info.ModTime().Equal(c.mtime) {
		return c.backend
	}

	c.loads++
	c.mtime = info.ModTime()
	c.cached = true

	model, err := c.load()
	if err != nil {
		observability.ModelLoadFailures.Inc()
		c.logger.Warn().Err(err).Str(logKeyPath, c.path).Msg("ranking model unusable, using heuristic scoring")

		c.backend = Heuristic{}

		return c.backend
	}

	c.backend = Logistic{Weights: model.Weights}

	return c.backend
}

// Loads reports how many times the artifact was read.
func (c *ModelCache) Loads() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.loads
}

func (c *ModelCache) load() (Model, error) {
	data, err := c.readFile(c.path)
	if err != nil {
		return Model{}, fmt.Errorf("read model: %w", err)
	}

	return DecodeModel(data)
}

// DecodeModel parses an artifact. A bare JSON array of five weights is
// accepted as an unversioned model.
func DecodeModel(data []byte) (Model, error) {
	var m Model

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &m.Weights); err != nil {
			return Model{}, fmt.Errorf("%w: %w", errors.ErrMalformedModel, err)
		}

		m.Features = domain.ModelFeatureNames
	} else if err := json.Unmarshal(trimmed, &m); err != nil {
		return Model{}, fmt.Errorf("%w: %w", errors.ErrMalformedModel, err)
	}

	if len(m.Weights) != len(domain.ModelFeatureNames) {
		return Model{}, fmt.Errorf("%w: %d weights, want %d", errors.ErrMalformedModel, len(m.Weights), len(domain.ModelFeatureNames))
	}

	if m.Version > ModelVersion {
		return Model{}, fmt.Errorf("%w: unsupported version %d", errors.ErrMalformedModel, m.Version)
	}

	for _, w := range m.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return Model{}, fmt.Errorf("%w: non-finite weight", errors.ErrMalformedModel)
		}
	}

	return m, nil
}

// SaveModel writes the artifact through a temporary file.
func SaveModel(path string, m Model) error {
	if err := os.MkdirAll(filepath.Dir(path), logDirPerm); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, logFilePerm); err != nil {
		return fmt.Errorf("write model: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace model: %w", err)
	}

	return nil
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

func dot(w, x []float64) float64 {
	var sum float64

	for i := range min(len(w), len(x)) {
		sum += w[i] * x[i]
	}

	return sum
}

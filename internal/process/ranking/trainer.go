package ranking

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/signal-digest/internal/core/domain"
	"github.com/lueurxax/signal-digest/internal/core/errors"
)

// Training defaults.
const (
	DefaultEpochs       = 500
	DefaultLearningRate = 0.1
)

// Trainer fits the logistic model on the interaction log.
type Trainer struct {
	logPath   string
	modelPath string
	now       func() time.Time
	logger    *zerolog.Logger
}

// NewTrainer creates a trainer reading logPath and writing modelPath.
func NewTrainer(logPath, modelPath string, logger *zerolog.Logger) *Trainer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Trainer{logPath: logPath, modelPath: modelPath, now: time.Now, logger: logger}
}

// Train runs full-batch gradient descent from zero weights and persists the
// artifact. Labels are 1 for open and click events and 0 otherwise.
func (t *Trainer) Train(epochs int, learningRate float64) (string, error) {
	if epochs <= 0 {
		epochs = DefaultEpochs
	}

	if learningRate <= 0 {
		learningRate = DefaultLearningRate
	}

	x, y, err := t.loadTrainingData()
	if err != nil {
		return "", err
	}

	weights := Fit(x, y, epochs, learningRate)

	model := Model{
		Version:   ModelVersion,
		Features:  domain.ModelFeatureNames,
		Weights:   weights,
		TrainedAt: t.now().UTC(),
	}

	if err := SaveModel(t.modelPath, model); err != nil {
		return "", err
	}

	positives := 0
	for _, label := range y {
		if label > 0 {
			positives++
		}
	}

	t.logger.Info().
		Str(logKeyPath, t.modelPath).
		Int("rows", len(x)).
		Int("positives", positives).
		Int("epochs", epochs).
		Float64("learning_rate", learningRate).
		Floats64("weights", weights).
		Msg("ranking model trained")

	return t.modelPath, nil
}

func (t *Trainer) loadTrainingData() ([][]float64, []float64, error) {
	events, err := ReadEvents(t.logPath, t.logger)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", errors.ErrTrainingLogMissing, t.logPath)
		}

		return nil, nil, err
	}

	if len(events) == 0 {
		return nil, nil, errors.ErrTrainingLogEmpty
	}

	x := make([][]float64, 0, len(events))
	y := make([]float64, 0, len(events))

	for _, e := range events {
		x = append(x, e.Features.ModelInput())

		label := 0.0
		if e.Kind.Positive() {
			label = 1.0
		}

		y = append(y, label)
	}

	return x, y, nil
}

// Fit minimizes the mean logistic loss with full-batch gradient descent.
func Fit(x [][]float64, y []float64, epochs int, learningRate float64) []float64 {
	if len(x) == 0 {
		return nil
	}

	n := len(x[0])
	m := float64(len(x))
	weights := make([]float64, n)
	grads := make([]float64, n)

	for range epochs {
		clear(grads)

		for i, xi := range x {
			diff := sigmoid(dot(weights, xi)) - y[i]
			for j := range n {
				grads[j] += diff * xi[j]
			}
		}

		for j := range n {
			weights[j] -= learningRate * grads[j] / m
		}
	}

	return weights
}

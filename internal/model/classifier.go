package model

import (
	"errors"
	"fmt"
	"math"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
	"golang.org/x/exp/rand"
)

// InputFeatures is the width of a two-moons feature vector.
const InputFeatures = 2

// Config fully determines the classifier architecture and optimizer rate.
type Config struct {
	Neurons      int
	Activation   Activation
	LearningRate float64
}

// Validate checks that the configuration can build a classifier.
// Range limits for interactive use are enforced by the caller.
func (c Config) Validate() error {
	if c.Neurons < 1 {
		return fmt.Errorf("model: neurons must be >= 1, got %d", c.Neurons)
	}
	if !c.Activation.Valid() {
		return fmt.Errorf("model: unknown activation %q", string(c.Activation))
	}
	if !(c.LearningRate > 0) || math.IsInf(c.LearningRate, 0) {
		return fmt.Errorf("model: learning rate must be a finite value > 0, got %v", c.LearningRate)
	}
	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("neurons=%d activation=%s lr=%g", c.Neurons, c.Activation, c.LearningRate)
}

// recorder is implemented by backends that carry a gradient tape.
type recorder interface {
	Tape() *autodiff.GradientTape
}

// Classifier is a one-hidden-layer binary classifier.
//
// Architecture:
//   - Input: 2 features
//   - Hidden: N neurons with the configured activation
//   - Output: 1 neuron with sigmoid (probability of label 1)
type Classifier[B tensor.Backend] struct {
	cfg     Config
	hidden  *nn.Linear[B] // 2 → N
	output  *nn.Linear[B] // N → 1
	seq     *nn.Sequential[B]
	backend B
}

// New creates an untrained classifier with seeded Xavier-uniform weights
// and zero biases.
func New[B tensor.Backend](cfg Config, seed uint64, backend B) (*Classifier[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	act, err := newActivation[B](cfg.Activation)
	if err != nil {
		return nil, err
	}

	hidden := nn.NewLinear[B](InputFeatures, cfg.Neurons, backend)
	output := nn.NewLinear[B](cfg.Neurons, 1, backend)

	rng := rand.New(rand.NewSource(seed))
	initLinear(hidden, rng)
	initLinear(output, rng)

	return &Classifier[B]{
		cfg:    cfg,
		hidden: hidden,
		output: output,
		seq: nn.NewSequential[B](
			hidden,
			act,
			output,
			nn.NewSigmoid[B](),
		),
		backend: backend,
	}, nil
}

// initLinear overwrites the layer weights in place with U(-a, a),
// a = sqrt(6 / (fan_in + fan_out)).
func initLinear[B tensor.Backend](l *nn.Linear[B], rng *rand.Rand) {
	bound := math.Sqrt(6.0 / float64(l.InFeatures()+l.OutFeatures()))
	w := l.Weight().Tensor().Data()
	for i := range w {
		w[i] = float32((2*rng.Float64() - 1) * bound)
	}
	if b := l.Bias(); b != nil {
		clear(b.Tensor().Data())
	}
}

// Forward maps a [batch, 2] feature tensor to [batch, 1] probabilities.
func (c *Classifier[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 2 || shape[1] != InputFeatures {
		panic(fmt.Sprintf("Classifier: input must have shape [batch_size, %d], got %v", InputFeatures, shape))
	}
	return c.seq.Forward(input)
}

// Parameters returns the trainable parameters of both dense layers.
func (c *Classifier[B]) Parameters() []*nn.Parameter[B] {
	return c.seq.Parameters()
}

// StateDict returns the parameters keyed by layer index ("0.weight", "2.bias", ...).
func (c *Classifier[B]) StateDict() map[string]*tensor.RawTensor {
	return c.seq.StateDict()
}

// Config returns the configuration the classifier was built from.
func (c *Classifier[B]) Config() Config {
	return c.cfg
}

// Predict evaluates row-major [n, 2] features in one batched forward pass
// and returns n probabilities. Gradient recording is suspended for the
// duration of the call when the backend has a tape.
func (c *Classifier[B]) Predict(features []float32) ([]float32, error) {
	if len(features) == 0 {
		return nil, errors.New("model: no features to predict")
	}
	if len(features)%InputFeatures != 0 {
		return nil, fmt.Errorf("model: feature slice length %d is not a multiple of %d", len(features), InputFeatures)
	}

	if r, ok := any(c.backend).(recorder); ok {
		tape := r.Tape()
		wasRecording := tape.IsRecording()
		tape.StopRecording()
		defer func() {
			if wasRecording {
				tape.StartRecording()
			}
		}()
	}

	n := len(features) / InputFeatures
	x, err := tensor.FromSlice(features, tensor.Shape{n, InputFeatures}, c.backend)
	if err != nil {
		return nil, fmt.Errorf("model: build input tensor: %w", err)
	}

	probs := c.Forward(x).Data()
	out := make([]float32, len(probs))
	copy(out, probs)
	return out, nil
}

package playground

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/born-ml/playground/internal/model"
)

// Control ranges.
const (
	MinNeurons  = 2
	MaxNeurons  = 20
	NeuronsStep = 1

	MinLearningRate = 1e-4
	MaxLearningRate = 1e-1
	// LearningRateExpStep is the log10 increment of the learning-rate slider.
	LearningRateExpStep = 0.2

	MinEpochs  = 50
	MaxEpochs  = 500
	EpochsStep = 50
)

// Field names one tunable control.
type Field int

// Controls in display order.
const (
	FieldNeurons Field = iota
	FieldActivation
	FieldLearningRate
	FieldEpochs
)

// Fields returns all controls in display order.
func Fields() []Field {
	return []Field{FieldNeurons, FieldActivation, FieldLearningRate, FieldEpochs}
}

func (f Field) String() string {
	switch f {
	case FieldNeurons:
		return "neurons"
	case FieldActivation:
		return "activation"
	case FieldLearningRate:
		return "learning_rate"
	case FieldEpochs:
		return "epochs"
	}
	return "Field(" + strconv.Itoa(int(f)) + ")"
}

// ErrInvalidParams is wrapped by every validation failure.
var ErrInvalidParams = errors.New("invalid parameters")

// ParamError reports one out-of-range control value.
type ParamError struct {
	Field  Field
	Value  any
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("%v: %s=%v %s", ErrInvalidParams, e.Field, e.Value, e.Reason)
}

func (e *ParamError) Unwrap() error {
	return ErrInvalidParams
}

// Params is one setting of the four controls.
type Params struct {
	Neurons      int              `json:"neurons"`
	Activation   model.Activation `json:"activation"`
	LearningRate float64          `json:"learning_rate"`
	Epochs       int              `json:"epochs"`
}

// DefaultParams returns the initial control values.
func DefaultParams() Params {
	return Params{
		Neurons:      4,
		Activation:   model.ReLU,
		LearningRate: 0.01,
		Epochs:       100,
	}
}

// Validate checks every control against its declared range.
func (p Params) Validate() error {
	if p.Neurons < MinNeurons || p.Neurons > MaxNeurons {
		return &ParamError{Field: FieldNeurons, Value: p.Neurons,
			Reason: fmt.Sprintf("out of range [%d, %d]", MinNeurons, MaxNeurons)}
	}
	if !p.Activation.Valid() {
		return &ParamError{Field: FieldActivation, Value: p.Activation,
			Reason: fmt.Sprintf("not one of %v", model.Activations())}
	}
	if math.IsNaN(p.LearningRate) || p.LearningRate < MinLearningRate*(1-1e-9) || p.LearningRate > MaxLearningRate*(1+1e-9) {
		return &ParamError{Field: FieldLearningRate, Value: p.LearningRate,
			Reason: fmt.Sprintf("out of range [%g, %g]", MinLearningRate, MaxLearningRate)}
	}
	if p.Epochs < MinEpochs || p.Epochs > MaxEpochs {
		return &ParamError{Field: FieldEpochs, Value: p.Epochs,
			Reason: fmt.Sprintf("out of range [%d, %d]", MinEpochs, MaxEpochs)}
	}
	if p.Epochs%EpochsStep != 0 {
		return &ParamError{Field: FieldEpochs, Value: p.Epochs,
			Reason: fmt.Sprintf("not a multiple of %d", EpochsStep)}
	}
	return nil
}

// ModelConfig returns the architecture part of the parameters.
func (p Params) ModelConfig() model.Config {
	return model.Config{
		Neurons:      p.Neurons,
		Activation:   p.Activation,
		LearningRate: p.LearningRate,
	}
}

// Nudge moves one control by delta slider steps, clamped to its range.
// Activation cycles through the supported values.
func (p Params) Nudge(f Field, delta int) Params {
	switch f {
	case FieldNeurons:
		p.Neurons = clamp(p.Neurons+delta*NeuronsStep, MinNeurons, MaxNeurons)
	case FieldActivation:
		acts := model.Activations()
		i := 0
		for j, a := range acts {
			if a == p.Activation {
				i = j
				break
			}
		}
		n := len(acts)
		p.Activation = acts[((i+delta)%n+n)%n]
	case FieldLearningRate:
		k := lrIndex(p.LearningRate) + delta
		p.LearningRate = lrAt(clamp(k, 0, lrSteps()))
	case FieldEpochs:
		e := int(math.Round(float64(p.Epochs)/EpochsStep))*EpochsStep + delta*EpochsStep
		p.Epochs = clamp(e, MinEpochs, MaxEpochs)
	}
	return p
}

// lrSteps is the index of the largest learning-rate slider position.
func lrSteps() int {
	return int(math.Round((math.Log10(MaxLearningRate) - math.Log10(MinLearningRate)) / LearningRateExpStep))
}

func lrIndex(lr float64) int {
	if !(lr > 0) {
		return 0
	}
	k := int(math.Round((math.Log10(lr) - math.Log10(MinLearningRate)) / LearningRateExpStep))
	return clamp(k, 0, lrSteps())
}

func lrAt(k int) float64 {
	v := math.Pow(10, math.Log10(MinLearningRate)+float64(k)*LearningRateExpStep)
	// Trim float noise so slider values print as 0.0001, 0.000158489, ...
	r, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'g', 6, 64), 64)
	return r
}

// LearningRates returns every learning-rate slider position.
func LearningRates() []float64 {
	out := make([]float64, lrSteps()+1)
	for k := range out {
		out[k] = lrAt(k)
	}
	return out
}

// Format renders the parameters as one status line.
func (p Params) Format() string {
	return fmt.Sprintf("neurons=%d activation=%s lr=%.4g epochs=%d",
		p.Neurons, p.Activation, p.LearningRate, p.Epochs)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

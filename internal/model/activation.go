package model

import (
	"fmt"
	"strings"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
)

// Activation names the hidden-layer non-linearity.
type Activation string

// Supported activations.
const (
	ReLU    Activation = "relu"
	Tanh    Activation = "tanh"
	Sigmoid Activation = "sigmoid"
)

// Activations returns the supported activations in display order.
func Activations() []Activation {
	return []Activation{ReLU, Tanh, Sigmoid}
}

// ParseActivation parses a case-insensitive activation name.
func ParseActivation(s string) (Activation, error) {
	a := Activation(strings.ToLower(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", fmt.Errorf("model: unknown activation %q (want one of %v)", s, Activations())
	}
	return a, nil
}

// Valid reports whether a is a supported activation.
func (a Activation) Valid() bool {
	switch a {
	case ReLU, Tanh, Sigmoid:
		return true
	}
	return false
}

func (a Activation) String() string {
	return string(a)
}

func newActivation[B tensor.Backend](a Activation) (nn.Module[B], error) {
	switch a {
	case ReLU:
		return nn.NewReLU[B](), nil
	case Tanh:
		return nn.NewTanh[B](), nil
	case Sigmoid:
		return nn.NewSigmoid[B](), nil
	}
	return nil, fmt.Errorf("model: unknown activation %q", string(a))
}
